package core

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"mindscribe.app/journal-assistant/internal/fault"
	"mindscribe.app/journal-assistant/internal/metrics"
)

// AIClient is the single wrapper every inference call goes through. It
// bounds each call with a timeout, maps the outcome onto the error taxonomy,
// and records returned usage metadata against the caller's ledger even when
// the call's semantic purpose failed.
type AIClient struct {
	svc     InferenceService
	ledger  *Ledger
	metrics *metrics.Collector
	timeout time.Duration
}

func NewAIClient(svc InferenceService, ledger *Ledger, collector *metrics.Collector, timeout time.Duration) *AIClient {
	return &AIClient{
		svc:     svc,
		ledger:  ledger,
		metrics: collector,
		timeout: timeout,
	}
}

// Generate runs one text/vision inference call on behalf of userID.
func (c *AIClient) Generate(ctx context.Context, userID string, parts ...genai.Part) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.svc.Generate(ctx, parts...)
	c.account(userID, res)
	return c.finish("ai.Generate", res, err)
}

// Transcribe runs one audio transcription call on behalf of userID.
func (c *AIClient) Transcribe(ctx context.Context, userID string, audio []byte, mimeType, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.svc.Transcribe(ctx, audio, mimeType, instruction)
	c.account(userID, res)
	return c.finish("ai.Transcribe", res, err)
}

// account forwards usage metadata to the ledger regardless of whether the
// call succeeded semantically. Calls that never reached the service return a
// nil result and are skipped.
func (c *AIClient) account(userID string, res *GenResult) {
	if res == nil || res.Usage.Total() == 0 {
		return
	}
	c.metrics.RecordTokens(res.Usage.Total())
	if err := c.ledger.Record(userID, res.Usage); err != nil {
		log.Printf("Failed to record token usage for user %s: %v", userID, err)
	}
}

func (c *AIClient) finish(op string, res *GenResult, err error) (string, error) {
	if err != nil {
		c.metrics.RecordInferenceCall("transport")
		return "", fault.New(fault.Transport, op, err)
	}
	if res.Blocked {
		c.metrics.RecordInferenceCall("safety_blocked")
		return "", fault.Errorf(fault.SafetyBlocked, op, "request blocked: %s", res.BlockReason)
	}
	if strings.TrimSpace(res.Text) == "" {
		c.metrics.RecordInferenceCall("empty")
		return "", fault.Errorf(fault.MalformedResponse, op, "empty response")
	}
	c.metrics.RecordInferenceCall("ok")
	return res.Text, nil
}
