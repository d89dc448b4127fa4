package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
	"mindscribe.app/journal-assistant/internal/metrics"
	"mindscribe.app/journal-assistant/internal/store"
)

// scriptedInference plays back canned results in call order. Both Generate
// and Transcribe consume from the same script.
type scriptedInference struct {
	mu    sync.Mutex
	steps []inferenceStep
	calls int
}

type inferenceStep struct {
	res *GenResult
	err error
}

func okStep(text string, tokens int64) inferenceStep {
	return inferenceStep{res: &GenResult{Text: text, Usage: TokenUsage{Prompt: tokens}}}
}

func blockedStep(reason string, tokens int64) inferenceStep {
	return inferenceStep{res: &GenResult{Blocked: true, BlockReason: reason, Usage: TokenUsage{Prompt: tokens}}}
}

func failStep(msg string) inferenceStep {
	return inferenceStep{err: errors.New(msg)}
}

func (f *scriptedInference) next() (*GenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.steps) {
		return nil, errors.New("scripted inference exhausted")
	}
	step := f.steps[f.calls]
	f.calls++
	return step.res, step.err
}

func (f *scriptedInference) Generate(_ context.Context, _ ...genai.Part) (*GenResult, error) {
	return f.next()
}

func (f *scriptedInference) Transcribe(_ context.Context, _ []byte, _, _ string) (*GenResult, error) {
	return f.next()
}

// stubRenderer records the DOT it was handed and returns a fixed outcome.
type stubRenderer struct {
	path    string
	err     error
	lastDot string
	calls   int
}

func (r *stubRenderer) Render(_ context.Context, dot string) (string, error) {
	r.calls++
	r.lastDot = dot
	return r.path, r.err
}

type testKit struct {
	pipeline  *Pipeline
	store     *store.FileStore
	ledger    *Ledger
	inference *scriptedInference
	renderer  *stubRenderer
	ai        *AIClient
}

func newTestKit(t *testing.T, steps ...inferenceStep) *testKit {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	ledger, err := NewLedger(st)
	require.NoError(t, err)

	inference := &scriptedInference{steps: steps}
	collector := metrics.NewCollector()
	ai := NewAIClient(inference, ledger, collector, 5*time.Second)
	normalizer := NewNormalizer(ai)
	renderer := &stubRenderer{path: "viz/out.png"}

	return &testKit{
		pipeline:  NewPipeline(st, ai, ledger, normalizer, renderer, collector, 5),
		store:     st,
		ledger:    ledger,
		inference: inference,
		renderer:  renderer,
		ai:        ai,
	}
}
