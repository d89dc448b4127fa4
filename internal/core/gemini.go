package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"mindscribe.app/journal-assistant/internal/config"
)

const defaultModelName = "gemini-1.5-flash-latest"

// TokenUsage is the cost metadata the inference service attaches to a
// response.
type TokenUsage struct {
	Prompt     int64
	Candidates int64
}

func (u TokenUsage) Total() int64 {
	return u.Prompt + u.Candidates
}

// GenResult is the outcome of one inference call. Blocked responses are not
// errors at this layer: the response arrived, the service just refused to
// answer, and it may still carry usage metadata that must be accounted for.
type GenResult struct {
	Text        string
	Usage       TokenUsage
	Blocked     bool
	BlockReason string
}

// InferenceService is raw model access. AIClient is the only caller; the
// pipeline and normalizer never reach the service directly, so usage
// accounting cannot be bypassed.
type InferenceService interface {
	Generate(ctx context.Context, parts ...genai.Part) (*GenResult, error)
	Transcribe(ctx context.Context, audio []byte, mimeType, instruction string) (*GenResult, error)
}

type GeminiService struct {
	client    *genai.Client
	modelName string
}

func NewGeminiService(ctx context.Context) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiService{
		client:    client,
		modelName: defaultModelName,
	}, nil
}

func (s *GeminiService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *GeminiService) model() *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}
	return model
}

func (s *GeminiService) Generate(ctx context.Context, parts ...genai.Part) (*GenResult, error) {
	resp, err := s.model().GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			res := &GenResult{Blocked: true}
			if blocked.PromptFeedback != nil {
				res.BlockReason = fmt.Sprint(blocked.PromptFeedback.BlockReason)
			} else if blocked.Candidate != nil {
				res.BlockReason = fmt.Sprint(blocked.Candidate.FinishReason)
			}
			return res, nil
		}
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	res := &GenResult{}
	if resp.UsageMetadata != nil {
		res.Usage = TokenUsage{
			Prompt:     int64(resp.UsageMetadata.PromptTokenCount),
			Candidates: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		res.Blocked = true
		res.BlockReason = fmt.Sprint(resp.PromptFeedback.BlockReason)
		return res, nil
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		log.Println("Gemini response was empty or had no valid candidates.")
		return res, nil
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		res.Blocked = true
		res.BlockReason = fmt.Sprint(resp.Candidates[0].FinishReason)
		return res, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	res.Text = text.String()
	return res, nil
}

// Transcribe uploads the audio to the service's file store, asks the model
// for a transcript, then deletes the uploaded file.
func (s *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType, instruction string) (*GenResult, error) {
	file, err := s.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("gemini audio upload failed: %w", err)
	}
	defer func() {
		if err := s.client.DeleteFile(ctx, file.Name); err != nil {
			log.Printf("Could not delete uploaded audio file %s: %v", file.Name, err)
		}
	}()

	return s.Generate(ctx, genai.Text(instruction), genai.FileData{MIMEType: file.MIMEType, URI: file.URI})
}
