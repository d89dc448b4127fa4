package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"mindscribe.app/journal-assistant/internal/fault"
	"mindscribe.app/journal-assistant/internal/store"
)

const (
	transcriptionInstruction = "Transcribe the following audio recording accurately."

	punctuationInstruction = "Add appropriate punctuation, capitalization, and sentence breaks to the " +
		"following raw transcript. Make it read naturally. Preserve the original words and meaning. " +
		"Return only the formatted text."

	extractionInstruction = "Extract all text from this image accurately, preserving line breaks where " +
		"possible. If the image contains no readable text, reply with exactly: NO TEXT FOUND"

	noTextMarker = "NO TEXT FOUND"
)

// Input is one piece of raw user input before normalization.
type Input struct {
	Modality store.Modality
	Text     string // TEXT modality
	Payload  []byte // VOICE/IMAGE modality
	MIMEType string
	Language string // optional hint for transcription
}

// Normalizer turns any accepted input modality into canonical text. All of
// its inference calls go through the shared AIClient, so they are costed and
// timeout-bounded like every other call.
type Normalizer struct {
	ai *AIClient
}

func NewNormalizer(ai *AIClient) *Normalizer {
	return &Normalizer{ai: ai}
}

// Normalize returns canonical text for the input. An empty string with a nil
// error means the input genuinely contained no text (image with nothing
// readable), which is a valid empty result rather than a failure.
func (n *Normalizer) Normalize(ctx context.Context, userID string, in Input) (string, error) {
	switch in.Modality {
	case store.ModalityText:
		return in.Text, nil
	case store.ModalityVoice:
		return n.normalizeVoice(ctx, userID, in)
	case store.ModalityImage:
		return n.normalizeImage(ctx, userID, in)
	}
	return "", fault.Errorf(fault.MalformedResponse, "normalizer.Normalize", "unsupported modality %q", in.Modality)
}

// normalizeVoice transcribes the audio, then asks for a punctuation and
// casing pass. Transcription failure aborts; a failed punctuation pass only
// degrades to the raw transcript.
func (n *Normalizer) normalizeVoice(ctx context.Context, userID string, in Input) (string, error) {
	instruction := transcriptionInstruction
	if in.Language != "" {
		instruction += fmt.Sprintf(" The spoken language is %s.", in.Language)
	}

	raw, err := n.ai.Transcribe(ctx, userID, in.Payload, in.MIMEType, instruction)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	raw = strings.TrimSpace(raw)

	prompt := fmt.Sprintf("%s\n\nRaw Text: %q\n\nFormatted Text:", punctuationInstruction, raw)
	enhanced, err := n.ai.Generate(ctx, userID, genai.Text(prompt))
	if err != nil {
		log.Printf("Punctuation pass failed for user %s, returning raw transcript: %v", userID, err)
		return raw, nil
	}
	return strings.TrimSpace(enhanced), nil
}

func (n *Normalizer) normalizeImage(ctx context.Context, userID string, in Input) (string, error) {
	text, err := n.ai.Generate(ctx, userID,
		genai.Text(extractionInstruction),
		genai.Blob{MIMEType: in.MIMEType, Data: in.Payload},
	)
	if err != nil {
		// An empty response from the vision call means nothing readable.
		if fault.IsKind(err, fault.MalformedResponse) {
			return "", nil
		}
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(text), noTextMarker) {
		return "", nil
	}
	return strings.TrimSpace(text), nil
}
