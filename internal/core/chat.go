package core

import (
	"context"

	"github.com/google/generative-ai-go/genai"
	"mindscribe.app/journal-assistant/internal/fault"
)

// ChatService handles the free-form conversation mode. It is single-turn:
// conversation state lives with the transport layer, not here.
type ChatService struct {
	ai *AIClient
}

func NewChatService(ai *AIClient) *ChatService {
	return &ChatService{ai: ai}
}

// Respond generates a reply to the user's message. Degraded outcomes
// (safety blocks, empty responses) come back as canned user-visible text
// rather than errors; only transport failures propagate.
func (s *ChatService) Respond(ctx context.Context, userID, message string) (string, error) {
	text, err := s.ai.Generate(ctx, userID, genai.Text(message))
	if err != nil {
		switch fault.KindOf(err) {
		case fault.SafetyBlocked:
			return "My response to that message was blocked. Please try rephrasing.", nil
		case fault.MalformedResponse:
			return "I received an empty response, please try again.", nil
		}
		return "", err
	}
	return text, nil
}
