package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// UnavailableError is the error text of the fallback payload.
	UnavailableError = "AI service temporarily unavailable. Please try again."

	// UnavailableContent is the assistant reply used when the AI service cannot be reached.
	UnavailableContent = "I apologize, but the AI service is temporarily unavailable. Please try again in a moment."
)

// FallbackMessage is an assistant message whose flight results always serialize,
// even when empty.
type FallbackMessage struct {
	ChatMessage
	FlightResults []FlightOffer `json:"flightResults"`
}

// UnavailableResponse is the synthesized body returned when the AI service is unreachable.
type UnavailableResponse struct {
	Error          string          `json:"error"`
	Message        FallbackMessage `json:"message"`
	ConversationID string          `json:"conversationId"`
}

// NewUnavailableResponse builds the fallback payload. An empty conversationID is
// replaced by a fresh placeholder id.
func NewUnavailableResponse(conversationID string, now time.Time) *UnavailableResponse {
	if conversationID == "" {
		conversationID = "conv-" + uuid.NewString()
	}
	return &UnavailableResponse{
		Error: UnavailableError,
		Message: FallbackMessage{
			ChatMessage: ChatMessage{
				ID:        "error-" + uuid.NewString(),
				Role:      RoleAssistant,
				Content:   UnavailableContent,
				Timestamp: now.UTC(),
			},
			FlightResults: []FlightOffer{},
		},
		ConversationID: conversationID,
	}
}
