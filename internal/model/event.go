package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeUpstreamUnavailable EventType = "upstream_unavailable"
	EventTypeConversationCreated EventType = "conversation_created"
)

// ConversationEvent represents an event concerning a conversation.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	UserID         string         `json:"userId,omitempty"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
