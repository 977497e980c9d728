package model

import (
	"time"
)

// Conversation groups an ordered, append-only sequence of messages for one user.
type Conversation struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

// ChatRequest is the body accepted by the chat endpoint and forwarded to the AI service.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId,omitempty"`
	UserID         string  `json:"userId"`
}
