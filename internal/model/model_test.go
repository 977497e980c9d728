package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidate_RegisterRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  RegisterRequest{Email: "a@x.com", Username: "alice", Password: "secret1"},
		},
		{
			name:    "bad email",
			req:     RegisterRequest{Email: "nope", Username: "alice", Password: "secret1"},
			wantErr: "Invalid email",
		},
		{
			name:    "short username",
			req:     RegisterRequest{Email: "a@x.com", Username: "al", Password: "secret1"},
			wantErr: "username must contain at least 3 character(s)",
		},
		{
			name:    "long username",
			req:     RegisterRequest{Email: "a@x.com", Username: strings.Repeat("a", 51), Password: "secret1"},
			wantErr: "username must contain at most 50 character(s)",
		},
		{
			name:    "short password",
			req:     RegisterRequest{Email: "a@x.com", Username: "alice", Password: "12345"},
			wantErr: "password must contain at least 6 character(s)",
		},
		{
			name:    "multibyte password over bcrypt limit",
			req:     RegisterRequest{Email: "a@x.com", Username: "alice", Password: strings.Repeat("€", 30)},
			wantErr: "password must be at most 72 bytes",
		},
		{
			name: "multibyte password at bcrypt limit",
			req:  RegisterRequest{Email: "a@x.com", Username: "alice", Password: strings.Repeat("€", 24)},
		},
		{
			name:    "first violation wins",
			req:     RegisterRequest{Username: "a", Password: "1"},
			wantErr: "email is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidate_UpdateUserRequest(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(&UpdateUserRequest{}))
	assert.NoError(t, Validate(&UpdateUserRequest{FullName: strPtr("X"), Avatar: strPtr("https://example.com/a.jpg")}))

	err := Validate(&UpdateUserRequest{Avatar: strPtr("not a url")})
	require.Error(t, err)
	assert.Equal(t, "avatar must be a valid URL", err.Error())
}

func TestValidate_AppendMessageRequest(t *testing.T) {
	t.Parallel()

	err := Validate(&AppendMessageRequest{Role: "robot", Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, "role must be one of: user, assistant, system", err.Error())

	err = Validate(&AppendMessageRequest{
		Role:    RoleAssistant,
		Content: "found one",
		FlightResults: []FlightOffer{{
			ID:    "1",
			Price: FlightPrice{Total: "100.00"},
		}},
	})
	require.Error(t, err)
	assert.Equal(t, "currency is required", err.Error())
}

func TestUserJSONNeverContainsPasswordHash(t *testing.T) {
	t.Parallel()

	u := &User{
		ID:           "u1",
		Email:        "a@x.com",
		Username:     "alice",
		PasswordHash: "$2a$10$secret",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	for _, v := range []any{u, u.Public(), AuthResponse{User: u.Public(), Token: "t"}} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "passwordHash")
		assert.NotContains(t, string(data), "$2a$10$secret")
	}
}

func TestNewUnavailableResponse(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	resp := NewUnavailableResponse("conv-42", now)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Error   string `json:"error"`
		Message struct {
			ID            string          `json:"id"`
			Role          string          `json:"role"`
			Content       string          `json:"content"`
			Timestamp     time.Time       `json:"timestamp"`
			FlightResults json.RawMessage `json:"flightResults"`
		} `json:"message"`
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, UnavailableError, decoded.Error)
	assert.Equal(t, "assistant", decoded.Message.Role)
	assert.Equal(t, UnavailableContent, decoded.Message.Content)
	assert.True(t, strings.HasPrefix(decoded.Message.ID, "error-"))
	assert.True(t, now.Equal(decoded.Message.Timestamp))
	assert.JSONEq(t, `[]`, string(decoded.Message.FlightResults))
	assert.Equal(t, "conv-42", decoded.ConversationID)

	placeholder := NewUnavailableResponse("", now)
	assert.True(t, strings.HasPrefix(placeholder.ConversationID, "conv-"))
	assert.NotEqual(t, "conv-", placeholder.ConversationID)
}
