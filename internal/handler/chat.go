package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/proxy"
	"github.com/skybound-ai/gateway/pkg/logger"
)

// defaultUserID is used when a conversation listing names no user.
const defaultUserID = "default-user"

// Forwarder relays a request to the AI service.
type Forwarder interface {
	Forward(ctx context.Context, req proxy.Request) *proxy.Result
}

// UnavailableRecorder is told about every fallback served.
type UnavailableRecorder interface {
	RecordUnavailable(ctx context.Context, userID, conversationID, route, reason string)
}

// ChatHandler proxies chat traffic to the AI service.
type ChatHandler struct {
	forwarder Forwarder
	recorder  UnavailableRecorder
	logger    *logger.Logger
}

// NewChatHandler creates a new chat handler. recorder may be nil.
func NewChatHandler(forwarder Forwarder, recorder UnavailableRecorder, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		forwarder: forwarder,
		recorder:  recorder,
		logger:    log,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	// A body that does not decode is still forwarded; only the fallback hints are lost.
	var hints model.ChatRequest
	_ = json.Unmarshal(body, &hints)

	conversationID := ""
	if hints.ConversationID != nil {
		conversationID = *hints.ConversationID
	}

	h.forward(w, r, proxy.Request{
		Method:         http.MethodPost,
		Path:           "/api/chat",
		Route:          "/api/chat",
		Body:           body,
		ConversationID: conversationID,
	}, hints.UserID)
}

// Health handles GET /api/health
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, proxy.Request{
		Method: http.MethodGet,
		Path:   "/api/health",
		Route:  "/api/health",
	}, "")
}

// GetConversation handles GET /api/conversations/{id}
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.forward(w, r, proxy.Request{
		Method:         http.MethodGet,
		Path:           "/api/conversations/" + url.PathEscape(id),
		Route:          "/api/conversations/{id}",
		ConversationID: id,
	}, "")
}

// ListConversations handles GET /api/conversations
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = defaultUserID
	}

	h.forward(w, r, proxy.Request{
		Method: http.MethodGet,
		Path:   "/api/conversations?userId=" + url.QueryEscape(userID),
		Route:  "/api/conversations",
	}, userID)
}

func (h *ChatHandler) forward(w http.ResponseWriter, r *http.Request, req proxy.Request, userID string) {
	res := h.forwarder.Forward(r.Context(), req)

	if res.Degraded() {
		if h.recorder != nil {
			h.recorder.RecordUnavailable(r.Context(), userID, res.Fallback.ConversationID, req.Route, res.Reason)
		}
		writeJSON(w, res.StatusCode, res.Fallback)
		return
	}

	writeRawJSON(w, res.StatusCode, res.Body)
}
