package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skybound-ai/gateway/internal/middleware"
	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/service"
	"github.com/skybound-ai/gateway/pkg/logger"
)

// HistoryHandler handles locally stored conversation endpoints.
type HistoryHandler struct {
	service *service.HistoryService
	logger  *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(svc *service.HistoryService, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/history
func (h *HistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/history/{id}
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Append handles POST /api/history/{id}/messages
func (h *HistoryHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req model.AppendMessageRequest
	if decodeJSON(w, r, &req) != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	conv, err := h.service.Append(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to append message")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
