package handler

import (
	"net/http"

	"github.com/skybound-ai/gateway/internal/middleware"
	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/service"
	"github.com/skybound-ai/gateway/pkg/logger"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if decodeJSON(w, r, &req) != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	resp, err := h.service.Register(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if decodeJSON(w, r, &req) != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateUserRequest
	if decodeJSON(w, r, &req) != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles PUT /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if decodeJSON(w, r, &req) != nil {
		writeError(w, http.StatusBadRequest, invalidBodyMessage)
		return
	}

	if err := h.service.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), &req); err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to change password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
