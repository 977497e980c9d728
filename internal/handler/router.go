package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skybound-ai/gateway/internal/middleware"
	"github.com/skybound-ai/gateway/pkg/logger"
)

// RouterConfig wires handlers and middleware settings into a router.
type RouterConfig struct {
	Auth    *AuthHandler
	Chat    *ChatHandler
	History *HistoryHandler
	Health  *HealthHandler

	Tokens middleware.TokenVerifier
	Logger *logger.Logger

	// RateLimitRequests per RateLimitWindow applies to each client IP on the
	// credential endpoints and to each user on the history endpoints. Zero
	// disables it.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string
}

// NewRouter builds the HTTP routes of the gateway.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	authMW := middleware.Auth(cfg.Tokens)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.RateLimitRequests > 0 {
					r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
				}
				r.Post("/register", cfg.Auth.Register)
				r.Post("/login", cfg.Auth.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMW)
				r.Get("/me", cfg.Auth.Me)
				r.Put("/profile", cfg.Auth.UpdateProfile)
				r.Put("/password", cfg.Auth.ChangePassword)
			})
		})

		r.Post("/chat", cfg.Chat.Chat)
		r.Get("/health", cfg.Chat.Health)
		r.Get("/conversations", cfg.Chat.ListConversations)
		r.Get("/conversations/{id}", cfg.Chat.GetConversation)

		r.Route("/history", func(r chi.Router) {
			r.Use(authMW)
			if cfg.RateLimitRequests > 0 {
				r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Get("/", cfg.History.List)
			r.Post("/", cfg.History.Create)
			r.Get("/{id}", cfg.History.Get)
			r.Post("/{id}/messages", cfg.History.Append)
		})
	})

	return r
}
