package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/proconnect/internal/middleware"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

// RouterConfig holds the handlers and settings the API router is built from.
type RouterConfig struct {
	Health  *HealthHandler
	Chat    *ChatHandler
	Stream  *StreamHandler
	Network *NetworkHandler

	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Logger            *logger.Logger
}

// NewRouter builds the HTTP routes of the API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/network", func(r chi.Router) {
			r.Get("/profiles/{id}", cfg.Network.Profile)
			r.Get("/path/{target}", cfg.Network.Path)

			r.Get("/connections", cfg.Network.Connections)
			r.Post("/connections", cfg.Network.Request)
			r.Get("/connections/count", cfg.Network.Count)
			r.Put("/connections/{id}", cfg.Network.Respond)
			r.Delete("/connections/{id}", cfg.Network.Cancel)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", cfg.Chat.State)
			r.Get("/events", cfg.Stream.Stream)

			r.Get("/conversations", cfg.Chat.Conversations)
			r.Post("/conversations", cfg.Chat.StartConversation)
			r.Put("/selection", cfg.Chat.Select)

			r.Get("/messages", cfg.Chat.Messages)
			r.Post("/messages", cfg.Chat.Send)
			r.Put("/draft", cfg.Chat.Draft)

			r.Post("/initiator", cfg.Chat.OpenInitiator)
			r.Delete("/initiator", cfg.Chat.CloseInitiator)
			r.Get("/candidates", cfg.Chat.Candidates)
		})
	})

	return r
}
