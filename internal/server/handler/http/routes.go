package http

import (
	"net/http"

	"github.com/atinyakov/silicabot/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the webhook
// API.
//
// Routes:
//
//	POST /webhook/register → webhookHandler.Register
//	GET  /health           → healthHandler.Health
//
// Middleware chain (applied in order):
//  1. RequestID, Recoverer
//  2. WithRequestLogging(logger)
//  3. on /webhook only: WebhookSecret(secret)
func NewRouter(
	webhookHandler *WebhookHandler,
	healthHandler *HealthHandler,
	secret string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/health", healthHandler.Health)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(middleware.WebhookSecret(secret))

		r.Post("/register", webhookHandler.Register)
	})

	return r
}
