package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// RouterConfig wires handlers and agent endpoint protection.
type RouterConfig struct {
	Health  *HealthHandler
	Webhook *WebhookHandler // nil in poll mode
	Send    *SendHandler

	AllowedOrigins      []string
	SendJWTSecret       string
	SendRateLimit       int
	SendRateLimitWindow time.Duration

	Logger *logger.Logger
}

// NewRouter builds the gateway's HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.Webhook != nil {
		r.Post("/webhook/{scope}", cfg.Webhook.Receive)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
		r.Use(middleware.Auth(cfg.SendJWTSecret))
		if cfg.SendRateLimit > 0 {
			r.Use(middleware.RateLimit(cfg.SendRateLimit, cfg.SendRateLimitWindow))
		}
		r.Options("/send", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/send", cfg.Send.Send)
	})

	return r
}
