package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/seatmap-engine/internal/idempotency"
	"github.com/robertarktes/seatmap-engine/internal/observability"
	"github.com/robertarktes/seatmap-engine/internal/rateLimit"
)

type RouterConfig struct {
	JWTSecret string
	// RateLimit is requests per minute per caller; zero disables limiting.
	RateLimit int
}

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, cfg.RateLimit))
		r.Get("/v1/events/{eventID}/seats", h.GetSeats)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTMiddleware(cfg.JWTSecret))
		r.Use(RateLimitMiddleware(rl, cfg.RateLimit))
		r.Use(IdempotencyMiddleware(idemp, logger))

		r.Post("/v1/events/{eventID}/holds", h.Hold)
		r.Post("/v1/events/{eventID}/release", h.Release)
		r.Post("/v1/events/{eventID}/confirm", h.Confirm)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(RoleAdmin))
			r.Post("/v1/events", h.CreateEvent)
			r.Put("/v1/events/{eventID}/status", h.SetEventStatus)
			r.Post("/v1/events/{eventID}/seatmap", h.CreateSeatMap)
			r.Get("/v1/events/{eventID}/stats", h.Stats)
		})
	})

	return r
}
