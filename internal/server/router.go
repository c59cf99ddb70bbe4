package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/api"
	"github.com/cloo-solutions/newsweave/internal/api/handlers"
	"github.com/cloo-solutions/newsweave/internal/api/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	TokenValidator     middleware.TokenValidator
	Logger             *zap.Logger
	Health             Pinger
	DocumentHandler    *handlers.DocumentHandler
	ClusterRunHandler  *handlers.ClusterRunHandler
	AttributionHandler *handlers.AttributionHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 20 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", healthHandler(cfg.Health))

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenValidator))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/{id}", cfg.DocumentHandler.Get)
		})

		r.Route("/cluster-runs", func(r chi.Router) {
			r.Post("/", cfg.ClusterRunHandler.Create)
			r.Get("/", cfg.ClusterRunHandler.List)
			r.Get("/{id}", cfg.ClusterRunHandler.Get)
		})

		r.Route("/attributions", func(r chi.Router) {
			r.Post("/", cfg.AttributionHandler.Create)
			r.Get("/{document_id}", cfg.AttributionHandler.ListEntries)
		})

		r.Get("/attribution-jobs/{id}", cfg.AttributionHandler.GetJob)
	})

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				api.Success(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
