package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/yourorg/places-api/http"
	"github.com/yourorg/places-api/internal/cache"
	"github.com/yourorg/places-api/internal/logger"
	"github.com/yourorg/places-api/internal/metrics"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Store  httpapi.RestaurantReader
	Health Pinger
	Cache  cache.Cache
	Logger *slog.Logger
	// RateLimitPerMinute is per client IP. Zero disables limiting.
	RateLimitPerMinute int
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
}

func BuildRouter(d RouterDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Cache", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(logger.Middleware(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health.Ping(ctx); err != nil {
				d.Logger.Warn("health check failed", slog.Any("error", err))
				render.Status(req, http.StatusServiceUnavailable)
				render.JSON(w, req, map[string]any{"ok": false})
				return
			}
		}
		render.JSON(w, req, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(d.RateLimitPerMinute, time.Minute))
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))
		httpapi.RegisterRestaurants(r, httpapi.RestaurantsDeps{
			Store:  d.Store,
			Cache:  d.Cache,
			Logger: d.Logger,
		})
	})
	return r
}
