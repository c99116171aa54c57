package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/yourorg/places-api/internal/cache"
	"github.com/yourorg/places-api/internal/env"
	"github.com/yourorg/places-api/internal/logger"
	"github.com/yourorg/places-api/internal/redisx"
	"github.com/yourorg/places-api/internal/store"
)

func main() {
	log := logger.New(env.Get("LOG_LEVEL", "info"), env.Get("LOG_FORMAT", "json"))
	slog.SetDefault(log)

	port := env.GetInt("PORT", 4002)
	storeURI := env.Must("STORE_URI")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	st, err := store.Open(openCtx, store.Config{
		URI:      storeURI,
		Database: env.Get("STORE_DATABASE", "places"),
		Logger:   log,
	})
	if err != nil {
		cancel()
		log.Error("store open failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := st.Migrate(openCtx); err != nil {
		cancel()
		log.Error("store migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
	cancel()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()

	ttl := env.GetDuration("CACHE_TTL", 5*time.Minute)
	var c cache.Cache = cache.NewLocal(1024, ttl)
	if addr := env.Get("REDIS_ADDR", ""); addr != "" {
		rc := redisx.New(addr, env.Get("REDIS_PASSWORD", ""), env.GetInt("REDIS_DB", 0))
		defer rc.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, using in-process cache", slog.String("addr", addr), slog.Any("error", err))
		} else {
			c = cache.NewRedis(rc, ttl, log)
		}
		cancel()
	}

	srv := &http.Server{
		Addr: ":" + strconv.Itoa(port),
		Handler: BuildRouter(RouterDeps{
			Store:              st,
			Health:             st,
			Cache:              c,
			Logger:             log,
			RateLimitPerMinute: env.GetInt("RATE_LIMIT_PER_MINUTE", 100),
			CORSOrigins:        env.GetList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info("places-api listening", slog.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
