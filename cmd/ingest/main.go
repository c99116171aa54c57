package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yourorg/places-api/internal/cache"
	"github.com/yourorg/places-api/internal/env"
	"github.com/yourorg/places-api/internal/events"
	"github.com/yourorg/places-api/internal/hydrator"
	"github.com/yourorg/places-api/internal/logger"
	"github.com/yourorg/places-api/internal/metrics"
	"github.com/yourorg/places-api/internal/namelist"
	"github.com/yourorg/places-api/internal/objectstore"
	"github.com/yourorg/places-api/internal/redisx"
	"github.com/yourorg/places-api/internal/store"
	"github.com/yourorg/places-api/places"
)

func main() {
	migrateLocations := flag.Bool("migrate-locations", false, "convert legacy {lat,lng} locations to GeoJSON and exit")
	flag.Parse()

	log := logger.New(env.Get("LOG_LEVEL", "info"), env.Get("LOG_FORMAT", "json"))
	slog.SetDefault(log)
	os.Exit(run(log, *migrateLocations))
}

const migrateTimeout = 2 * time.Minute

// migrateStore runs schema setup on its own deadline, separate from the
// connect budget and from any legacy conversion that ran before it.
func migrateStore(ctx context.Context, st store.Store, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return st.Migrate(ctx)
}

func run(log *slog.Logger, migrateLocations bool) int {
	storeURI := env.Must("STORE_URI")
	var apiKey string
	if !migrateLocations {
		apiKey = env.Must("GOOGLE_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 15*time.Second)
	st, err := store.Open(openCtx, store.Config{
		URI:      storeURI,
		Database: env.Get("STORE_DATABASE", "places"),
		Logger:   log,
	})
	cancelOpen()
	if err != nil {
		log.Error("store open failed", slog.Any("error", err))
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(closeCtx)
	}()

	if migrateLocations {
		m, ok := st.(store.LegacyLocationMigrator)
		if !ok {
			log.Info("store has no legacy locations to migrate")
			return 0
		}
		n, err := m.MigrateLegacyLocations(ctx)
		if err != nil {
			log.Error("legacy location migration failed", slog.Any("error", err))
			return 1
		}
		log.Info("legacy locations migrated", slog.Int64("documents", n))
	}
	if err := migrateStore(ctx, st, migrateTimeout); err != nil {
		log.Error("store migrate failed", slog.Any("error", err))
		return 1
	}
	if migrateLocations {
		return 0
	}

	names, err := namelist.Load(env.Get("INGEST_NAMES_FILE", ""))
	if err != nil {
		log.Error("name list unavailable", slog.Any("error", err))
		return 1
	}
	timeout := env.GetDuration("INGEST_REQUEST_TIMEOUT", 10*time.Second)

	client := places.NewClient(places.Config{
		APIKey:        apiKey,
		RatePerSecond: env.GetFloat("INGEST_RATE_PER_SECOND", 5),
		Timeout:       timeout,
		Logger:        log.With(slog.String("component", "places")),
	})

	pub := events.NewInMemory(256)
	var wg sync.WaitGroup
	if addr := env.Get("REDIS_ADDR", ""); addr != "" {
		rc := redisx.New(addr, env.Get("REDIS_PASSWORD", ""), env.GetInt("REDIS_DB", 0))
		defer rc.Close()
		inv := &cache.Invalidator{
			Cache:  cache.NewRedis(rc, env.GetDuration("CACHE_TTL", 5*time.Minute), log),
			Pub:    pub,
			Logger: log,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv.Run(context.Background())
		}()
	}

	job := &hydrator.BulkJob{
		Client:   client,
		Hydrator: &hydrator.Hydrator{Store: st, Pub: pub},
		Logger:   log,
		Config: hydrator.BulkConfig{
			Names:          names,
			RequestTimeout: timeout,
		},
	}
	if bucket := env.Get("S3_BUCKET", ""); bucket != "" {
		up, err := objectstore.New(objectstore.Config{
			AccessKeyID:     env.Get("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.Get("AWS_SECRET_ACCESS_KEY", ""),
			Region:          env.Get("AWS_REGION", "us-east-1"),
			Bucket:          bucket,
			Endpoint:        env.Get("S3_ENDPOINT", ""),
		})
		if err != nil {
			log.Error("object storage config invalid", slog.Any("error", err))
			return 1
		}
		job.Photos = &hydrator.PhotoMigrator{
			Source:    client,
			Uploader:  up,
			MaxPhotos: hydrator.DefaultMaxPhotos,
			Timeout:   2 * timeout,
			Logger:    log,
		}
	} else {
		log.Warn("S3_BUCKET not set, photo migration disabled")
	}

	sum, runErr := job.RunOnce(ctx)
	pub.Close()
	wg.Wait()

	im := metrics.NewIngest()
	im.Record(sum.Counts(), sum.Duration)
	if url := env.Get("PUSHGATEWAY_URL", ""); url != "" {
		if err := im.Push(url, "places_ingest"); err != nil {
			log.Warn("metrics push failed", slog.Any("error", err))
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("ingest run interrupted", sum.LogAttrs()...)
		} else {
			log.Error("ingest run failed", slog.Any("error", runErr))
		}
		return 1
	}
	return 0
}
