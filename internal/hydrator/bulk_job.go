package hydrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/places-api/internal/canon"
	"github.com/yourorg/places-api/internal/store"
	"github.com/yourorg/places-api/places"
)

const defaultRequestTimeout = 10 * time.Second

// Provider is the part of the places client the job depends on.
type Provider interface {
	FindPlaceIDs(ctx context.Context, name string) ([]string, error)
	PlaceDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error)
	PhotoURL(ref string) string
}

type BulkConfig struct {
	Names []string
	// RequestTimeout bounds each provider call.
	RequestTimeout time.Duration
}

type BulkJob struct {
	Client   Provider
	Hydrator *Hydrator
	// Photos is nil when object storage is not configured.
	Photos *PhotoMigrator
	Logger *slog.Logger
	Config BulkConfig
}

func (j *BulkJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *BulkJob) validate() error {
	if j == nil {
		return errors.New("nil bulk job")
	}
	if j.Client == nil {
		return errors.New("bulk job missing provider client")
	}
	if !j.Hydrator.Enabled() {
		return errors.New("bulk job requires hydrator with store")
	}
	if j.Config.RequestTimeout <= 0 {
		j.Config.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

// RunOnce processes every configured name once, in order. Per-name and
// per-place failures are recorded in the summary and never abort the run;
// only cancellation does.
func (j *BulkJob) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := j.validate(); err != nil {
		return sum, err
	}
	start := time.Now()
	names := canon.Names(j.Config.Names)
	seen := make(map[string]struct{})
	j.log().Info("ingest run starting", slog.Int("names", len(names)))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
		sum.Add(j.ingestName(ctx, name, seen))
	}
	sum.Duration = time.Since(start)
	j.log().Info("ingest run finished", sum.LogAttrs()...)
	return sum, ctx.Err()
}

func (j *BulkJob) ingestName(ctx context.Context, name string, seen map[string]struct{}) NameResult {
	res := NameResult{Name: name}
	ids, err := j.resolveCandidates(ctx, name)
	if err != nil {
		res.Err = err
		j.log().Warn("name skipped", slog.String("name", name), slog.Any("error", err))
		return res
	}
	res.Candidates = len(ids)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			res.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		if ctx.Err() != nil {
			break
		}
		res.Places = append(res.Places, j.ingestPlace(ctx, id))
	}
	return res
}

func (j *BulkJob) resolveCandidates(ctx context.Context, name string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, j.Config.RequestTimeout)
	defer cancel()
	ids, err := j.Client.FindPlaceIDs(cctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrProviderLookup, name, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q: %w", ErrProviderLookup, name, places.ErrNoCandidates)
	}
	return ids, nil
}

func (j *BulkJob) fetchDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	cctx, cancel := context.WithTimeout(ctx, j.Config.RequestTimeout)
	defer cancel()
	d, err := j.Client.PlaceDetails(cctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderDetail, placeID, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s: empty result", ErrProviderDetail, placeID)
	}
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: %s: missing name", ErrProviderDetail, placeID)
	}
	return d, nil
}

func (j *BulkJob) ingestPlace(ctx context.Context, placeID string) PlaceResult {
	res := PlaceResult{PlaceID: placeID}
	fail := func(outcome Outcome, err error) PlaceResult {
		res.Outcome, res.Err = outcome, err
		j.log().Warn("place skipped", slog.String("place_id", placeID), slog.String("outcome", outcome.String()), slog.Any("error", err))
		return res
	}

	d, err := j.fetchDetails(ctx, placeID)
	if err != nil {
		return fail(OutcomeSkipped, err)
	}
	rec := Normalize(d, j.Client.PhotoURL)

	var stored []string
	existing, err := j.Hydrator.Store.FindByPlaceID(ctx, rec.PlaceID)
	switch {
	case err == nil:
		stored = existing.PhotosS3
	case !errors.Is(err, store.ErrNotFound):
		return fail(OutcomeFailed, fmt.Errorf("%w: lookup %s: %w", ErrStoreWrite, rec.PlaceID, err))
	}

	if j.Photos != nil {
		res.Photos = j.Photos.Migrate(ctx, rec.PlaceID, stored, d.PhotoRefs())
		rec.PhotosS3 = res.Photos.URLs
	} else if len(stored) > 0 {
		rec.PhotosS3 = stored
	}

	wr, err := j.Hydrator.Write(ctx, rec)
	if err != nil {
		return fail(OutcomeFailed, fmt.Errorf("%w: upsert %s: %w", ErrStoreWrite, rec.PlaceID, err))
	}
	res.Outcome = OutcomeUpdated
	if wr.Created {
		res.Outcome = OutcomeCreated
	}
	j.log().Debug("place stored",
		slog.String("place_id", rec.PlaceID),
		slog.String("outcome", res.Outcome.String()),
		slog.Int("photos_s3", len(rec.PhotosS3)))
	return res
}
