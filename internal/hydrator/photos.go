package hydrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultMaxPhotos = 3

type PhotoSource interface {
	PhotoURL(ref string) string
	DownloadPhoto(ctx context.Context, url string) ([]byte, string, error)
}

type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// PhotoMigrator copies provider photos into object storage, once per place.
type PhotoMigrator struct {
	Source   PhotoSource
	Uploader Uploader
	// MaxPhotos caps both the stored list and the number of transfers in flight.
	MaxPhotos int
	Timeout   time.Duration
	Logger    *slog.Logger
}

type PhotoResult struct {
	URLs     []string
	Reused   bool
	Uploaded int
	Failed   int
}

func PhotoKey(placeID string, index int) string {
	return fmt.Sprintf("restaurants/%s/photo_%d.jpg", placeID, index)
}

// Migrate returns the durable URLs for a place. A non-empty stored list is
// returned as is without any network call. Otherwise the first MaxPhotos refs
// are transferred concurrently; failures are dropped and the surviving URLs
// keep reference order.
func (m *PhotoMigrator) Migrate(ctx context.Context, placeID string, stored, refs []string) PhotoResult {
	if len(stored) > 0 {
		return PhotoResult{URLs: slices.Clone(stored), Reused: true}
	}
	limit := m.MaxPhotos
	if limit <= 0 {
		limit = DefaultMaxPhotos
	}
	if len(refs) > limit {
		refs = refs[:limit]
	}

	urls := make([]string, len(refs))
	errs := make([]error, len(refs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, ref := range refs {
		g.Go(func() error {
			urls[i], errs[i] = m.transfer(ctx, placeID, i, ref)
			return nil
		})
	}
	_ = g.Wait()

	res := PhotoResult{URLs: make([]string, 0, len(refs))}
	for i := range refs {
		if errs[i] != nil {
			res.Failed++
			m.logger().Warn("photo dropped", slog.String("place_id", placeID), slog.Int("index", i), slog.Any("error", errs[i]))
			continue
		}
		res.URLs = append(res.URLs, urls[i])
		res.Uploaded++
	}
	return res
}

func (m *PhotoMigrator) transfer(ctx context.Context, placeID string, index int, ref string) (string, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	body, contentType, err := m.Source.DownloadPhoto(ctx, m.Source.PhotoURL(ref))
	if err != nil {
		return "", fmt.Errorf("%w: download photo %d: %w", ErrPhotoTransfer, index, err)
	}
	u, err := m.Uploader.Upload(ctx, PhotoKey(placeID, index), body, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: upload photo %d: %w", ErrPhotoTransfer, index, err)
	}
	return u, nil
}

func (m *PhotoMigrator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
