package hydrator

import (
	"errors"
	"log/slog"
	"time"
)

// Failure classes. Each is recovered inside the run and counted.
var (
	ErrProviderLookup = errors.New("provider lookup failed")
	ErrProviderDetail = errors.New("provider detail failed")
	ErrPhotoTransfer  = errors.New("photo transfer failed")
	ErrStoreWrite     = errors.New("store write failed")
)

type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type PlaceResult struct {
	PlaceID string
	Outcome Outcome
	Err     error
	Photos  PhotoResult
}

type NameResult struct {
	Name       string
	Candidates int
	// Duplicates counts candidates already handled earlier in the run.
	Duplicates int
	Err        error
	Places     []PlaceResult
}

type Summary struct {
	Names           int
	NamesSkipped    int
	Candidates      int
	Duplicates      int
	Created         int
	Updated         int
	DetailsSkipped  int
	StoreFailures   int
	PhotosUploaded  int
	PhotosFailed    int
	PhotoSetsReused int
	Duration        time.Duration
}

func (s *Summary) Add(n NameResult) {
	s.Names++
	if n.Err != nil {
		s.NamesSkipped++
		return
	}
	s.Candidates += n.Candidates
	s.Duplicates += n.Duplicates
	for _, p := range n.Places {
		switch p.Outcome {
		case OutcomeCreated:
			s.Created++
		case OutcomeUpdated:
			s.Updated++
		case OutcomeSkipped:
			s.DetailsSkipped++
		case OutcomeFailed:
			s.StoreFailures++
		}
		s.PhotosUploaded += p.Photos.Uploaded
		s.PhotosFailed += p.Photos.Failed
		if p.Photos.Reused {
			s.PhotoSetsReused++
		}
	}
}

func (s Summary) Persisted() int { return s.Created + s.Updated }

// Counts is keyed by outcome label for metrics export.
func (s Summary) Counts() map[string]int {
	return map[string]int{
		"names":             s.Names,
		"names_skipped":     s.NamesSkipped,
		"candidates":        s.Candidates,
		"duplicates":        s.Duplicates,
		"created":           s.Created,
		"updated":           s.Updated,
		"details_skipped":   s.DetailsSkipped,
		"store_failures":    s.StoreFailures,
		"photos_uploaded":   s.PhotosUploaded,
		"photos_failed":     s.PhotosFailed,
		"photo_sets_reused": s.PhotoSetsReused,
	}
}

func (s Summary) LogAttrs() []any {
	return []any{
		slog.Int("names", s.Names),
		slog.Int("names_skipped", s.NamesSkipped),
		slog.Int("candidates", s.Candidates),
		slog.Int("created", s.Created),
		slog.Int("updated", s.Updated),
		slog.Int("details_skipped", s.DetailsSkipped),
		slog.Int("store_failures", s.StoreFailures),
		slog.Int("photos_uploaded", s.PhotosUploaded),
		slog.Int("photos_failed", s.PhotosFailed),
		slog.Int("photo_sets_reused", s.PhotoSetsReused),
		slog.Duration("duration", s.Duration),
	}
}
