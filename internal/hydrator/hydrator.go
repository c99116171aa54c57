package hydrator

import (
	"context"

	"github.com/yourorg/places-api/internal/events"
	"github.com/yourorg/places-api/internal/store"
)

// RecordStore is the part of store.Store the pipeline writes through.
type RecordStore interface {
	FindByPlaceID(ctx context.Context, placeID string) (*store.Restaurant, error)
	Upsert(ctx context.Context, r store.Restaurant) (store.UpsertResult, error)
}

// Hydrator writes normalized records and announces the change.
type Hydrator struct {
	Store RecordStore
	Pub   events.Publisher
}

func (h *Hydrator) Enabled() bool { return h != nil && h.Store != nil }

func (h *Hydrator) Write(ctx context.Context, r store.Restaurant) (store.UpsertResult, error) {
	res, err := h.Store.Upsert(ctx, r)
	if err != nil {
		return res, err
	}
	if h.Pub != nil {
		h.Pub.PublishRestaurantUpdated(ctx, events.RestaurantUpdated{PlaceID: r.PlaceID, Created: res.Created})
	}
	return res, nil
}
