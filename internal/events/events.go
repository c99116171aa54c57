package events

import (
	"context"
	"sync"
)

type RestaurantUpdated struct {
	PlaceID string
	Created bool
}

type Publisher interface {
	PublishRestaurantUpdated(ctx context.Context, evt RestaurantUpdated)
	SubscribeRestaurantUpdated() <-chan RestaurantUpdated
	// Close ends the subscription channel. Later publishes are dropped.
	Close()
}

type inMemory struct {
	mu     sync.RWMutex
	ch     chan RestaurantUpdated
	closed bool
}

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan RestaurantUpdated, buffer)}
}

// PublishRestaurantUpdated never blocks; events are dropped when the buffer is full.
func (m *inMemory) PublishRestaurantUpdated(_ context.Context, evt RestaurantUpdated) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.ch <- evt:
	default:
	}
}

func (m *inMemory) SubscribeRestaurantUpdated() <-chan RestaurantUpdated { return m.ch }

func (m *inMemory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}
