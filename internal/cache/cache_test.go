package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/places-api/internal/events"
)

func TestLocalGetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(10, time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"))
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	c.Delete(ctx, "k", "unknown")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLocalExpires(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(10, 30*time.Millisecond)
	c.Set(ctx, "k", []byte("v"))
	time.Sleep(80 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestInvalidatorDropsRestaurantAndLocations(t *testing.T) {
	ctx := context.Background()
	c := NewLocal(10, time.Minute)
	c.Set(ctx, RestaurantKey("p1"), []byte("a"))
	c.Set(ctx, RestaurantKey("p2"), []byte("b"))
	c.Set(ctx, LocationsKey, []byte("c"))

	pub := events.NewInMemory(4)
	inv := &Invalidator{Cache: c, Pub: pub}
	done := make(chan struct{})
	go func() {
		inv.Run(ctx)
		close(done)
	}()

	pub.PublishRestaurantUpdated(ctx, events.RestaurantUpdated{PlaceID: "p1"})
	pub.Close()
	<-done

	_, ok := c.Get(ctx, RestaurantKey("p1"))
	assert.False(t, ok)
	_, ok = c.Get(ctx, LocationsKey)
	assert.False(t, ok)
	_, ok = c.Get(ctx, RestaurantKey("p2"))
	assert.True(t, ok)
}
