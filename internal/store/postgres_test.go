package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// setupPostgres starts PostgreSQL in Docker. Set TEST_INTEGRATION=1 to run.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("places_test"),
		postgres.WithUsername("places"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(ctx) })

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))
	return st
}

// metersNorth offsets a latitude by roughly m meters.
func metersNorth(lat, m float64) float64 {
	return lat + m/111195.0
}

func TestPostgresUpsertPreservesPhotosS3(t *testing.T) {
	st := setupPostgres(t)
	ctx := context.Background()

	first := Restaurant{PlaceID: "p1", Name: "Kabab House", Location: NewPoint(40, -74),
		Photos: []string{"g1"}, PhotosS3: []string{"s3-a", "s3-b"}, Rating: 4.1}
	res, err := st.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, res.Created)

	second := Restaurant{PlaceID: "p1", Name: "Kabab House NYC", Location: NewPoint(40, -74),
		Photos: []string{"g2", "g3"}, PhotosS3: []string{"other"}, Rating: 4.6}
	res, err = st.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, res.Created)

	got, err := st.FindByPlaceID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kabab House NYC", got.Name)
	assert.Equal(t, []string{"g2", "g3"}, got.Photos)
	assert.Equal(t, []string{"s3-a", "s3-b"}, got.PhotosS3)
	assert.Equal(t, 4.6, got.Rating)
	assert.Equal(t, []Review{}, got.Reviews)

	_, err = st.FindByPlaceID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresNearby(t *testing.T) {
	st := setupPostgres(t)
	ctx := context.Background()
	lat, lng := 40.0, -74.0

	for id, m := range map[string]float64{"near": 100, "mid": 600, "far": 2000} {
		_, err := st.Upsert(ctx, Restaurant{PlaceID: id, Name: id, Location: NewPoint(metersNorth(lat, m), lng)})
		require.NoError(t, err)
	}
	_, err := st.Upsert(ctx, Restaurant{PlaceID: "nowhere", Name: "no geometry"})
	require.NoError(t, err)

	page, err := st.Nearby(ctx, NearbyQuery{Lat: lat, Lng: lng, RadiusMeters: 1000, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "near", page.Items[0].PlaceID)
	assert.Equal(t, "mid", page.Items[1].PlaceID)
	require.NotNil(t, page.Items[0].Distance)
	assert.InDelta(t, 100, *page.Items[0].Distance, 5)

	second, err := st.Nearby(ctx, NearbyQuery{Lat: lat, Lng: lng, RadiusMeters: 1000, Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "mid", second.Items[0].PlaceID)
}

func TestPostgresSearchAndLocations(t *testing.T) {
	st := setupPostgres(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, Restaurant{PlaceID: "a", Name: "The Halal Guys", Location: NewPoint(40.76, -73.97), GoogleMapsURL: "https://maps/a"})
	require.NoError(t, err)
	_, err = st.Upsert(ctx, Restaurant{PlaceID: "b", Name: "100% Kabab"})
	require.NoError(t, err)

	page, err := st.SearchByName(ctx, SearchQuery{Term: "halal", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].PlaceID)

	page, err = st.SearchByName(ctx, SearchQuery{Term: "0%", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	locs, err := st.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "100% Kabab", locs[0].Name)
	assert.Nil(t, locs[0].Latitude)
	require.NotNil(t, locs[1].Latitude)
	assert.Equal(t, 40.76, *locs[1].Latitude)
	assert.Equal(t, "https://maps/a", locs[1].GoogleMapsURL)
}
