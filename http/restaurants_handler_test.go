package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/places-api/internal/cache"
	"github.com/yourorg/places-api/internal/store"
)

type fakeReader struct {
	rows       map[string]store.Restaurant
	err        error
	nearbyQ    store.NearbyQuery
	searchQ    store.SearchQuery
	page       store.Page
	locs       []store.Location
	findCalls  int
	locsCalled int
}

func (f *fakeReader) FindByPlaceID(_ context.Context, id string) (*store.Restaurant, error) {
	f.findCalls++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (f *fakeReader) Nearby(_ context.Context, q store.NearbyQuery) (store.Page, error) {
	f.nearbyQ = q
	return f.page, f.err
}

func (f *fakeReader) SearchByName(_ context.Context, q store.SearchQuery) (store.Page, error) {
	f.searchQ = q
	return f.page, f.err
}

func (f *fakeReader) Locations(context.Context) ([]store.Location, error) {
	f.locsCalled++
	return f.locs, f.err
}

func newServer(t *testing.T, f *fakeReader, c cache.Cache) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	RegisterRestaurants(r, RestaurantsDeps{
		Store:  f,
		Cache:  c,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any, http.Header) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body, resp.Header
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	srv := newServer(t, &fakeReader{}, nil)
	for _, path := range []string{"/restaurants/nearby", "/restaurants/nearby?lat=40.7", "/restaurants/nearby?lng=-74"} {
		status, body, _ := get(t, srv, path)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "Latitude (lat) and longitude (lng) are required.", body["error"])
	}
}

func TestNearbyRejectsBadParams(t *testing.T) {
	srv := newServer(t, &fakeReader{}, nil)
	cases := map[string]string{
		"/restaurants/nearby?lat=abc&lng=1":                                  "lat must be a number.",
		"/restaurants/nearby?lat=91&lng=1":                                   "lat must be between -90 and 90.",
		"/restaurants/nearby?lat=1&lng=181":                                  "lng must be between -180 and 180.",
		"/restaurants/nearby?lat=1&lng=1&radius=-5":                          "radius must be greater than 0.",
		"/restaurants/nearby?lat=1&lng=1&unit=ft":                            "unit must be one of: m km mi.",
		"/restaurants/nearby?lat=1&lng=1&page=two":                           "page must be an integer.",
		"/restaurants/nearby?lat=1&lng=1&radius=NaN":                         "radius must be a number.",
		"/restaurants/nearby?lat=1&lng=1&radius=1e308&unit=mi":               "radius must not exceed 20037392 meters.",
		"/restaurants/nearby?lat=1&lng=1&radius=30000&unit=km":               "radius must not exceed 20037392 meters.",
		"/restaurants/nearby?lat=1&lng=1&page=9223372036854775807&limit=100": "page must not exceed 100000.",
	}
	for path, want := range cases {
		status, body, _ := get(t, srv, path)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, want, body["error"], path)
	}
}

func TestNearbyDefaultsAndConversion(t *testing.T) {
	d := 120.5
	f := &fakeReader{page: store.Page{Items: []store.Restaurant{{PlaceID: "a", Name: "A", Distance: &d}}, Total: 21}}
	srv := newServer(t, f, nil)

	status, body, _ := get(t, srv, "/restaurants/nearby?lat=40.7&lng=-74")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1000.0, f.nearbyQ.RadiusMeters)
	assert.Equal(t, 1, f.nearbyQ.Page)
	assert.Equal(t, 10, f.nearbyQ.Limit)
	assert.Equal(t, "Restaurants within 1000 meters.", body["message"])
	assert.Equal(t, 21.0, body["total"])
	assert.Equal(t, 3.0, body["totalPages"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, 120.5, results[0].(map[string]any)["distance"])

	_, body, _ = get(t, srv, "/restaurants/nearby?lat=40.7&lng=-74&radius=2&unit=mi&page=0&limit=500")
	assert.InDelta(t, 3218.688, f.nearbyQ.RadiusMeters, 1e-6)
	assert.Equal(t, 1, f.nearbyQ.Page)
	assert.Equal(t, 100, f.nearbyQ.Limit)
	assert.Equal(t, "Restaurants within 2 miles.", body["message"])
}

func TestNearbyEmptyResultsIsArray(t *testing.T) {
	srv := newServer(t, &fakeReader{}, nil)
	status, body, _ := get(t, srv, "/restaurants/nearby?lat=0&lng=0&radius=1&unit=km")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["results"])
	assert.Equal(t, 0.0, body["totalPages"])
}

func TestStoreErrorsAre500(t *testing.T) {
	srv := newServer(t, &fakeReader{err: errors.New("connection reset")}, nil)
	cases := map[string]string{
		"/restaurants/nearby?lat=1&lng=1": "Server error while fetching nearby restaurants.",
		"/restaurants/search?query=pizza": "Server error while searching for restaurants.",
		"/restaurants/locations":          "Server error while fetching restaurant locations.",
		"/restaurants/abc":                "Server error while fetching restaurant details.",
	}
	for path, want := range cases {
		status, body, _ := get(t, srv, path)
		assert.Equal(t, http.StatusInternalServerError, status, path)
		assert.Equal(t, want, body["error"], path)
		assert.NotContains(t, body["error"], "connection reset")
	}
}

func TestOutOfRangeParamsNeverReachStore(t *testing.T) {
	f := &fakeReader{}
	srv := newServer(t, f, nil)

	status, _, _ := get(t, srv, "/restaurants/nearby?lat=1&lng=1&radius=1e308&unit=mi")
	assert.Equal(t, http.StatusBadRequest, status)
	status, body, _ := get(t, srv, "/restaurants/search?query=pizza&page=9223372036854775807")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "page must not exceed 100000.", body["error"])
	assert.Zero(t, f.nearbyQ)
	assert.Zero(t, f.searchQ)

	status, _, _ = get(t, srv, "/restaurants/nearby?lat=1&lng=1&radius=20000&unit=km")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2e7, f.nearbyQ.RadiusMeters)
}

func TestSearch(t *testing.T) {
	f := &fakeReader{page: store.Page{Items: []store.Restaurant{{PlaceID: "p", Name: "Joe's Pizza"}}, Total: 1}}
	srv := newServer(t, f, nil)

	status, body, _ := get(t, srv, "/restaurants/search")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Search query is required.", body["error"])

	status, body, _ = get(t, srv, "/restaurants/search?query=pizza&page=2&limit=5")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, store.SearchQuery{Term: "pizza", Page: 2, Limit: 5}, f.searchQ)
	assert.Equal(t, "Search results for: pizza", body["message"])
	assert.Equal(t, 2.0, body["page"])
	assert.Equal(t, 5.0, body["limit"])
	assert.Equal(t, 1.0, body["totalPages"])
}

func TestByID(t *testing.T) {
	f := &fakeReader{rows: map[string]store.Restaurant{"ChIJ1": {PlaceID: "ChIJ1", Name: "Katz's"}}}
	srv := newServer(t, f, nil)

	status, body, _ := get(t, srv, "/restaurants/ChIJ1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Restaurant details", body["message"])
	assert.Equal(t, "Katz's", body["restaurant"].(map[string]any)["name"])

	status, body, _ = get(t, srv, "/restaurants/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Restaurant not found.", body["error"])
}

func TestStaticRoutesWinOverID(t *testing.T) {
	f := &fakeReader{locs: []store.Location{{Name: "A", GoogleMapsURL: "u"}}}
	srv := newServer(t, f, nil)

	status, body, _ := get(t, srv, "/restaurants/locations")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total"])
	assert.Zero(t, f.findCalls)
}

func TestByIDAndLocationsAreCached(t *testing.T) {
	lat, lng := 40.7, -74.0
	f := &fakeReader{
		rows: map[string]store.Restaurant{"c1": {PlaceID: "c1", Name: "Cached"}},
		locs: []store.Location{{Name: "Cached", Latitude: &lat, Longitude: &lng}},
	}
	c := cache.NewLocal(16, time.Minute)
	srv := newServer(t, f, c)

	_, _, h1 := get(t, srv, "/restaurants/c1")
	_, body, h2 := get(t, srv, "/restaurants/c1")
	assert.Equal(t, "MISS", h1.Get("X-Cache"))
	assert.Equal(t, "HIT", h2.Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", h2.Get("Content-Type"))
	assert.Equal(t, "Cached", body["restaurant"].(map[string]any)["name"])
	assert.Equal(t, 1, f.findCalls)

	get(t, srv, "/restaurants/locations")
	_, body, _ = get(t, srv, "/restaurants/locations")
	assert.Equal(t, 1, f.locsCalled)
	loc := body["results"].([]any)[0].(map[string]any)
	assert.Equal(t, 40.7, loc["latitude"])

	c.Delete(context.Background(), cache.RestaurantKey("c1"))
	get(t, srv, "/restaurants/c1")
	assert.Equal(t, 2, f.findCalls)
}

func TestNotFoundIsNotCached(t *testing.T) {
	f := &fakeReader{rows: map[string]store.Restaurant{}}
	srv := newServer(t, f, cache.NewLocal(16, time.Minute))

	get(t, srv, "/restaurants/nope")
	get(t, srv, "/restaurants/nope")
	assert.Equal(t, 2, f.findCalls)
}

func TestPagination(t *testing.T) {
	page, limit, err := pagination(map[string][]string{})
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, limit)

	page, limit, err = pagination(map[string][]string{"page": {"-3"}, "limit": {"0"}})
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, 1, limit)

	_, _, err = pagination(map[string][]string{"limit": {"ten"}})
	require.Error(t, err)

	page, _, err = pagination(map[string][]string{"page": {"100000"}})
	require.NoError(t, err)
	assert.Equal(t, 100000, page)
	_, _, err = pagination(map[string][]string{"page": {"100001"}})
	require.Error(t, err)

	assert.Equal(t, int64(0), totalPages(0, 10))
	assert.Equal(t, int64(1), totalPages(10, 10))
	assert.Equal(t, int64(2), totalPages(11, 10))
}
