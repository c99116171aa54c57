package places

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
}

func TestFindPlaceIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/place/findplacefromtext/json", r.URL.Path)
		assert.Equal(t, "Kabab House", r.URL.Query().Get("input"))
		assert.Equal(t, "textquery", r.URL.Query().Get("inputtype"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"place_id":"p1"},{"place_id":""},{"place_id":"p2"}],"status":"OK"}`))
	})

	ids, err := c.FindPlaceIDs(t.Context(), "Kabab House")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestFindPlaceIDsZeroResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"status":"ZERO_RESULTS"}`))
	})

	_, err := c.FindPlaceIDs(t.Context(), "nowhere")
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestFindPlaceIDsDenied(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	})

	_, err := c.FindPlaceIDs(t.Context(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestFindPlaceIDsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})

	_, err := c.FindPlaceIDs(t.Context(), "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoCandidates))
}

func TestPlaceDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/place/details/json", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("place_id"))
		assert.Contains(t, r.URL.Query().Get("fields"), "photos")
		_, _ = w.Write([]byte(`{"status":"OK","result":{
			"place_id":"p1","name":"Kabab House","formatted_address":"1 Main St",
			"geometry":{"location":{"lat":40.7,"lng":-74.0}},
			"photos":[{"photo_reference":"r1"},{"photo_reference":""},{"photo_reference":"r2"}],
			"rating":4.5,"user_ratings_total":12,
			"reviews":[{"author_name":"A","rating":"5","time":1700000000,"text":"good"}],
			"types":["restaurant","food"]}}`))
	})

	d, err := c.PlaceDetails(t.Context(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Kabab House", d.Name)
	require.NotNil(t, d.Geometry)
	require.NotNil(t, d.Geometry.Location)
	assert.Equal(t, 40.7, d.Geometry.Location.Lat)
	require.NotNil(t, d.Rating)
	assert.Equal(t, 4.5, *d.Rating)
	require.NotNil(t, d.UserRatingsTotal)
	assert.Equal(t, 12, *d.UserRatingsTotal)
	require.Len(t, d.Reviews, 1)
	assert.EqualValues(t, 5, d.Reviews[0].Rating)
	assert.EqualValues(t, 1700000000, d.Reviews[0].Time)
	assert.Equal(t, []string{"r1", "r2"}, d.PhotoRefs())
}

func TestPhotoURL(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	u, err := url.Parse(c.PhotoURL("ref-1"))
	require.NoError(t, err)
	assert.Equal(t, "maps.googleapis.com", u.Host)
	assert.Equal(t, "/maps/api/place/photo", u.Path)
	assert.Equal(t, "400", u.Query().Get("maxwidth"))
	assert.Equal(t, "ref-1", u.Query().Get("photoreference"))
	assert.Equal(t, "k", u.Query().Get("key"))
}

func TestDownloadPhoto(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/maps/api/place/photo" {
			http.Redirect(w, r, "/img/1.jpg", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	body, ct, err := c.DownloadPhoto(t.Context(), c.PhotoURL("r1"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, "image/png", ct)
}
