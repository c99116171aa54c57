package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com"

	detailFields = "name,formatted_address,geometry,formatted_phone_number,photos,rating,reviews,user_ratings_total,website,types,url,place_id"

	maxPayload = 4 << 20
	maxPhoto   = 10 << 20
)

type Config struct {
	APIKey  string
	BaseURL string
	// RatePerSecond paces every outbound call. Zero disables pacing.
	RatePerSecond float64
	PhotoMaxWidth int
	Timeout       time.Duration
	Logger        *slog.Logger
}

type Client struct {
	key           string
	baseURL       string
	photoMaxWidth int
	http          *retryablehttp.Client
	limiter       *rate.Limiter
}

func NewClient(cfg Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 6 * time.Second
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.Logger != nil {
		rc.Logger = redactingLogger{l: cfg.Logger}
	} else {
		rc.Logger = nil
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	width := cfg.PhotoMaxWidth
	if width <= 0 {
		width = 400
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Client{
		key:           cfg.APIKey,
		baseURL:       base,
		photoMaxWidth: width,
		http:          rc,
		limiter:       limiter,
	}
}

// FindPlaceIDs runs a text find-place query and returns candidate place ids.
// Docs: GET /maps/api/place/findplacefromtext/json
func (c *Client) FindPlaceIDs(ctx context.Context, name string) ([]string, error) {
	q := url.Values{}
	q.Set("input", name)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id")
	raw, err := c.getJSON(ctx, "/maps/api/place/findplacefromtext/json", q)
	if err != nil {
		return nil, err
	}
	return MapCandidates(raw)
}

// PlaceDetails fetches details for one place id.
// Docs: GET /maps/api/place/details/json
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", detailFields)
	raw, err := c.getJSON(ctx, "/maps/api/place/details/json", q)
	if err != nil {
		return nil, err
	}
	return MapDetails(raw)
}

// PhotoURL builds the provider-hosted photo URL for a reference. These URLs
// embed the API key and stop working once the reference rotates.
func (c *Client) PhotoURL(ref string) string {
	q := url.Values{}
	q.Set("maxwidth", strconv.Itoa(c.photoMaxWidth))
	q.Set("photoreference", ref)
	q.Set("key", c.key)
	return fmt.Sprintf("%s/maps/api/place/photo?%s", c.baseURL, q.Encode())
}

// DownloadPhoto fetches a photo URL (following the provider redirect) and
// returns its bytes and content type.
func (c *Client) DownloadPhoto(ctx context.Context, photoURL string) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", redactedError{err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("photo download status %d", resp.StatusCode)
	}
	body, err := ioReadAllLimit(resp.Body, maxPhoto)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", errors.New("empty photo body")
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return body, ct, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q.Set("key", c.key)
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, q.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, redactedError{err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var body map[string]any
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		return nil, fmt.Errorf("places error %d: %v", resp.StatusCode, body)
	}
	return ioReadAllLimit(resp.Body, maxPayload)
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
