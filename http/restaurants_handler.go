package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/yourorg/places-api/internal/cache"
	"github.com/yourorg/places-api/internal/store"
)

const (
	defaultPage   = 1
	defaultLimit  = 10
	maxLimit      = 100
	maxPage       = 100000
	defaultRadius = 1000
)

// maxRadiusMeters is half the earth's circumference.
const maxRadiusMeters = math.Pi * 6378100

var unitMeters = map[string]float64{
	"m":  1,
	"km": 1000,
	"mi": 1609.344,
}

var unitNames = map[string]string{
	"m":  "meters",
	"km": "kilometers",
	"mi": "miles",
}

// RestaurantReader is the read side of store.Store.
type RestaurantReader interface {
	FindByPlaceID(ctx context.Context, placeID string) (*store.Restaurant, error)
	Nearby(ctx context.Context, q store.NearbyQuery) (store.Page, error)
	SearchByName(ctx context.Context, q store.SearchQuery) (store.Page, error)
	Locations(ctx context.Context) ([]store.Location, error)
}

type RestaurantsDeps struct {
	Store RestaurantReader
	// Cache is optional; by-id and locations responses are cached when set.
	Cache  cache.Cache
	Logger *slog.Logger
}

type nearbyParams struct {
	Lat    *float64 `validate:"required,latitude"`
	Lng    *float64 `validate:"required,longitude"`
	Radius float64  `validate:"gt=0"`
	Unit   string   `validate:"oneof=m km mi"`
}

type searchParams struct {
	Query string `validate:"required,max=200"`
}

type pagedResponse struct {
	Message    string             `json:"message"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	Total      int64              `json:"total"`
	TotalPages int64              `json:"totalPages"`
	Results    []store.Restaurant `json:"results"`
}

type restaurantsHandler struct {
	store    RestaurantReader
	cache    cache.Cache
	log      *slog.Logger
	validate *validator.Validate
}

func RegisterRestaurants(r chi.Router, d RestaurantsDeps) {
	h := &restaurantsHandler{
		store:    d.Store,
		cache:    d.Cache,
		log:      d.Logger,
		validate: validator.New(),
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/nearby", h.nearby)
		r.Get("/locations", h.locations)
		r.Get("/search", h.search)
		r.Get("/{id}", h.byID)
	})
}

func (h *restaurantsHandler) nearby(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	if strings.TrimSpace(q.Get("lat")) == "" || strings.TrimSpace(q.Get("lng")) == "" {
		writeError(w, req, http.StatusBadRequest, "Latitude (lat) and longitude (lng) are required.")
		return
	}
	var p nearbyParams
	var err error
	if p.Lat, err = parseFloatParam(q, "lat"); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	if p.Lng, err = parseFloatParam(q, "lng"); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	p.Radius = defaultRadius
	if r, err := parseFloatParam(q, "radius"); err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	} else if r != nil {
		p.Radius = *r
	}
	p.Unit = strings.ToLower(strings.TrimSpace(q.Get("unit")))
	if p.Unit == "" {
		p.Unit = "m"
	}
	if err := h.validate.Struct(p); err != nil {
		writeError(w, req, http.StatusBadRequest, describe(err))
		return
	}
	meters := p.Radius * unitMeters[p.Unit]
	if math.IsInf(meters, 0) || meters > maxRadiusMeters {
		writeError(w, req, http.StatusBadRequest, fmt.Sprintf("radius must not exceed %.0f meters.", maxRadiusMeters))
		return
	}
	page, limit, err := pagination(q)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.store.Nearby(req.Context(), store.NearbyQuery{
		Lat:          *p.Lat,
		Lng:          *p.Lng,
		RadiusMeters: meters,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		h.serverError(w, req, err, "Server error while fetching nearby restaurants.")
		return
	}
	render.JSON(w, req, pagedResponse{
		Message:    fmt.Sprintf("Restaurants within %s %s.", strconv.FormatFloat(p.Radius, 'f', -1, 64), unitNames[p.Unit]),
		Page:       page,
		Limit:      limit,
		Total:      res.Total,
		TotalPages: totalPages(res.Total, limit),
		Results:    nonNil(res.Items),
	})
}

func (h *restaurantsHandler) locations(w http.ResponseWriter, req *http.Request) {
	if h.serveCached(w, req, cache.LocationsKey) {
		return
	}
	locs, err := h.store.Locations(req.Context())
	if err != nil {
		h.serverError(w, req, err, "Server error while fetching restaurant locations.")
		return
	}
	if locs == nil {
		locs = []store.Location{}
	}
	h.writeCached(w, req, cache.LocationsKey, map[string]any{
		"message": "List of all restaurants with names, coordinates, and Google Maps URLs.",
		"total":   len(locs),
		"results": locs,
	})
}

func (h *restaurantsHandler) search(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	p := searchParams{Query: strings.TrimSpace(q.Get("query"))}
	if p.Query == "" {
		writeError(w, req, http.StatusBadRequest, "Search query is required.")
		return
	}
	if err := h.validate.Struct(p); err != nil {
		writeError(w, req, http.StatusBadRequest, describe(err))
		return
	}
	page, limit, err := pagination(q)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.store.SearchByName(req.Context(), store.SearchQuery{Term: p.Query, Page: page, Limit: limit})
	if err != nil {
		h.serverError(w, req, err, "Server error while searching for restaurants.")
		return
	}
	render.JSON(w, req, pagedResponse{
		Message:    "Search results for: " + p.Query,
		Page:       page,
		Limit:      limit,
		Total:      res.Total,
		TotalPages: totalPages(res.Total, limit),
		Results:    nonNil(res.Items),
	})
}

func (h *restaurantsHandler) byID(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimSpace(chi.URLParam(req, "id"))
	if id == "" {
		writeError(w, req, http.StatusBadRequest, "Restaurant id is required.")
		return
	}
	key := cache.RestaurantKey(id)
	if h.serveCached(w, req, key) {
		return
	}
	rec, err := h.store.FindByPlaceID(req.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, req, http.StatusNotFound, "Restaurant not found.")
		return
	}
	if err != nil {
		h.serverError(w, req, err, "Server error while fetching restaurant details.")
		return
	}
	h.writeCached(w, req, key, map[string]any{
		"message":    "Restaurant details",
		"restaurant": rec,
	})
}

func (h *restaurantsHandler) serveCached(w http.ResponseWriter, req *http.Request, key string) bool {
	if h.cache == nil {
		return false
	}
	b, ok := h.cache.Get(req.Context(), key)
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", "HIT")
	_, _ = w.Write(b)
	return true
}

// writeCached renders v and, on success, stores the exact bytes under key.
func (h *restaurantsHandler) writeCached(w http.ResponseWriter, req *http.Request, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.serverError(w, req, err, "Server error while encoding response.")
		return
	}
	b = append(b, '\n')
	if h.cache != nil {
		h.cache.Set(req.Context(), key, b)
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(b)
}

func (h *restaurantsHandler) serverError(w http.ResponseWriter, req *http.Request, err error, msg string) {
	h.log.Error("request failed",
		slog.String("path", req.URL.Path),
		slog.String("request_id", middleware.GetReqID(req.Context())),
		slog.Any("error", err))
	writeError(w, req, http.StatusInternalServerError, msg)
}

func writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	render.Status(req, status)
	render.JSON(w, req, map[string]string{"error": msg})
}

func parseFloatParam(q map[string][]string, name string) (*float64, error) {
	raw := ""
	if v := q[name]; len(v) > 0 {
		raw = strings.TrimSpace(v[0])
	}
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s must be a number.", name)
	}
	return &f, nil
}

// pagination reads page and limit. Limit is clamped to [1, maxLimit];
// page below 1 becomes 1 and page above maxPage is rejected.
func pagination(q map[string][]string) (int, int, error) {
	page, limit := defaultPage, defaultLimit
	if v := first(q, "page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("page must be an integer.")
		}
		if n > maxPage {
			return 0, 0, fmt.Errorf("page must not exceed %d.", maxPage)
		}
		page = max(n, 1)
	}
	if v := first(q, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("limit must be an integer.")
		}
		limit = min(max(n, 1), maxLimit)
	}
	return page, limit, nil
}

func nonNil(items []store.Restaurant) []store.Restaurant {
	if items == nil {
		return []store.Restaurant{}
	}
	return items
}

func first(q map[string][]string, name string) string {
	if v := q[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func totalPages(total int64, limit int) int64 {
	if limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

var fieldParams = map[string]string{
	"Lat":    "lat",
	"Lng":    "lng",
	"Radius": "radius",
	"Unit":   "unit",
	"Query":  "query",
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid query parameters."
	}
	fe := verrs[0]
	name := fieldParams[fe.Field()]
	switch fe.Tag() {
	case "required":
		return name + " is required."
	case "latitude":
		return "lat must be between -90 and 90."
	case "longitude":
		return "lng must be between -180 and 180."
	case "gt":
		return name + " must be greater than 0."
	case "oneof":
		return name + " must be one of: " + fe.Param() + "."
	case "max":
		return name + " is too long."
	}
	return "Invalid " + name + "."
}
