// Package store persists restaurant records. Two backends share the Store
// interface: PostgreSQL (earthdistance GiST index) and MongoDB (2dsphere).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

var ErrNotFound = errors.New("store: not found")

type Review struct {
	AuthorName              string  `json:"author_name" bson:"author_name"`
	AuthorURL               string  `json:"author_url" bson:"author_url"`
	Language                string  `json:"language" bson:"language"`
	ProfilePhotoURL         string  `json:"profile_photo_url" bson:"profile_photo_url"`
	Rating                  float64 `json:"rating" bson:"rating"`
	RelativeTimeDescription string  `json:"relative_time_description" bson:"relative_time_description"`
	Text                    string  `json:"text" bson:"text"`
	Time                    int64   `json:"time" bson:"time"`
}

// Restaurant is one record per provider place id.
type Restaurant struct {
	PlaceID       string    `json:"place_id" bson:"place_id"`
	Name          string    `json:"name" bson:"name"`
	Address       string    `json:"address" bson:"address"`
	Phone         string    `json:"phone" bson:"phone"`
	Location      *GeoPoint `json:"location" bson:"location,omitempty"`
	GoogleMapsURL string    `json:"google_maps_url" bson:"google_maps_url"`
	Photos        []string  `json:"photos" bson:"photos"`
	// PhotosS3 is written once and preserved by every later upsert.
	PhotosS3     []string  `json:"photos_s3" bson:"photos_s3"`
	Rating       float64   `json:"rating" bson:"rating"`
	TotalReviews int       `json:"total_reviews" bson:"total_reviews"`
	Reviews      []Review  `json:"reviews" bson:"reviews"`
	Types        []string  `json:"types" bson:"types"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
	// Distance in meters from the query point, nearby queries only.
	Distance *float64 `json:"distance,omitempty" bson:"-"`
}

type Location struct {
	Name          string   `json:"name"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	GoogleMapsURL string   `json:"googleMapsUrl"`
}

type NearbyQuery struct {
	Lat, Lng     float64
	RadiusMeters float64
	Page, Limit  int
}

type SearchQuery struct {
	Term        string
	Page, Limit int
}

type Page struct {
	Items []Restaurant
	Total int64
}

type UpsertResult struct {
	Created bool
}

type Store interface {
	// Upsert inserts or fully replaces the record keyed by PlaceID in one
	// atomic operation. A non-empty stored photos_s3 is never replaced.
	Upsert(ctx context.Context, r Restaurant) (UpsertResult, error)
	FindByPlaceID(ctx context.Context, placeID string) (*Restaurant, error)
	Nearby(ctx context.Context, q NearbyQuery) (Page, error)
	SearchByName(ctx context.Context, q SearchQuery) (Page, error)
	Locations(ctx context.Context) ([]Location, error)
	// Migrate creates tables/indexes. Safe to call repeatedly.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// LegacyLocationMigrator is implemented by backends that may hold records in
// the old flat {lat,lng} location shape.
type LegacyLocationMigrator interface {
	MigrateLegacyLocations(ctx context.Context) (int64, error)
}

type Config struct {
	URI      string
	Database string
	Logger   *slog.Logger
}

// Open picks the backend from the URI scheme and verifies connectivity.
func Open(ctx context.Context, cfg Config) (Store, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	switch {
	case strings.HasPrefix(cfg.URI, "postgres://"), strings.HasPrefix(cfg.URI, "postgresql://"):
		st, err := OpenPostgres(ctx, cfg.URI)
		if err != nil {
			return nil, err
		}
		st.log = log
		log.Info("store connected", slog.String("backend", "postgres"), slog.String("uri", redactURI(cfg.URI)))
		return st, nil
	case strings.HasPrefix(cfg.URI, "mongodb://"), strings.HasPrefix(cfg.URI, "mongodb+srv://"):
		st, err := OpenMongo(ctx, cfg.URI, cfg.Database)
		if err != nil {
			return nil, err
		}
		st.log = log
		log.Info("store connected", slog.String("backend", "mongo"), slog.String("uri", redactURI(cfg.URI)))
		return st, nil
	case cfg.URI == "":
		return nil, errors.New("store: empty uri")
	default:
		return nil, fmt.Errorf("store: unsupported uri scheme in %q", redactURI(cfg.URI))
	}
}

// offset is the row skip for a 1-based page. It saturates instead of
// overflowing for absurd page numbers.
func offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt / limit * limit
	}
	return (page - 1) * limit
}

// emptyIfNil keeps list fields present as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func normalizeLists(r *Restaurant) {
	r.Photos = emptyIfNil(r.Photos)
	r.PhotosS3 = emptyIfNil(r.PhotosS3)
	r.Reviews = emptyIfNil(r.Reviews)
	r.Types = emptyIfNil(r.Types)
}

func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[at:]
}
