package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/places-api/internal/canon"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
	DB  *sql.DB
	dsn string
	log *slog.Logger
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{DB: db, dsn: dsn, log: slog.Default()}, nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Postgres) Close(context.Context) error { return s.DB.Close() }

// Migrate applies the embedded migrations through golang-migrate's pgx5 driver.
func (s *Postgres) Migrate(context.Context) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(s.dsn))
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	version, _, _ := m.Version()
	s.log.Info("postgres schema ready", slog.Uint64("version", uint64(version)), slog.Bool("changed", err == nil))
	return nil
}

// migrationURL rewrites a postgres:// DSN to the pgx5:// scheme golang-migrate expects.
func migrationURL(dsn string) string {
	for _, p := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx5://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}

const restaurantColumns = `place_id, name, address, phone, lat, lng, google_maps_url, photos, photos_s3, rating, total_reviews, reviews, types, created_at, updated_at`

func (s *Postgres) Upsert(ctx context.Context, r Restaurant) (UpsertResult, error) {
	var res UpsertResult
	if s.DB == nil {
		return res, errors.New("nil db")
	}
	normalizeLists(&r)
	lists, err := marshalLists(r)
	if err != nil {
		return res, err
	}
	var lat, lng sql.NullFloat64
	if r.Location.Valid() {
		lat = sql.NullFloat64{Float64: r.Location.Lat(), Valid: true}
		lng = sql.NullFloat64{Float64: r.Location.Lng(), Valid: true}
	}

	// photos_s3 keeps the stored list once it is non-empty.
	err = s.DB.QueryRowContext(ctx, `
        INSERT INTO restaurants (place_id, name, address, phone, lat, lng, google_maps_url, photos, photos_s3, rating, total_reviews, reviews, types)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (place_id)
        DO UPDATE SET name=EXCLUDED.name, address=EXCLUDED.address, phone=EXCLUDED.phone, lat=EXCLUDED.lat, lng=EXCLUDED.lng,
            google_maps_url=EXCLUDED.google_maps_url, photos=EXCLUDED.photos,
            photos_s3 = CASE WHEN jsonb_array_length(restaurants.photos_s3) > 0 THEN restaurants.photos_s3 ELSE EXCLUDED.photos_s3 END,
            rating=EXCLUDED.rating, total_reviews=EXCLUDED.total_reviews, reviews=EXCLUDED.reviews, types=EXCLUDED.types,
            updated_at=now()
        RETURNING (xmax = 0)`,
		r.PlaceID, r.Name, r.Address, r.Phone, lat, lng, r.GoogleMapsURL,
		lists[0], lists[1], r.Rating, r.TotalReviews, lists[2], lists[3],
	).Scan(&res.Created)
	if err != nil {
		return res, err
	}
	return res, nil
}

func (s *Postgres) FindByPlaceID(ctx context.Context, placeID string) (*Restaurant, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE place_id=$1`, placeID)
	r, err := scanRestaurant(row.Scan, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

const nearbyWhere = `lat IS NOT NULL AND lng IS NOT NULL
        AND earth_box(ll_to_earth($1, $2), $3) @> ll_to_earth(lat, lng)
        AND earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lng)) <= $3`

func (s *Postgres) Nearby(ctx context.Context, q NearbyQuery) (Page, error) {
	var page Page
	if err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM restaurants WHERE `+nearbyWhere,
		q.Lat, q.Lng, q.RadiusMeters).Scan(&page.Total); err != nil {
		return page, err
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT `+restaurantColumns+`, earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lng)) AS distance
        FROM restaurants
        WHERE `+nearbyWhere+`
        ORDER BY distance ASC, place_id ASC
        LIMIT $4 OFFSET $5`,
		q.Lat, q.Lng, q.RadiusMeters, q.Limit, offset(q.Page, q.Limit))
	if err != nil {
		return page, err
	}
	page.Items, err = collectRows(rows, true)
	return page, err
}

func (s *Postgres) SearchByName(ctx context.Context, q SearchQuery) (Page, error) {
	var page Page
	pattern := canon.LikePattern(q.Term)
	if err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM restaurants WHERE name ILIKE $1 ESCAPE '\'`,
		pattern).Scan(&page.Total); err != nil {
		return page, err
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT `+restaurantColumns+`
        FROM restaurants
        WHERE name ILIKE $1 ESCAPE '\'
        ORDER BY name ASC, place_id ASC
        LIMIT $2 OFFSET $3`,
		pattern, q.Limit, offset(q.Page, q.Limit))
	if err != nil {
		return page, err
	}
	page.Items, err = collectRows(rows, false)
	return page, err
}

func (s *Postgres) Locations(ctx context.Context) ([]Location, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, lat, lng, google_maps_url FROM restaurants ORDER BY name ASC, place_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Location{}
	for rows.Next() {
		var l Location
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&l.Name, &lat, &lng, &l.GoogleMapsURL); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			l.Latitude, l.Longitude = &lat.Float64, &lng.Float64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func marshalLists(r Restaurant) ([4]string, error) {
	var out [4]string
	for i, v := range []any{r.Photos, r.PhotosS3, r.Reviews, r.Types} {
		b, err := json.Marshal(v)
		if err != nil {
			return out, err
		}
		out[i] = string(b)
	}
	return out, nil
}

func collectRows(rows *sql.Rows, withDistance bool) ([]Restaurant, error) {
	defer rows.Close()
	out := []Restaurant{}
	for rows.Next() {
		r, err := scanRestaurant(rows.Scan, withDistance)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRestaurant(scan func(dest ...any) error, withDistance bool) (*Restaurant, error) {
	var (
		r                              Restaurant
		lat, lng                       sql.NullFloat64
		photos, photosS3, reviews, typ []byte
		distance                       float64
	)
	dest := []any{&r.PlaceID, &r.Name, &r.Address, &r.Phone, &lat, &lng, &r.GoogleMapsURL,
		&photos, &photosS3, &r.Rating, &r.TotalReviews, &reviews, &typ, &r.CreatedAt, &r.UpdatedAt}
	if withDistance {
		dest = append(dest, &distance)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{{photos, &r.Photos}, {photosS3, &r.PhotosS3}, {reviews, &r.Reviews}, {typ, &r.Types}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.PlaceID, err)
		}
	}
	if lat.Valid && lng.Valid {
		r.Location = NewPoint(lat.Float64, lng.Float64)
	}
	if withDistance {
		r.Distance = &distance
	}
	normalizeLists(&r)
	return &r, nil
}
