package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const restaurantsCollection = "restaurants"

type Mongo struct {
	Client *mongo.Client
	coll   *mongo.Collection
	log    *slog.Logger
}

func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if database == "" {
		database = "places"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Mongo{
		Client: client,
		coll:   client.Database(database).Collection(restaurantsCollection),
		log:    slog.Default(),
	}, nil
}

func (s *Mongo) Ping(ctx context.Context) error { return s.Client.Ping(ctx, nil) }

func (s *Mongo) Close(ctx context.Context) error { return s.Client.Disconnect(ctx) }

// Migrate creates the unique place_id index and the 2dsphere index. The
// 2dsphere build fails while legacy {lat,lng} documents remain; run
// MigrateLegacyLocations first on old data.
func (s *Mongo) Migrate(ctx context.Context) error {
	names, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "place_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("ux_place_id")},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("location_2dsphere")},
		{Keys: bson.D{{Key: "name", Value: 1}, {Key: "place_id", Value: 1}}, Options: options.Index().SetName("name_place_id")},
	})
	if err != nil {
		return err
	}
	s.log.Info("mongo indexes ready", slog.Any("indexes", names))
	return nil
}

// MigrateLegacyLocations rewrites {lat,lng} locations into GeoJSON points.
// Documents whose legacy coordinates are not numbers lose the field.
func (s *Mongo) MigrateLegacyLocations(ctx context.Context) (int64, error) {
	filter := bson.D{{Key: "location.lat", Value: bson.D{{Key: "$exists", Value: true}}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: "location", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$isNumber", Value: "$location.lat"}},
			bson.D{{Key: "$isNumber", Value: "$location.lng"}},
		}}},
		bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: bson.A{"$location.lng", "$location.lat"}}},
		"$$REMOVE",
	}}}}}}}}
	res, err := s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	s.log.Info("legacy locations converted", slog.Int64("matched", res.MatchedCount), slog.Int64("modified", res.ModifiedCount))
	return res.ModifiedCount, nil
}

func literal(v any) bson.D { return bson.D{{Key: "$literal", Value: v}} }

// upsertPipeline builds the update applied by Upsert. Values are wrapped in
// $literal so names starting with '$' are not read as field paths.
func upsertPipeline(r Restaurant, now time.Time) mongo.Pipeline {
	keepPhotos := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$gt", Value: bson.A{
			bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$photos_s3", bson.A{}}}}}},
			0,
		}}},
		"$photos_s3",
		literal(r.PhotosS3),
	}}}
	var location any = "$$REMOVE"
	if r.Location.Valid() {
		location = literal(r.Location)
	}
	set := bson.D{
		{Key: "place_id", Value: literal(r.PlaceID)},
		{Key: "name", Value: literal(r.Name)},
		{Key: "address", Value: literal(r.Address)},
		{Key: "phone", Value: literal(r.Phone)},
		{Key: "location", Value: location},
		{Key: "google_maps_url", Value: literal(r.GoogleMapsURL)},
		{Key: "photos", Value: literal(r.Photos)},
		{Key: "photos_s3", Value: keepPhotos},
		{Key: "rating", Value: literal(r.Rating)},
		{Key: "total_reviews", Value: literal(r.TotalReviews)},
		{Key: "reviews", Value: literal(r.Reviews)},
		{Key: "types", Value: literal(r.Types)},
		{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", literal(now)}}}},
		{Key: "updatedAt", Value: literal(now)},
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (s *Mongo) Upsert(ctx context.Context, r Restaurant) (UpsertResult, error) {
	normalizeLists(&r)
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	err := s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "place_id", Value: r.PlaceID}}, upsertPipeline(r, time.Now().UTC()), opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return UpsertResult{Created: true}, nil
	}
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Created: false}, nil
}

func (s *Mongo) FindByPlaceID(ctx context.Context, placeID string) (*Restaurant, error) {
	var r Restaurant
	err := s.coll.FindOne(ctx, bson.D{{Key: "place_id", Value: placeID}}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	normalizeLists(&r)
	return &r, nil
}

// nearbyPipeline returns records within the radius ordered by distance, then
// place_id, so ties page deterministically.
func nearbyPipeline(q NearbyQuery) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{{Key: "type", Value: "Point"}, {Key: "coordinates", Value: bson.A{q.Lng, q.Lat}}}},
			{Key: "key", Value: "location"},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: q.RadiusMeters},
			{Key: "spherical", Value: true},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "distance", Value: 1}, {Key: "place_id", Value: 1}}}},
		{{Key: "$skip", Value: int64(offset(q.Page, q.Limit))}},
		{{Key: "$limit", Value: int64(q.Limit)}},
	}
}

// nearbyCountFilter matches the same records as nearbyPipeline. $geoNear
// cannot be counted directly; $centerSphere takes radians.
func nearbyCountFilter(q NearbyQuery) bson.D {
	return bson.D{{Key: "location", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
		{Key: "$centerSphere", Value: bson.A{bson.A{q.Lng, q.Lat}, q.RadiusMeters / earthRadiusMeters}},
	}}}}}
}

func (s *Mongo) Nearby(ctx context.Context, q NearbyQuery) (Page, error) {
	var page Page
	total, err := s.coll.CountDocuments(ctx, nearbyCountFilter(q))
	if err != nil {
		return page, err
	}
	page.Total = total
	cur, err := s.coll.Aggregate(ctx, nearbyPipeline(q))
	if err != nil {
		return page, err
	}
	defer cur.Close(ctx)
	page.Items = []Restaurant{}
	for cur.Next(ctx) {
		var doc struct {
			Restaurant `bson:",inline"`
			Distance   float64 `bson:"distance"`
		}
		if err := cur.Decode(&doc); err != nil {
			return page, err
		}
		r := doc.Restaurant
		normalizeLists(&r)
		d := doc.Distance
		r.Distance = &d
		page.Items = append(page.Items, r)
	}
	return page, cur.Err()
}

func nameFilter(term string) bson.D {
	return bson.D{{Key: "name", Value: primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}}}
}

func (s *Mongo) SearchByName(ctx context.Context, q SearchQuery) (Page, error) {
	var page Page
	filter := nameFilter(q.Term)
	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return page, err
	}
	page.Total = total
	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "place_id", Value: 1}}).
		SetSkip(int64(offset(q.Page, q.Limit))).
		SetLimit(int64(q.Limit)))
	if err != nil {
		return page, err
	}
	page.Items, err = decodeAll(ctx, cur)
	return page, err
}

func (s *Mongo) Locations(ctx context.Context) ([]Location, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().
		SetProjection(bson.D{{Key: "name", Value: 1}, {Key: "location", Value: 1}, {Key: "google_maps_url", Value: 1}}).
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "place_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []Location{}
	for cur.Next(ctx) {
		var doc struct {
			Name          string    `bson:"name"`
			Location      *GeoPoint `bson:"location"`
			GoogleMapsURL string    `bson:"google_maps_url"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		l := Location{Name: doc.Name, GoogleMapsURL: doc.GoogleMapsURL}
		if doc.Location.Valid() {
			lat, lng := doc.Location.Lat(), doc.Location.Lng()
			l.Latitude, l.Longitude = &lat, &lng
		}
		out = append(out, l)
	}
	return out, cur.Err()
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]Restaurant, error) {
	defer cur.Close(ctx)
	out := []Restaurant{}
	for cur.Next(ctx) {
		var r Restaurant
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		normalizeLists(&r)
		out = append(out, r)
	}
	return out, cur.Err()
}
