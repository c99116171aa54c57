package hydrator

import (
	"github.com/yourorg/places-api/internal/store"
	"github.com/yourorg/places-api/places"
)

// Normalize maps a details payload onto the record schema. Every optional
// field gets its zero value or an empty list, never a missing key.
// PhotosS3 is left empty; photo migration fills it.
func Normalize(d *places.PlaceDetails, photoURL func(ref string) string) store.Restaurant {
	r := store.Restaurant{
		PlaceID:       d.PlaceID,
		Name:          d.Name,
		Address:       d.FormattedAddress,
		Phone:         d.FormattedPhoneNumber,
		GoogleMapsURL: d.URL,
		Photos:        []string{},
		PhotosS3:      []string{},
		Reviews:       []store.Review{},
		Types:         []string{},
	}
	if d.Geometry != nil && d.Geometry.Location != nil {
		r.Location = store.NewPoint(d.Geometry.Location.Lat, d.Geometry.Location.Lng)
	}
	if d.Rating != nil {
		r.Rating = *d.Rating
	}
	if d.UserRatingsTotal != nil {
		r.TotalReviews = *d.UserRatingsTotal
	}
	for _, ref := range d.PhotoRefs() {
		r.Photos = append(r.Photos, photoURL(ref))
	}
	for _, rv := range d.Reviews {
		r.Reviews = append(r.Reviews, store.Review{
			AuthorName:              rv.AuthorName,
			AuthorURL:               rv.AuthorURL,
			Language:                rv.Language,
			ProfilePhotoURL:         rv.ProfilePhotoURL,
			Rating:                  float64(rv.Rating),
			RelativeTimeDescription: rv.RelativeTimeDescription,
			Text:                    rv.Text,
			Time:                    int64(rv.Time),
		})
	}
	r.Types = append(r.Types, d.Types...)
	return r
}
