package places

// PlaceDetails is the subset of the details payload the job consumes.
// Pointer fields distinguish "absent" from a real zero.
type PlaceDetails struct {
	PlaceID              string    `json:"place_id"`
	Name                 string    `json:"name"`
	FormattedAddress     string    `json:"formatted_address"`
	FormattedPhoneNumber string    `json:"formatted_phone_number"`
	Geometry             *Geometry `json:"geometry"`
	URL                  string    `json:"url"`
	Website              string    `json:"website"`
	Photos               []Photo   `json:"photos"`
	Rating               *float64  `json:"rating"`
	UserRatingsTotal     *int      `json:"user_ratings_total"`
	Reviews              []Review  `json:"reviews"`
	Types                []string  `json:"types"`
}

type Geometry struct {
	Location *LatLng `json:"location"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
}

type Review struct {
	AuthorName              string    `json:"author_name"`
	AuthorURL               string    `json:"author_url"`
	Language                string    `json:"language"`
	ProfilePhotoURL         string    `json:"profile_photo_url"`
	Rating                  flexFloat `json:"rating"`
	RelativeTimeDescription string    `json:"relative_time_description"`
	Text                    string    `json:"text"`
	Time                    flexInt   `json:"time"`
}

// PhotoRefs returns the non-empty photo references in provider order.
func (d *PlaceDetails) PhotoRefs() []string {
	if d == nil {
		return nil
	}
	refs := make([]string, 0, len(d.Photos))
	for _, p := range d.Photos {
		if p.PhotoReference != "" {
			refs = append(refs, p.PhotoReference)
		}
	}
	return refs
}
