package places

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNoCandidates means find-place answered but matched nothing.
	ErrNoCandidates = errors.New("places: no candidates")
	// ErrStatus wraps any provider status other than OK / ZERO_RESULTS.
	ErrStatus = errors.New("places: unexpected status")
)

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexInt accepts a JSON integer, float or numeric string.
type flexInt int64

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

func checkStatus(status, message string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNoCandidates
	case "":
		return fmt.Errorf("%w: missing status", ErrStatus)
	}
	if message != "" {
		return fmt.Errorf("%w: %s: %s", ErrStatus, status, message)
	}
	return fmt.Errorf("%w: %s", ErrStatus, status)
}

// MapCandidates decodes a find-place payload into place ids.
func MapCandidates(raw []byte) ([]string, error) {
	var root struct {
		Candidates []struct {
			PlaceID string `json:"place_id"`
		} `json:"candidates"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if err := checkStatus(root.Status, root.ErrorMessage); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(root.Candidates))
	for _, c := range root.Candidates {
		if c.PlaceID != "" {
			ids = append(ids, c.PlaceID)
		}
	}
	if len(ids) == 0 {
		return nil, ErrNoCandidates
	}
	return ids, nil
}

// MapDetails decodes a details payload.
func MapDetails(raw []byte) (*PlaceDetails, error) {
	var root struct {
		Result       *PlaceDetails `json:"result"`
		Status       string        `json:"status"`
		ErrorMessage string        `json:"error_message"`
	}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	if err := checkStatus(root.Status, root.ErrorMessage); err != nil {
		return nil, err
	}
	if root.Result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrStatus)
	}
	return root.Result, nil
}
