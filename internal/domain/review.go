package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Ratings live on a 0..5 scale with one decimal digit of precision.
const (
	RatingMin = 0.0
	RatingMax = 5.0
)

// NormalizeRating bounds-checks a raw rating and rounds it to one decimal.
func NormalizeRating(f float64) (float64, error) {
	if math.IsNaN(f) || f < RatingMin || f > RatingMax {
		return 0, fmt.Errorf("rating %v out of [%v, %v]: %w", f, RatingMin, RatingMax, ErrInvalidArgument)
	}
	return math.Round(f*10) / 10, nil
}

type Review struct {
	ID            int64   `json:"review_id"`
	UserID        int64   `json:"user_id"`
	AmenityID     int64   `json:"amenity_id"`
	OverallRating float64 `json:"overall_rating"`

	// Details is an open, additive document (flow, temperature, cleanliness,
	// ...) stored verbatim; readers must tolerate unknown keys.
	Details json.RawMessage `json:"rating_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewPatch carries the fields of an existing review to replace. Nil
// fields are left untouched; at least one must be set.
type ReviewPatch struct {
	OverallRating *float64
	Details       json.RawMessage
	AmenityID     *int64 // reassigns the review to a different amenity
}

func (p ReviewPatch) Empty() bool {
	return p.OverallRating == nil && p.Details == nil && p.AmenityID == nil
}

// UpsertResult reports the outcome of a create-or-replace submission.
type UpsertResult struct {
	ReviewID  int64     `json:"review_id"`
	Timestamp time.Time `json:"timestamp"`
	Inserted  bool      `json:"-"`
}
