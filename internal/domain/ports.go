package domain

import (
	"context"
	"encoding/json"
	"time"
)

type Repository interface {
	// Review write paths. Each call runs in its own transaction and keeps
	// the affected amenity counters consistent before committing.
	UpsertReview(ctx context.Context, userID, amenityID int64, rating float64, details json.RawMessage) (UpsertResult, error)
	UpdateReview(ctx context.Context, reviewID int64, patch ReviewPatch) (Review, int64, error) // returns prior amenity id
	DeleteReview(ctx context.Context, reviewID int64) (int64, error)                            // returns amenity id of the deleted review

	// Entity write paths (seeding and thin CRUD).
	CreateUser(ctx context.Context, username, email string) (User, error)
	GetOrCreateAddress(ctx context.Context, address string, lat, lon float64) (int64, error)
	GetOrCreateBuilding(ctx context.Context, name string, addressID int64) (int64, error)
	CreateAmenity(ctx context.Context, a Amenity) (int64, error)
	GetOrCreateTag(ctx context.Context, label string) (int64, error)
	TagAmenity(ctx context.Context, amenityID, tagID int64) error
	UntagAmenity(ctx context.Context, amenityID, tagID int64) error

	// Read paths.
	GetReview(ctx context.Context, reviewID int64) (Review, error)
	ListReviews(ctx context.Context, amenityID int64, limit int) ([]Review, error)
	GetAmenityStats(ctx context.Context, amenityID int64) (AmenityStats, error)
	ListAmenities(ctx context.Context, q AmenityQuery) ([]AmenityView, error)
	CleanBathroomsVending(ctx context.Context, minBathroomAvg float64) ([]LeaderboardRow, error)
	ColdestFountains(ctx context.Context) ([]LeaderboardRow, error)
	OverallAmenities(ctx context.Context) ([]LeaderboardRow, error)

	// CountDrift is the read-only audit: amenities whose stored counter
	// disagrees with the actual review count. Always empty unless the
	// consistency invariant has been violated.
	CountDrift(ctx context.Context) ([]DriftRecord, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// DirectoryClient fetches the campus building directory used for seeding.
type DirectoryClient interface {
	ListBuildings(ctx context.Context) ([]DirectoryBuilding, error)
}

type DirectoryBuilding struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Read models & queries

type AmenityStats struct {
	AmenityID    int64      `json:"amenity_id"`
	BuildingName string     `json:"building_name"`
	AvgRating    float64    `json:"avg_rating"`
	ReviewCount  int64      `json:"review_count"`
	LatestReview *time.Time `json:"latest_review_timestamp,omitempty"`
}

type AmenityQuery struct {
	Keyword string // matches building name, address, or amenity notes
	Type    *AmenityType
	Limit   int
	Offset  int
}

type AmenityView struct {
	ID           int64       `json:"amenity_id"`
	Type         AmenityType `json:"type"`
	Floor        string      `json:"floor"`
	Notes        string      `json:"notes,omitempty"`
	BuildingName string      `json:"building_name"`
	Address      string      `json:"address"`
	Lat          float64     `json:"lat"`
	Lon          float64     `json:"lon"`
	AvgRating    float64     `json:"avg_rating"`
	ReviewCount  int64       `json:"review_count"`
}

type LeaderboardKind string

const (
	KindCleanBathroomsVending LeaderboardKind = "CleanBathroomsVending"
	KindColdestFountains      LeaderboardKind = "ColdestFountains"
	KindOverallAmenities      LeaderboardKind = "OverallAmenities"
)

func ParseLeaderboardKind(s string) (LeaderboardKind, error) {
	switch k := LeaderboardKind(s); k {
	case KindCleanBathroomsVending, KindColdestFountains, KindOverallAmenities:
		return k, nil
	}
	return "", ErrInvalidArgument
}

// LeaderboardLimit caps every ranking.
const LeaderboardLimit = 15

// LeaderboardRow is the union of the three ranking shapes; unused fields
// stay zero and are omitted from JSON.
type LeaderboardRow struct {
	BuildingName string      `json:"building_name"`
	Address      string      `json:"address,omitempty"`
	Type         AmenityType `json:"type,omitempty"`
	Floor        string      `json:"floor,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	AvgRating    float64     `json:"avg_rating"`
	ReviewCount  int64       `json:"review_count,omitempty"`
	ColdTagCount int64       `json:"cold_tag_count,omitempty"`
}

type Leaderboard struct {
	Kind  LeaderboardKind  `json:"kind"`
	Items []LeaderboardRow `json:"items"`
}

type DriftRecord struct {
	AmenityID   int64 `json:"amenity_id"`
	StoredCount int64 `json:"stored_count"`
	ActualCount int64 `json:"actual_count"`
}
