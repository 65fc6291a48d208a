package domain

import "fmt"

// AmenityType is the closed set of amenity kinds. Values are persisted
// verbatim (case-sensitive) in the amenities.type column.
type AmenityType string

const (
	TypeBathroom       AmenityType = "Bathroom"
	TypeWaterFountain  AmenityType = "WaterFountain"
	TypeVendingMachine AmenityType = "VendingMachine"
)

// AmenityTypes lists every valid type, in schema order.
var AmenityTypes = []AmenityType{TypeBathroom, TypeWaterFountain, TypeVendingMachine}

func (t AmenityType) Valid() bool {
	switch t {
	case TypeBathroom, TypeWaterFountain, TypeVendingMachine:
		return true
	}
	return false
}

// ParseAmenityType validates raw input at the boundary, before it reaches
// storage.
func ParseAmenityType(s string) (AmenityType, error) {
	t := AmenityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("amenity type %q: %w", s, ErrInvalidArgument)
	}
	return t, nil
}

type Amenity struct {
	ID         int64       `json:"id"`
	BuildingID int64       `json:"building_id"`
	Type       AmenityType `json:"type"`
	Floor      string      `json:"floor"`
	Notes      string      `json:"notes,omitempty"`

	// ReviewCount is denormalized and maintained by the store inside every
	// review-mutating transaction. Invariant: always equals the number of
	// review rows referencing this amenity.
	ReviewCount int64 `json:"review_count"`
}

type Address struct {
	ID      int64   `json:"id"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type Building struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AddressID int64  `json:"address_id"`
}

// Tag labels are global and unique; amenities reference them through a join
// table with independent lifecycles on both sides.
type Tag struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// ColdWaterTag is the label whose link count drives the coldest-fountains
// ranking.
const ColdWaterTag = "ColdWater"
