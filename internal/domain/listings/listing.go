// Package listings holds the normalized vehicle listing model shared by all
// source adapters, plus the cross-source merge, ranking, and aggregation
// service built on top of it.
package listings

import (
	"strings"
	"time"
)

// RawListing is one normalized listing from one source. Adapters are
// responsible for running every field through the standardize package before
// emitting a RawListing; unmappable raw values live in Attributes.
//
// Optional string fields use "" for absent; optional numerics use nil.
// A RawListing is immutable once produced by an adapter.
type RawListing struct {
	SourceID  string `json:"source_id"`
	ListingID string `json:"listing_id"`

	Title string `json:"title,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Trim  string `json:"trim,omitempty"`

	Year    *int     `json:"year,omitempty"`
	Price   *float64 `json:"price,omitempty"`
	Mileage *int     `json:"mileage,omitempty"`

	BodyStyle     string `json:"body_style,omitempty"`
	FuelType      string `json:"fuel_type,omitempty"`
	Transmission  string `json:"transmission,omitempty"`
	Drivetrain    string `json:"drivetrain,omitempty"`
	ExteriorColor string `json:"exterior_color,omitempty"`
	InteriorColor string `json:"interior_color,omitempty"`

	Location    string   `json:"location,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	ViewItemURL string   `json:"view_item_url,omitempty"`

	// Attributes carries standardized non-core fields (vin, engine, mpg_city,
	// seating, ...). Keys are lowercase snake_case.
	Attributes map[string]string `json:"attributes,omitempty"`

	// Features is a sorted, deduplicated set of canonical feature tags.
	Features []string `json:"features,omitempty"`

	// History carries title/accident/owner history flags.
	History map[string]string `json:"history,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// SourceRef identifies a listing globally: (SourceID, ListingID) is unique
// within one fetch.
type SourceRef struct {
	SourceID  string `json:"source_id"`
	ListingID string `json:"listing_id"`
}

// Ref returns the listing's global identity.
func (l RawListing) Ref() SourceRef {
	return SourceRef{SourceID: l.SourceID, ListingID: l.ListingID}
}

// Valid reports whether the listing carries the required identity fields.
// Records failing this check are malformed and must be dropped at the adapter
// boundary; they never reach the merger.
func (l RawListing) Valid() bool {
	return strings.TrimSpace(l.SourceID) != "" && strings.TrimSpace(l.ListingID) != ""
}

// VIN returns the listing's VIN from the attribute bag, uppercased, or "".
func (l RawListing) VIN() string {
	return strings.ToUpper(strings.TrimSpace(l.Attributes["vin"]))
}

// MergedVehicle is the output of the cross-source merge: one canonical
// RawListing plus references to the listings folded into it, and a merge
// confidence score (1.0 for exact/VIN identity, lower for bucketed matches).
type MergedVehicle struct {
	Listing    RawListing  `json:"listing"`
	Duplicates []SourceRef `json:"duplicates,omitempty"`
	Confidence float64     `json:"confidence"`
}
