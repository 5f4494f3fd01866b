package engine

import (
	"time"

	"github.com/dea-madrid/address-validation/internal/match"
)

// Query is one free-form user-submitted address to validate.
type Query struct {
	StreetType   string   `json:"streetType"`
	StreetName   string   `json:"streetName"`
	StreetNumber string   `json:"streetNumber,omitempty"`
	PostalCode   string   `json:"postalCode,omitempty"`
	District     string   `json:"district,omitempty"` // e.g. "2. Arganzuela"
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	// Exhaustive forces the fuzzy search even when the exact search
	// already produced candidates.
	Exhaustive bool `json:"exhaustive,omitempty"`
}

// Status is the overall verdict for a validated address.
type Status string

const (
	StatusValid       Status = "valid"
	StatusNeedsReview Status = "needs_review"
	StatusInvalid     Status = "invalid"
)

// Suggestion is one ranked registry candidate offered to the caller.
type Suggestion struct {
	StreetClass  string          `json:"streetClass"`
	StreetName   string          `json:"streetName"`
	Number       *int            `json:"number,omitempty"`
	PostalCode   string          `json:"postalCode,omitempty"`
	DistrictCode string          `json:"districtCode,omitempty"`
	DistrictName string          `json:"districtName,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	Confidence   float64         `json:"confidence"`
	MatchType    match.MatchType `json:"matchType"`
	Strategy     match.Strategy  `json:"strategy"`
	// Explanation of the ranking signals.
	TextSimilarity float64  `json:"textSimilarity"`
	PostalMatch    bool     `json:"postalMatch"`
	DistrictMatch  bool     `json:"districtMatch"`
	DistanceM      *float64 `json:"distanceMeters,omitempty"`
}

// Result is the engine's output for one input address.
type Result struct {
	Suggestions        []Suggestion    `json:"suggestions"`
	Confidence         float64         `json:"confidence"`
	MatchType          match.MatchType `json:"matchType"`
	OverallStatus      Status          `json:"overallStatus"`
	RecommendedActions []string        `json:"recommendedActions"`
	StrategiesUsed     []string        `json:"strategiesUsed"`
	Duration           time.Duration   `json:"-"`
}
