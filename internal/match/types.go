package match

import "github.com/dea-madrid/address-validation/internal/registry"

// Strategy identifies which search produced a candidate.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyGeographic Strategy = "geographic"
)

// MatchType classifies the quality tier of a scored candidate.
type MatchType string

const (
	TypeExact      MatchType = "exact"
	TypeFuzzy      MatchType = "fuzzy"
	TypeGeographic MatchType = "geographic"
	TypeNone       MatchType = "none"
)

// Candidate is a transient per-query structure pairing a registry
// entry with the signals gathered for it. Address is nil for
// street-level candidates (house number unknown), in which case
// Street is set instead.
type Candidate struct {
	Address *registry.AddressRecord
	Street  *registry.StreetRecord

	StreetName   string // raw display form, used for edit-distance tie-breaks
	PostalCode   string
	DistrictCode string
	DistrictName string

	TextSimilarity float64
	// LooseTextOnly marks similarity that exists only in the
	// particle-stripped form. Such a candidate may never reach the
	// high-confidence band on text alone.
	LooseTextOnly bool
	DistanceM     *float64
	Strategy      Strategy
}

// Query carries the administrative context the scorer compares
// candidates against. District code and name arrive parsed and
// normalized by the engine.
type Query struct {
	RawStreetName string
	PostalCode    string
	DistrictCode  string
	DistrictName  string
}

// Scored is a candidate with its final confidence and tier.
type Scored struct {
	Candidate
	Confidence float64
	Type       MatchType
}

// Weights holds the scoring thresholds and boosts. All values are
// tunable defaults surfaced through configuration, to be calibrated
// against a labeled set rather than treated as fixed.
type Weights struct {
	// FuzzyTextThreshold is the minimum text similarity for the fuzzy
	// tier. Below it, proximity alone can never lift a candidate past
	// the geographic cap.
	FuzzyTextThreshold float64
	// TextWeight scales the text-similarity term of the fuzzy tier.
	// Text must dominate; geography only disambiguates ties.
	TextWeight float64
	// PostalBoost and DistrictBoost reward administrative agreement in
	// the fuzzy tier.
	PostalBoost   float64
	DistrictBoost float64
	// DistanceBoostMax caps the inverse-distance term; it decays
	// linearly to zero at MaxRadiusM.
	DistanceBoostMax float64
	// SanityRadiusM is the distance past which even an exact
	// textual/administrative match is penalized rather than trusted.
	SanityRadiusM        float64
	ExactDistancePenalty float64
	// MaxRadiusM bounds both the distance decay and geographic search.
	MaxRadiusM float64
	// GeographicCap is the hard ceiling for proximity-only candidates.
	GeographicCap float64
	// LooseTextCap bounds fuzzy confidence when similarity exists only
	// in the particle-stripped form, keeping it below the valid band.
	LooseTextCap float64
}

// DefaultWeights returns the default thresholds.
func DefaultWeights() *Weights {
	return &Weights{
		FuzzyTextThreshold:   0.55,
		TextWeight:           0.60,
		PostalBoost:          0.20,
		DistrictBoost:        0.10,
		DistanceBoostMax:     0.20,
		SanityRadiusM:        750,
		ExactDistancePenalty: 0.05,
		MaxRadiusM:           2000,
		GeographicCap:        0.50,
		LooseTextCap:         0.84,
	}
}
