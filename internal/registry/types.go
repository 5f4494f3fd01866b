package registry

// StreetRecord is one named street segment of the authoritative
// callejero. Immutable once loaded; owned exclusively by the registry.
type StreetRecord struct {
	ID             int64
	Class          string // canonical class, e.g. "CALLE", "PASEO"
	Name           string // display form with accents
	NameNormalized string
	StartsAt       string // optional cross-street reference
	EndsAt         string // optional cross-street reference
}

// StreetDistrictRecord describes one district a street crosses and the
// valid odd/even house-number ranges within it. Used to check the
// administrative plausibility of a candidate.
type StreetDistrictRecord struct {
	StreetID     int64
	DistrictCode string
	DistrictName string
	OddMin       int
	OddMax       int
	EvenMin      int
	EvenMax      int
}

// AddressRecord is one official address point. Latitude/Longitude may
// both be nil; the raw projected UTM coordinates are kept as a
// fallback for datasets that carry only those.
type AddressRecord struct {
	ID                   int64
	StreetID             int64
	StreetClass          string
	StreetName           string
	StreetNameNormalized string
	Number               int
	PostalCode           string
	DistrictCode         string
	DistrictName         string
	BarrioCode           string
	Latitude             *float64
	Longitude            *float64
	UTMX                 *float64
	UTMY                 *float64
}

// HasCoordinates reports whether the record carries a usable WGS84
// coordinate pair. The snapshot builder guarantees both components are
// present together or not at all.
func (a *AddressRecord) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Dataset is the bulk-loaded content of the authoritative data source.
type Dataset struct {
	Streets         []StreetRecord
	StreetDistricts []StreetDistrictRecord
	Addresses       []AddressRecord
}

// FuzzyMatch pairs a street with its similarity score against a query.
type FuzzyMatch struct {
	Street     StreetRecord
	Similarity float64
}

// NearbyMatch pairs an address with its distance from a query point.
type NearbyMatch struct {
	Address   AddressRecord
	DistanceM float64
}
