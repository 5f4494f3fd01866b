// Package geo provides great-circle distance math over WGS84 coordinates.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrInvalidCoordinate is returned when a latitude/longitude is NaN or
// outside the valid range.
var ErrInvalidCoordinate = eris.New("invalid coordinate")

// earthRadiusM is the mean Earth radius in meters.
const earthRadiusM = 6371000.0

// ValidateLatLon checks that lat is in [-90, 90] and lon in [-180, 180]
// and that neither is NaN.
func ValidateLatLon(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return eris.Wrapf(ErrInvalidCoordinate, "NaN component (%v, %v)", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude %v out of range", lon)
	}
	return nil
}

// DistanceMeters returns the great-circle distance between two points
// using the haversine formula over the mean Earth radius. It is
// symmetric and zero iff both points are identical.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if err := ValidateLatLon(lat1, lon1); err != nil {
		return 0, err
	}
	if err := ValidateLatLon(lat2, lon2); err != nil {
		return 0, err
	}
	if lat1 == lat2 && lon1 == lon2 {
		return 0, nil
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c, nil
}
