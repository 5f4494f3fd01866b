package geo

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceMetersIdentity(t *testing.T) {
	points := []struct {
		name     string
		lat, lon float64
	}{
		{"madrid centre", 40.416775, -3.703790},
		{"equator", 0, 0},
		{"pole", 90, 0},
		{"negative lon", 40.385397, -3.721414},
	}

	for _, p := range points {
		t.Run(p.name, func(t *testing.T) {
			d, err := DistanceMeters(p.lat, p.lon, p.lat, p.lon)
			require.NoError(t, err)
			assert.Zero(t, d)
		})
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	d1, err := DistanceMeters(40.416775, -3.703790, 40.385397, -3.721414)
	require.NoError(t, err)
	d2, err := DistanceMeters(40.385397, -3.721414, 40.416775, -3.703790)
	require.NoError(t, err)
	assert.InDelta(t, d1, d2, 1e-9)
	assert.Positive(t, d1)
}

func TestDistanceMetersKnownDistance(t *testing.T) {
	// Puerta del Sol to Plaza de Castilla is roughly 5.4 km.
	d, err := DistanceMeters(40.416775, -3.703790, 40.466525, -3.689012)
	require.NoError(t, err)
	assert.InDelta(t, 5400, d, 300)
}

func TestDistanceMetersInvalidInput(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"nan latitude", math.NaN(), 0, 40, -3},
		{"nan longitude", 40, math.NaN(), 40, -3},
		{"latitude over range", 91, 0, 40, -3},
		{"latitude under range", -91, 0, 40, -3},
		{"longitude over range", 40, 181, 40, -3},
		{"second point invalid", 40, -3, -200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DistanceMeters(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidCoordinate))
		})
	}
}
