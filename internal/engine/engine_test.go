package engine

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/match"
	"github.com/dea-madrid/address-validation/internal/registry"
)

func fptr(f float64) *float64 { return &f }

// Fixture around the documented mis-resolution: the query point sits
// on Paseo de la Chopera, with a Calle de Oporto address even closer
// to it than the Chopera address itself.
func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(zap.NewNop())
	require.NoError(t, r.Load(&registry.Dataset{
		Streets: []registry.StreetRecord{
			{ID: 1, Class: "PASEO", Name: "De la Chopera", NameNormalized: "DE LA CHOPERA"},
			{ID: 2, Class: "CALLE", Name: "Oporto", NameNormalized: "OPORTO"},
			{ID: 3, Class: "CALLE", Name: "Embajadores", NameNormalized: "EMBAJADORES"},
		},
		StreetDistricts: []registry.StreetDistrictRecord{
			{StreetID: 1, DistrictCode: "02", DistrictName: "Arganzuela", OddMin: 1, OddMax: 99, EvenMin: 2, EvenMax: 98},
			{StreetID: 2, DistrictCode: "11", DistrictName: "Carabanchel", OddMin: 1, OddMax: 61, EvenMin: 2, EvenMax: 58},
			{StreetID: 3, DistrictCode: "02", DistrictName: "Arganzuela", OddMin: 1, OddMax: 199, EvenMin: 2, EvenMax: 198},
		},
		Addresses: []registry.AddressRecord{
			{ID: 10, StreetID: 1, StreetClass: "PASEO", StreetName: "De la Chopera",
				StreetNameNormalized: "DE LA CHOPERA", Number: 4, PostalCode: "28045",
				DistrictCode: "02", DistrictName: "Arganzuela",
				Latitude: fptr(40.38600), Longitude: fptr(-3.72090)},
			{ID: 11, StreetID: 1, StreetClass: "PASEO", StreetName: "De la Chopera",
				StreetNameNormalized: "DE LA CHOPERA", Number: 6, PostalCode: "28045",
				DistrictCode: "02", DistrictName: "Arganzuela",
				Latitude: fptr(40.38630), Longitude: fptr(-3.72060)},
			{ID: 20, StreetID: 2, StreetClass: "CALLE", StreetName: "Oporto",
				StreetNameNormalized: "OPORTO", Number: 4, PostalCode: "28019",
				DistrictCode: "11", DistrictName: "Carabanchel",
				Latitude: fptr(40.38545), Longitude: fptr(-3.72135)},
			{ID: 30, StreetID: 3, StreetClass: "CALLE", StreetName: "Embajadores",
				StreetNameNormalized: "EMBAJADORES", Number: 53, PostalCode: "28012",
				DistrictCode: "02", DistrictName: "Arganzuela",
				Latitude: fptr(40.40407), Longitude: fptr(-3.70316)},
		},
	}))
	return r
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(testRegistry(t), nil, nil, DefaultConfig(), zap.NewNop())
}

func TestValidateChoperaRegression(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType:   "Paseo",
		StreetName:   "De la Chopera",
		StreetNumber: "4",
		PostalCode:   "28046",
		District:     "2. Arganzuela",
		Latitude:     fptr(40.385397),
		Longitude:    fptr(-3.721414),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Suggestions)

	top := res.Suggestions[0]
	assert.Equal(t, "De la Chopera", top.StreetName,
		"Chopera must win even though Oporto is geographically closer")
	assert.Contains(t, []match.MatchType{match.TypeExact, match.TypeFuzzy}, res.MatchType)
	assert.GreaterOrEqual(t, res.Confidence, 0.85)
	assert.Equal(t, StatusValid, res.OverallStatus)

	// The nearby Oporto address may appear as a suggestion but never
	// above the geographic cap.
	for _, s := range res.Suggestions[1:] {
		if s.StreetName == "Oporto" {
			assert.Equal(t, match.TypeGeographic, s.MatchType)
			assert.LessOrEqual(t, s.Confidence, 0.5)
		}
	}

	assert.Contains(t, res.RecommendedActions, "verify postal code: registry shows 28045")
}

func TestValidateExactMatch(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType:   "Paseo",
		StreetName:   "De la Chopera",
		StreetNumber: "4",
		PostalCode:   "28045",
	})
	require.NoError(t, err)

	assert.Equal(t, match.TypeExact, res.MatchType)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Equal(t, StatusValid, res.OverallStatus)
	assert.Empty(t, res.RecommendedActions)
	require.NotEmpty(t, res.Suggestions)
	require.NotNil(t, res.Suggestions[0].Number)
	assert.Equal(t, 4, *res.Suggestions[0].Number)
}

func TestValidateClassEmbeddedInName(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetName:   "Paseo de la Chopera",
		StreetNumber: "4",
		PostalCode:   "28045",
	})
	require.NoError(t, err)
	assert.Equal(t, match.TypeExact, res.MatchType)
	assert.Equal(t, StatusValid, res.OverallStatus)
}

func TestValidateMisspelledNameNeedsReview(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType:   "Paseo",
		StreetName:   "De la Chopra",
		StreetNumber: "4",
		District:     "2. Arganzuela",
	})
	require.NoError(t, err)

	assert.Equal(t, match.TypeFuzzy, res.MatchType)
	assert.Equal(t, StatusNeedsReview, res.OverallStatus)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "De la Chopera", res.Suggestions[0].StreetName)

	found := false
	for _, a := range res.RecommendedActions {
		if a == `confirm street name spelling: closest registry entry is "De la Chopera"` {
			found = true
		}
	}
	assert.True(t, found, "expected spelling action, got %v", res.RecommendedActions)
}

// A short name behind particles: the full form "DE LA PEZ" scores
// 0.40 against "PEZ", above the gathering floor but below the fuzzy
// threshold, while the stripped form matches exactly. The stripped
// similarity must carry the street into the fuzzy tier even though
// the strict search saw the same street first.
func TestValidateParticleStrippedSimilarityWins(t *testing.T) {
	r := registry.New(zap.NewNop())
	require.NoError(t, r.Load(&registry.Dataset{
		Streets: []registry.StreetRecord{
			{ID: 1, Class: "CALLE", Name: "Pez", NameNormalized: "PEZ"},
		},
		StreetDistricts: []registry.StreetDistrictRecord{
			{StreetID: 1, DistrictCode: "01", DistrictName: "Centro", OddMin: 1, OddMax: 45, EvenMin: 2, EvenMax: 44},
		},
	}))
	e := New(r, nil, nil, DefaultConfig(), zap.NewNop())

	res, err := e.Validate(Query{StreetType: "Calle", StreetName: "De la Pez"})
	require.NoError(t, err)

	require.NotEmpty(t, res.Suggestions, "stripped-form match must surface a suggestion")
	top := res.Suggestions[0]
	assert.Equal(t, "Pez", top.StreetName)
	assert.Equal(t, match.TypeFuzzy, res.MatchType)
	assert.Equal(t, StatusNeedsReview, res.OverallStatus)
	// 0.6 text weight times the stripped similarity of 1.0, no boosts.
	assert.InEpsilon(t, 0.6, res.Confidence, 1e-9)
	assert.Less(t, res.Confidence, 0.85,
		"particle-stripped evidence alone must stay below the valid band")
}

func TestValidateUnknownStreetInvalid(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{StreetType: "Calle", StreetName: "Inventada Totalmente"})
	require.NoError(t, err, "no match is a result, not an error")

	assert.Equal(t, StatusInvalid, res.OverallStatus)
	assert.Equal(t, match.TypeNone, res.MatchType)
	assert.Zero(t, res.Confidence)
	assert.Contains(t, res.RecommendedActions, "manual geocoding required")
}

func TestValidateGeographicOnlyNeedsReview(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType: "Calle",
		StreetName: "Zzyzx",
		Latitude:   fptr(40.38545),
		Longitude:  fptr(-3.72135),
	})
	require.NoError(t, err)

	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, match.TypeGeographic, res.MatchType)
	assert.Equal(t, StatusNeedsReview, res.OverallStatus)
	assert.LessOrEqual(t, res.Confidence, 0.5)
	assert.Contains(t, res.RecommendedActions, "confirm street name: match is based on proximity only")
}

func TestValidateDistrictDiscrepancyAction(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType:   "Paseo",
		StreetName:   "De la Chopera",
		StreetNumber: "4",
		District:     "11. Carabanchel",
	})
	require.NoError(t, err)

	require.NotEmpty(t, res.Suggestions)
	assert.Contains(t, res.RecommendedActions, "verify district: registry shows ARGANZUELA (02)")
}

func TestValidateEmptyStreetName(t *testing.T) {
	// An unloaded registry proves no lookup happens before the guard.
	e := New(registry.New(nil), nil, nil, DefaultConfig(), zap.NewNop())

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := e.Validate(Query{StreetType: "Calle", StreetName: name})
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrEmptyQuery))
		assert.False(t, eris.Is(err, registry.ErrUnavailable))
	}
}

func TestValidateRegistryUnavailable(t *testing.T) {
	e := New(registry.New(nil), nil, nil, DefaultConfig(), zap.NewNop())

	_, err := e.Validate(Query{StreetType: "Calle", StreetName: "Oporto"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, registry.ErrUnavailable))
}

func TestValidateMalformedCoordinates(t *testing.T) {
	e := testEngine(t)

	t.Run("only one component", func(t *testing.T) {
		_, err := e.Validate(Query{StreetName: "Oporto", Latitude: fptr(40.38)})
		require.Error(t, err)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := e.Validate(Query{StreetName: "Oporto", Latitude: fptr(120), Longitude: fptr(-3.7)})
		require.Error(t, err)
	})
}

func TestValidateExhaustiveRunsFuzzy(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType:   "Paseo",
		StreetName:   "De la Chopera",
		StreetNumber: "4",
		PostalCode:   "28045",
		Exhaustive:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, res.StrategiesUsed, "exact")
	assert.Contains(t, res.StrategiesUsed, "fuzzy")
}

func TestValidateStreetLevelCandidateWhenNumberUnknown(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType: "Paseo",
		StreetName: "De la Choperas", // near miss, forces the fuzzy path
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Suggestions)

	top := res.Suggestions[0]
	assert.Equal(t, "De la Chopera", top.StreetName)
	assert.Nil(t, top.Number, "street-level suggestion carries no house number")
	assert.Equal(t, "02", top.DistrictCode)
}

func TestValidateSuggestionLimit(t *testing.T) {
	e := testEngine(t)

	res, err := e.Validate(Query{
		StreetType: "Paseo",
		StreetName: "De la Chopera",
		Exhaustive: true,
		Latitude:   fptr(40.38600),
		Longitude:  fptr(-3.72090),
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Suggestions), DefaultConfig().MaxSuggestions)
}
