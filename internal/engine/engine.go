// Package engine orchestrates the search strategies against the
// registry and turns scored candidates into a ranked validation
// result with an overall status and recommended actions.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/geo"
	"github.com/dea-madrid/address-validation/internal/match"
	"github.com/dea-madrid/address-validation/internal/normalize"
	"github.com/dea-madrid/address-validation/internal/registry"
)

// ErrEmptyQuery is returned when the street name is blank after
// normalization. No registry lookup is attempted in that case.
var ErrEmptyQuery = eris.New("empty query: no usable street name")

// Config holds the engine's tunables beyond the scorer weights.
type Config struct {
	// MaxSuggestions caps the ranked suggestion list.
	MaxSuggestions int
	// FuzzySearchMinSimilarity is the gathering floor passed to the
	// registry's fuzzy search. It sits below the scorer's fuzzy
	// threshold so borderline candidates still get scored.
	FuzzySearchMinSimilarity float64
	// FuzzyStreetLimit bounds how many fuzzy streets are expanded into
	// address candidates.
	FuzzyStreetLimit int
	// ValidThreshold and ReviewThreshold delimit the status bands.
	ValidThreshold  float64
	ReviewThreshold float64
	// SpellingSimilarity is the text similarity under which a fuzzy
	// best match prompts a spelling check.
	SpellingSimilarity float64
}

// DefaultConfig returns the default engine tunables.
func DefaultConfig() Config {
	return Config{
		MaxSuggestions:           10,
		FuzzySearchMinSimilarity: 0.30,
		FuzzyStreetLimit:         25,
		ValidThreshold:           0.85,
		ReviewThreshold:          0.40,
		SpellingSimilarity:       0.75,
	}
}

// Engine validates addresses against a registry. Construct one at
// process start and share it; all state is read-only per call.
type Engine struct {
	reg     *registry.Registry
	scorer  *match.Scorer
	weights *match.Weights
	norm    *normalize.Normalizer
	cfg     Config
	log     *zap.Logger
}

// New creates an engine over the given registry, scorer weights and
// normalizer. Nil weights, normalizer or logger fall back to defaults.
func New(reg *registry.Registry, weights *match.Weights, norm *normalize.Normalizer, cfg Config, log *zap.Logger) *Engine {
	if weights == nil {
		weights = match.DefaultWeights()
	}
	if norm == nil {
		norm = normalize.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxSuggestions <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		reg:     reg,
		scorer:  match.NewScorerWithWeights(weights),
		weights: weights,
		norm:    norm,
		cfg:     cfg,
		log:     log,
	}
}

// Validate resolves one address against the registry. Absence of any
// match is a StatusInvalid result, not an error; errors are reserved
// for malformed input and registry unavailability.
func (e *Engine) Validate(q Query) (*Result, error) {
	start := time.Now()

	nameNorm := normalize.Normalize(q.StreetName)
	if nameNorm == "" {
		return nil, eris.Wrapf(ErrEmptyQuery, "street name %q", q.StreetName)
	}

	lat, lon, err := queryCoordinates(q)
	if err != nil {
		return nil, err
	}

	classNorm := e.norm.NormalizeClass(q.StreetType)
	// Users sometimes fold the class into the name ("Paseo de la
	// Chopera" with type "Paseo" or blank); registry names carry the
	// class separately, so split it off before lookup.
	if cls, rest := e.norm.SplitClass(nameNorm); cls != "" {
		if classNorm == "" {
			classNorm, nameNorm = cls, rest
		} else if cls == classNorm {
			nameNorm = rest
		}
	}
	number := parseHouseNumber(q.StreetNumber)
	districtCode, districtName := parseDistrict(q.District)
	qCtx := match.Query{
		RawStreetName: q.StreetName,
		PostalCode:    q.PostalCode,
		DistrictCode:  districtCode,
		DistrictName:  districtName,
	}

	acc := newCandidateSet()
	var strategies []string

	exact, err := e.reg.FindExact(classNorm, nameNorm, number)
	if err != nil {
		return nil, eris.Wrap(err, "exact search")
	}
	strategies = append(strategies, string(match.StrategyExact))
	for i := range exact {
		acc.addAddress(&exact[i], match.StrategyExact, 1.0, false, lat, lon)
	}

	if len(exact) == 0 || q.Exhaustive {
		if err := e.gatherFuzzy(acc, nameNorm, q.StreetName, number, lat, lon); err != nil {
			return nil, err
		}
		strategies = append(strategies, string(match.StrategyFuzzy))
	}

	if lat != nil && lon != nil {
		added, err := e.gatherNearby(acc, nameNorm, *lat, *lon)
		if err != nil {
			return nil, err
		}
		if added {
			strategies = append(strategies, string(match.StrategyGeographic))
		}
	}

	scored := e.scorer.ScoreAll(acc.list(), qCtx)
	if len(scored) > e.cfg.MaxSuggestions {
		scored = scored[:e.cfg.MaxSuggestions]
	}

	res := e.buildResult(scored, q, qCtx, number)
	res.StrategiesUsed = strategies
	res.Duration = time.Since(start)

	e.log.Debug("address validated",
		zap.String("street", q.StreetName),
		zap.String("status", string(res.OverallStatus)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("suggestions", len(res.Suggestions)),
	)
	return res, nil
}

// gatherFuzzy runs the trigram search with the strict normalized form
// and, when it differs, the particle-stripped form. A candidate whose
// similarity exists only in the stripped form is flagged so the scorer
// keeps it out of the high-confidence band.
func (e *Engine) gatherFuzzy(acc *candidateSet, nameNorm, rawName string, number *int, lat, lon *float64) error {
	strict, err := e.reg.FindFuzzy(nameNorm, e.cfg.FuzzySearchMinSimilarity)
	if err != nil {
		return eris.Wrap(err, "fuzzy search")
	}

	strictSim := make(map[int64]float64, len(strict))
	best := make(map[int64]registry.FuzzyMatch, len(strict))
	for _, m := range strict {
		strictSim[m.Street.ID] = m.Similarity
		best[m.Street.ID] = m
	}

	// Per street, keep the higher of the strict and stripped
	// similarities. A street seen by both searches must not be pinned
	// to its strict score.
	if stripped := e.norm.StripParticles(rawName); stripped != nameNorm {
		loose, err := e.reg.FindFuzzy(stripped, e.cfg.FuzzySearchMinSimilarity)
		if err != nil {
			return eris.Wrap(err, "fuzzy search (particle-stripped)")
		}
		for _, m := range loose {
			if cur, ok := best[m.Street.ID]; !ok || m.Similarity > cur.Similarity {
				best[m.Street.ID] = m
			}
		}
	}

	merged := make([]registry.FuzzyMatch, 0, len(best))
	for _, m := range best {
		merged = append(merged, m)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		return merged[i].Street.ID < merged[j].Street.ID
	})
	if len(merged) > e.cfg.FuzzyStreetLimit {
		merged = merged[:e.cfg.FuzzyStreetLimit]
	}

	for _, m := range merged {
		looseOnly := strictSim[m.Street.ID] < e.weights.FuzzyTextThreshold &&
			m.Similarity >= e.weights.FuzzyTextThreshold
		e.expandStreet(acc, m.Street, m.Similarity, looseOnly, number, lat, lon)
	}
	return nil
}

// expandStreet materializes a fuzzy street hit into candidates: the
// street's address points when the house number is known, or a
// street-level candidate otherwise.
func (e *Engine) expandStreet(acc *candidateSet, st registry.StreetRecord, sim float64, looseOnly bool, number *int, lat, lon *float64) {
	if number != nil {
		addrs := e.reg.AddressesOnStreet(st.ID, number)
		if len(addrs) > 0 {
			for i := range addrs {
				acc.addAddress(&addrs[i], match.StrategyFuzzy, sim, looseOnly, lat, lon)
			}
			return
		}
	}
	acc.addStreet(&st, e.reg.DistrictsFor(st.ID), match.StrategyFuzzy, sim, looseOnly)
}

// gatherNearby adds proximity candidates. A missing coordinate index
// only disables this strategy; the text strategies already ran.
func (e *Engine) gatherNearby(acc *candidateSet, nameNorm string, lat, lon float64) (bool, error) {
	nearby, err := e.reg.FindNearby(lat, lon, e.weights.MaxRadiusM)
	if err != nil {
		if eris.Is(err, registry.ErrNoCoordinateIndex) {
			e.log.Warn("geographic search skipped: registry has no coordinate index")
			return false, nil
		}
		return false, eris.Wrap(err, "geographic search")
	}

	for i := range nearby {
		m := &nearby[i]
		sim := registry.Similarity(nameNorm, m.Address.StreetNameNormalized)
		acc.addNearby(&m.Address, sim, m.DistanceM)
	}
	return true, nil
}

func (e *Engine) buildResult(scored []match.Scored, q Query, qCtx match.Query, number *int) *Result {
	res := &Result{
		Suggestions:        make([]Suggestion, 0, len(scored)),
		MatchType:          match.TypeNone,
		OverallStatus:      StatusInvalid,
		RecommendedActions: []string{},
	}

	for _, sc := range scored {
		res.Suggestions = append(res.Suggestions, e.toSuggestion(sc, qCtx))
	}

	if len(scored) == 0 || scored[0].Type == match.TypeNone {
		res.RecommendedActions = append(res.RecommendedActions, "manual geocoding required")
		return res
	}

	top := scored[0]
	res.Confidence = top.Confidence
	res.MatchType = top.Type

	switch {
	case top.Type == match.TypeGeographic:
		res.OverallStatus = StatusNeedsReview
	case top.Confidence >= e.cfg.ValidThreshold:
		res.OverallStatus = StatusValid
	case top.Confidence >= e.cfg.ReviewThreshold:
		res.OverallStatus = StatusNeedsReview
	default:
		res.OverallStatus = StatusInvalid
	}

	res.RecommendedActions = e.recommendActions(res.OverallStatus, top, q, qCtx, number)
	return res
}

// recommendActions derives deterministic follow-ups from the status
// and the discrepancies between the query and the best candidate.
func (e *Engine) recommendActions(status Status, top match.Scored, q Query, qCtx match.Query, number *int) []string {
	actions := []string{}

	if status == StatusInvalid {
		actions = append(actions, "manual geocoding required")
		return actions
	}

	if q.PostalCode != "" && top.PostalCode != "" && top.PostalCode != q.PostalCode {
		actions = append(actions, fmt.Sprintf("verify postal code: registry shows %s", top.PostalCode))
	}

	if top.Type == match.TypeFuzzy && top.TextSimilarity < e.cfg.SpellingSimilarity {
		actions = append(actions, fmt.Sprintf("confirm street name spelling: closest registry entry is %q", top.StreetName))
	}

	if qCtx.DistrictCode != "" && top.DistrictCode != "" &&
		trimZeros(qCtx.DistrictCode) != trimZeros(top.DistrictCode) {
		actions = append(actions, fmt.Sprintf("verify district: registry shows %s (%s)", top.DistrictName, top.DistrictCode))
	}

	if top.Street != nil && number != nil {
		if districts := e.reg.DistrictsFor(top.Street.ID); len(districts) > 0 && !numberInRanges(*number, districts) {
			actions = append(actions, fmt.Sprintf("confirm house number: %d is outside the known ranges of %s", *number, top.Street.Name))
		}
	}

	if top.Type == match.TypeGeographic {
		actions = append(actions, "confirm street name: match is based on proximity only")
	}

	return actions
}

// numberInRanges checks the odd/even house-number ranges of the
// street's district crossings.
func numberInRanges(n int, districts []registry.StreetDistrictRecord) bool {
	for _, d := range districts {
		if n%2 == 1 && d.OddMax > 0 && n >= d.OddMin && n <= d.OddMax {
			return true
		}
		if n%2 == 0 && d.EvenMax > 0 && n >= d.EvenMin && n <= d.EvenMax {
			return true
		}
	}
	return false
}

func (e *Engine) toSuggestion(sc match.Scored, qCtx match.Query) Suggestion {
	postal, district := e.scorer.AdminSignals(sc.Candidate, qCtx)
	s := Suggestion{
		StreetName:     sc.StreetName,
		PostalCode:     sc.PostalCode,
		DistrictCode:   sc.DistrictCode,
		DistrictName:   sc.DistrictName,
		Confidence:     sc.Confidence,
		MatchType:      sc.Type,
		Strategy:       sc.Strategy,
		TextSimilarity: sc.TextSimilarity,
		PostalMatch:    postal,
		DistrictMatch:  district,
		DistanceM:      sc.DistanceM,
	}
	if sc.Address != nil {
		s.StreetClass = sc.Address.StreetClass
		n := sc.Address.Number
		s.Number = &n
		s.Latitude = sc.Address.Latitude
		s.Longitude = sc.Address.Longitude
	} else if sc.Street != nil {
		s.StreetClass = sc.Street.Class
	}
	return s
}

// queryCoordinates validates the optional coordinate pair. Supplying
// only one component is malformed input.
func queryCoordinates(q Query) (*float64, *float64, error) {
	if q.Latitude == nil && q.Longitude == nil {
		return nil, nil, nil
	}
	if (q.Latitude == nil) != (q.Longitude == nil) {
		return nil, nil, eris.Wrap(geo.ErrInvalidCoordinate, "latitude and longitude must be supplied together")
	}
	if err := geo.ValidateLatLon(*q.Latitude, *q.Longitude); err != nil {
		return nil, nil, err
	}
	return q.Latitude, q.Longitude, nil
}

func trimZeros(code string) string {
	i := 0
	for i < len(code)-1 && code[i] == '0' {
		i++
	}
	return code[i:]
}
