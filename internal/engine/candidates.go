package engine

import (
	"fmt"

	"github.com/dea-madrid/address-validation/internal/geo"
	"github.com/dea-madrid/address-validation/internal/match"
	"github.com/dea-madrid/address-validation/internal/normalize"
	"github.com/dea-madrid/address-validation/internal/registry"
)

// candidateSet unions the candidates of all strategies, deduplicating
// by registry entry. When strategies overlap on the same address the
// stronger strategy, the higher text similarity and the exact distance
// win.
type candidateSet struct {
	byKey map[string]*match.Candidate
	order []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byKey: make(map[string]*match.Candidate)}
}

func stratRank(s match.Strategy) int {
	switch s {
	case match.StrategyExact:
		return 0
	case match.StrategyFuzzy:
		return 1
	default:
		return 2
	}
}

func (cs *candidateSet) addAddress(a *registry.AddressRecord, strat match.Strategy, sim float64, looseOnly bool, qLat, qLon *float64) {
	key := fmt.Sprintf("a:%d", a.ID)
	if existing, ok := cs.byKey[key]; ok {
		mergeSignals(existing, strat, sim, looseOnly)
		return
	}

	c := &match.Candidate{
		Address:        a,
		StreetName:     a.StreetName,
		PostalCode:     a.PostalCode,
		DistrictCode:   a.DistrictCode,
		DistrictName:   normalize.Normalize(a.DistrictName),
		TextSimilarity: sim,
		LooseTextOnly:  looseOnly,
		Strategy:       strat,
	}
	if qLat != nil && qLon != nil && a.HasCoordinates() {
		if d, err := geo.DistanceMeters(*qLat, *qLon, *a.Latitude, *a.Longitude); err == nil {
			c.DistanceM = &d
		}
	}
	cs.byKey[key] = c
	cs.order = append(cs.order, key)
}

func (cs *candidateSet) addStreet(st *registry.StreetRecord, districts []registry.StreetDistrictRecord, strat match.Strategy, sim float64, looseOnly bool) {
	key := fmt.Sprintf("s:%d", st.ID)
	if existing, ok := cs.byKey[key]; ok {
		mergeSignals(existing, strat, sim, looseOnly)
		return
	}

	c := &match.Candidate{
		Street:         st,
		StreetName:     st.Name,
		TextSimilarity: sim,
		LooseTextOnly:  looseOnly,
		Strategy:       strat,
	}
	if len(districts) > 0 {
		c.DistrictCode = districts[0].DistrictCode
		c.DistrictName = normalize.Normalize(districts[0].DistrictName)
	}
	cs.byKey[key] = c
	cs.order = append(cs.order, key)
}

func (cs *candidateSet) addNearby(a *registry.AddressRecord, sim float64, distanceM float64) {
	key := fmt.Sprintf("a:%d", a.ID)
	if existing, ok := cs.byKey[key]; ok {
		d := distanceM
		existing.DistanceM = &d
		if sim > existing.TextSimilarity {
			existing.TextSimilarity = sim
		}
		return
	}

	d := distanceM
	cs.byKey[key] = &match.Candidate{
		Address:        a,
		StreetName:     a.StreetName,
		PostalCode:     a.PostalCode,
		DistrictCode:   a.DistrictCode,
		DistrictName:   normalize.Normalize(a.DistrictName),
		TextSimilarity: sim,
		DistanceM:      &d,
		Strategy:       match.StrategyGeographic,
	}
	cs.order = append(cs.order, key)
}

// mergeSignals folds a repeated sighting of the same entry into the
// existing candidate.
func mergeSignals(c *match.Candidate, strat match.Strategy, sim float64, looseOnly bool) {
	if stratRank(strat) < stratRank(c.Strategy) {
		c.Strategy = strat
	}
	if sim > c.TextSimilarity {
		c.TextSimilarity = sim
		c.LooseTextOnly = looseOnly
	}
}

func (cs *candidateSet) list() []match.Candidate {
	out := make([]match.Candidate, 0, len(cs.order))
	for _, key := range cs.order {
		out = append(out, *cs.byKey[key])
	}
	return out
}
