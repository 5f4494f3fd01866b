// Package match turns search candidates into confidence-scored,
// classified suggestions.
package match

import (
	"math"
	"sort"
)

// Scorer combines text similarity, administrative agreement and
// geographic distance into a single confidence and match type.
type Scorer struct {
	w *Weights
}

// NewScorer creates a scorer with the default weights.
func NewScorer() *Scorer {
	return NewScorerWithWeights(DefaultWeights())
}

// NewScorerWithWeights creates a scorer with custom weights.
func NewScorerWithWeights(w *Weights) *Scorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &Scorer{w: w}
}

// Score computes the confidence and match type of one candidate.
//
// Tiers, in order:
//  1. exact search hit with agreeing administrative fields → exact,
//     confidence 1.0 minus a small penalty when the known distance
//     exceeds the sanity radius (metadata can itself be wrong);
//  2. text similarity at or above the fuzzy threshold → fuzzy,
//     weighted sum of text, admin agreement and a capped
//     inverse-distance term;
//  3. proximity-only candidates → geographic, hard-capped so
//     closeness alone never reaches the valid band;
//  4. otherwise none.
func (s *Scorer) Score(c Candidate, q Query) (float64, MatchType) {
	if c.Strategy == StrategyExact && s.adminAgrees(c, q) {
		confidence := 1.0
		if c.DistanceM != nil && *c.DistanceM > s.w.SanityRadiusM {
			confidence -= s.w.ExactDistancePenalty
		}
		return confidence, TypeExact
	}

	if c.TextSimilarity >= s.w.FuzzyTextThreshold {
		confidence := s.w.TextWeight * c.TextSimilarity
		if q.PostalCode != "" && c.PostalCode == q.PostalCode {
			confidence += s.w.PostalBoost
		}
		if s.districtAgrees(c, q) {
			confidence += s.w.DistrictBoost
		}
		confidence += s.distanceBoost(c.DistanceM)
		confidence = clamp01(confidence)
		if c.LooseTextOnly && confidence > s.w.LooseTextCap {
			confidence = s.w.LooseTextCap
		}
		return confidence, TypeFuzzy
	}

	if c.Strategy == StrategyGeographic && c.DistanceM != nil {
		confidence := s.w.GeographicCap * (1 - *c.DistanceM/s.w.MaxRadiusM)
		confidence = math.Max(0, math.Min(s.w.GeographicCap, confidence))
		return confidence, TypeGeographic
	}

	return 0, TypeNone
}

// ScoreAll scores every candidate and returns them ordered best-first
// with the full tie-break rule applied.
func (s *Scorer) ScoreAll(candidates []Candidate, q Query) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		confidence, matchType := s.Score(c, q)
		scored = append(scored, Scored{Candidate: c, Confidence: confidence, Type: matchType})
	}
	SortScored(scored, q.RawStreetName)
	return scored
}

// AdminSignals reports the administrative agreement signals used in
// scoring, for inclusion in suggestion explanations.
func (s *Scorer) AdminSignals(c Candidate, q Query) (postalMatch, districtMatch bool) {
	postalMatch = q.PostalCode != "" && c.PostalCode == q.PostalCode
	districtMatch = s.districtAgrees(c, q)
	return postalMatch, districtMatch
}

// SortScored orders candidates descending by confidence; equal
// confidence prefers exact > fuzzy > geographic, then smaller
// distance, then smaller edit distance against the raw query name.
func SortScored(scored []Scored, rawQueryName string) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if da, db := distanceOrInf(a.DistanceM), distanceOrInf(b.DistanceM); da != db {
			return da < db
		}
		return Levenshtein(rawQueryName, a.StreetName) < Levenshtein(rawQueryName, b.StreetName)
	})
}

func typeRank(t MatchType) int {
	switch t {
	case TypeExact:
		return 0
	case TypeFuzzy:
		return 1
	case TypeGeographic:
		return 2
	default:
		return 3
	}
}

func distanceOrInf(d *float64) float64 {
	if d == nil {
		return math.Inf(1)
	}
	return *d
}

// adminAgrees applies the exact-tier rule: postal codes equal, or
// districts equal when the query has no postal code. A query carrying
// no administrative fields at all has nothing to disagree with.
func (s *Scorer) adminAgrees(c Candidate, q Query) bool {
	if q.PostalCode != "" {
		return c.PostalCode == q.PostalCode
	}
	if q.DistrictCode != "" || q.DistrictName != "" {
		return s.districtAgrees(c, q)
	}
	return true
}

func (s *Scorer) districtAgrees(c Candidate, q Query) bool {
	if q.DistrictCode != "" && c.DistrictCode != "" {
		return trimLeadingZeros(q.DistrictCode) == trimLeadingZeros(c.DistrictCode)
	}
	if q.DistrictName != "" && c.DistrictName != "" {
		return q.DistrictName == c.DistrictName
	}
	return false
}

func (s *Scorer) distanceBoost(d *float64) float64 {
	if d == nil || *d >= s.w.MaxRadiusM {
		return 0
	}
	return s.w.DistanceBoostMax * (1 - *d/s.w.MaxRadiusM)
}

func trimLeadingZeros(code string) string {
	i := 0
	for i < len(code)-1 && code[i] == '0' {
		i++
	}
	return code[i:]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
