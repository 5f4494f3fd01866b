package registry

import "strings"

// trigramIndex is an inverted trigram -> street-slot postings list over
// the normalized street names of a snapshot, giving pg_trgm-style set
// similarity without touching streets that share no trigram with the
// query.
type trigramIndex struct {
	postings map[string][]int32
	sets     []map[string]bool // per slot, the street's trigram set
}

// trigramSet extracts the padded trigram set of a normalized string,
// using the same two-leading/one-trailing space padding as pg_trgm so
// word boundaries weigh in.
func trigramSet(s string) map[string]bool {
	set := make(map[string]bool)
	if s == "" {
		return set
	}
	for _, word := range strings.Fields(s) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			set[padded[i:i+3]] = true
		}
	}
	return set
}

func buildTrigramIndex(streets []StreetRecord) *trigramIndex {
	idx := &trigramIndex{
		postings: make(map[string][]int32),
		sets:     make([]map[string]bool, len(streets)),
	}
	for slot, st := range streets {
		set := trigramSet(st.NameNormalized)
		idx.sets[slot] = set
		for tg := range set {
			idx.postings[tg] = append(idx.postings[tg], int32(slot))
		}
	}
	return idx
}

// query returns the slots whose similarity against the normalized
// string is at least minSimilarity, with their scores. Order is
// unspecified; the caller sorts.
func (idx *trigramIndex) query(normalized string, minSimilarity float64) map[int32]float64 {
	qset := trigramSet(normalized)
	if len(qset) == 0 {
		return nil
	}

	shared := make(map[int32]int)
	for tg := range qset {
		for _, slot := range idx.postings[tg] {
			shared[slot]++
		}
	}

	out := make(map[int32]float64)
	for slot, common := range shared {
		union := len(qset) + len(idx.sets[slot]) - common
		if union == 0 {
			continue
		}
		sim := float64(common) / float64(union)
		if sim >= minSimilarity {
			out[slot] = sim
		}
	}
	return out
}

// Similarity computes the pg_trgm-style set similarity of two
// normalized strings. Exported for callers that need to compare a
// query against a single name without going through the index.
func Similarity(a, b string) float64 {
	sa := trigramSet(a)
	sb := trigramSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	common := 0
	for tg := range sa {
		if sb[tg] {
			common++
		}
	}
	union := len(sa) + len(sb) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}
