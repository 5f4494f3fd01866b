// Package normalize canonicalizes street-name strings for comparison.
//
// Exact and fuzzy lookups use different strictness: Normalize keeps
// every word of the name, while StripParticles additionally drops
// low-information connective particles ("DE", "LA", ...). The stripped
// form is only ever an extra fuzzy probe, never the basis of an exact
// comparison, because collapsing particles is exactly how unrelated
// names start to collide.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reWhitespaceRun = regexp.MustCompile(`\s+`)

// Normalize canonicalizes a raw street name: trim, uppercase, strip
// diacritics, collapse internal whitespace runs to a single space.
// Deterministic and total; never fails. Idempotent by construction.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(s)
	s = stripDiacritics(s)
	s = reWhitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripDiacritics removes combining marks after NFD decomposition, so
// "CHOPERA" and "CHÓPERA" compare equal. The transformer is stateful
// and built per call.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// defaultParticles are the connective fragments dropped for the loosest
// fuzzy comparison tier.
var defaultParticles = []string{"DE", "DEL", "LA", "LAS", "LOS", "EL"}

// defaultClassRules expand common abbreviations of street classes to
// their canonical callejero form.
var defaultClassRules = map[string]string{
	"C":     "CALLE",
	"C/":    "CALLE",
	"CL":    "CALLE",
	"AV":    "AVENIDA",
	"AVD":   "AVENIDA",
	"AVDA":  "AVENIDA",
	"PO":    "PASEO",
	"PSO":   "PASEO",
	"PZ":    "PLAZA",
	"PZA":   "PLAZA",
	"PLZA":  "PLAZA",
	"GTA":   "GLORIETA",
	"CTRA":  "CARRETERA",
	"CRTA":  "CARRETERA",
	"TRVA":  "TRAVESIA",
	"TRAV":  "TRAVESIA",
	"CJON":  "CALLEJON",
	"RDA":   "RONDA",
	"BULEV": "BULEVAR",
	"CMNO":  "CAMINO",
	"CNO":   "CAMINO",
}

// Normalizer applies the configurable parts of canonicalization: the
// particle set used by the loose fuzzy tier and the street-class
// abbreviation rules.
type Normalizer struct {
	particles  map[string]bool
	classRules map[string]string
	classes    map[string]bool
}

// New creates a Normalizer with the default particle set and class
// abbreviation rules.
func New() *Normalizer {
	return NewWithParticles(defaultParticles)
}

// NewWithParticles creates a Normalizer with a custom particle set.
// Particles are matched against normalized tokens.
func NewWithParticles(particles []string) *Normalizer {
	set := make(map[string]bool, len(particles))
	for _, p := range particles {
		set[Normalize(p)] = true
	}
	classes := make(map[string]bool, len(defaultClassRules))
	for _, canonical := range defaultClassRules {
		classes[canonical] = true
	}
	return &Normalizer{particles: set, classRules: defaultClassRules, classes: classes}
}

// Normalize is the strict canonical form; see the package function.
func (n *Normalizer) Normalize(raw string) string {
	return Normalize(raw)
}

// StripParticles normalizes raw and drops particle tokens. Used only as
// an additional probe for the loosest fuzzy tier. If stripping would
// remove every token the unstripped form is returned, so the result is
// never empty when the input normalizes to something non-empty.
func (n *Normalizer) StripParticles(raw string) string {
	s := Normalize(raw)
	if s == "" {
		return ""
	}
	tokens := strings.Split(s, " ")
	kept := tokens[:0]
	for _, tok := range tokens {
		if !n.particles[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return s
	}
	return strings.Join(kept, " ")
}

// NormalizeClass canonicalizes a street class ("Calle", "Pº", "AVDA."),
// expanding known abbreviations.
func (n *Normalizer) NormalizeClass(raw string) string {
	s := Normalize(raw)
	s = strings.TrimSuffix(s, ".")
	// Ordinal markers ("Pº", "GTA.ª") are not combining marks, so the
	// diacritic fold keeps them; drop them here before the rules table.
	s = strings.NewReplacer("º", "", "ª", "").Replace(s)
	if expanded, ok := n.classRules[s]; ok {
		return expanded
	}
	return s
}

// SplitClass detects a street class embedded at the front of an
// already-normalized name ("PASEO DE LA CHOPERA") and splits it off.
// Returns empty class and the input unchanged when the first token is
// not a known class or nothing would remain after the split.
func (n *Normalizer) SplitClass(normalized string) (class, rest string) {
	first, remainder, ok := strings.Cut(normalized, " ")
	if !ok || remainder == "" {
		return "", normalized
	}
	canonical := first
	if expanded, found := n.classRules[first]; found {
		canonical = expanded
	}
	if !n.classes[canonical] {
		return "", normalized
	}
	return canonical, remainder
}
