package engine

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dea-madrid/address-validation/internal/normalize"
)

// parseHouseNumber extracts the leading integer of a free-form house
// number ("4", "4 B", "4-6"). Returns nil when none is present.
func parseHouseNumber(raw string) *int {
	s := strings.TrimSpace(raw)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &n
}

// parseDistrict splits a submitted district value ("2. Arganzuela",
// "02", "Arganzuela") into a numeric code and a normalized name,
// either of which may come back empty.
func parseDistrict(raw string) (code, name string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}

	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end > 0 {
		code = s[:end]
		s = s[end:]
	}

	s = strings.TrimLeft(s, ". -")
	name = normalize.Normalize(s)
	return code, name
}
