package brand

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a string for matching: diacritics stripped,
// lowercased, outer whitespace trimmed.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(foldDiacritics(s)))
}

// foldDiacritics removes combining marks ("Crème" -> "Creme").
func foldDiacritics(s string) string {
	// The transformer is stateful, so build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// AllVariants returns the normalized matching set for a brand: the
// canonical name, every alias, and derived spacing forms of each
// (hyphen<->space, hyphen-stripped, space-stripped). Result is sorted
// and deduplicated; empty strings are dropped.
func AllVariants(name string, variants []string) []string {
	set := make(map[string]struct{})
	add := func(v string) {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	for _, v := range append([]string{name}, variants...) {
		add(Normalize(v))
	}
	for v := range set {
		add(strings.ReplaceAll(v, "-", " "))
		add(strings.ReplaceAll(v, " ", "-"))
		add(strings.ReplaceAll(v, "-", ""))
		add(strings.ReplaceAll(v, " ", ""))
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// VariantMap builds the normalized-variant -> canonical-name mapping the
// ranking extractor consumes. Later brands do not overwrite variants
// already claimed by earlier ones.
func VariantMap(brands []Brand) map[string]string {
	m := make(map[string]string)
	for _, b := range brands {
		for _, v := range AllVariants(b.Name, b.Variants) {
			if _, taken := m[v]; !taken {
				m[v] = b.Name
			}
		}
	}
	return m
}
