package brand

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/SAM252003/Nehoris/internal/logging"
)

const contextWindow = 30 // bytes of surrounding text kept on each match

// Detect finds exact and fuzzy mentions of each brand in text.
// Exact matches are whole-word, case- and diacritic-insensitive searches
// over every variant form; a brand with no exact hit falls back to fuzzy
// matching, comparing the normalized full text against each variant with a
// token-set similarity score that fires at fuzzyThreshold (0 disables the
// fuzzy fallback).
//
// The result is deduplicated by (brand, start, end, method), dropping
// matches whose span is contained in a wider match of the same brand, and
// sorted by descending score then ascending offset.
func Detect(text string, brands []Brand, fuzzyThreshold int) ([]Match, error) {
	if len(brands) == 0 {
		return nil, fmt.Errorf("brand list is empty: %w", ErrInvalidInput)
	}
	for _, b := range brands {
		if Normalize(b.Name) == "" {
			return nil, fmt.Errorf("brand canonical name is missing: %w", ErrInvalidInput)
		}
	}

	ft := foldText(text)
	var all []Match
	for _, b := range brands {
		variants := AllVariants(b.Name, b.Variants)
		exact := detectExact(text, ft, b.Name, variants)
		all = append(all, exact...)
		if len(exact) == 0 && fuzzyThreshold > 0 {
			all = append(all, detectFuzzy(text, b.Name, variants, fuzzyThreshold)...)
		}
	}

	out := dedupe(all)
	logging.Detect("detect: brands=%d matches=%d (raw=%d)", len(brands), len(out), len(all))
	return out, nil
}

// foldedText is a diacritic-folded, lowercased view of a string with a
// byte-offset map back into the original.
type foldedText struct {
	text    string
	offsets []int // offsets[i] = original byte offset of folded byte i
	origLen int
}

func foldText(s string) foldedText {
	var b strings.Builder
	offsets := make([]int, 0, len(s))
	for i, r := range s {
		low := strings.ToLower(foldDiacritics(string(r)))
		n0 := b.Len()
		b.WriteString(low)
		for j := n0; j < b.Len(); j++ {
			offsets = append(offsets, i)
		}
	}
	return foldedText{text: b.String(), offsets: offsets, origLen: len(s)}
}

// origOffset maps a folded byte offset back to the original text.
func (f foldedText) origOffset(folded int) int {
	if folded >= len(f.offsets) {
		return f.origLen
	}
	return f.offsets[folded]
}

var wordChar = regexp.MustCompile(`\w`)

func variantPattern(v string) *regexp.Regexp {
	if wordChar.MatchString(v) {
		return regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
	}
	return regexp.MustCompile(regexp.QuoteMeta(v))
}

func detectExact(text string, ft foldedText, canonical string, variants []string) []Match {
	var matches []Match
	for _, v := range variants {
		for _, loc := range variantPattern(v).FindAllStringIndex(ft.text, -1) {
			start := ft.origOffset(loc[0])
			end := ft.origOffset(loc[1])
			matches = append(matches, Match{
				Brand:       canonical,
				MatchedText: text[start:end],
				Start:       start,
				End:         end,
				Score:       100,
				Method:      MethodExact,
				Context:     contextAround(text, start, end),
			})
		}
	}
	return matches
}

func detectFuzzy(text, canonical string, variants []string, threshold int) []Match {
	ntext := Normalize(text)
	var matches []Match
	for _, v := range variants {
		score := fuzzy.TokenSetRatio(ntext, v)
		if score < threshold {
			continue
		}
		// Anchor the match at the first token's position in the
		// normalized text; offsets are approximate by construction.
		start := 0
		if fields := strings.Fields(v); len(fields) > 0 {
			if i := strings.Index(ntext, fields[0]); i >= 0 {
				start = i
			}
		}
		if start > len(text) {
			start = len(text)
		}
		end := start + len(v)
		if end > len(text) {
			end = len(text)
		}
		matches = append(matches, Match{
			Brand:       canonical,
			MatchedText: v,
			Start:       start,
			End:         end,
			Score:       score,
			Method:      MethodFuzzy,
			Context:     contextAround(text, start, end),
		})
	}
	return matches
}

func contextAround(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

type dedupeKey struct {
	brand  string
	start  int
	end    int
	method MatchMethod
}

// dedupe keeps the best match per (brand, start, end, method), drops
// matches nested inside a wider span of the same brand ("acme" inside
// "acme inc"), and returns matches sorted by descending score, then
// ascending offset, then wider spans first.
func dedupe(matches []Match) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})
	seen := make(map[dedupeKey]struct{}, len(matches))
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		key := dedupeKey{strings.ToLower(m.Brand), m.Start, m.End, m.Method}
		if _, dup := seen[key]; dup {
			continue
		}
		if nestedIn(out, m) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// nestedIn reports whether m's span sits inside an already-kept match of
// the same brand with a strictly wider span.
func nestedIn(kept []Match, m Match) bool {
	for _, k := range kept {
		if !strings.EqualFold(k.Brand, m.Brand) {
			continue
		}
		if k.Start <= m.Start && m.End <= k.End && k.End-k.Start > m.End-m.Start {
			return true
		}
	}
	return false
}
