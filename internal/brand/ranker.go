package brand

import (
	"regexp"
	"sort"
	"strings"
)

// Ranking extraction recovers an ordered brand ranking from free-form text.
// Three strategies are tried in order, first non-empty result wins:
//  1. numbered ("1." / "1)") or bulleted lines, scanned top to bottom
//  2. markdown table rows, first cell per row, row index as rank
//  3. fallback: order of first appearance anywhere in the text
//
// Ranks are 1-based; brands never seen are absent from the result.

var (
	numberedRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletRe   = regexp.MustCompile(`^\s*[-*•–]\s+(.+)$`)
	tableRowRe = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)
	cellSplit  = regexp.MustCompile(`\s*\|\s*`)
	spaceRuns  = regexp.MustCompile(`\s+`)
	shortenRe  = regexp.MustCompile(`[,(–—-]`)
)

// ExtractRanking maps canonical brand names to their 1-based rank in text.
// variantMap maps normalized variant -> canonical name (see VariantMap).
func ExtractRanking(text string, variantMap map[string]string) map[string]int {
	lines := nonEmptyLines(text)
	variants := sortedVariants(variantMap)

	if ranks := rankFromLists(lines, variants, variantMap); len(ranks) > 0 {
		return ranks
	}
	if ranks := rankFromTable(lines, variants, variantMap); len(ranks) > 0 {
		return ranks
	}
	return rankFromFirstAppearance(text, variants, variantMap)
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// sortedVariants fixes the probe order so extraction is deterministic.
func sortedVariants(variantMap map[string]string) []string {
	vs := make([]string, 0, len(variantMap))
	for v := range variantMap {
		vs = append(vs, v)
	}
	sort.Strings(vs)
	return vs
}

func normLine(s string) string {
	return strings.TrimSpace(spaceRuns.ReplaceAllString(strings.ToLower(s), " "))
}

// shorten keeps the leading name before any comma, parenthesis or dash to
// cut trailing noise ("Acme — the popular choice" -> "acme").
func shorten(s string) string {
	if loc := shortenRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func rankFromLists(lines, variants []string, variantMap map[string]string) map[string]int {
	ranks := make(map[string]int)
	rank := 1
	for _, ln := range lines {
		m := numberedRe.FindStringSubmatch(ln)
		if m == nil {
			m = bulletRe.FindStringSubmatch(ln)
		}
		if m == nil {
			continue
		}
		content := shorten(normLine(m[1]))
		for _, v := range variants {
			canon := variantMap[v]
			if _, done := ranks[canon]; done {
				continue
			}
			if strings.Contains(content, v) {
				ranks[canon] = rank
				rank++
				break
			}
		}
	}
	return ranks
}

func rankFromTable(lines, variants []string, variantMap map[string]string) map[string]int {
	var rows [][]string
	for _, ln := range lines {
		m := tableRowRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		cells := cellSplit.Split(strings.TrimSpace(m[1]), -1)
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	if len(rows) < 2 {
		return nil
	}

	// Drop the |---|:---| separator rows.
	kept := rows[:0]
	for _, r := range rows {
		if !isSeparatorRow(r) {
			kept = append(kept, r)
		}
	}

	ranks := make(map[string]int)
	for i, r := range kept {
		head := shorten(normLine(r[0]))
		for _, v := range variants {
			canon := variantMap[v]
			if _, done := ranks[canon]; done {
				continue
			}
			if strings.Contains(head, v) {
				ranks[canon] = i + 1
				break
			}
		}
	}
	return ranks
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

func rankFromFirstAppearance(text string, variants []string, variantMap map[string]string) map[string]int {
	low := strings.ToLower(text)

	type hit struct {
		canon string
		pos   int
	}
	first := make(map[string]int)
	for _, v := range variants {
		idx := strings.Index(low, v)
		if idx < 0 {
			continue
		}
		if prev, seen := first[variantMap[v]]; !seen || idx < prev {
			first[variantMap[v]] = idx
		}
	}

	hits := make([]hit, 0, len(first))
	for canon, pos := range first {
		hits = append(hits, hit{canon, pos})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].canon < hits[j].canon
	})

	ranks := make(map[string]int, len(hits))
	for i, h := range hits {
		ranks[h.canon] = i + 1
	}
	return ranks
}
