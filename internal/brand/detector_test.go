package brand

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectExactWholeWord(t *testing.T) {
	text := "I recommend ACME for small teams. Acmeish tools are different."
	matches, err := Detect(text, []Brand{{Name: "ACME"}}, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	m := matches[0]
	if m.MatchedText != "ACME" || m.Start != 12 || m.End != 16 {
		t.Errorf("unexpected match position: %+v", m)
	}
	if m.Score != 100 || m.Method != MethodExact {
		t.Errorf("exact match should score 100: %+v", m)
	}
}

func TestDetectVariantsAndCase(t *testing.T) {
	brands := []Brand{{Name: "ACME", Variants: []string{"Acme Inc"}}}
	text := "Many teams pick acme inc over the rest."
	matches, err := Detect(text, brands, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected variant match, got none")
	}
	for _, m := range matches {
		if m.Brand != "ACME" {
			t.Errorf("variant match should report canonical name, got %q", m.Brand)
		}
		if m.Score != 100 {
			t.Errorf("exact variant match should score 100, got %d", m.Score)
		}
	}
}

func TestDetectNestedVariantSpans(t *testing.T) {
	brands := []Brand{{Name: "ACME", Variants: []string{"Acme Inc"}}}
	matches, err := Detect("I liked Acme Inc's service", brands, 80)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d: %+v", len(matches), matches)
	}
	m := matches[0]
	if m.Brand != "ACME" || m.Method != MethodExact || m.Score != 100 {
		t.Errorf("unexpected match: %+v", m)
	}
	if m.MatchedText != "Acme Inc" {
		t.Errorf("widest variant span should win, got %q", m.MatchedText)
	}
}

func TestDetectFuzzyIsFallbackOnly(t *testing.T) {
	// With an exact hit present, no fuzzy match is produced even though the
	// single-token variant would score 100 on token-set similarity.
	matches, err := Detect("ACME is fine", []Brand{{Name: "ACME"}}, 80)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	for _, m := range matches {
		if m.Method == MethodFuzzy {
			t.Errorf("fuzzy should not fire when exact matched: %+v", m)
		}
	}
}

func TestDetectDiacriticInsensitive(t *testing.T) {
	brands := []Brand{{Name: "Café Noir"}}
	text := "Visit Cafe Noir downtown."
	matches, err := Detect(text, brands, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].MatchedText != "Cafe Noir" {
		t.Errorf("matched text should come from the original string, got %q", matches[0].MatchedText)
	}
}

func TestDetectOffsetsWithDiacriticsInText(t *testing.T) {
	// The é before the mention must not shift reported offsets.
	text := "Présenté: ACME wins."
	matches, err := Detect(text, []Brand{{Name: "ACME"}}, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	m := matches[0]
	if text[m.Start:m.End] != "ACME" {
		t.Errorf("offsets %d..%d point at %q, want ACME", m.Start, m.End, text[m.Start:m.End])
	}
}

func TestDetectFuzzy(t *testing.T) {
	brands := []Brand{{Name: "Globex Corporation"}}
	text := "Globex Corporaton" // typo, no exact hit
	matches, err := Detect(text, brands, 70)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	var fuzzyMatch *Match
	for i := range matches {
		if matches[i].Method == MethodFuzzy {
			fuzzyMatch = &matches[i]
			break
		}
	}
	if fuzzyMatch == nil {
		t.Fatalf("expected a fuzzy match, got %+v", matches)
	}
	if fuzzyMatch.Score < 70 || fuzzyMatch.Score > 100 {
		t.Errorf("fuzzy score %d outside threshold range", fuzzyMatch.Score)
	}
	if fuzzyMatch.Start < 0 || fuzzyMatch.End > len(text) {
		t.Errorf("fuzzy offsets out of bounds: %d..%d", fuzzyMatch.Start, fuzzyMatch.End)
	}
}

func TestDetectFuzzyDisabled(t *testing.T) {
	brands := []Brand{{Name: "Globex Corporation"}}
	matches, err := Detect("globex corp is fine", brands, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	for _, m := range matches {
		if m.Method == MethodFuzzy {
			t.Errorf("fuzzy detection should be disabled at threshold 0: %+v", m)
		}
	}
}

func TestDetectNoDuplicateKeys(t *testing.T) {
	// "Acme" appears both as canonical-derived variant and explicit variant;
	// the same span must be reported once per method.
	brands := []Brand{{Name: "ACME", Variants: []string{"acme", "Acme"}}}
	text := "Acme is solid. Acme delivers."
	matches, err := Detect(text, brands, 80)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	type key struct {
		brand  string
		start  int
		end    int
		method MatchMethod
	}
	seen := make(map[key]bool)
	for _, m := range matches {
		k := key{strings.ToLower(m.Brand), m.Start, m.End, m.Method}
		if seen[k] {
			t.Errorf("duplicate (brand,start,end,method) tuple: %+v", m)
		}
		seen[k] = true
	}
}

func TestDetectSortOrder(t *testing.T) {
	brands := []Brand{{Name: "ACME"}, {Name: "Globex"}}
	matches, err := Detect("Globex then ACME then Globex again", brands, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	for i := 1; i < len(matches); i++ {
		prev, cur := matches[i-1], matches[i]
		if prev.Score < cur.Score {
			t.Errorf("matches not sorted by descending score at %d", i)
		}
		if prev.Score == cur.Score && prev.Start > cur.Start {
			t.Errorf("equal-score matches not sorted by offset at %d", i)
		}
	}
}

func TestDetectEmptyText(t *testing.T) {
	matches, err := Detect("", []Brand{{Name: "ACME"}}, 85)
	if err != nil {
		t.Fatalf("empty text should not error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches in empty text, got %+v", matches)
	}
}

func TestDetectInvalidInput(t *testing.T) {
	if _, err := Detect("text", nil, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty brand list should return ErrInvalidInput, got %v", err)
	}
	if _, err := Detect("text", []Brand{{Name: "  "}}, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank canonical name should return ErrInvalidInput, got %v", err)
	}
}

func TestDetectContextWindow(t *testing.T) {
	text := strings.Repeat("a", 100) + " ACME " + strings.Repeat("b", 100)
	matches, err := Detect(text, []Brand{{Name: "ACME"}}, 0)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	ctx := matches[0].Context
	if !strings.Contains(ctx, "ACME") {
		t.Errorf("context should contain the match, got %q", ctx)
	}
	if len(ctx) > len("ACME")+2*contextWindow {
		t.Errorf("context longer than window: %d bytes", len(ctx))
	}
}
