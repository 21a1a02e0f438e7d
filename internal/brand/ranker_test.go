package brand

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func rankBrands() map[string]string {
	return VariantMap([]Brand{
		{Name: "ACME", Variants: []string{"Acme Inc"}},
		{Name: "Globex"},
		{Name: "Initech"},
	})
}

func TestExtractRankingNumberedList(t *testing.T) {
	text := "Here are the best options:\n1. Acme\n2. Globex\n3. Something else\n"
	got := ExtractRanking(text, rankBrands())
	want := map[string]int{"ACME": 1, "Globex": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRankingBulletList(t *testing.T) {
	text := "- Globex: the market leader\n- Acme Inc: a solid alternative\n- Initech\n"
	got := ExtractRanking(text, rankBrands())
	want := map[string]int{"Globex": 1, "ACME": 2, "Initech": 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRankingParenthesizedNumbers(t *testing.T) {
	text := "1) Initech\n2) Globex\n"
	got := ExtractRanking(text, rankBrands())
	want := map[string]int{"Initech": 1, "Globex": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRankingMarkdownTable(t *testing.T) {
	text := `| Globex | market leader |
| Acme Inc | runner-up |
`
	got := ExtractRanking(text, rankBrands())
	want := map[string]int{"Globex": 1, "ACME": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRankingTableSeparatorRowsIgnored(t *testing.T) {
	// Separator rows are dropped; rank is the surviving row index, so a
	// header row shifts brand rows down.
	text := `| Vendor | Notes |
|--------|-------|
| Globex | leader |
`
	got := ExtractRanking(text, rankBrands())
	if got["Globex"] != 2 {
		t.Errorf("rank should be the kept row index, got %v", got)
	}
}

func TestExtractRankingFirstAppearanceFallback(t *testing.T) {
	text := "In prose, Globex is often compared to Acme, while Initech trails both."
	got := ExtractRanking(text, rankBrands())
	want := map[string]int{"Globex": 1, "ACME": 2, "Initech": 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractRankingListBeatsProse(t *testing.T) {
	// A structured list wins over earlier prose mentions.
	text := "Initech used to dominate.\n\n1. Acme\n2. Globex\n"
	got := ExtractRanking(text, rankBrands())
	if got["ACME"] != 1 || got["Globex"] != 2 {
		t.Errorf("list ranking should win over prose: %v", got)
	}
}

func TestExtractRankingNoBrands(t *testing.T) {
	got := ExtractRanking("1. Foo\n2. Bar\n", rankBrands())
	if len(got) != 0 {
		t.Errorf("expected empty ranking, got %v", got)
	}
}

func TestExtractRankingEmptyText(t *testing.T) {
	if got := ExtractRanking("", rankBrands()); len(got) != 0 {
		t.Errorf("expected empty ranking for empty text, got %v", got)
	}
}

func TestExtractRankingFirstHitWinsPerBrand(t *testing.T) {
	// Repeated brand lines don't consume a rank: ranks are dense over
	// distinct brands.
	text := "1. Acme\n2. Acme Inc\n3. Globex\n"
	got := ExtractRanking(text, rankBrands())
	if got["ACME"] != 1 {
		t.Errorf("repeated brand should keep its first rank, got %v", got)
	}
	if got["Globex"] != 2 {
		t.Errorf("ranks should be dense over distinct brands, got %v", got)
	}
}
