package brand

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  ACME  ", "acme"},
		{"Crème Brûlée", "creme brulee"},
		{"Café-Noir", "cafe-noir"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAllVariantsDerivedForms(t *testing.T) {
	got := AllVariants("Coca-Cola", nil)
	want := map[string]bool{
		"coca-cola": true,
		"coca cola": true,
		"cocacola":  true,
	}
	for v := range want {
		found := false
		for _, g := range got {
			if g == v {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("AllVariants missing derived form %q, got %v", v, got)
		}
	}
}

func TestAllVariantsDeduplicated(t *testing.T) {
	got := AllVariants("ACME", []string{"acme", "Acme", "ACME"})
	seen := make(map[string]bool)
	for _, v := range got {
		if seen[v] {
			t.Errorf("duplicate variant %q in %v", v, got)
		}
		seen[v] = true
	}
}

func TestVariantMapFirstClaimWins(t *testing.T) {
	m := VariantMap([]Brand{
		{Name: "ACME", Variants: []string{"shared"}},
		{Name: "Globex", Variants: []string{"shared"}},
	})
	if m["shared"] != "ACME" {
		t.Errorf("earlier brand should keep shared variant, got %q", m["shared"])
	}
	if m["globex"] != "Globex" {
		t.Errorf("canonical variant should map to itself, got %q", m["globex"])
	}
}
