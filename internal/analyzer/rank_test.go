package analyzer

import "testing"

func TestRankTierOfOrdering(t *testing.T) {
	cases := []struct {
		candidate string
		query     string
		want      int
	}{
		{"serde", "serde", tierExact},
		{"serde_json", "serde", tierPrefix},
		{"tokio-serde", "serde", tierContains},
		{"serde", "sre", tierFuzzy},
		{"tokio", "zzz", tierNoMatch},
	}
	for _, c := range cases {
		if got := rankTierOf(c.candidate, c.query); got != c.want {
			t.Errorf("rankTierOf(%q, %q) = %d, want %d", c.candidate, c.query, got, c.want)
		}
	}
}

func TestRankTierOfEmptyQueryMatchesEverything(t *testing.T) {
	if got := rankTierOf("anything", ""); got != tierContains {
		t.Fatalf("expected empty query to be treated as tierContains, got %d", got)
	}
}

func TestNormalizeNameTreatsHyphenAndUnderscoreAsEquivalent(t *testing.T) {
	if normalizeName("serde-json") != normalizeName("serde_json") {
		t.Fatalf("expected serde-json and serde_json to normalize equal")
	}
}

func TestNormalizeNameIsCaseInsensitive(t *testing.T) {
	if normalizeName("Serde") != normalizeName("serde") {
		t.Fatalf("expected case-insensitive normalization")
	}
}

func TestRankNameOrdersExactBeforePrefixBeforeContains(t *testing.T) {
	exact, ok := rankName("serde", "serde")
	if !ok {
		t.Fatal("expected exact match to be ok")
	}
	prefix, ok := rankName("serde_json", "serde")
	if !ok {
		t.Fatal("expected prefix match to be ok")
	}
	contains, ok := rankName("tokio-serde", "serde")
	if !ok {
		t.Fatal("expected contains match to be ok")
	}
	if !(exact < prefix && prefix < contains) {
		t.Fatalf("expected exact < prefix < contains, got %d, %d, %d", exact, prefix, contains)
	}
}

func TestRankNameNoMatchReturnsFalse(t *testing.T) {
	if _, ok := rankName("tokio", "zzz-nope"); ok {
		t.Fatal("expected no match for an unrelated query")
	}
}

func TestFuzzyMatchRequiresInOrderSubsequence(t *testing.T) {
	if !fuzzyMatch("serde_json", "sjn") {
		t.Fatal("expected sjn to fuzzy-match serde_json (s, j, n in order)")
	}
	if fuzzyMatch("serde_json", "njs") {
		t.Fatal("did not expect njs (out of order) to fuzzy-match serde_json")
	}
}

func TestFuzzyMatchEmptyQueryAlwaysMatches(t *testing.T) {
	if !fuzzyMatch("anything", "") {
		t.Fatal("expected empty query to trivially fuzzy-match")
	}
}
