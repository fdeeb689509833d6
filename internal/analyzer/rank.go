package analyzer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// rankTier orders completion matches per spec.md §4.5: exact prefix >
// contains > fuzzy, with `-`/`_` treated as equivalent for matching but
// preserved in insert text.
const (
	tierExact = iota
	tierPrefix
	tierContains
	tierFuzzy
	tierNoMatch
)

var foldCaser = cases.Fold()

// normalizeName case-folds (Unicode-aware, via golang.org/x/text/cases
// rather than strings.ToLower, since crate names may embed non-ASCII in
// their description text even though names themselves are ASCII) and
// collapses `-`/`_` to a single separator for matching purposes.
func normalizeName(s string) string {
	folded := foldCaser.String(s)
	return strings.NewReplacer("-", "_").Replace(folded)
}

// rankTierOf classifies how query matches candidate, normalizing both with
// normalizeName first.
func rankTierOf(candidate, query string) int {
	if query == "" {
		return tierContains
	}
	nc, nq := normalizeName(candidate), normalizeName(query)
	switch {
	case nc == nq:
		return tierExact
	case strings.HasPrefix(nc, nq):
		return tierPrefix
	case strings.Contains(nc, nq):
		return tierContains
	case fuzzyMatch(nc, nq):
		return tierFuzzy
	default:
		return tierNoMatch
	}
}

// fuzzyMatch reports whether every rune of query appears in candidate in
// order (a standard subsequence fuzzy match), even if not contiguous.
func fuzzyMatch(candidate, query string) bool {
	qi := 0
	qr := []rune(query)
	if len(qr) == 0 {
		return true
	}
	for _, r := range candidate {
		if r == qr[qi] {
			qi++
			if qi == len(qr) {
				return true
			}
		}
	}
	return false
}

// rankName scores candidate against query for use as CompletionItem.SortRank
// (lower is better), or returns ok=false if it doesn't match at all.
func rankName(candidate, query string) (rank int, ok bool) {
	tier := rankTierOf(candidate, query)
	if tier == tierNoMatch {
		return 0, false
	}
	return tier*1000 + len(candidate), true
}

// defaultLanguage is the undetermined language tag, the natural argument
// to WithLocale when no locale is known.
var defaultLanguage = language.Und

// WithLocale returns a Unicode case folder with final-sigma handling. The
// tag is not consulted: folding is the same for every locale, so
// locale-specific rules such as Turkish dotless-i are not applied.
func WithLocale(tag language.Tag) func(string) string {
	c := cases.Fold(cases.HandleFinalSigma(true))
	_ = tag
	return c.String
}
