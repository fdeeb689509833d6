package analyzer

import (
	"sort"
	"strings"

	"github.com/dshills/cargotom-lsp/internal/manifest"
)

// Format implements spec.md §4.6's `sort_format` formatter collaborator:
// each dependency's `features = [...]` array is rewritten in
// case-insensitive alphabetical order. Entries with zero or one feature,
// entries already in order, or sortFormat false, produce no edit.
func Format(doc *manifest.Document, sortFormat bool) []Edit {
	if !sortFormat {
		return nil
	}
	var edits []Edit
	for _, entry := range manifest.Dependencies(doc) {
		if len(entry.Features) < 2 {
			continue
		}
		sorted := make([]manifest.DependencyFeature, len(entry.Features))
		copy(sorted, entry.Features)
		sort.SliceStable(sorted, func(i, j int) bool {
			return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
		})
		if featuresAlreadySorted(entry.Features, sorted) {
			continue
		}
		names := make([]string, len(sorted))
		for i, f := range sorted {
			names[i] = quoteFeature(f.Name)
		}
		replacement := "[" + strings.Join(names, ", ") + "]"
		edits = append(edits, Edit{Span: entry.FeaturesSpan, Replacement: replacement})
	}
	return edits
}

func featuresAlreadySorted(original, sorted []manifest.DependencyFeature) bool {
	for i := range original {
		if original[i].Name != sorted[i].Name {
			return false
		}
	}
	return true
}

func quoteFeature(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}
