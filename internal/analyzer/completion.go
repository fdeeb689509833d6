package analyzer

import (
	"context"
	"sort"

	"github.com/rivo/uniseg"

	"github.com/dshills/cargotom-lsp/internal/analyzer/script"
	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

// maxCompletionDetailGraphemes bounds a crate's registry description as
// shown in a completion item's detail field. Truncating by grapheme
// cluster (rather than byte or rune) avoids splitting combined characters
// in non-ASCII descriptions.
const maxCompletionDetailGraphemes = 80

func truncateDetail(s string) string {
	g := uniseg.NewGraphemes(s)
	var b []rune
	for n := 0; n < maxCompletionDetailGraphemes && g.Next(); n++ {
		b = append(b, g.Runes()...)
	}
	if !g.Next() {
		return string(b)
	}
	return string(b) + "…"
}

// Complete derives completions for the cursor, per spec.md §4.5's
// completion rules by cursor kind.
func Complete(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, graph workspace.Graph, provider registry.Provider, cfg Config) CompletionList {
	switch cur.Kind {
	case manifest.CursorKey:
		if manifest.ClassifyDependencyTable(dropLastSegment(cur.Path)) != manifest.DependencyTableNone {
			return completeDependencyName(ctx, cur, graph, provider, cfg)
		}
	case manifest.CursorStringValue:
		if isVersionValuePath(cur.Path) {
			return completeVersion(ctx, doc, cur, graph, provider, cfg)
		}
	case manifest.CursorArrayElement:
		switch {
		case isFeatureArrayPath(cur.Path):
			return completeDependencyFeatures(ctx, doc, cur, provider)
		case isFeaturesTableArrayPath(cur.Path):
			return completeFeatureTableEntry(ctx, doc, cur, provider)
		}
	case manifest.CursorInlineTableField:
		// Expanded dependency form: { version = "..." } or
		// { features = [...] }. cur.Path is already the dependency's own
		// key path here (see manifest.Locate), so no path extension needed.
		switch cur.FieldKey {
		case "version":
			return completeVersion(ctx, doc, cur, graph, provider, cfg)
		case "features":
			return completeDependencyFeatures(ctx, doc, cur, provider)
		}
	case manifest.CursorTableHeader:
		if len(cur.Path) == 0 {
			return completeSectionNames()
		}
	}
	return CompletionList{}
}

func dropLastSegment(path []string) []string {
	if len(path) == 0 {
		return path
	}
	return path[:len(path)-1]
}

func isVersionValuePath(path []string) bool {
	if len(path) == 0 {
		return false
	}
	last := path[len(path)-1]
	return last == "version" || manifest.ClassifyDependencyTable(dropLastSegment(path)) != manifest.DependencyTableNone
}

func isFeatureArrayPath(path []string) bool {
	return len(path) > 0 && path[len(path)-1] == "features"
}

// isFeaturesTableArrayPath recognizes an array element belonging to one of
// the [features] table's own entries (e.g. `default = [...]`), whose path
// is exactly ["features", <feature-name>] per the manifest parser's
// table-path + key-segment join.
func isFeaturesTableArrayPath(path []string) bool {
	return len(path) == 2 && path[0] == "features"
}

// completeDependencyName implements spec.md §4.5's dependency-key
// completion: workspace-declared names first, then a registry search for
// the typed prefix.
func completeDependencyName(ctx context.Context, cur manifest.Cursor, graph workspace.Graph, provider registry.Provider, cfg Config) CompletionList {
	prefix := ""
	if cur.Node != nil {
		prefix = cur.Node.Key()
	}

	var items []CompletionItem
	seen := map[string]bool{}

	for name := range graph.Root.InheritedDeps {
		if cfg.Script.Filter(name) {
			continue
		}
		if rank, ok := scriptedRank(cfg.Script, name, prefix); ok {
			items = append(items, CompletionItem{Label: name, InsertText: name, Detail: "workspace dependency", SortRank: rank})
			seen[name] = true
		}
	}

	incomplete := false
	if provider != nil && prefix != "" {
		results, err := provider.Search(ctx, prefix, 1, 25)
		if err != nil {
			incomplete = true
		}
		for _, r := range results {
			if seen[r.Name] || cfg.Script.Filter(r.Name) {
				continue
			}
			if rank, ok := scriptedRank(cfg.Script, r.Name, prefix); ok {
				items = append(items, CompletionItem{Label: r.Name, InsertText: r.Name, Detail: truncateDetail(r.Description), SortRank: rank})
			}
		}
	}

	sortCompletions(items)
	return CompletionList{Items: items, Incomplete: incomplete}
}

// scriptedRank prefers the user script's rank(name, query) result, when
// the script defines one and returns a match, over the built-in tiered
// ranker.
func scriptedRank(hook *script.Hook, name, query string) (int, bool) {
	if rank, ok := hook.Rank(name, query); ok {
		return rank, true
	}
	return rankName(name, query)
}

// completeVersion implements spec.md §4.5's version-field completion:
// newest-first, filtered by stable_version, with an optional leading
// "workspace = true" suggestion when the workspace declares this
// dependency.
func completeVersion(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, graph workspace.Graph, provider registry.Provider, cfg Config) CompletionList {
	depName := dependencyNameForPath(doc, cur.Path)
	if depName == "" || provider == nil {
		return CompletionList{}
	}

	var items []CompletionItem
	if _, ok := graph.Root.InheritedDeps[depName]; ok {
		valSpan := manifest.Span{}
		if cur.Node != nil {
			valSpan = cur.Node.Span
		}
		items = append(items, CompletionItem{
			Label:       "workspace = true",
			InsertText:  "{ workspace = true }",
			Detail:      "inherit from [workspace.dependencies]",
			ReplaceSpan: valSpan,
			SortRank:    -1,
		})
	}

	versions, err := provider.Versions(ctx, depName)
	if err != nil {
		return CompletionList{Items: items, Incomplete: true}
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Version.Compare(versions[j].Version) > 0 })
	rank := 0
	for _, v := range versions {
		if cfg.StableVersion && v.Version.IsPrerelease() {
			continue
		}
		items = append(items, CompletionItem{
			Label:      v.Version.String(),
			InsertText: v.Version.String(),
			Detail:     yankedDetail(v.Yanked),
			SortRank:   rank,
		})
		rank++
	}
	return CompletionList{Items: items}
}

func yankedDetail(yanked bool) string {
	if yanked {
		return "yanked"
	}
	return ""
}

// completeDependencyFeatures implements spec.md §4.5's features-array
// completion: Provider.features(name, resolved_version) minus already
// listed features.
func completeDependencyFeatures(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, provider registry.Provider) CompletionList {
	depName := dependencyNameForPath(doc, cur.Path)
	if depName == "" || provider == nil {
		return CompletionList{}
	}
	entry := findDependencyEntry(doc, cur.Path)
	req, ok := requirementOf(entry)
	if !ok {
		return CompletionList{}
	}
	versions, err := provider.Versions(ctx, depName)
	if err != nil {
		return CompletionList{Incomplete: true}
	}
	resolved, ok := semver.Latest(req, toVersionInfos(versions), semver.LatestOptions{})
	if !ok {
		return CompletionList{}
	}
	features, err := provider.Features(ctx, depName, resolved)
	if err != nil {
		return CompletionList{Incomplete: true}
	}

	existing := map[string]bool{}
	for _, f := range entry.Features {
		existing[f.Name] = true
	}

	var items []CompletionItem
	for name := range features {
		if existing[name] {
			continue
		}
		items = append(items, CompletionItem{Label: name, InsertText: name})
	}
	sortCompletionsByLabel(items)
	return CompletionList{Items: items}
}

// completeFeatureTableEntry implements spec.md §4.5's `[features]`-table
// array-element completion: other local feature names, `dep:<optional-dep>`
// to enable an optional dependency without a feature of the same name, and
// `<dep>?/<feature>` weak-dependency-feature forms for each optional
// dependency's own features.
func completeFeatureTableEntry(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, provider registry.Provider) CompletionList {
	var items []CompletionItem

	if features := doc.FindTable([]string{"features"}); features != nil {
		selfKey := ""
		if len(cur.Path) > 0 {
			selfKey = cur.Path[len(cur.Path)-1]
		}
		for _, key := range features.Children {
			name := key.Key()
			if name == "" || name == selfKey {
				continue
			}
			items = append(items, CompletionItem{Label: name, InsertText: name, Detail: "local feature"})
		}
	}

	incomplete := false
	for _, entry := range manifest.Dependencies(doc) {
		if !entry.Optional {
			continue
		}
		items = append(items, CompletionItem{
			Label:      "dep:" + entry.Name,
			InsertText: "dep:" + entry.Name,
			Detail:     "enable optional dependency",
		})

		if provider == nil {
			continue
		}
		req, ok := requirementOf(entry)
		if !ok {
			continue
		}
		versions, err := provider.Versions(ctx, entry.Name)
		if err != nil {
			incomplete = true
			continue
		}
		resolved, ok := semver.Latest(req, toVersionInfos(versions), semver.LatestOptions{})
		if !ok {
			continue
		}
		depFeatures, err := provider.Features(ctx, entry.Name, resolved)
		if err != nil {
			incomplete = true
			continue
		}
		for name := range depFeatures {
			label := entry.Name + "?/" + name
			items = append(items, CompletionItem{Label: label, InsertText: label, Detail: "weak dependency feature"})
		}
	}

	sortCompletionsByLabel(items)
	return CompletionList{Items: items, Incomplete: incomplete}
}

func toVersionInfos(versions []registry.CrateVersion) []semver.VersionInfo {
	out := make([]semver.VersionInfo, len(versions))
	for i, v := range versions {
		out[i] = semver.VersionInfo{Version: v.Version, Yanked: v.Yanked}
	}
	return out
}

// completeSectionNames implements spec.md §4.5's top-level-header
// completion from the built-in schema.
func completeSectionNames() CompletionList {
	names := []string{
		"package", "workspace", "dependencies", "dev-dependencies",
		"build-dependencies", "features", "lib", "profile.release",
		"profile.dev", "patch.crates-io",
	}
	items := make([]CompletionItem, len(names))
	for i, n := range names {
		items[i] = CompletionItem{Label: n, InsertText: n, SortRank: i}
	}
	return CompletionList{Items: items}
}

// dependencyNameForPath resolves the dependency name that owns a nested
// cursor path (e.g. a version or features field inside an expanded
// dependency table), which is the first path segment after the table
// prefix.
func dependencyNameForPath(doc *manifest.Document, path []string) string {
	entry := findDependencyEntry(doc, path)
	return entry.Name
}

func findDependencyEntry(doc *manifest.Document, path []string) manifest.DependencyEntry {
	for _, entry := range manifest.Dependencies(doc) {
		if manifest.HasPrefix(path, entry.KeyNode.Path) {
			return entry
		}
	}
	return manifest.DependencyEntry{}
}

func sortCompletions(items []CompletionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortRank != items[j].SortRank {
			return items[i].SortRank < items[j].SortRank
		}
		return items[i].Label < items[j].Label
	})
}

func sortCompletionsByLabel(items []CompletionItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}
