package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
)

// Hover derives hover content for the cursor, per spec.md §4.5's hover
// rules.
func Hover(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, provider registry.Provider, cfg Config) (HoverContent, bool) {
	switch cur.Kind {
	case manifest.CursorKey:
		if manifest.ClassifyDependencyTable(dropLastSegment(cur.Path)) != manifest.DependencyTableNone {
			return hoverCrateName(ctx, provider, cur.Node.Key(), cur.Node.Span)
		}
	case manifest.CursorStringValue:
		if isVersionValuePath(cur.Path) {
			return hoverVersions(ctx, doc, cur, provider)
		}
		if isFeatureArrayPath(cur.Path) {
			return hoverFeature(ctx, doc, cur, provider, cfg)
		}
	case manifest.CursorInlineTableField:
		switch cur.FieldKey {
		case "version":
			return hoverVersions(ctx, doc, cur, provider)
		case "features":
			return hoverFeature(ctx, doc, cur, provider, cfg)
		}
	}
	return HoverContent{}, false
}

func hoverCrateName(ctx context.Context, provider registry.Provider, name string, span manifest.Span) (HoverContent, bool) {
	if provider == nil {
		return HoverContent{}, false
	}
	rec, err := provider.Lookup(ctx, name)
	if err != nil {
		return HoverContent{}, false
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n%s\n", rec.Name, rec.Description)
	if latest, ok := rec.MaxStableVersion(); ok {
		fmt.Fprintf(&b, "\nLatest: `%s`\n", latest.String())
	}
	return HoverContent{Markdown: b.String(), Span: span}, true
}

// hoverVersions implements spec.md §4.5's version-string hover: a compact
// table of available versions, highlighting the currently-matched one.
func hoverVersions(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, provider registry.Provider) (HoverContent, bool) {
	entry := findDependencyEntry(doc, cur.Path)
	if entry.Name == "" || provider == nil {
		return HoverContent{}, false
	}
	req, hasReq := requirementOf(entry)

	versions, err := provider.Versions(ctx, entry.Name)
	if err != nil {
		return HoverContent{}, false
	}

	var matched semver.Version
	hasMatch := false
	if hasReq {
		matched, hasMatch = semver.Latest(req, toVersionInfos(versions), semver.LatestOptions{})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "| version | status |\n|---|---|\n")
	for _, v := range versions {
		marker := ""
		if hasMatch && v.Version.Compare(matched) == 0 {
			marker = " (matches)"
		}
		yanked := ""
		if v.Yanked {
			yanked = " yanked"
		}
		fmt.Fprintf(&b, "| `%s` | %s%s |\n", v.Version.String(), marker, yanked)
	}

	span := manifest.Span{}
	if cur.Node != nil {
		span = cur.Node.Span
	}
	return HoverContent{Markdown: b.String(), Span: span}, true
}

// hoverFeature implements spec.md §4.5's feature-string hover: features
// enabled transitively, or "(unknown)" if unresolved, per
// FeatureDisplayMode.
func hoverFeature(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, provider registry.Provider, cfg Config) (HoverContent, bool) {
	entry := findDependencyEntry(doc, cur.Path)
	if entry.Name == "" || provider == nil {
		return HoverContent{}, false
	}
	req, hasReq := requirementOf(entry)
	if !hasReq {
		return HoverContent{Markdown: "(unknown)"}, true
	}

	versions, err := provider.Versions(ctx, entry.Name)
	if err != nil {
		return HoverContent{Markdown: "(unknown)"}, true
	}
	resolved, ok := semver.Latest(req, toVersionInfos(versions), semver.LatestOptions{})
	if !ok {
		return HoverContent{Markdown: "(unknown)"}, true
	}
	features, err := provider.Features(ctx, entry.Name, resolved)
	if err != nil {
		return HoverContent{Markdown: "(unknown)"}, true
	}

	var names []string
	switch cfg.FeatureDisplayMode {
	case FeatureDisplayUnusedOpt:
		specified := map[string]bool{}
		for _, f := range entry.Features {
			specified[f.Name] = true
		}
		for name := range features {
			if !specified[name] {
				names = append(names, name)
			}
		}
	default:
		for name := range features {
			names = append(names, name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** features (%s):\n\n", entry.Name, resolved.String())
	for _, n := range names {
		fmt.Fprintf(&b, "- `%s`\n", n)
	}

	span := manifest.Span{}
	if cur.Node != nil {
		span = cur.Node.Span
	}
	return HoverContent{Markdown: b.String(), Span: span}, true
}
