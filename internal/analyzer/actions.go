package analyzer

import (
	"context"
	"fmt"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

// Actions derives the code actions available at the cursor, per spec.md
// §4.5: Open Docs/crates.io/Source/Homepage, Make Workspace dependency,
// Expand/Collapse, Upgrade, Toggle optional, and Update All.
func Actions(ctx context.Context, doc *manifest.Document, cur manifest.Cursor, graph workspace.Graph, provider registry.Provider) []CodeAction {
	entry := findDependencyEntry(doc, cur.Path)
	if entry.Name == "" {
		return nil
	}

	var out []CodeAction
	out = append(out, linkActions(ctx, entry, provider)...)
	out = append(out, expandCollapseAction(entry))
	if _, ok := graph.Root.InheritedDeps[entry.Name]; ok && !entry.WorkspaceInherited {
		out = append(out, makeWorkspaceDependencyAction(entry))
	}
	out = append(out, toggleOptionalAction(entry))
	if action, ok := upgradeAction(ctx, entry, provider); ok {
		out = append(out, action)
	}
	out = append(out, CodeAction{Title: "Update all dependencies", Command: "cargo-tom.updateAll"})
	return out
}

func linkActions(ctx context.Context, entry manifest.DependencyEntry, provider registry.Provider) []CodeAction {
	if provider == nil {
		return nil
	}
	rec, err := provider.Lookup(ctx, entry.Name)
	if err != nil {
		return nil
	}
	var out []CodeAction
	out = append(out, CodeAction{Title: "Open crates.io", Command: "cargo-tom.openUrl", CommandArgs: []string{fmt.Sprintf("https://crates.io/crates/%s", entry.Name)}})
	if rec.Documentation != "" {
		out = append(out, CodeAction{Title: "Open docs.rs", Command: "cargo-tom.openUrl", CommandArgs: []string{rec.Documentation}})
	}
	if rec.Repository != "" {
		out = append(out, CodeAction{Title: "Open source repository", Command: "cargo-tom.openUrl", CommandArgs: []string{rec.Repository}})
	}
	if rec.Homepage != "" {
		out = append(out, CodeAction{Title: "Open homepage", Command: "cargo-tom.openUrl", CommandArgs: []string{rec.Homepage}})
	}
	return out
}

// expandCollapseAction toggles between the shorthand `name = "req"` and
// expanded `name = { version = "req" }` forms.
func expandCollapseAction(entry manifest.DependencyEntry) CodeAction {
	val := entry.KeyNode.Value()
	if val != nil && val.Kind == manifest.KindInlineTable {
		req := entry.Origin.Requirement
		return CodeAction{
			Title: "Collapse to shorthand form",
			Edits: []Edit{{Span: val.Span, Replacement: fmt.Sprintf("%q", req)}},
		}
	}
	req := ""
	if val != nil {
		req = val.StringValue()
	}
	span := entry.NameSpan
	if val != nil {
		span = val.Span
	}
	return CodeAction{
		Title: "Expand to inline table form",
		Edits: []Edit{{Span: span, Replacement: fmt.Sprintf("{ version = %q }", req)}},
	}
}

// makeWorkspaceDependencyAction rewrites a dependency to `workspace =
// true`, when the workspace already declares one by this name.
func makeWorkspaceDependencyAction(entry manifest.DependencyEntry) CodeAction {
	val := entry.KeyNode.Value()
	span := entry.NameSpan
	if val != nil {
		span = val.Span
	}
	return CodeAction{
		Title: "Make workspace dependency",
		Edits: []Edit{{Span: span, Replacement: "{ workspace = true }"}},
	}
}

// toggleOptionalAction flips `optional = true/false`, inserting the field
// into an expanded table when absent, or expanding a shorthand entry to
// add it.
func toggleOptionalAction(entry manifest.DependencyEntry) CodeAction {
	if entry.OptionalSpan != (manifest.Span{}) {
		title := "Mark optional"
		replacement := "optional = true"
		if entry.Optional {
			title = "Unmark optional"
			replacement = "optional = false"
		}
		return CodeAction{Title: title, Edits: []Edit{{Span: entry.OptionalSpan, Replacement: replacement}}}
	}

	val := entry.KeyNode.Value()
	if val != nil && val.Kind == manifest.KindInlineTable {
		return CodeAction{
			Title: "Mark optional",
			Edits: []Edit{{Span: manifest.Span{Start: val.Span.End, End: val.Span.End - 1}, Replacement: ", optional = true "}},
		}
	}
	req := ""
	span := entry.NameSpan
	if val != nil {
		req = val.StringValue()
		span = val.Span
	}
	return CodeAction{
		Title: "Mark optional",
		Edits: []Edit{{Span: span, Replacement: fmt.Sprintf("{ version = %q, optional = true }", req)}},
	}
}

// upgradeAction implements spec.md §4.5's "Upgrade" action: rewrite the
// requirement string to the newest stable version's text, preserving the
// requirement's operator style (semver.Bump). No action is offered when
// the rewrite would leave the requirement text unchanged.
func upgradeAction(ctx context.Context, entry manifest.DependencyEntry, provider registry.Provider) (CodeAction, bool) {
	if provider == nil {
		return CodeAction{}, false
	}
	req, hasReq := requirementOf(entry)
	if !hasReq {
		return CodeAction{}, false
	}
	rec, err := provider.Lookup(ctx, entry.Name)
	if err != nil {
		return CodeAction{}, false
	}
	newest, ok := rec.MaxStableVersion()
	if !ok {
		return CodeAction{}, false
	}
	rewritten := semver.Bump(req, newest)
	if rewritten == entry.Origin.Requirement {
		return CodeAction{}, false
	}
	return CodeAction{
		Title: fmt.Sprintf("Upgrade to %s", newest.String()),
		Edits: []Edit{{Span: entry.Origin.Span, Replacement: fmt.Sprintf("%q", rewritten)}},
	}, true
}
