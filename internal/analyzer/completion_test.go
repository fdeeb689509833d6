package analyzer

import (
	"context"
	"testing"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

func TestTruncateDetailLeavesShortStringsUntouched(t *testing.T) {
	got := truncateDetail("a small serialization framework")
	if got != "a small serialization framework" {
		t.Fatalf("expected the string unchanged, got %q", got)
	}
}

func TestTruncateDetailTruncatesLongStringsWithEllipsis(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	got := truncateDetail(long)
	if len([]rune(got)) != maxCompletionDetailGraphemes+1 {
		t.Fatalf("expected %d runes plus an ellipsis, got %d: %q", maxCompletionDetailGraphemes, len([]rune(got)), got)
	}
	if got[len(got)-len("…"):] != "…" {
		t.Fatalf("expected the result to end with an ellipsis, got %q", got)
	}
}

func TestTruncateDetailHandlesMultibyteDescriptions(t *testing.T) {
	got := truncateDetail("café au lait crate wrapper")
	if got != "café au lait crate wrapper" {
		t.Fatalf("expected multi-byte content preserved when under the limit, got %q", got)
	}
}

func TestCompleteVersionNewestFirst(t *testing.T) {
	src := "[dependencies]\nserde = \"1.\"\n"
	doc := manifest.Parse(src)
	offset := len("[dependencies]\nserde = \"1.")
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorStringValue {
		t.Fatalf("expected CursorStringValue, got %v", cur.Kind)
	}

	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{
		Name: "serde",
		Versions: []registry.CrateVersion{
			{Version: mustVersion(t, "1.0.0")},
			{Version: mustVersion(t, "1.2.0")},
			{Version: mustVersion(t, "1.1.0")},
		},
	}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, p, DefaultConfig())
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(list.Items), list.Items)
	}
	if list.Items[0].Label != "1.2.0" {
		t.Fatalf("expected newest first, got %q", list.Items[0].Label)
	}
}

func TestCompleteVersionOffersWorkspaceInherit(t *testing.T) {
	src := "[dependencies]\nserde = \"\"\n"
	doc := manifest.Parse(src)
	offset := len("[dependencies]\nserde = \"")
	cur := manifest.Locate(doc, offset)

	graph := workspace.Graph{Root: workspace.Node{InheritedDeps: map[string]manifest.Origin{
		"serde": {Kind: manifest.OriginVersion, Requirement: "1.0"},
	}}}

	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: mustVersion(t, "1.0.0")}}}

	list := Complete(context.Background(), doc, cur, graph, p, DefaultConfig())
	found := false
	for _, item := range list.Items {
		if item.Label == "workspace = true" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a workspace = true suggestion, got %+v", list.Items)
	}
}

func TestCompleteVersionInsideInlineTableField(t *testing.T) {
	src := `[dependencies]
serde = { version = "1." }
`
	doc := manifest.Parse(src)
	offset := len(`[dependencies]
serde = { version = "1.`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorInlineTableField {
		t.Fatalf("expected CursorInlineTableField, got %v", cur.Kind)
	}

	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: mustVersion(t, "1.5.0")}}}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, p, DefaultConfig())
	if len(list.Items) != 1 || list.Items[0].Label != "1.5.0" {
		t.Fatalf("expected version completion via inline-table dispatch, got %+v", list.Items)
	}
}

func TestCompleteDependencyFeaturesExcludesExisting(t *testing.T) {
	src := `[dependencies]
serde = { version = "1.0", features = ["derive"] }
`
	doc := manifest.Parse(src)
	// A cursor anywhere inside an inline table's features array resolves to
	// CursorInlineTableField (spec.md's inline-table cursor policy), not
	// CursorArrayElement — element-level granularity only applies to a
	// features array that is itself a direct table key (see
	// TestCompleteDependencyFeaturesShorthandForm below).
	offset := len(`[dependencies]
serde = { version = "1.0", features = ["derive`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorInlineTableField || cur.FieldKey != "features" {
		t.Fatalf("expected CursorInlineTableField/features, got %v %q", cur.Kind, cur.FieldKey)
	}

	p := newFakeProvider()
	v := mustVersion(t, "1.0.0")
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: v}}}
	p.features["serde@1.0.0"] = map[string][]string{"derive": nil, "rc": nil, "std": nil}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, p, DefaultConfig())
	for _, item := range list.Items {
		if item.Label == "derive" {
			t.Fatalf("expected derive to be excluded (already present), got %+v", list.Items)
		}
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 remaining features, got %+v", list.Items)
	}
}

func TestCompleteDependencyFeaturesShorthandForm(t *testing.T) {
	src := `[dependencies.serde]
version = "1.0"
features = ["derive"]
`
	doc := manifest.Parse(src)
	offset := len(`[dependencies.serde]
version = "1.0"
features = ["derive`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorArrayElement {
		t.Fatalf("expected CursorArrayElement, got %v", cur.Kind)
	}

	p := newFakeProvider()
	v := mustVersion(t, "1.0.0")
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: v}}}
	p.features["serde@1.0.0"] = map[string][]string{"derive": nil, "rc": nil}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, p, DefaultConfig())
	for _, item := range list.Items {
		if item.Label == "derive" {
			t.Fatalf("expected derive to be excluded (already present), got %+v", list.Items)
		}
	}
	if len(list.Items) != 1 || list.Items[0].Label != "rc" {
		t.Fatalf("expected only rc, got %+v", list.Items)
	}
}

func TestCompleteFeaturesTableArrayElementSuggestsLocalAndDepForms(t *testing.T) {
	src := `[dependencies]
serde = { version = "1.0", optional = true }

[features]
default = ["a"]
extra = ["b"]
`
	doc := manifest.Parse(src)
	offset := len(`[dependencies]
serde = { version = "1.0", optional = true }

[features]
default = ["a`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorArrayElement {
		t.Fatalf("expected CursorArrayElement, got %v", cur.Kind)
	}

	p := newFakeProvider()
	v := mustVersion(t, "1.0.0")
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: v}}}
	p.features["serde@1.0.0"] = map[string][]string{"derive": nil}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, p, DefaultConfig())

	labels := map[string]bool{}
	for _, item := range list.Items {
		labels[item.Label] = true
	}
	if !labels["extra"] {
		t.Errorf("expected the other local feature %q to be suggested, got %+v", "extra", list.Items)
	}
	if labels["default"] {
		t.Errorf("expected the feature being edited to be excluded from its own suggestions, got %+v", list.Items)
	}
	if !labels["dep:serde"] {
		t.Errorf("expected dep:serde to be suggested for the optional dependency, got %+v", list.Items)
	}
	if !labels["serde?/derive"] {
		t.Errorf("expected serde?/derive weak-dependency-feature form, got %+v", list.Items)
	}
}

func TestCompleteFeaturesTableArrayElementWithNoProviderStillOffersLocalAndDepForms(t *testing.T) {
	src := `[dependencies]
serde = { version = "1.0", optional = true }

[features]
default = ["a"]
`
	doc := manifest.Parse(src)
	offset := len(`[dependencies]
serde = { version = "1.0", optional = true }

[features]
default = ["a`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorArrayElement {
		t.Fatalf("expected CursorArrayElement, got %v", cur.Kind)
	}

	list := Complete(context.Background(), doc, cur, workspace.Graph{}, nil, DefaultConfig())
	found := false
	for _, item := range list.Items {
		if item.Label == "dep:serde" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected dep:serde even with a nil provider, got %+v", list.Items)
	}
}

func TestCompleteDependencyNameRanksWorkspaceFirst(t *testing.T) {
	src := "[dependencies]\nser\n"
	doc := manifest.Parse(src)
	offset := len("[dependencies]\nser")
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorKey {
		t.Fatalf("expected CursorKey, got %v", cur.Kind)
	}

	graph := workspace.Graph{Root: workspace.Node{InheritedDeps: map[string]manifest.Origin{
		"serde": {Kind: manifest.OriginVersion, Requirement: "1.0"},
	}}}
	p := newFakeProvider()
	p.search = []registry.SearchResult{{Name: "serde_json", Description: "json"}}

	list := Complete(context.Background(), doc, cur, graph, p, DefaultConfig())
	if len(list.Items) == 0 || list.Items[0].Label != "serde" {
		t.Fatalf("expected serde (exact prefix, workspace) to rank first, got %+v", list.Items)
	}
}

func TestCompleteSectionNamesAtTopLevel(t *testing.T) {
	list := completeSectionNames()
	if len(list.Items) == 0 {
		t.Fatal("expected top-level section-name completions")
	}
	if list.Items[0].Label != "package" {
		t.Fatalf("expected package to sort first, got %q", list.Items[0].Label)
	}
}

func TestCompleteDispatchesTableHeaderToSectionNames(t *testing.T) {
	doc := manifest.Parse("[package]\n")
	cur := manifest.Cursor{Kind: manifest.CursorTableHeader, Path: nil}
	list := Complete(context.Background(), doc, cur, workspace.Graph{}, nil, DefaultConfig())
	if len(list.Items) == 0 {
		t.Fatal("expected section-name completions when TableHeader cursor has an empty path")
	}
}
