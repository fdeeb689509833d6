package analyzer

import (
	"context"
	"strings"
	"testing"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
)

func TestHoverVersionHighlightsMatch(t *testing.T) {
	src := "[dependencies]\nserde = \"1.0\"\n"
	doc := manifest.Parse(src)
	offset := len("[dependencies]\nserde = \"1.")
	cur := manifest.Locate(doc, offset)

	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{
		Name: "serde",
		Versions: []registry.CrateVersion{
			{Version: mustVersion(t, "1.0.0")},
			{Version: mustVersion(t, "2.0.0")},
		},
	}

	hover, ok := Hover(context.Background(), doc, cur, p, DefaultConfig())
	if !ok {
		t.Fatal("expected hover content")
	}
	if !strings.Contains(hover.Markdown, "1.0.0") || !strings.Contains(hover.Markdown, "matches") {
		t.Fatalf("expected matched-version markdown, got %q", hover.Markdown)
	}
}

func TestHoverCrateNameShowsDescription(t *testing.T) {
	src := "[dependencies]\nserde = \"1.0\"\n"
	doc := manifest.Parse(src)
	offset := len("[dependencies]\nser")
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorKey {
		t.Fatalf("expected CursorKey, got %v", cur.Kind)
	}

	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{Name: "serde", Description: "a serialization framework"}

	hover, ok := Hover(context.Background(), doc, cur, p, DefaultConfig())
	if !ok {
		t.Fatal("expected hover content")
	}
	if !strings.Contains(hover.Markdown, "a serialization framework") {
		t.Fatalf("expected description in markdown, got %q", hover.Markdown)
	}
}

func TestHoverFeatureUnknownWhenUnresolved(t *testing.T) {
	src := `[dependencies]
serde = { git = "https://example.com/serde", features = ["derive"] }
`
	doc := manifest.Parse(src)
	offset := len(`[dependencies]
serde = { git = "https://example.com/serde", features = ["derive`)
	cur := manifest.Locate(doc, offset)
	if cur.Kind != manifest.CursorInlineTableField || cur.FieldKey != "features" {
		t.Fatalf("expected CursorInlineTableField/features, got %v %q", cur.Kind, cur.FieldKey)
	}

	p := newFakeProvider()
	hover, ok := Hover(context.Background(), doc, cur, p, DefaultConfig())
	// A git-origin dependency has no requirement to resolve against, so
	// hover degrades to "(unknown)" rather than erroring.
	if !ok || hover.Markdown != "(unknown)" {
		t.Fatalf("expected (unknown) hover for unresolved git dependency, got %v %q", ok, hover.Markdown)
	}
}

func TestHoverNoContentOutsideRecognizedPositions(t *testing.T) {
	doc := manifest.Parse("[package]\nname = \"foo\"\n")
	offset := len("[package]\nname = \"f")
	cur := manifest.Locate(doc, offset)
	_, ok := Hover(context.Background(), doc, cur, newFakeProvider(), DefaultConfig())
	if ok {
		t.Fatal("expected no hover content for a non-dependency string value")
	}
}
