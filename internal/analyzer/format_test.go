package analyzer

import (
	"testing"

	"github.com/dshills/cargotom-lsp/internal/manifest"
)

func TestFormatSortsFeaturesAlphabetically(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", features = ["derive", "alloc"] }
`)
	edits := Format(doc, true)
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %+v", edits)
	}
	if edits[0].Replacement != `["alloc", "derive"]` {
		t.Fatalf("expected sorted replacement, got %q", edits[0].Replacement)
	}
}

func TestFormatNoEditWhenAlreadySorted(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", features = ["alloc", "derive"] }
`)
	if edits := Format(doc, true); len(edits) != 0 {
		t.Fatalf("expected no edits for already-sorted features, got %+v", edits)
	}
}

func TestFormatDisabledProducesNoEdits(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", features = ["derive", "alloc"] }
`)
	if edits := Format(doc, false); len(edits) != 0 {
		t.Fatalf("expected no edits when sort_format is disabled, got %+v", edits)
	}
}
