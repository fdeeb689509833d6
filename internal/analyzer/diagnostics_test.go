package analyzer

import (
	"context"
	"testing"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

func diagnosticCodes(diags []Diagnostic) map[DiagnosticCode]int {
	out := map[DiagnosticCode]int{}
	for _, d := range diags {
		out[d.Code]++
	}
	return out
}

func TestDiagnoseUnknownCrate(t *testing.T) {
	doc := manifest.Parse("[dependencies]\ntotally-not-a-real-crate = \"1.0\"\n")
	p := newFakeProvider()
	p.notFound["totally-not-a-real-crate"] = true

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	if diagnosticCodes(diags)[CodeUnknownCrate] != 1 {
		t.Fatalf("expected 1 unknown-crate diagnostic, got %+v", diags)
	}
}

func TestDiagnoseNoMatchingVersion(t *testing.T) {
	doc := manifest.Parse("[dependencies]\nserde = \"99.0\"\n")
	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: mustVersion(t, "1.0.0")}}}

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	if diagnosticCodes(diags)[CodeNoMatchingVersion] != 1 {
		t.Fatalf("expected 1 no-matching-version diagnostic, got %+v", diags)
	}
}

func TestDiagnoseNewerVersionAvailable(t *testing.T) {
	// A tilde requirement only tracks patch releases, so a newer minor
	// release outside its range should surface as "newer available"
	// without becoming the resolved match.
	doc := manifest.Parse("[dependencies]\nserde = \"~1.0.0\"\n")
	p := newFakeProvider()
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{
		{Version: mustVersion(t, "1.0.0")},
		{Version: mustVersion(t, "1.5.0")},
	}}

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	codes := diagnosticCodes(diags)
	if codes[CodeNewerVersionAvailable] != 1 {
		t.Fatalf("expected 1 newer-version-available diagnostic, got %+v", diags)
	}
	for _, d := range diags {
		if d.Code == CodeNewerVersionAvailable && d.Severity != SeverityInfo {
			t.Fatalf("expected Info severity, got %v", d.Severity)
		}
	}
}

func TestDiagnoseUnknownFeature(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", features = ["derive", "bogus"] }
`)
	p := newFakeProvider()
	v := mustVersion(t, "1.0.0")
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: v}}}
	p.features["serde@1.0.0"] = map[string][]string{"derive": nil}

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	found := false
	for _, d := range diags {
		if d.Code == CodeUnknownFeature && d.Feature == "bogus" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unknown-feature diagnostic for %q, got %+v", "bogus", diags)
	}
}

func TestDiagnoseDuplicateDependency(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = "1.0"
serde = "1.1"
`)
	diags := Diagnose(context.Background(), doc, workspace.Graph{}, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeDuplicateDependency] != 1 {
		t.Fatalf("expected 1 duplicate-dependency diagnostic, got %+v", diags)
	}
}

func TestDiagnoseSameNameAcrossTableKindsIsNotDuplicate(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = "1.0"

[dev-dependencies]
serde = "1.0"
`)
	diags := Diagnose(context.Background(), doc, workspace.Graph{}, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeDuplicateDependency] != 0 {
		t.Fatalf("did not expect duplicate-dependency across table kinds, got %+v", diags)
	}
}

func TestDiagnoseDuplicateFeature(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", features = ["derive", "derive"] }
`)
	p := newFakeProvider()
	v := mustVersion(t, "1.0.0")
	p.records["serde"] = registry.CrateRecord{Name: "serde", Versions: []registry.CrateVersion{{Version: v}}}
	p.features["serde@1.0.0"] = map[string][]string{"derive": nil}

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	if diagnosticCodes(diags)[CodeDuplicateFeature] != 1 {
		t.Fatalf("expected 1 duplicate-feature diagnostic, got %+v", diags)
	}
}

func TestDiagnoseDuplicateFeatureInFeaturesTable(t *testing.T) {
	doc := manifest.Parse(`[features]
default = ["a", "a"]
`)
	p := newFakeProvider()

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	if diagnosticCodes(diags)[CodeDuplicateFeature] != 1 {
		t.Fatalf("expected 1 duplicate-feature diagnostic, got %+v", diags)
	}
}

func TestDiagnoseFeaturesTableWithNoDuplicatesIsClean(t *testing.T) {
	doc := manifest.Parse(`[features]
default = ["a", "b"]
extra = ["b", "c"]
`)
	p := newFakeProvider()

	diags := Diagnose(context.Background(), doc, workspace.Graph{}, p, DefaultConfig())
	if diagnosticCodes(diags)[CodeDuplicateFeature] != 0 {
		t.Fatalf("expected no duplicate-feature diagnostics, got %+v", diags)
	}
}

func TestDiagnoseWorkspaceNotDeclared(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { workspace = true }
`)
	diags := Diagnose(context.Background(), doc, workspace.Graph{Root: workspace.Node{InheritedDeps: map[string]manifest.Origin{}}}, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeWorkspaceNotDeclared] != 1 {
		t.Fatalf("expected 1 workspace-not-declared diagnostic, got %+v", diags)
	}
}

func TestDiagnoseWorkspaceTrueWithExplicitVersionConflicts(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { workspace = true, version = "1.0" }
`)
	graph := workspace.Graph{Root: workspace.Node{InheritedDeps: map[string]manifest.Origin{
		"serde": {Kind: manifest.OriginVersion, Requirement: "1.0"},
	}}}
	diags := Diagnose(context.Background(), doc, graph, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeConflictingOrigin] != 1 {
		t.Fatalf("expected 1 conflicting-origin diagnostic, got %+v", diags)
	}
	for _, d := range diags {
		if d.Code != CodeConflictingOrigin {
			continue
		}
		wantStart := len("[dependencies]\nserde = ")
		wantEnd := len(`[dependencies]
serde = { workspace = true, version = "1.0" }`) - 1
		if d.Span.Start != wantStart || d.Span.End != wantEnd {
			t.Fatalf("expected the span to cover the whole inline table, got %+v", d.Span)
		}
	}
}

func TestDiagnoseUndeclaredOptionalDepFeatureRef(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = "1.0"

[features]
extra = ["dep:serde"]
`)
	diags := Diagnose(context.Background(), doc, workspace.Graph{}, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeUndeclaredOptionalDep] != 1 {
		t.Fatalf("expected 1 undeclared-optional-dep diagnostic, got %+v", diags)
	}
}

func TestDiagnoseOptionalDepFeatureRefIsFine(t *testing.T) {
	doc := manifest.Parse(`[dependencies]
serde = { version = "1.0", optional = true }

[features]
extra = ["dep:serde"]
`)
	diags := Diagnose(context.Background(), doc, workspace.Graph{}, newFakeProvider(), DefaultConfig())
	if diagnosticCodes(diags)[CodeUndeclaredOptionalDep] != 0 {
		t.Fatalf("did not expect undeclared-optional-dep for an optional dependency, got %+v", diags)
	}
}
