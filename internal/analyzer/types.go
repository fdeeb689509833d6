package analyzer

import (
	"github.com/dshills/cargotom-lsp/internal/analyzer/script"
	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/semver"
)

// CompletionItem is one suggestion returned by Complete.
type CompletionItem struct {
	Label      string
	InsertText string
	Detail     string
	Documentation string
	// ReplaceSpan is the byte span the completion replaces, distinct from
	// the cursor position when a suggestion (e.g. "workspace = true")
	// replaces the entire value rather than inserting at point.
	ReplaceSpan manifest.Span
	SortRank    int // lower sorts first; ties broken by Label
}

// CompletionList is the analyzer's completion result. Incomplete lists are
// returned while a Provider fetch is still in flight, per spec.md §4.6.
type CompletionList struct {
	Items      []CompletionItem
	Incomplete bool
}

// HoverContent is markdown-formatted hover text plus the span it applies to.
type HoverContent struct {
	Markdown string
	Span     manifest.Span
}

// Severity mirrors LSP's DiagnosticSeverity ordinals (Error=1 .. Hint=4).
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// DiagnosticCode identifies which of spec.md §4.5's nine diagnostic rules
// produced a Diagnostic, so the Server Facade / code-action layer can
// attach the right fix without re-deriving it from the message text.
type DiagnosticCode string

const (
	CodeUnknownCrate           DiagnosticCode = "unknown-crate"
	CodeNoMatchingVersion      DiagnosticCode = "no-matching-version"
	CodeNewerVersionAvailable  DiagnosticCode = "newer-version-available"
	CodeUnknownFeature         DiagnosticCode = "unknown-feature"
	CodeDuplicateDependency    DiagnosticCode = "duplicate-dependency"
	CodeDuplicateFeature       DiagnosticCode = "duplicate-feature"
	CodeWorkspaceNotDeclared   DiagnosticCode = "workspace-not-declared"
	CodeConflictingOrigin      DiagnosticCode = "conflicting-origin"
	CodeUndeclaredOptionalDep  DiagnosticCode = "undeclared-optional-dep"
)

// Diagnostic is one issue found in a document, per spec.md §4.5.
type Diagnostic struct {
	Code     DiagnosticCode
	Severity Severity
	Span     manifest.Span
	Message  string

	// Crate/Feature name this diagnostic concerns, when
	// applicable — used by code-action derivation to avoid re-parsing the
	// message text.
	Crate   string
	Feature string
}

// CodeAction is a named fix or command, per spec.md §4.5.
type CodeAction struct {
	Title string
	// Edits is nil for non-edit (command) actions like "Open Docs".
	Edits []Edit
	// Command names a non-edit action for the Server Facade to dispatch
	// (openUrl, updateAll), empty for pure-edit actions.
	Command string
	CommandArgs []string
}

// Edit is a single (range, replacement) pair, per spec.md §4.5.
type Edit struct {
	Span        manifest.Span
	Replacement string
}

// InlayHint is a lockfile-resolved version hint, per spec.md §4.5.
type InlayHint struct {
	Position manifest.Position
	Label    string
}

// FeatureDisplayMode controls hover's feature-list layout, per spec.md
// §4.6's `feature_display_mode` config key.
type FeatureDisplayMode int

const (
	FeatureDisplayAll FeatureDisplayMode = iota
	FeatureDisplayFeatures
	FeatureDisplayUnusedOpt
)

// Config bundles the analyzer-relevant subset of spec.md §4.6's
// configuration keys.
type Config struct {
	StableVersion      bool
	PerPage            int
	FeatureDisplayMode FeatureDisplayMode

	// Script is an optional user-provided rank/filter hook loaded from
	// `.cargotom.lua`. Nil is the common case and every call site treats a
	// nil *script.Hook as a no-op.
	Script *script.Hook
}

// DefaultConfig matches spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{StableVersion: false, PerPage: 25, FeatureDisplayMode: FeatureDisplayAll}
}

// requirementOf parses a DependencyEntry's version requirement string, when its
// origin carries one, returning ok=false for path/git origins or unparsable
// requirement text.
func requirementOf(entry manifest.DependencyEntry) (semver.Requirement, bool) {
	if entry.Origin.Kind != manifest.OriginVersion && entry.Origin.Kind != manifest.OriginRegistry {
		return semver.Requirement{}, false
	}
	if entry.Origin.Requirement == "" {
		return semver.Requirement{}, false
	}
	req, err := semver.ParseRequirement(entry.Origin.Requirement)
	if err != nil {
		return semver.Requirement{}, false
	}
	return req, true
}
