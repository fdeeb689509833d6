package analyzer

import (
	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/semver"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

// InlayHints implements spec.md §4.5's lockfile-resolved-version hints: one
// hint per dependency line, shown only when the lockfile's resolved
// version differs from the manifest's textual requirement (an exact
// version requirement that already names the resolved version produces no
// hint, since it would be redundant).
func InlayHints(doc *manifest.Document, lock workspace.LockfileSnapshot, pc *manifest.PositionConverter) []InlayHint {
	var out []InlayHint
	for _, entry := range manifest.Dependencies(doc) {
		if entry.Origin.Kind != manifest.OriginVersion && entry.Origin.Kind != manifest.OriginRegistry {
			continue
		}
		req, hasReq := requirementOf(entry)
		resolved, ok := bestResolved(lock, entry.Name, req, hasReq)
		if !ok {
			continue
		}
		if resolved.String() == entry.Origin.Requirement {
			continue
		}
		pos := pc.ByteOffsetToPosition(entry.KeyNode.Span.End)
		out = append(out, InlayHint{Position: pos, Label: "= " + resolved.String()})
	}
	return out
}

// bestResolved picks the lockfile-resolved version for name that satisfies
// req, preferring a version matching the manifest's own requirement
// against multiple resolved entries (a lockfile can carry more than one
// version of the same crate when the graph has a semver-major split) to
// the first one found.
func bestResolved(lock workspace.LockfileSnapshot, name string, req semver.Requirement, hasReq bool) (semver.Version, bool) {
	packages, ok := lock.Packages[name]
	if !ok || len(packages) == 0 {
		return semver.Version{}, false
	}
	if len(packages) == 1 || !hasReq {
		return packages[0].Version, true
	}
	for _, p := range packages {
		if req.Matches(p.Version) {
			return p.Version, true
		}
	}
	return packages[0].Version, true
}
