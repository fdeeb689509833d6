package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/cargotom-lsp/internal/manifest"
	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
	"github.com/dshills/cargotom-lsp/internal/workspace"
)

// Diagnose runs spec.md §4.5's nine diagnostic rules over a parsed manifest
// and returns every issue found. Rules that need network data (unknown
// crate, no matching version, newer version available, unknown feature)
// degrade silently when the provider errors, since a network hiccup should
// never surface as a false-positive diagnostic.
func Diagnose(ctx context.Context, doc *manifest.Document, graph workspace.Graph, provider registry.Provider, cfg Config) []Diagnostic {
	var out []Diagnostic
	entries := manifest.Dependencies(doc)

	out = append(out, checkDuplicateDependencies(entries)...)

	for _, entry := range entries {
		out = append(out, checkWorkspaceInheritance(entry, graph)...)
		out = append(out, checkDuplicateFeatures(entry)...)
		out = append(out, checkCrateAndVersion(ctx, entry, provider, cfg)...)
	}

	out = append(out, checkUndeclaredOptionalDeps(doc, entries)...)
	out = append(out, checkDuplicateFeatureTableEntries(doc)...)

	return out
}

// checkDuplicateDependencies implements the "duplicate dependency key"
// rule: a Warning on every occurrence after the first, within a single
// dependency table kind (dependencies / dev-dependencies /
// build-dependencies are tracked independently, since Cargo allows the
// same crate to appear once in each).
func checkDuplicateDependencies(entries []manifest.DependencyEntry) []Diagnostic {
	seen := map[string]bool{}
	var out []Diagnostic
	for _, entry := range entries {
		key := entry.TableKind.String() + "::" + entry.Name
		if seen[key] {
			out = append(out, Diagnostic{
				Code:     CodeDuplicateDependency,
				Severity: SeverityWarning,
				Span:     entry.NameSpan,
				Message:  fmt.Sprintf("duplicate dependency %q", entry.Name),
				Crate:    entry.Name,
			})
			continue
		}
		seen[key] = true
	}
	return out
}

// checkDuplicateFeatures implements the "duplicate feature in array" rule:
// a Warning on every occurrence after the first within one dependency's
// `features` array.
func checkDuplicateFeatures(entry manifest.DependencyEntry) []Diagnostic {
	seen := map[string]bool{}
	var out []Diagnostic
	for _, f := range entry.Features {
		if seen[f.Name] {
			out = append(out, Diagnostic{
				Code:     CodeDuplicateFeature,
				Severity: SeverityWarning,
				Span:     f.Span,
				Message:  fmt.Sprintf("duplicate feature %q", f.Name),
				Crate:    entry.Name,
				Feature:  f.Name,
			})
			continue
		}
		seen[f.Name] = true
	}
	return out
}

// checkDuplicateFeatureTableEntries implements the "duplicate feature in
// array" rule for the [features] table itself: a Warning on every
// occurrence after the first within any one feature's own dependency-list
// array (e.g. `default = ["a", "a"]`). This is distinct from
// checkDuplicateFeatures, which walks a dependency's `features = [...]`
// array rather than the [features] table's declarations.
func checkDuplicateFeatureTableEntries(doc *manifest.Document) []Diagnostic {
	features := doc.FindTable([]string{"features"})
	if features == nil {
		return nil
	}
	var out []Diagnostic
	for _, key := range features.Children {
		val := key.Value()
		if val == nil || val.Kind != manifest.KindArray {
			continue
		}
		seen := map[string]bool{}
		for _, el := range val.Children {
			if el.Kind != manifest.KindString {
				continue
			}
			name := el.StringValue()
			if seen[name] {
				out = append(out, Diagnostic{
					Code:     CodeDuplicateFeature,
					Severity: SeverityWarning,
					Span:     el.Span,
					Message:  fmt.Sprintf("duplicate feature %q", name),
					Feature:  name,
				})
				continue
			}
			seen[name] = true
		}
	}
	return out
}

// checkWorkspaceInheritance implements the two workspace-inheritance
// rules: `workspace = true` for a name the workspace never declares
// (Error), and `workspace = true` combined with a conflicting
// version/git/path in the same entry (Error).
func checkWorkspaceInheritance(entry manifest.DependencyEntry, graph workspace.Graph) []Diagnostic {
	if !entry.WorkspaceInherited {
		return nil
	}
	var out []Diagnostic
	if _, ok := graph.Root.InheritedDeps[entry.Name]; !ok {
		out = append(out, Diagnostic{
			Code:     CodeWorkspaceNotDeclared,
			Severity: SeverityError,
			Span:     entry.NameSpan,
			Message:  fmt.Sprintf("%q is not declared in [workspace.dependencies]", entry.Name),
			Crate:    entry.Name,
		})
	}
	if entry.Origin.Kind != manifest.OriginVersion || entry.Origin.Requirement != "" || entry.Origin.Path != "" || entry.Origin.GitURL != "" {
		out = append(out, Diagnostic{
			Code:     CodeConflictingOrigin,
			Severity: SeverityError,
			Span:     conflictingOriginSpan(entry),
			Message:  fmt.Sprintf("%q sets workspace = true and an explicit origin", entry.Name),
			Crate:    entry.Name,
		})
	}
	return out
}

// conflictingOriginSpan anchors the workspace = true / explicit-origin
// conflict at the whole inline table (`{ workspace = true, version = ... }`)
// when the entry is written that way, since the conflict is between two
// fields inside it rather than at the dependency name itself; it falls back
// to NameSpan for the dotted-table form (`[dependencies.foo]` with a
// top-level workspace = true key), which has no single enclosing span.
func conflictingOriginSpan(entry manifest.DependencyEntry) manifest.Span {
	if entry.KeyNode != nil {
		if val := entry.KeyNode.Value(); val != nil && val.Kind == manifest.KindInlineTable {
			return val.Span
		}
	}
	return entry.NameSpan
}

// checkUndeclaredOptionalDeps implements the "dep:X in [features] where X
// is not optional" rule.
func checkUndeclaredOptionalDeps(doc *manifest.Document, entries []manifest.DependencyEntry) []Diagnostic {
	optional := map[string]bool{}
	for _, e := range entries {
		if e.Optional {
			optional[e.Name] = true
		}
	}

	features := doc.FindTable([]string{"features"})
	if features == nil {
		return nil
	}
	var out []Diagnostic
	for _, key := range features.Children {
		val := key.Value()
		if val == nil || val.Kind != manifest.KindArray {
			continue
		}
		for _, el := range val.Children {
			if el.Kind != manifest.KindString {
				continue
			}
			name, isDepRef := parseDepFeatureRef(el.StringValue())
			if !isDepRef {
				continue
			}
			if !optional[name] {
				out = append(out, Diagnostic{
					Code:     CodeUndeclaredOptionalDep,
					Severity: SeverityError,
					Span:     el.Span,
					Message:  fmt.Sprintf("dep:%s referenced but %q is not an optional dependency", name, name),
					Crate:    name,
				})
			}
		}
	}
	return out
}

// parseDepFeatureRef recognizes Cargo's `dep:name` and `name?/feature`
// weak-dependency-feature syntax, returning the crate name.
func parseDepFeatureRef(s string) (name string, ok bool) {
	if len(s) > 4 && s[:4] == "dep:" {
		return s[4:], true
	}
	for i, r := range s {
		if r == '/' {
			base := s[:i]
			if len(base) > 0 && base[len(base)-1] == '?' {
				return base[:len(base)-1], true
			}
			return "", false
		}
	}
	return "", false
}

// checkCrateAndVersion implements the network-dependent rules: unknown
// crate (Error), no matching version for the requirement (Error), and a
// newer version being available (Info) — plus unknown feature (Error) for
// each name in the dependency's `features` array.
func checkCrateAndVersion(ctx context.Context, entry manifest.DependencyEntry, provider registry.Provider, cfg Config) []Diagnostic {
	if provider == nil || entry.Name == "" {
		return nil
	}
	if entry.Origin.Kind == manifest.OriginPath || entry.Origin.Kind == manifest.OriginGit {
		return nil // no registry record to check against
	}

	rec, err := provider.Lookup(ctx, entry.Name)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return []Diagnostic{{
				Code:     CodeUnknownCrate,
				Severity: SeverityError,
				Span:     entry.NameSpan,
				Message:  fmt.Sprintf("unknown crate %q", entry.Name),
				Crate:    entry.Name,
			}}
		}
		return nil // network/offline error: no diagnostic, not a false positive
	}

	var out []Diagnostic
	req, hasReq := requirementOf(entry)
	if !hasReq {
		return out
	}

	resolved, ok := semver.Latest(req, rec.VersionInfos(), semver.LatestOptions{})
	if !ok {
		out = append(out, Diagnostic{
			Code:     CodeNoMatchingVersion,
			Severity: SeverityError,
			Span:     versionSpanOf(entry),
			Message:  fmt.Sprintf("no version of %q matches %q", entry.Name, entry.Origin.Requirement),
			Crate:    entry.Name,
		})
		return out
	}

	if newest, ok := rec.MaxStableVersion(); ok && newest.Compare(resolved) > 0 && !req.Matches(newest) {
		out = append(out, Diagnostic{
			Code:     CodeNewerVersionAvailable,
			Severity: SeverityInfo,
			Span:     versionSpanOf(entry),
			Message:  fmt.Sprintf("%s is available (matched: %s)", newest.String(), resolved.String()),
			Crate:    entry.Name,
		})
	}

	if len(entry.Features) > 0 {
		known, ferr := provider.Features(ctx, entry.Name, resolved)
		if ferr == nil {
			for _, f := range entry.Features {
				if f.Name == "default" {
					continue
				}
				if _, exists := known[f.Name]; !exists {
					out = append(out, Diagnostic{
						Code:     CodeUnknownFeature,
						Severity: SeverityError,
						Span:     f.Span,
						Message:  fmt.Sprintf("%q has no feature %q", entry.Name, f.Name),
						Crate:    entry.Name,
						Feature:  f.Name,
					})
				}
			}
		}
	}

	return out
}

func versionSpanOf(entry manifest.DependencyEntry) manifest.Span {
	if entry.Origin.Span != (manifest.Span{}) {
		return entry.Origin.Span
	}
	return entry.NameSpan
}
