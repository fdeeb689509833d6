package workspace

import (
	"os"
	"path/filepath"

	"github.com/dshills/cargotom-lsp/internal/manifest"
)

// Node is one member (or the root) of a Workspace Graph, per spec.md's
// Workspace Graph: `{ path, name?, version?, members[], inherited_deps }`.
type Node struct {
	Path    string // absolute directory containing this manifest
	Name    string
	Version string
	Members []string // relative member paths, only populated on the root node

	// InheritedDeps mirrors the root's [workspace.dependencies] table, the
	// canonical source `workspace = true` entries resolve against.
	InheritedDeps map[string]manifest.Origin
}

// Graph is the full Workspace Graph rooted at Root.
type Graph struct {
	Root    Node
	Members []Node
}

// BuildGraph loads the workspace root manifest at rootDir and every member
// manifest it names, producing a Graph. Member glob patterns are expanded
// with ExpandMembers; unreadable or missing member manifests are skipped
// rather than failing the whole build, matching spec.md §4.1's resilience
// posture extended to the workspace level.
func BuildGraph(rootDir string) (Graph, error) {
	rootManifestPath := filepath.Join(rootDir, "Cargo.toml")
	data, err := os.ReadFile(rootManifestPath)
	if err != nil {
		return Graph{}, err
	}
	rootDoc := manifest.Parse(string(data))

	root := Node{Path: rootDir, InheritedDeps: map[string]manifest.Origin{}}

	if pkgTable := rootDoc.FindTable([]string{"package"}); pkgTable != nil {
		if nameKey := manifest.FindKey(pkgTable, "name"); nameKey != nil {
			root.Name = nameKey.Value().StringValue()
		}
		if verKey := manifest.FindKey(pkgTable, "version"); verKey != nil {
			root.Version = verKey.Value().StringValue()
		}
	}

	wsTable := rootDoc.FindTable([]string{"workspace"})
	var patterns, excludes []string
	if wsTable != nil {
		patterns = stringArrayField(wsTable, "members")
		excludes = stringArrayField(wsTable, "exclude")
	}

	for _, dep := range manifest.Dependencies(rootDoc) {
		if dep.TableKind == manifest.DependencyTableWorkspace {
			root.InheritedDeps[dep.Name] = dep.Origin
		}
	}

	memberPaths, err := ExpandMembers(rootDir, patterns, excludes)
	if err != nil {
		return Graph{}, err
	}
	root.Members = memberPaths

	g := Graph{Root: root}
	for _, rel := range memberPaths {
		memberDir := filepath.Join(rootDir, rel)
		memberData, readErr := os.ReadFile(filepath.Join(memberDir, "Cargo.toml"))
		if readErr != nil {
			continue
		}
		memberDoc := manifest.Parse(string(memberData))
		node := Node{Path: memberDir}
		if pkgTable := memberDoc.FindTable([]string{"package"}); pkgTable != nil {
			if nameKey := manifest.FindKey(pkgTable, "name"); nameKey != nil {
				node.Name = nameKey.Value().StringValue()
			}
			if verKey := manifest.FindKey(pkgTable, "version"); verKey != nil {
				node.Version = verKey.Value().StringValue()
			}
		}
		g.Members = append(g.Members, node)
	}

	return g, nil
}

func stringArrayField(table *manifest.Node, key string) []string {
	k := manifest.FindKey(table, key)
	if k == nil {
		return nil
	}
	val := k.Value()
	if val == nil || val.Kind != manifest.KindArray {
		return nil
	}
	out := make([]string, 0, len(val.Children))
	for _, el := range val.Children {
		if el.Kind == manifest.KindString {
			out = append(out, el.StringValue())
		}
	}
	return out
}
