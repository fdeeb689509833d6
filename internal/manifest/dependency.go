package manifest

// OriginKind tags which source a dependency resolves from.
type OriginKind int

const (
	OriginVersion OriginKind = iota
	OriginPath
	OriginGit
	OriginRegistry
)

// Origin is the tagged variant carried by a DependencyEntry, per spec.md's
// Dependency Entry record: Version(req), Path(path), Git{url, rev|branch|tag},
// Registry(name, req).
type Origin struct {
	Kind OriginKind

	// Version / Registry
	Requirement string
	// Registry
	RegistryName string
	// Path
	Path string
	// Git
	GitURL    string
	GitRev    string
	GitBranch string
	GitTag    string

	// Span is where this origin's defining text sits. When no origin field
	// is present it is the span of the enclosing inline table or table
	// header (the zero Span for a shorthand key with no value), not an
	// insertion point.
	Span Span
}

// DependencyEntry is the normalized record for one recognized dependency
// key, per spec.md's Dependency Entry.
type DependencyEntry struct {
	Name    string
	NameSpan Span

	// Rename holds the `package = "..."` override, when the dependency key
	// differs from the crate's real name (e.g. `json = { package =
	// "serde_json" }`), per original_source's rename-aware completion.
	Rename string

	Origin Origin

	Features     []DependencyFeature
	// FeaturesSpan covers the whole `features = [...]` array literal,
	// including brackets, for whole-array replacements (e.g. formatting's
	// alphabetical sort); zero unless a features array is present.
	FeaturesSpan        Span
	DefaultFeatures     bool
	DefaultFeaturesSpan Span // the zero Span when the key is absent, not an insertion point
	Optional            bool
	OptionalSpan        Span

	// WorkspaceInherited is true when the entry reads `workspace = true`
	// and defers name/features/etc to [workspace.dependencies].
	WorkspaceInherited bool

	// KeyNode is the owning Key node in the parsed tree, table-scoped
	// (dependencies / dev-dependencies / build-dependencies, optionally
	// target-scoped) or under [workspace.dependencies].
	KeyNode *Node

	// TableKind identifies which dependency table this entry came from, so
	// that (for example) the same crate name appearing once in
	// [dependencies] and once in [dev-dependencies] is not flagged as a
	// duplicate.
	TableKind DependencyTableKind
}

// DependencyFeature is one entry of a dependency's `features = [...]` array.
type DependencyFeature struct {
	Name string
	Span Span
}

// ParseDependency normalizes a Key node found under a dependencies table
// (or [workspace.dependencies]) into a DependencyEntry. The entry's Name is
// the key's own name (the dependency's manifest-local name, which may
// differ from the crate name when Rename is set).
func ParseDependency(key *Node) DependencyEntry {
	entry := DependencyEntry{
		Name:     key.Key(),
		NameSpan: key.Span,
		KeyNode:  key,
	}
	// A dependency key with no value present yet (bare `serde = `) parses to
	// a zero-width KindString value node; treat that the same as shorthand.
	val := key.Value()
	if val == nil {
		entry.DefaultFeatures = true
		return entry
	}

	switch val.Kind {
	case KindString:
		entry.Origin = Origin{Kind: OriginVersion, Requirement: val.StringValue(), Span: val.Span}
		entry.DefaultFeatures = true
		return entry
	case KindInlineTable:
		return parseExpandedDependency(entry, val)
	default:
		entry.DefaultFeatures = true
		return entry
	}
}

func parseExpandedDependency(entry DependencyEntry, table *Node) DependencyEntry {
	entry.DefaultFeatures = true

	var (
		haveVersion, havePath, haveGit, haveRegistry bool
		version, path, registry                      *Node
		gitURL, gitRev, gitBranch, gitTag             *Node
	)

	for _, field := range table.Children {
		switch field.Key() {
		case "version":
			version, haveVersion = field.Value(), true
		case "path":
			path, havePath = field.Value(), true
		case "registry":
			registry, haveRegistry = field.Value(), true
		case "git":
			gitURL, haveGit = field.Value(), true
		case "rev":
			gitRev = field.Value()
		case "branch":
			gitBranch = field.Value()
		case "tag":
			gitTag = field.Value()
		case "package":
			if fv := field.Value(); fv != nil {
				entry.Rename = fv.StringValue()
			}
		case "optional":
			entry.OptionalSpan = field.Span
			if fv := field.Value(); fv != nil {
				entry.Optional = fv.Raw == "true"
			}
		case "default-features", "default_features":
			entry.DefaultFeaturesSpan = field.Span
			entry.DefaultFeatures = true
			if fv := field.Value(); fv != nil {
				entry.DefaultFeatures = fv.Raw == "true"
			}
		case "workspace":
			if fv := field.Value(); fv != nil && fv.Raw == "true" {
				entry.WorkspaceInherited = true
			}
		case "features":
			if fv := field.Value(); fv != nil && fv.Kind == KindArray {
				entry.FeaturesSpan = fv.Span
				for _, el := range fv.Children {
					if el.Kind == KindString {
						entry.Features = append(entry.Features, DependencyFeature{Name: el.StringValue(), Span: el.Span})
					}
				}
			}
		}
	}

	// Origin precedence, most to least specific: path > git > registry >
	// version. A manifest may declare more than one; Cargo itself rejects
	// that at build time, but locate/hover only need a single winner here.
	switch {
	case havePath && path != nil:
		entry.Origin = Origin{Kind: OriginPath, Path: path.StringValue(), Span: path.Span}
	case haveGit && gitURL != nil:
		o := Origin{Kind: OriginGit, GitURL: gitURL.StringValue(), Span: gitURL.Span}
		if gitRev != nil {
			o.GitRev = gitRev.StringValue()
		}
		if gitBranch != nil {
			o.GitBranch = gitBranch.StringValue()
		}
		if gitTag != nil {
			o.GitTag = gitTag.StringValue()
		}
		entry.Origin = o
	case haveRegistry && registry != nil && haveVersion && version != nil:
		entry.Origin = Origin{Kind: OriginRegistry, RegistryName: registry.StringValue(), Requirement: version.StringValue(), Span: version.Span}
	case haveVersion && version != nil:
		entry.Origin = Origin{Kind: OriginVersion, Requirement: version.StringValue(), Span: version.Span}
	default:
		entry.Origin = Origin{Kind: OriginVersion, Span: table.Span}
	}

	return entry
}

// DependencyTableKind identifies which of the three scoped dependency
// tables (spec.md: dependencies / dev-dependencies / build-dependencies,
// each optionally nested under a [target.'cfg(...)'] header) a table path
// belongs to.
type DependencyTableKind int

const (
	DependencyTableNone DependencyTableKind = iota
	DependencyTableNormal
	DependencyTableDev
	DependencyTableBuild
	DependencyTableWorkspace
)

// String names the table kind, for use in diagnostic dedup keys and
// messages.
func (k DependencyTableKind) String() string {
	switch k {
	case DependencyTableNormal:
		return "dependencies"
	case DependencyTableDev:
		return "dev-dependencies"
	case DependencyTableBuild:
		return "build-dependencies"
	case DependencyTableWorkspace:
		return "workspace.dependencies"
	default:
		return "none"
	}
}

// ClassifyDependencyTable reports which dependency table kind a header path
// names, stripping a leading target(...) segment when present.
func ClassifyDependencyTable(path []string) DependencyTableKind {
	p := path
	if len(p) >= 2 && p[0] == "target" {
		p = p[2:]
	}
	if len(p) != 1 {
		return DependencyTableNone
	}
	switch p[0] {
	case "dependencies":
		return DependencyTableNormal
	case "dev-dependencies":
		return DependencyTableDev
	case "build-dependencies":
		return DependencyTableBuild
	default:
		return DependencyTableNone
	}
}

// classifyDependencyEntryTable reports which dependency table kind a
// `[dependencies.NAME]`-style header names — a single dependency's own
// table, as opposed to the `[dependencies]` table containing it — per
// spec.md's `TableHeader(["dependencies", NAME])` cursor policy.
func classifyDependencyEntryTable(path []string) DependencyTableKind {
	p := path
	if len(p) >= 2 && p[0] == "target" {
		p = p[2:]
	}
	if len(p) != 2 {
		return DependencyTableNone
	}
	switch p[0] {
	case "dependencies":
		return DependencyTableNormal
	case "dev-dependencies":
		return DependencyTableDev
	case "build-dependencies":
		return DependencyTableBuild
	default:
		return DependencyTableNone
	}
}

// ParseDependencyTable normalizes a `[dependencies.NAME]`-style header
// (whose body is a set of direct Key children — version, features, path,
// git, ... — rather than a single inline-table value) into a
// DependencyEntry. It shares field-scanning logic with the expanded
// inline-table form via parseExpandedDependency, since both are "a set of
// named fields" from the parser's point of view.
func ParseDependencyTable(header *Node) DependencyEntry {
	entry := DependencyEntry{Name: header.Key(), NameSpan: header.Span, KeyNode: header}
	return parseExpandedDependency(entry, header)
}

// Dependencies walks every recognized dependency table in doc (top-level and
// target-scoped normal/dev/build, plus [workspace.dependencies]) and returns
// their normalized entries.
func Dependencies(doc *Document) []DependencyEntry {
	var out []DependencyEntry
	for _, top := range doc.Root.Children {
		if top.Kind != KindTableHeader {
			continue
		}

		isWorkspaceDeps := len(top.Path) == 2 && top.Path[0] == "workspace" && top.Path[1] == "dependencies"
		if kind := ClassifyDependencyTable(top.Path); isWorkspaceDeps || kind != DependencyTableNone {
			if isWorkspaceDeps {
				kind = DependencyTableWorkspace
			}
			for _, child := range top.Children {
				if child.Kind == KindKey {
					entry := ParseDependency(child)
					entry.TableKind = kind
					out = append(out, entry)
				}
			}
			continue
		}

		// [dependencies.NAME] / [dev-dependencies.NAME] /
		// [build-dependencies.NAME], optionally target-scoped.
		if kind := classifyDependencyEntryTable(top.Path); kind != DependencyTableNone {
			entry := ParseDependencyTable(top)
			entry.TableKind = kind
			out = append(out, entry)
		}
	}
	return out
}
