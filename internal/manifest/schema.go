package manifest

// SectionKind classifies a top-level (or target-scoped) table header
// against the fixed set of Manifest Sections of Interest named in spec.md.
type SectionKind int

const (
	SectionUnknown SectionKind = iota
	SectionPackage
	SectionWorkspace
	SectionWorkspaceDependencies
	SectionDependencies
	SectionDevDependencies
	SectionBuildDependencies
	SectionFeatures
	SectionLib
	SectionBin
	SectionExample
	SectionTest
	SectionBench
	SectionProfile
	SectionPatch
)

// LeafType is the schema's leaf value kind, per spec.md's typed-schema
// definition: {string, bool, number, string-array, object, enum,
// cross-reference to $workspace}.
type LeafType int

const (
	LeafString LeafType = iota
	LeafBool
	LeafNumber
	LeafStringArray
	LeafObject
	LeafEnum
	LeafWorkspaceRef
)

// FieldSchema describes one recognized key within a section.
type FieldSchema struct {
	Name     string
	Type     LeafType
	Enum     []string // populated when Type == LeafEnum
	Required bool
}

// ClassifySection reports which Section Of Interest a table header path
// names. Target-scoped dependency tables ([target.<cfg>.dependencies] and
// its dev-/build- variants) classify the same as their untargeted form.
func ClassifySection(path []string) SectionKind {
	p := path
	if len(p) >= 2 && p[0] == "target" {
		p = p[2:]
	}
	switch {
	case len(p) == 1 && p[0] == "package":
		return SectionPackage
	case len(p) == 1 && p[0] == "workspace":
		return SectionWorkspace
	case len(p) == 2 && p[0] == "workspace" && p[1] == "dependencies":
		return SectionWorkspaceDependencies
	case len(p) == 1 && p[0] == "dependencies":
		return SectionDependencies
	case len(p) == 1 && p[0] == "dev-dependencies":
		return SectionDevDependencies
	case len(p) == 1 && p[0] == "build-dependencies":
		return SectionBuildDependencies
	case len(p) == 1 && p[0] == "features":
		return SectionFeatures
	case len(p) == 1 && p[0] == "lib":
		return SectionLib
	case len(p) == 1 && p[0] == "bin":
		return SectionBin
	case len(p) == 1 && p[0] == "example":
		return SectionExample
	case len(p) == 1 && p[0] == "test":
		return SectionTest
	case len(p) == 1 && p[0] == "bench":
		return SectionBench
	case len(p) >= 1 && p[0] == "profile":
		return SectionProfile
	case len(p) >= 1 && p[0] == "patch":
		return SectionPatch
	default:
		return SectionUnknown
	}
}

// packageFields is the [package] section's recognized leaf schema.
var packageFields = []FieldSchema{
	{Name: "name", Type: LeafString, Required: true},
	{Name: "version", Type: LeafWorkspaceRef},
	{Name: "edition", Type: LeafEnum, Enum: []string{"2015", "2018", "2021", "2024"}},
	{Name: "description", Type: LeafWorkspaceRef},
	{Name: "authors", Type: LeafStringArray},
	{Name: "license", Type: LeafWorkspaceRef},
	{Name: "license-file", Type: LeafString},
	{Name: "repository", Type: LeafWorkspaceRef},
	{Name: "homepage", Type: LeafWorkspaceRef},
	{Name: "documentation", Type: LeafString},
	{Name: "readme", Type: LeafWorkspaceRef},
	{Name: "keywords", Type: LeafStringArray},
	{Name: "categories", Type: LeafStringArray},
	{Name: "publish", Type: LeafBool},
	{Name: "rust-version", Type: LeafWorkspaceRef},
	{Name: "build", Type: LeafString},
	{Name: "default-run", Type: LeafString},
	{Name: "autobins", Type: LeafBool},
	{Name: "autoexamples", Type: LeafBool},
	{Name: "autotests", Type: LeafBool},
	{Name: "autobenches", Type: LeafBool},
}

// workspaceFields is the [workspace] section's recognized leaf schema.
var workspaceFields = []FieldSchema{
	{Name: "members", Type: LeafStringArray, Required: true},
	{Name: "exclude", Type: LeafStringArray},
	{Name: "default-members", Type: LeafStringArray},
	{Name: "resolver", Type: LeafEnum, Enum: []string{"1", "2", "3"}},
	{Name: "package", Type: LeafObject},
	{Name: "dependencies", Type: LeafObject},
	{Name: "metadata", Type: LeafObject},
}

// targetFields is the [[bin]]/[[example]]/[[test]]/[[bench]]/[lib] shared
// leaf schema.
var targetFields = []FieldSchema{
	{Name: "name", Type: LeafString},
	{Name: "path", Type: LeafString},
	{Name: "test", Type: LeafBool},
	{Name: "doctest", Type: LeafBool},
	{Name: "bench", Type: LeafBool},
	{Name: "doc", Type: LeafBool},
	{Name: "harness", Type: LeafBool},
	{Name: "edition", Type: LeafEnum, Enum: []string{"2015", "2018", "2021", "2024"}},
	{Name: "required-features", Type: LeafStringArray},
	{Name: "crate-type", Type: LeafStringArray},
}

// profileFields is the [profile.*] section's recognized leaf schema.
var profileFields = []FieldSchema{
	{Name: "opt-level", Type: LeafEnum, Enum: []string{"0", "1", "2", "3", "s", "z"}},
	{Name: "debug", Type: LeafBool},
	{Name: "lto", Type: LeafBool},
	{Name: "panic", Type: LeafEnum, Enum: []string{"unwind", "abort"}},
	{Name: "codegen-units", Type: LeafNumber},
	{Name: "incremental", Type: LeafBool},
	{Name: "overflow-checks", Type: LeafBool},
	{Name: "strip", Type: LeafBool},
}

// FieldsFor returns the recognized leaf schema for a Section, or nil for
// sections with no fixed field set (dependency tables and [features], whose
// keys are arbitrary crate/feature names rather than a closed schema).
func FieldsFor(kind SectionKind) []FieldSchema {
	switch kind {
	case SectionPackage:
		return packageFields
	case SectionWorkspace:
		return workspaceFields
	case SectionLib, SectionBin, SectionExample, SectionTest, SectionBench:
		return targetFields
	case SectionProfile:
		return profileFields
	default:
		return nil
	}
}

// LookupField finds a named field's schema within kind's field set.
func LookupField(kind SectionKind, name string) (FieldSchema, bool) {
	for _, f := range FieldsFor(kind) {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}
