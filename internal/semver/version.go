package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed semantic version. Major/Minor/Patch mirror a strict
// semver.org version; partial forms ("1", "1.2") only ever appear inside a
// Requirement, never as a Version, since versions published to a registry
// are always fully qualified.
type Version struct {
	Major, Minor, Patch int
	Pre                 string // empty if not a prerelease
	Build                string // empty if no build metadata
}

// String renders the version in canonical major.minor.patch[-pre][+build] form.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		b.WriteByte('-')
		b.WriteString(v.Pre)
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// IsPrerelease reports whether the version carries a prerelease tag.
func (v Version) IsPrerelease() bool {
	return v.Pre != ""
}

// Compare returns -1, 0, or 1 following semver precedence: numeric fields
// first, then prerelease identifiers (a version without a prerelease tag
// outranks one with an otherwise-identical prerelease tag). Build metadata
// never affects ordering.
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePrerelease(v.Pre, other.Pre)
}

// LessThan reports whether v orders strictly before other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePrerelease implements semver precedence rule 11: no prerelease
// outranks any prerelease; otherwise identifiers compare dot-segment by
// dot-segment, numeric segments compared numerically.
func comparePrerelease(a, b string) int {
	if a == "" && b == "" {
		return 0
	}
	if a == "" {
		return 1
	}
	if b == "" {
		return -1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := comparePrereleaseSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(as), len(bs))
}

func comparePrereleaseSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return compareInt(an, bn)
	}
	if aerr == nil {
		return -1 // numeric identifiers always sort before alphanumeric
	}
	if berr == nil {
		return 1
	}
	return strings.Compare(a, b)
}

// ParseVersion parses a fully-qualified version string ("1.2.3",
// "1.2.3-alpha.1", "1.2.3+build5"). Missing minor/patch components default
// to zero, matching how a registry always reports fully-qualified versions
// even though manifests may reference partial ones via a Requirement.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("semver: empty version")
	}

	core, build, _ := strings.Cut(s, "+")
	core, pre, _ := strings.Cut(core, "-")

	parts := strings.SplitN(core, ".", 3)
	if len(parts) == 0 || parts[0] == "" {
		return Version{}, fmt.Errorf("semver: invalid version %q", s)
	}

	var v Version
	var err error
	if v.Major, err = strconv.Atoi(parts[0]); err != nil {
		return Version{}, fmt.Errorf("semver: invalid major in %q: %w", s, err)
	}
	if len(parts) > 1 {
		if v.Minor, err = strconv.Atoi(parts[1]); err != nil {
			return Version{}, fmt.Errorf("semver: invalid minor in %q: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if v.Patch, err = strconv.Atoi(parts[2]); err != nil {
			return Version{}, fmt.Errorf("semver: invalid patch in %q: %w", s, err)
		}
	}
	v.Pre = pre
	v.Build = build
	return v, nil
}
