package workspace

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/dshills/cargotom-lsp/internal/semver"
)

// lockfileDoc mirrors Cargo.lock's structure. A lockfile is machine
// generated and never hand-edited mid-keystroke, so decoding it with a
// standard, non-resilient TOML library (rather than the manifest package's
// span-preserving parser) is the correct choice — see DESIGN.md.
type lockfileDoc struct {
	Version  int             `toml:"version"`
	Packages []lockfilePkg   `toml:"package"`
}

type lockfilePkg struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Checksum     string   `toml:"checksum"`
	Dependencies []string `toml:"dependencies"`
}

// ResolvedPackage is one entry of a LockfileSnapshot.
type ResolvedPackage struct {
	Name    string
	Version semver.Version

	// Checksum is retained per SPEC_FULL.md's supplemental fields even
	// though no operation named in spec.md currently consumes it.
	Checksum string
}

// LockfileSnapshot is the advisory `(name, req-context) -> resolved_version`
// mapping from spec.md's Lockfile Snapshot, used only for inlay hints and
// "needs update" diagnostics — never authoritative for parsing.
type LockfileSnapshot struct {
	Packages map[string][]ResolvedPackage // name -> every resolved version present (workspaces can pin more than one)
}

// LoadLockfile decodes the Cargo.lock adjacent to workspaceRoot, if present.
// A missing lockfile is not an error: it simply yields an empty snapshot,
// since lockfile-derived hints are advisory.
func LoadLockfile(workspaceRoot string) (LockfileSnapshot, error) {
	path := filepath.Join(workspaceRoot, "Cargo.lock")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LockfileSnapshot{Packages: map[string][]ResolvedPackage{}}, nil
		}
		return LockfileSnapshot{}, err
	}

	var doc lockfileDoc
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return LockfileSnapshot{}, err
	}

	snap := LockfileSnapshot{Packages: make(map[string][]ResolvedPackage, len(doc.Packages))}
	for _, pkg := range doc.Packages {
		ver, verErr := semver.ParseVersion(pkg.Version)
		if verErr != nil {
			continue
		}
		snap.Packages[pkg.Name] = append(snap.Packages[pkg.Name], ResolvedPackage{
			Name:     pkg.Name,
			Version:  ver,
			Checksum: pkg.Checksum,
		})
	}
	return snap, nil
}

// Resolved returns the resolved version(s) recorded for name, or nil if the
// lockfile has no entry (either the lockfile is missing or the crate was
// never resolved, e.g. it was added after the last `cargo build`).
func (s LockfileSnapshot) Resolved(name string) []ResolvedPackage {
	return s.Packages[name]
}
