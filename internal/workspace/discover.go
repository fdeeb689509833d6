package workspace

import (
	"os"
	"path/filepath"

	"github.com/dshills/cargotom-lsp/internal/manifest"
)

// DiscoverRoot walks upward from startDir looking for the nearest ancestor
// manifest that declares [workspace], stopping at the filesystem root. It
// returns the directory containing that manifest, or "" if none is found
// (a manifest with no ancestor [workspace] is its own single-package
// project, not a workspace member).
func DiscoverRoot(startDir string) (string, bool) {
	dir := startDir
	for {
		manifestPath := filepath.Join(dir, "Cargo.toml")
		if data, err := os.ReadFile(manifestPath); err == nil {
			doc := manifest.Parse(string(data))
			if doc.FindTable([]string{"workspace"}) != nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
