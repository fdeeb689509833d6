package workspace

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/tidwall/match"
)

// ExpandMembers resolves a [workspace] `members` glob list (e.g.
// `["crates/*"]`) against the filesystem rooted at rootDir, returning the
// directories (relative to rootDir) that both match a pattern and contain a
// Cargo.toml. `.gitignore`-matched directories are skipped during the walk
// so vendored or generated nested manifests are never mistaken for members,
// per SPEC_FULL.md §4.4.
func ExpandMembers(rootDir string, patterns, excludes []string) ([]string, error) {
	ignore := loadGitignore(rootDir)

	var candidates []string
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		// Directory-only patterns ("vendored/") match only with a trailing slash.
		if ignore != nil && (ignore.MatchesPath(rel) || ignore.MatchesPath(rel+"/")) {
			return fs.SkipDir
		}
		if matchesAny(rel, excludes) {
			return fs.SkipDir
		}
		if matchesAny(rel, patterns) {
			if _, statErr := os.Stat(filepath.Join(path, "Cargo.toml")); statErr == nil {
				candidates = append(candidates, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func matchesAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if match.Match(rel, p) {
			return true
		}
	}
	return false
}

func loadGitignore(rootDir string) *gitignore.GitIgnore {
	path := filepath.Join(rootDir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ig, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return ig
}
