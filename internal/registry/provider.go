package registry

import (
	"context"
	"time"

	"github.com/dshills/cargotom-lsp/internal/semver"
)

// CrateVersion is one published version of a crate, per spec.md's Crate
// Record `versions` element.
type CrateVersion struct {
	Version      semver.Version
	Yanked       bool
	Features     map[string][]string // feature name -> enabled dependency features
	OptionalDeps []string
	MSRV         string
	PublishedAt  time.Time
}

// CrateRecord is the normalized metadata for one crate, per spec.md's
// Crate Record.
type CrateRecord struct {
	Name          string
	Description   string
	Homepage      string
	Repository    string
	Documentation string
	Readme        string
	Versions      []CrateVersion // newest first

	// MaxStableVersion / NewestVersion are supplemental fields carried over
	// from original_source's crate_lookup.rs, which caches "latest stable"
	// separately from "latest including prerelease" rather than
	// recomputing on every hover (see DESIGN.md).
	maxStable   *semver.Version
	newest      *semver.Version
	computedMax bool
}

// MaxStableVersion returns the newest non-prerelease, non-yanked version.
func (c *CrateRecord) MaxStableVersion() (semver.Version, bool) {
	if !c.computedMax {
		c.computeDerived()
	}
	if c.maxStable == nil {
		return semver.Version{}, false
	}
	return *c.maxStable, true
}

// NewestVersion returns the newest version regardless of prerelease/yanked
// status.
func (c *CrateRecord) NewestVersion() (semver.Version, bool) {
	if !c.computedMax {
		c.computeDerived()
	}
	if c.newest == nil {
		return semver.Version{}, false
	}
	return *c.newest, true
}

func (c *CrateRecord) computeDerived() {
	c.computedMax = true
	for i := range c.Versions {
		v := c.Versions[i].Version
		if c.newest == nil || v.Compare(*c.newest) > 0 {
			nv := v
			c.newest = &nv
		}
		if c.Versions[i].Yanked || v.IsPrerelease() {
			continue
		}
		if c.maxStable == nil || v.Compare(*c.maxStable) > 0 {
			sv := v
			c.maxStable = &sv
		}
	}
}

// VersionInfos returns the record's versions as semver.VersionInfo, for use
// with semver.Latest / semver.MatchVersions.
func (c *CrateRecord) VersionInfos() []semver.VersionInfo {
	out := make([]semver.VersionInfo, len(c.Versions))
	for i, v := range c.Versions {
		out[i] = semver.VersionInfo{Version: v.Version, Yanked: v.Yanked}
	}
	return out
}

// SearchResult is one entry of a crate-name search, per spec.md §4.3.
type SearchResult struct {
	Name        string
	Description string
	NewestVersion semver.Version
}

// Provider is the Crate Info Provider contract from spec.md §4.3: crate
// lookup, version listing, per-version feature listing, and name search.
// Both the online and offline backends implement it, and Cache wraps
// either one transparently.
type Provider interface {
	Lookup(ctx context.Context, name string) (CrateRecord, error)
	Versions(ctx context.Context, name string) ([]CrateVersion, error)
	Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error)
	Search(ctx context.Context, prefix string, page, perPage int) ([]SearchResult, error)
}
