package analyzer

import (
	"context"

	"github.com/dshills/cargotom-lsp/internal/registry"
	"github.com/dshills/cargotom-lsp/internal/semver"
)

// fakeProvider is a hand-populated registry.Provider double, standing in
// for the network-backed OnlineProvider/OfflineProvider/Cache stack that
// internal/registry tests exercise directly.
type fakeProvider struct {
	records map[string]registry.CrateRecord
	// features maps "name@version" to that version's feature set.
	features map[string]map[string][]string
	search   []registry.SearchResult
	notFound map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		records:  map[string]registry.CrateRecord{},
		features: map[string]map[string][]string{},
		notFound: map[string]bool{},
	}
}

func (p *fakeProvider) Lookup(ctx context.Context, name string) (registry.CrateRecord, error) {
	if p.notFound[name] {
		return registry.CrateRecord{}, registry.ErrNotFound
	}
	rec, ok := p.records[name]
	if !ok {
		return registry.CrateRecord{}, registry.ErrNotFound
	}
	return rec, nil
}

func (p *fakeProvider) Versions(ctx context.Context, name string) ([]registry.CrateVersion, error) {
	rec, ok := p.records[name]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return rec.Versions, nil
}

func (p *fakeProvider) Features(ctx context.Context, name string, version semver.Version) (map[string][]string, error) {
	return p.features[name+"@"+version.String()], nil
}

func (p *fakeProvider) Search(ctx context.Context, prefix string, page, perPage int) ([]registry.SearchResult, error) {
	return p.search, nil
}

func mustVersion(t interface{ Fatalf(string, ...interface{}) }, s string) semver.Version {
	v, err := semver.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}
