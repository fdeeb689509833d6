package server

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/dshills/cargotom-lsp/internal/analyzer"
)

// Config is the flat set of recognized keys from spec.md §4.6's
// Configuration options list. Unlike the teacher's internal/config
// package — a general-purpose layered schema/watcher system for an
// editor's many independent settings surfaces (keybindings, themes,
// plugins) — this spec defines exactly seven keys, so the "layers, later
// wins" idiom is kept but collapsed to a single flat struct instead of a
// registered-schema abstraction (see DESIGN.md).
type Config struct {
	Offline              bool   `toml:"offline"`
	StableVersion        bool   `toml:"stable_version"`
	SortFormat           bool   `toml:"sort_format"`
	PerPage              int    `toml:"per_page"`
	FeatureDisplayMode   string `toml:"feature_display_mode"`
	HideDocsInfoMessage  bool   `toml:"hide_docs_info_message"`
	Daemon               bool   `toml:"daemon"`
}

// DefaultConfig matches spec.md §4.6's documented defaults.
func DefaultConfig() Config {
	return Config{PerPage: 25, FeatureDisplayMode: "All"}
}

// LoadFileConfig reads an optional .cargotom.toml from workspaceRoot. A
// missing file is not an error, per spec.md's advisory configuration
// model; a malformed one is (spec.md §6's "non-zero reserved for fatal
// initialization errors").
func LoadFileConfig(workspaceRoot string) (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(workspaceRoot, ".cargotom.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, &ServerError{Reason: "reading .cargotom.toml", Err: err}
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, &ServerError{Reason: "parsing .cargotom.toml", Err: err}
	}
	return cfg, nil
}

// MergeInitializationOptions layers the LSP-supplied initializationOptions
// (or a later workspace/didChangeConfiguration payload) over base, with
// LSP-supplied values taking precedence — spec.md §4.6's "the spec's
// authoritative source" — while per_page_web is accepted as an alias for
// per_page.
func MergeInitializationOptions(base Config, raw RawConfig) Config {
	cfg := base
	if v, ok := raw["offline"].(bool); ok {
		cfg.Offline = v
	}
	if v, ok := raw["stable_version"].(bool); ok {
		cfg.StableVersion = v
	}
	if v, ok := raw["sort_format"].(bool); ok {
		cfg.SortFormat = v
	}
	if v, ok := numberField(raw, "per_page"); ok {
		cfg.PerPage = v
	}
	if v, ok := numberField(raw, "per_page_web"); ok {
		cfg.PerPage = v
	}
	if v, ok := raw["feature_display_mode"].(string); ok {
		cfg.FeatureDisplayMode = v
	}
	if v, ok := raw["hide_docs_info_message"].(bool); ok {
		cfg.HideDocsInfoMessage = v
	}
	if v, ok := raw["daemon"].(bool); ok {
		cfg.Daemon = v
	}
	return cfg
}

// numberField reads a JSON-decoded numeric field (json.Unmarshal produces
// float64 for untyped `any` targets).
func numberField(raw RawConfig, key string) (int, bool) {
	switch v := raw[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// AnalyzerConfig projects the Server Facade's Config down to the subset
// internal/analyzer consumes.
func (c Config) AnalyzerConfig() analyzer.Config {
	cfg := analyzer.DefaultConfig()
	cfg.StableVersion = c.StableVersion
	if c.PerPage > 0 {
		cfg.PerPage = c.PerPage
	}
	switch c.FeatureDisplayMode {
	case "Features":
		cfg.FeatureDisplayMode = analyzer.FeatureDisplayFeatures
	case "UnusedOpt":
		cfg.FeatureDisplayMode = analyzer.FeatureDisplayUnusedOpt
	default:
		cfg.FeatureDisplayMode = analyzer.FeatureDisplayAll
	}
	return cfg
}
