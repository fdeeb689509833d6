package script

import (
	"fmt"
	"os"
	"sync"

	pluginlua "github.com/dshills/cargotom-lsp/internal/plugin/lua"
	lua "github.com/yuin/gopher-lua"
)

// Hook wraps a loaded `.cargotom.lua` script's optional rank/filter
// functions. A nil *Hook (returned when no script is configured, or
// loading failed) is safe to call through: Rank/Filter degrade to
// identity/no-op, so a broken or absent script never breaks completion.
type Hook struct {
	mu    sync.Mutex
	state *pluginlua.State

	hasRank   bool
	hasFilter bool
}

// Load reads and executes the Lua file at path in a sandboxed state (no
// io/os/debug access, no require, a per-call execution timeout). It
// returns nil, err if the file can't be read or fails to execute; the
// caller should log and proceed without a hook rather than fail
// completion.
func Load(path string) (*Hook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	state := pluginlua.New()
	if err := state.DoString(string(src)); err != nil {
		state.Close()
		return nil, fmt.Errorf("script: run %s: %w", path, err)
	}

	h := &Hook{state: state}
	h.hasRank = isFunction(state, "rank")
	h.hasFilter = isFunction(state, "filter")
	return h, nil
}

func isFunction(state *pluginlua.State, name string) bool {
	return state.GetGlobal(name).Type() == lua.LTFunction
}

// Close releases the underlying Lua state.
func (h *Hook) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Close()
}

// Rank calls the script's `rank(name, query) -> number` global, when
// defined, returning ok=false to leave the caller's own ranking
// untouched. Lower is better, matching CompletionItem.SortRank.
func (h *Hook) Rank(name, query string) (rank int, ok bool) {
	if h == nil || !h.hasRank {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	results, err := h.state.Call("rank", lua.LString(name), lua.LString(query))
	if err != nil || len(results) == 0 {
		return 0, false
	}
	n, isNum := results[0].(lua.LNumber)
	if !isNum {
		return 0, false
	}
	return int(n), true
}

// Filter calls the script's `filter(name) -> bool` global, when defined,
// reporting whether name should be excluded from completion results.
// Absent a filter function, nothing is excluded.
func (h *Hook) Filter(name string) (excluded bool) {
	if h == nil || !h.hasFilter {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	results, err := h.state.Call("filter", lua.LString(name))
	if err != nil || len(results) == 0 {
		return false
	}
	keep, isBool := results[0].(lua.LBool)
	if !isBool {
		return false
	}
	return !bool(keep)
}
