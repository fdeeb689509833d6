// Package lua runs a single sandboxed Lua script for the analyzer's
// optional rank/filter hook (internal/analyzer/script). It is a small,
// purpose-built scripting host: no capability grants, no Go/Lua value
// bridge, no editor-hook executor. A `.cargotom.lua` script only ever
// needs to define two pure functions and call back into them.
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// executionTimeout bounds a single DoString or Call, so a runaway or
// malicious script cannot hang the language server. gopher-lua checks
// the context between VM instructions, so cancellation actually takes
// effect partway through a tight loop rather than only at call boundaries.
const executionTimeout = 5 * time.Second

// ErrClosed is returned by DoString and Call when invoked after Close.
var ErrClosed = errors.New("lua: state is closed")

// State is one sandboxed Lua VM running a single script.
type State struct {
	mu     sync.Mutex
	l      *lua.LState
	closed bool
}

// New creates a sandboxed Lua state: only the base, table, string, and math
// libraries are loaded, and dofile/loadfile/load/loadstring/require are
// removed so a script cannot reach the filesystem or load further code.
func New() *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(l)
	lua.OpenTable(l)
	lua.OpenString(l)
	lua.OpenMath(l)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.SetGlobal(name, lua.LNil)
	}
	return &State{l: l}
}

// DoString executes a Lua source string, defining whatever globals it
// declares (typically rank/filter functions).
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), executionTimeout)
	defer cancel()
	s.l.SetContext(ctx)

	return s.doWithRecovery(func() error {
		return s.l.DoString(code)
	})
}

// Call invokes a global Lua function and returns its results.
func (s *State) Call(name string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	fn := s.l.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("lua: %q is not a function (got %s)", name, fn.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), executionTimeout)
	defer cancel()
	s.l.SetContext(ctx)

	top := s.l.GetTop()
	s.l.Push(fn)
	for _, a := range args {
		s.l.Push(a)
	}

	var callErr error
	if err := s.doWithRecovery(func() error {
		return s.l.PCall(len(args), lua.MultRet, nil)
	}); err != nil {
		callErr = err
	}
	if callErr != nil {
		return nil, callErr
	}

	n := s.l.GetTop() - top
	if n <= 0 {
		return nil, nil
	}
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = s.l.Get(top + i + 1)
	}
	s.l.Pop(n)
	return results, nil
}

// GetGlobal returns a global variable's value, LNil if unset or closed.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lua.LNil
	}
	return s.l.GetGlobal(name)
}

func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua: panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the underlying Lua state. Safe to call more than once.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.l.Close()
	s.closed = true
}
