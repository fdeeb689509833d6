// Package script adapts the editor's Lua plugin runtime
// (internal/plugin/lua) into an optional completion-ranking hook: a
// project may drop a `.cargotom.lua` file next to its manifest defining a
// `rank(name, query)` and/or `filter(name)` global, and completion results
// route through it before being returned, per SPEC_FULL.md's scripting
// extension point.
package script
