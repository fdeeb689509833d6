// Package analyzer implements the manifest intelligence engine's analysis
// layer: given a parsed manifest, the cursor at a request offset, the
// workspace graph, and the crate info provider, it derives completions,
// hovers, diagnostics, inlay hints, and code actions. The analyzer is
// stateless across calls, per spec.md §4.5 — every exported function takes
// its full input and returns a fresh result.
package analyzer
