// Package server implements the Server Facade of spec.md §4.6: the LSP
// wire surface, per-document lifecycle, debounced diagnostics, flat
// configuration, and the optional daemon mode that shares a Provider
// across editor sessions.
//
// It is adapted from the teacher's internal/lsp package, which implements
// the other half of the same protocol (an editor's LSP client). The wire
// framing (Content-Length headers over stdio) and JSON-RPC envelope are
// identical in both directions; what changes is who initiates: here,
// requests arrive from the editor and are routed to internal/analyzer
// instead of being sent to an external process.
package server
