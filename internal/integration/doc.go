// Package integration holds small resilience primitives shared across the
// server's provider and document-analysis layers: debounced callbacks and
// retry/circuit-breaker helpers for operations that can fail transiently.
package integration
