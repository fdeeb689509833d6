// Package registry implements the Crate Info Provider: lookup of crate
// metadata (versions, features, description) either from the live
// registry API or from a prebuilt offline sidecar, wrapped in a
// soft/hard-TTL cache with single-flight request coalescing so concurrent
// completions for the same crate never issue duplicate network calls.
package registry
