// Package manifest implements the positionable, resilient model of a Cargo
// manifest: a parser that survives malformed or partially-edited input,
// span-preserving edits, and a cursor-location query used by the analyzer
// to answer "what is at this offset" (spec.md §4.1).
//
// The parser targets the practical subset of TOML that Cargo manifests
// actually use — scalar values, single- and multi-line arrays, single-line
// inline tables, dotted keys, and both `[table]` and `[[array-of-table]]`
// headers — rather than the full TOML grammar (no third-party TOML parser
// in the retrieval pack preserves byte spans or tolerates malformed input,
// which spec §4.1's resilience and round-trip requirements need; see
// DESIGN.md).
package manifest
