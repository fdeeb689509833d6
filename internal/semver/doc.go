// Package semver implements the version and version-requirement algebra
// used to answer "what versions satisfy this manifest field" questions.
//
// It intentionally mirrors Cargo's requirement syntax (caret, tilde, exact,
// comparison operators, comma-joined AND groups, partial versions such as
// "1" or "1.2") rather than implementing the stricter semver.org grammar
// used by most general-purpose Go semver packages. No third-party semver
// library in the retrieval pack implements Cargo's partial-version and
// caret/tilde requirement grammar, so this package is hand-written against
// the algorithm recorded in original_source/crates/rust-version.
package semver
