// Package workspace implements the Workspace Index: discovering the
// nearest ancestor manifest that declares [workspace], expanding its
// member globs, and building the WorkspaceGraph and LockfileSnapshot that
// the analyzer consults for `workspace = true` inheritance and
// lockfile-resolved inlay hints.
package workspace
