// Package gitsource implements histcache.Source over Git repositories.
//
// The package is a thin read-only layer on go-git: branch resolution,
// commit walking, counting, and plain log paging all happen in-process
// against the repository's object database. Two query shapes have no
// go-git support and shell out to the git CLI instead: stash listing and
// line-range history (git log -L). That follows the same split this
// codebase's worktree handling uses: go-git first, CLI only where go-git
// cannot.
//
// All repository I/O goes through the go-billy filesystem abstraction. By
// default the local OS filesystem is used; tests can substitute memfs via
// WithFilesystem (CLI-backed queries then return an error, since the git
// binary cannot see a memory filesystem).
//
// Every call opens the repository fresh and is therefore comparatively
// expensive. That is by contract: this package is the live data source
// behind the histcache read-through cache, which absorbs the repetition.
//
// Errors are classified into platform error codes (CodeNotFound for
// missing repositories, references, and objects); unknown errors pass
// through with context.
package gitsource
