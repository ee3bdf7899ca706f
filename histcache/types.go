package histcache

import (
	"context"
	"time"
)

// Repository identifies a Git repository by its root path. The root path is
// the repository's identity: two Repository values refer to the same
// repository exactly when their roots are equal.
type Repository struct {
	// Root is the absolute path of the repository's working tree root.
	Root string
}

// absent reports whether the repository is the zero value. Every query
// operation returns an empty default for an absent repository instead of
// failing.
func (r Repository) absent() bool {
	return r.Root == ""
}

// LogEntry is one commit's metadata as produced by the data source. The
// cache treats entries as immutable values and never inspects their fields.
type LogEntry struct {
	// Hash is the full commit hash.
	Hash string

	// Subject is the first line of the commit message.
	Subject string

	// Body is the remainder of the commit message (may be empty).
	Body string

	// Author is the author's name.
	Author string

	// Email is the author's email address.
	Email string

	// Date is the author timestamp.
	Date time.Time
}

// LogFilter selects which commits a log-entry or count query covers. Every
// field is independently optional; the zero value selects the full history
// of the current branch.
type LogFilter struct {
	// Branch restricts the query to the named branch. Empty means the
	// current branch (HEAD).
	Branch string

	// Stash selects stash entries instead of branch history.
	Stash bool

	// File restricts the query to commits touching the given path.
	File string

	// Line restricts the query to commits touching the given 1-based line
	// of File. Zero means no line restriction.
	Line int

	// Author restricts the query to commits whose author matches.
	Author string
}

// Source is the underlying version-control data source being cached. Each
// call is potentially expensive: implementations shell out to an external
// process or parse repository internals. The gitsource package provides the
// default implementation.
type Source interface {
	// CurrentBranch returns the repository's current branch name, or empty
	// when HEAD is detached or unborn.
	CurrentBranch(ctx context.Context, repo Repository) (string, error)

	// Commits returns the full ordered commit-hash list for the given
	// branch (or HEAD when branch is empty), newest first.
	Commits(ctx context.Context, repo Repository, branch string) ([]string, error)

	// CommitCount returns the number of commits on the given branch (or
	// HEAD when branch is empty), optionally restricted to an author.
	CommitCount(ctx context.Context, repo Repository, branch, author string) (int, error)

	// LogEntries returns the page [start, start+count) of log entries
	// matching the filter, newest first.
	LogEntries(ctx context.Context, repo Repository, start, count int, filter LogFilter) ([]LogEntry, error)
}

// Default tuning values. Each can be overridden with an Option.
const (
	// DefaultQuietPeriod is the debounce interval: a reload runs only after
	// this much time passes with no further filesystem change notification.
	DefaultQuietPeriod = time.Second

	// DefaultFullPageSize is the number of most-recent log entries eagerly
	// cached by a bulk reload or a background warming fetch. A cached page
	// shorter than this is the complete history for its filter.
	DefaultFullPageSize = 1200

	// DefaultLogEntryCacheSize bounds the log-entry cache. Entries are
	// large (up to a full page each), so the bound is small.
	DefaultLogEntryCacheSize = 5

	// DefaultCountCacheSize bounds the commit-count cache. Counts are tiny,
	// so a larger bound is affordable.
	DefaultCountCacheSize = 100
)
