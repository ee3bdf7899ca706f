// Package histcache provides a read-through caching layer between a
// UI-facing history viewer and a Git data source.
//
// Repeated UI interactions (scrolling a commit list, switching branches,
// filtering by author or file) issue highly repetitive queries against
// data that only changes when the repository itself mutates. Each
// underlying call is potentially expensive (it shells out to git or parses
// repository internals), so the Service answers most queries from memory
// and keeps itself correct by watching the repository for changes.
//
// # Architecture
//
// The package is built from five cooperating pieces:
//
//  1. Cache keys: every filter dimension (branch, stash flag, file, line,
//     author) is embedded in the key, so entries are self-describing and
//     families can be refreshed independently.
//  2. Bounded store: two independently-sized LRU caches, a small one for
//     log-entry pages (large values) and a larger one for commit counts
//     (small values), plus the current branch name and full commit list.
//  3. Refresh scheduler: filesystem change notifications arrive in bursts
//     (a single git operation touches several files under .git), so they
//     are debounced into one bulk reload per quiet period. While a reload
//     is pending or in flight, reads bypass the cache entirely.
//  4. Query gate: per-call logic choosing between cache-read, live fetch,
//     and live fetch with background cache warming. Callers cannot tell
//     which path served them.
//  5. Repository switching: a Service caches exactly one repository at a
//     time. Attach tears down the previous repository's watch, timer, and
//     cache state before arming the new one, and a reload that completes
//     for a no-longer-active repository is silently discarded.
//
// # Usage
//
//	svc := histcache.New(gitsource.New())
//	defer svc.Close()
//
//	repo := histcache.Repository{Root: "/path/to/repo"}
//	if err := svc.Attach(ctx, repo); err != nil {
//	    return err
//	}
//
//	// First page of the current branch's history.
//	entries, err := svc.GetLogEntries(ctx, repo, 0, 50, histcache.LogFilter{})
//
//	// Commits by one author touching one file.
//	entries, err = svc.GetLogEntries(ctx, repo, 0, 50, histcache.LogFilter{
//	    File:   "main.go",
//	    Author: "alice",
//	})
//
// # Error Handling
//
// The cache defines no error kinds of its own. Errors from a foreground
// cache-miss fetch propagate to the caller unchanged; errors from
// background reloads and warming fetches are logged and swallowed, leaving
// the affected entries unset so the next read falls back to the live
// source. Cache contents are never persisted across process restarts.
package histcache
