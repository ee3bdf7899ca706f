package histcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// store holds all cache state for the active repository: the two bounded
// LRU families plus the unbounded scalars (current branch, full commit
// list). It never calls into the data source and cannot fail.
//
// store is not safe for concurrent use on its own; the owning Service
// serializes access through its mutex.
type store struct {
	// branch is the last known current-branch name. Empty means unknown.
	branch string

	// commits is the full commit-hash list for the current branch, newest
	// first. Replaced wholesale by reloads, never mutated in place.
	commits []string

	// logEntries caches first pages of log queries, partitioned by
	// (branch, stash, file, line, author).
	logEntries *lru.Cache[string, []LogEntry]

	// counts caches commit counts, partitioned by (branch, author).
	counts *lru.Cache[string, int]
}

// newStore creates an empty store with the given LRU capacities.
// Non-positive capacities fall back to the defaults.
func newStore(logEntryCap, countCap int) *store {
	if logEntryCap <= 0 {
		logEntryCap = DefaultLogEntryCacheSize
	}
	if countCap <= 0 {
		countCap = DefaultCountCacheSize
	}

	// lru.New only fails for non-positive sizes, which are clamped above.
	logEntries, _ := lru.New[string, []LogEntry](logEntryCap)
	counts, _ := lru.New[string, int](countCap)

	return &store{
		logEntries: logEntries,
		counts:     counts,
	}
}

// clear empties both LRU families and resets the scalars to their empty
// defaults. Used when switching repositories and after a failed reload.
func (st *store) clear() {
	st.branch = ""
	st.commits = nil
	st.logEntries.Purge()
	st.counts.Purge()
}
