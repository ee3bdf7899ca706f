package histcache

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service is the read-through caching layer between a history viewer and a
// version-control data source. It serves repetitive queries from memory,
// watches the active repository for changes, and transparently falls back
// to the live source whenever the cache cannot be trusted: callers never
// need to know whether a result came from cache or from a live fetch.
//
// A Service caches at most one repository at a time (see Attach). All
// methods are safe for concurrent use.
//
// Example:
//
//	svc := histcache.New(gitsource.New())
//	defer svc.Close()
//
//	if err := svc.Attach(ctx, histcache.Repository{Root: "/path/to/repo"}); err != nil {
//	    return err
//	}
//
//	entries, err := svc.GetLogEntries(ctx, repo, 0, 50, histcache.LogFilter{})
type Service struct {
	source       Source
	newWatcher   WatcherFactory
	clock        clock
	logger       *slog.Logger
	quietPeriod  time.Duration
	fullPageSize int

	// warmGroup deduplicates concurrent background warming fetches for the
	// same cache key.
	warmGroup singleflight.Group

	mu        sync.Mutex
	active    Repository
	store     *store
	watcher   Watcher
	state     refreshState
	timer     stopper
	timerGen  uint64
	reloadGen uint64
}

// New creates a Service over the given data source. The returned Service
// has no active repository; call Attach before querying, or every query
// will pass through to the live source.
func New(source Source, opts ...Option) *Service {
	s := &Service{
		source:       source,
		newWatcher:   NewFSWatcher,
		clock:        systemClock{},
		quietPeriod:  DefaultQuietPeriod,
		fullPageSize: DefaultFullPageSize,
	}

	cfg := &serviceOptions{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.quietPeriod > 0 {
		s.quietPeriod = cfg.quietPeriod
	}
	if cfg.fullPageSize > 0 {
		s.fullPageSize = cfg.fullPageSize
	}
	if cfg.watcherFactory != nil {
		s.newWatcher = cfg.watcherFactory
	}
	s.logger = cfg.logger
	s.store = newStore(cfg.logEntryCacheSize, cfg.countCacheSize)

	return s
}

// log returns the logger, falling back to a discard logger if none was set.
func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Attach makes repo the active repository: the one whose queries may be
// served from cache. Attaching the already-active repository is a no-op.
//
// Switching repositories tears down the filesystem watch, any pending
// reload timer, and all cache state. It then arms a new watch over the
// repository's .git directory and starts a reload so the cache is
// populated without waiting for a change notification. The watch is
// established before the reload begins: a repository mutation landing
// while the reload is in flight is observed and schedules a follow-up
// refresh rather than going unseen. An in-flight reload for the previous
// repository is made inert: its results are discarded when it completes.
//
// Attaching the zero Repository detaches entirely; subsequent queries pass
// through to the live source.
//
// If the filesystem watch cannot be established the error is returned, but
// the repository is still attached and its initial reload still runs; the
// cache simply will not observe later repository changes.
func (s *Service) Attach(ctx context.Context, repo Repository) error {
	s.mu.Lock()
	if repo.Root == s.active.Root {
		s.mu.Unlock()
		return nil
	}
	s.detachLocked()
	s.active = repo
	s.mu.Unlock()

	if repo.absent() {
		return nil
	}

	w, watchErr := s.newWatcher(filepath.Join(repo.Root, ".git"))

	s.mu.Lock()
	if s.active.Root != repo.Root {
		// A concurrent Attach switched repositories while the watch was
		// being created.
		s.mu.Unlock()
		if w != nil {
			_ = w.Close()
		}
		return nil
	}
	if watchErr == nil {
		s.watcher = w
	}
	s.startReloadLocked()
	s.mu.Unlock()

	if watchErr != nil {
		s.log().Warn("failed to watch repository", "repo", repo.Root, "error", watchErr)
		return watchErr
	}
	go s.consume(w)
	return nil
}

// Close detaches from the active repository and releases the filesystem
// watch and any pending reload timer. Close is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.active = Repository{}
	return nil
}

// Refresh schedules a debounced reload of the active repository's cache,
// exactly as a filesystem change notification would. Use it when a
// repository mutation is known to have happened outside the watched
// subtree.
func (s *Service) Refresh() {
	s.scheduleRefresh()
}

// detachLocked tears down watch, timer, and cache state. Any in-flight
// reload is invalidated via the generation counters. Callers must hold
// s.mu.
func (s *Service) detachLocked() {
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.reloadGen++
	s.store.clear()
	s.state = refreshIdle
}

// consume pumps watcher notifications into the refresh scheduler until the
// watcher closes.
func (s *Service) consume(w Watcher) {
	events, errs := w.Events(), w.Errors()
	for events != nil || errs != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.scheduleRefresh()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log().Warn("watch error", "error", err)
		}
	}
}

// useCacheLocked is the cache usability predicate: the cache may serve repo
// only if repo is the active repository and no refresh is pending or in
// flight. Callers must hold s.mu.
func (s *Service) useCacheLocked(repo Repository) bool {
	return !repo.absent() && repo.Root == s.active.Root && s.state == refreshIdle
}

// GetLogEntries returns the page [start, start+count) of log entries
// matching the filter, newest first.
//
// When the cache is usable for repo and holds a page that covers the
// requested window, or holds the complete history for the filter (the case
// whenever the stored page is shorter than the full-page size), the slice
// is served from memory with no live call. Otherwise the window
// is fetched live and returned as-is.
//
// A first-page miss additionally warms the cache for future callers: a
// request already at least a full page wide caches its own result when that
// result turns out to be the complete history, while a narrower request
// triggers a separate out-of-band fetch of the first full page. Warming is
// invisible to the caller; its failures are logged and otherwise ignored.
func (s *Service) GetLogEntries(ctx context.Context, repo Repository, start, count int, filter LogFilter) ([]LogEntry, error) {
	if repo.absent() {
		return nil, nil
	}

	s.mu.Lock()
	usable := s.useCacheLocked(repo)
	var cached []LogEntry
	var hit bool
	if usable {
		cached, hit = s.store.logEntries.Get(logEntryKey(filter))
	}
	s.mu.Unlock()

	if hit {
		complete := len(cached) < s.fullPageSize
		if complete || start+count <= len(cached) {
			return pageOf(cached, start, count), nil
		}
	}

	entries, err := s.source.LogEntries(ctx, repo, start, count, filter)
	if err != nil {
		return nil, err
	}

	// Only first pages are worth caching: arbitrary windows deep in the
	// history are rarely revisited.
	if usable && start == 0 {
		switch {
		case count >= s.fullPageSize:
			if len(entries) < s.fullPageSize {
				// The result is already the complete history; store a copy
				// directly instead of refetching. The slice handed back to
				// the caller must never alias the cache.
				s.storeLogEntries(repo, filter, slices.Clone(entries))
			}
		default:
			go s.warmLogEntries(repo, filter)
		}
	}

	return entries, nil
}

// warmLogEntries fetches the first full page for the filter out-of-band and
// stores it for future callers. Concurrent warms for the same key collapse
// into one fetch.
func (s *Service) warmLogEntries(repo Repository, filter LogFilter) {
	key := repo.Root + keySep + logEntryKey(filter)
	_, err, _ := s.warmGroup.Do(key, func() (any, error) {
		entries, err := s.source.LogEntries(context.Background(), repo, 0, s.fullPageSize, filter)
		if err != nil {
			return nil, err
		}
		s.storeLogEntries(repo, filter, entries)
		return nil, nil
	})
	if err != nil {
		s.log().Warn("cache warming failed", "repo", repo.Root, "error", err)
	}
}

// storeLogEntries writes a fetched page into the cache unless the active
// repository changed while the fetch was in flight.
func (s *Service) storeLogEntries(repo Repository, filter LogFilter, entries []LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo.Root != s.active.Root {
		return
	}
	s.store.logEntries.Add(logEntryKey(filter), entries)
}

// GetCommitsCount returns the number of commits on branch (or HEAD when
// branch is empty), optionally restricted to an author. Counts are cached
// on miss, including a count of zero.
func (s *Service) GetCommitsCount(ctx context.Context, repo Repository, branch, author string) (int, error) {
	if repo.absent() {
		return 0, nil
	}

	s.mu.Lock()
	usable := s.useCacheLocked(repo)
	if usable {
		if n, ok := s.store.counts.Get(countKey(branch, author)); ok {
			s.mu.Unlock()
			return n, nil
		}
	}
	s.mu.Unlock()

	n, err := s.source.CommitCount(ctx, repo, branch, author)
	if err != nil {
		return 0, err
	}

	if usable {
		s.mu.Lock()
		if repo.Root == s.active.Root {
			s.store.counts.Add(countKey(branch, author), n)
		}
		s.mu.Unlock()
	}
	return n, nil
}

// GetCurrentBranch returns the repository's current branch name. The cached
// value is served when usable; otherwise the live source is queried. A live
// result is not cached here; only a bulk reload populates the branch.
func (s *Service) GetCurrentBranch(ctx context.Context, repo Repository) (string, error) {
	if repo.absent() {
		return "", nil
	}

	s.mu.Lock()
	if s.useCacheLocked(repo) && s.store.branch != "" {
		branch := s.store.branch
		s.mu.Unlock()
		return branch, nil
	}
	s.mu.Unlock()

	return s.source.CurrentBranch(ctx, repo)
}

// GetNextCommit returns the hash of the chronologically newer neighbor of
// ref in the repository's commit history, or empty if ref is the newest
// commit or is not found.
func (s *Service) GetNextCommit(ctx context.Context, repo Repository, ref string) (string, error) {
	commits, i, err := s.locateCommit(ctx, repo, ref)
	if err != nil || i <= 0 {
		return "", err
	}
	return commits[i-1], nil
}

// GetPreviousCommit returns the hash of the chronologically older neighbor
// of ref in the repository's commit history, or empty if ref is the oldest
// commit or is not found.
func (s *Service) GetPreviousCommit(ctx context.Context, repo Repository, ref string) (string, error) {
	commits, i, err := s.locateCommit(ctx, repo, ref)
	if err != nil || i < 0 || i >= len(commits)-1 {
		return "", err
	}
	return commits[i+1], nil
}

// HasNeighborCommits reports whether ref has an older and a newer neighbor
// in the repository's commit history. An unknown ref has neither.
func (s *Service) HasNeighborCommits(ctx context.Context, repo Repository, ref string) (hasOlder, hasNewer bool, err error) {
	commits, i, err := s.locateCommit(ctx, repo, ref)
	if err != nil || i < 0 {
		return false, false, err
	}
	return i < len(commits)-1, i > 0, nil
}

// locateCommit resolves ref's index in the (cached-or-fetched) newest-first
// commit list. The list is cached only by bulk reloads; a live fetch here
// does not populate it.
func (s *Service) locateCommit(ctx context.Context, repo Repository, ref string) ([]string, int, error) {
	if repo.absent() {
		return nil, -1, nil
	}

	s.mu.Lock()
	commits := s.store.commits
	usable := s.useCacheLocked(repo) && len(commits) > 0
	s.mu.Unlock()

	if !usable {
		var err error
		commits, err = s.source.Commits(ctx, repo, "")
		if err != nil {
			return nil, -1, err
		}
	}
	return commits, slices.Index(commits, ref), nil
}

// pageOf returns a copy of the window [start, start+count) of entries,
// clamped to the slice bounds. Callers never receive references into the
// cache.
func pageOf(entries []LogEntry, start, count int) []LogEntry {
	if start < 0 || count <= 0 || start >= len(entries) {
		return nil
	}
	end := min(start+count, len(entries))
	return slices.Clone(entries[start:end])
}
