package histcache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// refreshState is the debounced-reload state machine.
//
//	idle       the cache is current; reads may use it.
//	pending    a change was observed; a reload is scheduled but the quiet
//	           period has not elapsed.
//	reloading  the quiet period elapsed; the bulk fetch is in flight.
//
// While pending or reloading, every read path bypasses the cache and calls
// the live source (the staleness mask).
type refreshState int

const (
	refreshIdle refreshState = iota
	refreshPending
	refreshReloading
)

func (s refreshState) String() string {
	switch s {
	case refreshPending:
		return "pending"
	case refreshReloading:
		return "reloading"
	default:
		return "idle"
	}
}

// scheduleRefresh moves the state machine to pending and (re)starts the
// quiet-period timer. Called for every qualifying change notification, so a
// burst of notifications collapses into exactly one reload.
func (s *Service) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.absent() {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.state = refreshPending
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.quietPeriod, func() {
		s.quietElapsed(gen)
	})
}

// quietElapsed fires when the quiet-period timer expires. A stale timer
// (superseded by a later notification or a repository switch) is ignored.
func (s *Service) quietElapsed(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.timerGen || s.state != refreshPending {
		return
	}
	s.startReloadLocked()
}

// startReloadLocked transitions to reloading and launches the bulk fetch
// for the currently active repository. Callers must hold s.mu.
func (s *Service) startReloadLocked() {
	repo := s.active
	if repo.absent() {
		s.state = refreshIdle
		return
	}

	s.state = refreshReloading
	s.reloadGen++
	gen := s.reloadGen
	go s.reload(repo, gen)
}

// reload performs the bulk fetch: current branch, full commit list, commit
// count, and the first full page of log entries. The branch is resolved
// first because the other three queries are scoped to it; those three are
// then issued together and awaited jointly.
//
// Reload errors are never surfaced to a caller; they are logged and the
// store is left empty so reads degrade to live fallback.
func (s *Service) reload(repo Repository, gen uint64) {
	ctx := context.Background()

	branch, err := s.source.CurrentBranch(ctx, repo)
	if err != nil {
		s.failReload(repo, gen, err)
		return
	}

	var (
		commits []string
		count   int
		first   []LogEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		commits, err = s.source.Commits(gctx, repo, branch)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.source.CommitCount(gctx, repo, branch, "")
		return err
	})
	g.Go(func() error {
		var err error
		first, err = s.source.LogEntries(gctx, repo, 0, s.fullPageSize, LogFilter{Branch: branch})
		return err
	})
	if err := g.Wait(); err != nil {
		s.failReload(repo, gen, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.reloadGen || repo.Root != s.active.Root || s.state != refreshReloading {
		// The active repository changed, or a newer reload superseded this
		// one, while the fetch was in flight. The results describe a world
		// nobody is looking at anymore.
		s.log().Debug("discarding stale reload", "repo", repo.Root)
		return
	}

	s.store.branch = branch
	s.store.commits = commits
	s.store.counts.Add(countKey(branch, ""), count)
	s.store.logEntries.Add(logEntryKey(LogFilter{Branch: branch}), first)
	s.state = refreshIdle

	s.log().Debug("reload complete",
		"repo", repo.Root, "branch", branch, "commits", len(commits))
}

// failReload records a reload failure and lifts the staleness mask. The
// store is cleared rather than left stale: subsequent reads miss and fall
// back to the live source, which is always safe.
func (s *Service) failReload(repo Repository, gen uint64, err error) {
	s.log().Warn("reload failed", "repo", repo.Root, "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.reloadGen || s.state != refreshReloading {
		return
	}
	s.store.clear()
	s.state = refreshIdle
}
