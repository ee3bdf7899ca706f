package histcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_EventMasksCacheUntilReload(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	repo := env.attach(t, "/a")

	// Warm state: the count is served from the cache.
	before := env.src.callCount("count")
	_, err := env.svc.GetCommitsCount(ctxb(), repo, "main", "")
	require.NoError(t, err)
	assert.Equal(t, before, env.src.callCount("count"))

	// A watcher event starts the quiet period; the cache is now suspect and
	// every query goes live until the reload lands.
	env.watch.last(t).notify()
	env.waitState(t, refreshPending)

	_, err = env.svc.GetCommitsCount(ctxb(), repo, "main", "")
	require.NoError(t, err)
	assert.Equal(t, before+1, env.src.callCount("count"))

	// Quiet period elapses, the reload runs, and caching resumes.
	env.clk.fireLatest(t)
	env.waitState(t, refreshIdle)

	after := env.src.callCount("count")
	_, err = env.svc.GetCommitsCount(ctxb(), repo, "main", "")
	require.NoError(t, err)
	assert.Equal(t, after, env.src.callCount("count"))
}

func TestScheduler_BurstOfEventsCollapsesToOneReload(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	env.attach(t, "/a")
	before := env.src.callCount("branch")

	w := env.watch.last(t)
	w.notify()
	w.notify()
	w.notify()

	// Each event re-arms the timer; only the last one is still live.
	require.Eventually(t, func() bool {
		return env.clk.timerCount() == 3
	}, time.Second, time.Millisecond)
	env.waitState(t, refreshPending)

	env.clk.fireLatest(t)
	env.waitState(t, refreshIdle)
	assert.Equal(t, before+1, env.src.callCount("branch"), "burst must collapse into a single reload")
}

func TestScheduler_StaleTimerGenerationIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	env.attach(t, "/a")

	env.watch.last(t).notify()
	env.waitState(t, refreshPending)

	// A callback from a superseded timer must not start a reload.
	env.svc.mu.Lock()
	stale := env.svc.timerGen - 1
	env.svc.mu.Unlock()
	env.svc.quietElapsed(stale)

	env.svc.mu.Lock()
	assert.Equal(t, refreshPending, env.svc.state)
	env.svc.mu.Unlock()
}

func TestScheduler_SwitchDiscardsInFlightReload(t *testing.T) {
	env := newTestEnv(t)
	fxA := smallFixture()
	fxA.branch = "main-a"
	env.src.add("/a", fxA)

	fxB := smallFixture()
	fxB.branch = "main-b"
	fxB.commits = []string{"b1", "b0"}
	fxB.history = entriesOf("b1", "b0")
	env.src.add("/b", fxB)

	// Block repository A's reload at the branch lookup, before any of the
	// bulk fetches run.
	gate := make(chan struct{})
	env.src.mu.Lock()
	env.src.gates["/a"] = gate
	env.src.mu.Unlock()

	require.NoError(t, env.svc.Attach(ctxb(), Repository{Root: "/a"}))
	require.Eventually(t, func() bool {
		return env.src.callCount("branch") == 1
	}, time.Second, time.Millisecond)

	// Switch to B while A's reload is stuck. B's reload completes normally.
	require.NoError(t, env.svc.Attach(ctxb(), Repository{Root: "/b"}))
	env.waitState(t, refreshIdle)

	env.svc.mu.Lock()
	assert.Equal(t, "main-b", env.svc.store.branch)
	env.svc.mu.Unlock()

	// Release A's reload; its late result must be discarded, not written
	// over B's cache.
	close(gate)
	require.Eventually(t, func() bool {
		return env.src.callCount("commits") == 2
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	env.svc.mu.Lock()
	defer env.svc.mu.Unlock()
	assert.Equal(t, "main-b", env.svc.store.branch)
	assert.Equal(t, []string{"b1", "b0"}, env.svc.store.commits)
	assert.Equal(t, refreshIdle, env.svc.state)
}

func TestScheduler_SwitchClosesPreviousWatcher(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	env.src.add("/b", smallFixture())

	env.attach(t, "/a")
	first := env.watch.last(t)

	env.attach(t, "/b")
	assert.True(t, first.closed)
	assert.Equal(t, 2, env.watch.count())
}

func TestScheduler_FailedReloadClearsCacheAndRecovers(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	env.src.mu.Lock()
	env.src.fail["commits"] = errors.New("object database corrupt")
	env.src.mu.Unlock()

	require.NoError(t, env.svc.Attach(ctxb(), Repository{Root: "/a"}))
	env.waitState(t, refreshIdle)

	env.svc.mu.Lock()
	assert.Empty(t, env.svc.store.branch)
	assert.Nil(t, env.svc.store.commits)
	env.svc.mu.Unlock()

	// The service degrades to live queries rather than failing.
	n, err := env.svc.GetCommitsCount(ctxb(), Repository{Root: "/a"}, "main", "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRefresh_SchedulesDebouncedReload(t *testing.T) {
	env := newTestEnv(t)
	env.src.add("/a", smallFixture())
	env.attach(t, "/a")
	before := env.src.callCount("branch")

	env.svc.Refresh()
	env.waitState(t, refreshPending)
	assert.Equal(t, 1, env.clk.timerCount(), "an explicit refresh goes through the quiet period")

	env.clk.fireLatest(t)
	env.waitState(t, refreshIdle)
	assert.Equal(t, before+1, env.src.callCount("branch"))
}

func TestRefresh_NoopWhenDetached(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Refresh()
	assert.Zero(t, env.clk.timerCount())
}

func TestRefreshState_String(t *testing.T) {
	assert.Equal(t, "idle", refreshIdle.String())
	assert.Equal(t, "pending", refreshPending.String())
	assert.Equal(t, "reloading", refreshReloading.String())
}
