package histcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LogEntriesEvictsLeastRecentlyUsed(t *testing.T) {
	st := newStore(0, 0)

	// Fill to capacity (5), then add one more.
	for i := 0; i < DefaultLogEntryCacheSize+1; i++ {
		st.logEntries.Add(fmt.Sprintf("key%d", i), []LogEntry{{Hash: fmt.Sprintf("c%d", i)}})
	}

	_, ok := st.logEntries.Get("key0")
	assert.False(t, ok, "oldest key should have been evicted")
	for i := 1; i <= DefaultLogEntryCacheSize; i++ {
		_, ok := st.logEntries.Get(fmt.Sprintf("key%d", i))
		assert.True(t, ok, "key%d should survive", i)
	}
}

func TestStore_GetProtectsFromEviction(t *testing.T) {
	st := newStore(0, 0)

	for i := 0; i < DefaultLogEntryCacheSize; i++ {
		st.logEntries.Add(fmt.Sprintf("key%d", i), nil)
	}

	// Touch key0 so key1 becomes the eviction candidate.
	_, ok := st.logEntries.Get("key0")
	require.True(t, ok)

	st.logEntries.Add("overflow", nil)

	_, ok = st.logEntries.Get("key0")
	assert.True(t, ok, "recently read key should survive")
	_, ok = st.logEntries.Get("key1")
	assert.False(t, ok, "least recently used key should have been evicted")
}

func TestStore_CountsEvictAtCapacity(t *testing.T) {
	st := newStore(0, 0)

	for i := 0; i < DefaultCountCacheSize+1; i++ {
		st.counts.Add(fmt.Sprintf("key%d", i), i)
	}

	_, ok := st.counts.Get("key0")
	assert.False(t, ok)
	n, ok := st.counts.Get(fmt.Sprintf("key%d", DefaultCountCacheSize))
	require.True(t, ok)
	assert.Equal(t, DefaultCountCacheSize, n)
}

func TestStore_Clear(t *testing.T) {
	st := newStore(0, 0)
	st.branch = "main"
	st.commits = []string{"c1", "c0"}
	st.logEntries.Add("k", []LogEntry{{Hash: "c1"}})
	st.counts.Add("k", 2)

	st.clear()

	assert.Empty(t, st.branch)
	assert.Nil(t, st.commits)
	assert.Zero(t, st.logEntries.Len())
	assert.Zero(t, st.counts.Len())
}
