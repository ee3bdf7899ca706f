package gitsource

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maopy/githd/histcache"
)

func TestParseCLILog(t *testing.T) {
	t.Run("parses records and fields", func(t *testing.T) {
		out := "abc123\x1ffix parser\x1fAlice\x1falice@example.com\x1f1700000000\x1fdetails\nhere\x1e" +
			"def456\x1finitial commit\x1fBob\x1fbob@example.com\x1f1690000000\x1f\x1e"

		entries := parseCLILog(out)
		require.Len(t, entries, 2)

		assert.Equal(t, "abc123", entries[0].Hash)
		assert.Equal(t, "fix parser", entries[0].Subject)
		assert.Equal(t, "Alice", entries[0].Author)
		assert.Equal(t, "alice@example.com", entries[0].Email)
		assert.Equal(t, time.Unix(1700000000, 0), entries[0].Date)
		assert.Equal(t, "details\nhere", entries[0].Body)

		assert.Equal(t, "def456", entries[1].Hash)
		assert.Empty(t, entries[1].Body)
	})

	t.Run("empty output yields no entries", func(t *testing.T) {
		assert.Empty(t, parseCLILog(""))
	})

	t.Run("field separator inside a body is preserved", func(t *testing.T) {
		out := "abc\x1fsubject\x1fAlice\x1fa@example.com\x1f1700000000\x1fbody with \x1f inside\x1e"

		entries := parseCLILog(out)
		require.Len(t, entries, 1)
		assert.Equal(t, "body with \x1f inside", entries[0].Body)
	})

	t.Run("record separator inside a body truncates only that body", func(t *testing.T) {
		out := "abc\x1fsubject\x1fAlice\x1fa@example.com\x1f1700000000\x1fbody torn \x1e in half\x1e" +
			"def\x1fnext\x1fBob\x1fb@example.com\x1f1690000000\x1fintact\x1e"

		entries := parseCLILog(out)
		require.Len(t, entries, 2)
		assert.Equal(t, "abc", entries[0].Hash)
		assert.Equal(t, "body torn", entries[0].Body)
		assert.Equal(t, "def", entries[1].Hash)
		assert.Equal(t, "intact", entries[1].Body)
	})

	t.Run("fragments are skipped, not fatal", func(t *testing.T) {
		assert.Empty(t, parseCLILog("abc\x1fonly two fields\x1e"))
		assert.Empty(t, parseCLILog("a\x1fb\x1fc\x1fd\x1fnot-a-number\x1fe\x1e"))
	})
}

func TestPageOf(t *testing.T) {
	entries := []histcache.LogEntry{
		{Hash: "a"}, {Hash: "b"}, {Hash: "c"},
	}

	tests := []struct {
		name  string
		start int
		count int
		want  []string
	}{
		{name: "full window", start: 0, count: 3, want: []string{"a", "b", "c"}},
		{name: "middle window", start: 1, count: 1, want: []string{"b"}},
		{name: "clamped at the end", start: 2, count: 5, want: []string{"c"}},
		{name: "start past the end", start: 3, count: 1, want: nil},
		{name: "zero count", start: 0, count: 0, want: nil},
		{name: "negative start", start: -1, count: 2, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageOf(entries, tt.start, tt.count)
			var hashes []string
			for _, e := range got {
				hashes = append(hashes, e.Hash)
			}
			assert.Equal(t, tt.want, hashes)
		})
	}
}

func TestIsMemoryFilesystem(t *testing.T) {
	assert.True(t, isMemoryFilesystem(memfs.New()))
	assert.False(t, isMemoryFilesystem(osfs.New("/")))
	assert.False(t, isMemoryFilesystem(nil))
}
