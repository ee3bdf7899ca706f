package gitsource

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maopy/githd/histcache"
)

func TestScanRepositories(t *testing.T) {
	fs := memfs.New()
	for _, dir := range []string{
		"/work/alpha/.git",
		"/work/nested/beta/.git",
		"/work/.hidden/gamma/.git",
		"/work/too/deep/down/delta/.git",
		"/work/plain",
	} {
		require.NoError(t, fs.MkdirAll(dir, 0o755))
	}

	src := New(WithFilesystem(fs))
	repos, err := src.ScanRepositories(context.Background(), []string{"/work"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []histcache.Repository{
		{Root: "/work/alpha"},
		{Root: "/work/nested/beta"},
	}, repos)
}

func TestScanRepositories_DeduplicatesOverlappingRoots(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/work/alpha/.git", 0o755))

	src := New(WithFilesystem(fs))
	repos, err := src.ScanRepositories(context.Background(), []string{"/work", "/work/alpha"})
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestScanRepositories_Cancelled(t *testing.T) {
	src := New(WithFilesystem(memfs.New()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.ScanRepositories(ctx, []string{"/work"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
