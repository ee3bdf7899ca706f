package gitsource

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/Maopy/githd/histcache"
)

// scanMaxDepth bounds how far below each candidate root the scan descends.
const scanMaxDepth = 2

// ScanRepositories enumerates Git repositories under the given candidate
// roots. A directory counts as a repository when it contains a .git
// directory. Each root is searched a couple of levels deep; hidden
// directories are skipped. Unreadable directories are ignored rather than
// failing the whole scan.
//
// The cache core never calls this; it exists for the UI layer to discover
// which repositories can be attached.
func (s *Source) ScanRepositories(ctx context.Context, roots []string) ([]histcache.Repository, error) {
	fs := s.fs
	if fs == nil {
		fs = osfs.New("/")
	}

	var repos []histcache.Repository
	seen := make(map[string]bool)
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scanDir(ctx, fs, root, scanMaxDepth, seen, &repos)
	}
	return repos, nil
}

func scanDir(ctx context.Context, fs billy.Filesystem, dir string, depth int, seen map[string]bool, repos *[]histcache.Repository) {
	if ctx.Err() != nil || seen[dir] {
		return
	}
	seen[dir] = true

	if stat, err := fs.Stat(filepath.Join(dir, ".git")); err == nil && stat.IsDir() {
		*repos = append(*repos, histcache.Repository{Root: dir})
		return
	}
	if depth == 0 {
		return
	}

	children, err := fs.ReadDir(dir)
	if err != nil {
		return
	}
	for _, child := range children {
		if !child.IsDir() || strings.HasPrefix(child.Name(), ".") {
			continue
		}
		scanDir(ctx, fs, filepath.Join(dir, child.Name()), depth-1, seen, repos)
	}
}
