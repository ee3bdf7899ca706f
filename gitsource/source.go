package gitsource

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/jmgilman/go/exec"

	"github.com/Maopy/githd/histcache"
)

// Source is the default histcache.Source implementation. Branch state,
// commit walking, counting, and plain log paging use go-git directly;
// stash listing and line-range filtering shell out to the git CLI, which
// go-git does not support.
type Source struct {
	fs      billy.Filesystem
	command *exec.Command
}

// Interface compliance.
var _ histcache.Source = (*Source)(nil)

// New creates a Source. By default repositories are opened from the local
// OS filesystem and CLI operations run the git binary from PATH; both can
// be overridden with options.
//
// Example:
//
//	src := gitsource.New()
//	svc := histcache.New(src)
func New(opts ...SourceOption) *Source {
	s := &Source{
		command: exec.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithFilesystem sets the billy filesystem repositories are opened from.
// If not provided, the local OS filesystem is used. Primarily useful for
// testing with memfs; note that CLI-backed queries (stash, line filters)
// require the OS filesystem.
func WithFilesystem(fs billy.Filesystem) SourceOption {
	return func(s *Source) {
		s.fs = fs
	}
}

// WithCommand sets the command executor used for git CLI operations.
// Primarily useful for testing with a mock executor.
func WithCommand(command *exec.Command) SourceOption {
	return func(s *Source) {
		s.command = command
	}
}

// open opens the repository at repo.Root for reading.
func (s *Source) open(repo histcache.Repository) (*gogit.Repository, error) {
	fs := s.fs
	if fs == nil {
		fs = osfs.New("/")
	}

	scoped, err := fs.Chroot(repo.Root)
	if err != nil {
		return nil, wrapError(err, "failed to scope filesystem to repository")
	}

	// Standard repository when a .git directory exists, bare otherwise.
	if stat, statErr := scoped.Stat(".git"); statErr == nil && stat.IsDir() {
		dotGit, err := scoped.Chroot(".git")
		if err != nil {
			return nil, wrapError(err, "failed to scope filesystem to .git")
		}
		storage := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())
		r, err := gogit.Open(storage, scoped)
		if err != nil {
			return nil, wrapError(err, "failed to open repository")
		}
		return r, nil
	}

	storage := filesystem.NewStorage(scoped, cache.NewObjectLRUDefault())
	r, err := gogit.Open(storage, nil)
	if err != nil {
		return nil, wrapError(err, "failed to open repository")
	}
	return r, nil
}

// CurrentBranch returns the repository's current branch name. An unborn
// HEAD (no commits yet) or a detached HEAD yields an empty name, not an
// error.
func (s *Source) CurrentBranch(ctx context.Context, repo histcache.Repository) (string, error) {
	r, err := s.open(repo)
	if err != nil {
		return "", err
	}

	head, err := r.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", wrapError(err, "failed to resolve HEAD")
	}

	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "", nil
}

// Commits returns the full ordered commit-hash list for branch (or HEAD
// when branch is empty), newest first.
func (s *Source) Commits(ctx context.Context, repo histcache.Repository, branch string) ([]string, error) {
	r, err := s.open(repo)
	if err != nil {
		return nil, err
	}

	var commits []string
	err = s.walk(ctx, r, branch, func(c *object.Commit) error {
		commits = append(commits, c.Hash.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// CommitCount returns the number of commits on branch (or HEAD when branch
// is empty), restricted to an author when one is given. The author filter
// matches a substring of the author's name or email, mirroring git's
// --author matching.
func (s *Source) CommitCount(ctx context.Context, repo histcache.Repository, branch, author string) (int, error) {
	r, err := s.open(repo)
	if err != nil {
		return 0, err
	}

	count := 0
	err = s.walk(ctx, r, branch, func(c *object.Commit) error {
		if authorMatches(c, author) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// walk visits every commit reachable from branch (or HEAD when branch is
// empty) in reverse chronological order, honoring context cancellation
// between commits.
func (s *Source) walk(ctx context.Context, r *gogit.Repository, branch string, visit func(*object.Commit) error) error {
	rev := branch
	if rev == "" {
		rev = "HEAD"
	}

	hash, err := r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return wrapError(err, "failed to resolve revision "+rev)
	}
	from, err := r.CommitObject(*hash)
	if err != nil {
		return wrapError(err, "failed to read commit "+hash.String())
	}

	iter := object.NewCommitPreorderIter(from, nil, nil)
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return visit(c)
	})
	if err != nil {
		return wrapError(err, "failed to walk commits")
	}
	return nil
}

// authorMatches reports whether the commit's author name or email contains
// the filter string. An empty filter matches everything.
func authorMatches(c *object.Commit, author string) bool {
	if author == "" {
		return true
	}
	return strings.Contains(c.Author.Name, author) || strings.Contains(c.Author.Email, author)
}
