// Package testutil provides in-memory repository fixtures for testing
// against gitsource. Repositories live entirely on billy's memory
// filesystem, so tests run without touching the real filesystem or
// requiring a git binary.
package testutil

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Standard author identity for fixture commits.
const (
	TestAuthor = "Test User"
	TestEmail  = "test@example.com"
)

// Repo is an in-memory Git repository fixture.
type Repo struct {
	// Root is the repository's path inside FS; pass it to
	// histcache.Repository{Root: ...}.
	Root string

	// FS is the outer filesystem holding the repository; pass it to
	// gitsource.WithFilesystem.
	FS billy.Filesystem

	repo *gogit.Repository
	wt   billy.Filesystem
}

// NewMemoryRepo initializes an empty repository at root on a fresh memory
// filesystem.
//
// Example:
//
//	fixture, err := testutil.NewMemoryRepo("/repo")
//	require.NoError(t, err)
//	src := gitsource.New(gitsource.WithFilesystem(fixture.FS))
func NewMemoryRepo(root string) (*Repo, error) {
	fs := memfs.New()
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	scoped, err := fs.Chroot(root)
	if err != nil {
		return nil, err
	}
	dotGit, err := scoped.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storage := filesystem.NewStorage(dotGit, cache.NewObjectLRUDefault())
	repo, err := gogit.Init(storage, scoped)
	if err != nil {
		return nil, err
	}

	return &Repo{
		Root: root,
		FS:   fs,
		repo: repo,
		wt:   scoped,
	}, nil
}

// Underlying returns the go-git repository for operations the fixture does
// not wrap.
func (r *Repo) Underlying() *gogit.Repository {
	return r.repo
}

// CommitFile writes path with content and commits it with the standard
// test identity, returning the commit hash.
func (r *Repo) CommitFile(path, content, message string) (string, error) {
	return r.CommitFileAs(TestAuthor, TestEmail, path, content, message)
}

// CommitFileAs writes path with content and commits it with the given
// author identity, returning the commit hash.
func (r *Repo) CommitFileAs(author, email, path, content, message string) (string, error) {
	file, err := r.wt.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := file.Write([]byte(content)); err != nil {
		_ = file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return "", err
	}
	if _, err := wt.Add(path); err != nil {
		return "", err
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// CreateBranch creates a branch named name at the current HEAD without
// checking it out.
func (r *Repo) CreateBranch(name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return err
	}
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	return r.repo.Storer.SetReference(ref)
}

// Checkout switches the working tree to the named branch.
func (r *Repo) Checkout(name string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	})
}

// Detach checks out the given commit hash directly, leaving HEAD detached.
func (r *Repo) Detach(hash string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{
		Hash: plumbing.NewHash(hash),
	})
}
