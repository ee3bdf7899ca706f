package gitsource

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Maopy/githd/histcache"
)

// LogEntries returns the page [start, start+count) of log entries matching
// the filter, newest first.
//
// Stash queries and line-range queries are delegated to the git CLI (see
// cli.go); everything else walks the history with go-git, applying the
// file and author filters during the walk.
func (s *Source) LogEntries(ctx context.Context, repo histcache.Repository, start, count int, filter histcache.LogFilter) ([]histcache.LogEntry, error) {
	if count <= 0 || start < 0 {
		return nil, nil
	}

	if filter.Stash {
		return s.stashEntries(ctx, repo, start, count)
	}
	if filter.Line > 0 && filter.File != "" {
		return s.lineEntries(ctx, repo, start, count, filter)
	}

	r, err := s.open(repo)
	if err != nil {
		return nil, err
	}

	var entries []histcache.LogEntry
	skipped := 0
	err = s.walk(ctx, r, filter.Branch, func(c *object.Commit) error {
		if !authorMatches(c, filter.Author) {
			return nil
		}
		if filter.File != "" {
			touched, err := commitTouchesFile(c, filter.File)
			if err != nil {
				return err
			}
			if !touched {
				return nil
			}
		}
		if skipped < start {
			skipped++
			return nil
		}
		if len(entries) >= count {
			return errPageFull
		}
		entries = append(entries, entryFromCommit(c))
		return nil
	})
	if err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return entries, nil
}

// errPageFull terminates a walk early once the requested page is filled.
// It never escapes LogEntries.
var errPageFull = stopWalk{}

type stopWalk struct{}

func (stopWalk) Error() string { return "page full" }

// commitTouchesFile reports whether the commit changed the given path,
// compared against its first parent (or the empty tree for a root commit).
func commitTouchesFile(c *object.Commit, path string) (bool, error) {
	current, err := c.Tree()
	if err != nil {
		return false, err
	}

	var parent *object.Tree
	if c.NumParents() > 0 {
		p, err := c.Parent(0)
		if err != nil {
			return false, err
		}
		parent, err = p.Tree()
		if err != nil {
			return false, err
		}
	}

	changes, err := object.DiffTree(parent, current)
	if err != nil {
		return false, err
	}
	for _, change := range changes {
		if change.From.Name == path || change.To.Name == path {
			return true, nil
		}
	}
	return false, nil
}

// entryFromCommit converts a go-git commit into a LogEntry.
func entryFromCommit(c *object.Commit) histcache.LogEntry {
	subject, body, _ := strings.Cut(c.Message, "\n")
	return histcache.LogEntry{
		Hash:    c.Hash.String(),
		Subject: strings.TrimSpace(subject),
		Body:    strings.TrimSpace(body),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		Date:    c.Author.When,
	}
}
