package gitsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/exec"

	"github.com/Maopy/githd/histcache"
)

// cliLogFormat renders one commit per unit-separated record: hash, subject,
// author name, author email, author timestamp, body. The record separator
// is \x1e and the field separator \x1f, neither of which can appear in git
// metadata except inside the free-form body. The body is therefore the last
// field: the parser splits off the five fixed fields and keeps the
// remainder verbatim, so field separators inside a body survive, and a
// record separator inside a body at worst truncates that one body.
const cliLogFormat = "%H%x1f%s%x1f%an%x1f%ae%x1f%at%x1f%b%x1e"

// stashEntries lists stash entries via 'git stash list'. go-git has no
// stash support, so this always shells out.
func (s *Source) stashEntries(ctx context.Context, repo histcache.Repository, start, count int) ([]histcache.LogEntry, error) {
	out, err := s.git(ctx, repo, "stash", "list", "--format="+cliLogFormat)
	if err != nil {
		return nil, mapExecError(err, "failed to list stash entries")
	}
	return pageOf(parseCLILog(out), start, count), nil
}

// lineEntries lists commits touching one line of one file via
// 'git log -L'. go-git has no line-range log support, so this always
// shells out. -L cannot skip or limit server-side, so the full result is
// parsed and the window sliced here.
func (s *Source) lineEntries(ctx context.Context, repo histcache.Repository, start, count int, filter histcache.LogFilter) ([]histcache.LogEntry, error) {
	args := []string{
		"log",
		fmt.Sprintf("-L%d,%d:%s", filter.Line, filter.Line, filter.File),
		"--no-patch",
		"--format=" + cliLogFormat,
	}
	if filter.Author != "" {
		args = append(args, "--author="+filter.Author)
	}
	if filter.Branch != "" {
		args = append(args, filter.Branch)
	}

	out, err := s.git(ctx, repo, args...)
	if err != nil {
		return nil, mapExecError(err, "failed to run line-filtered log")
	}
	return pageOf(parseCLILog(out), start, count), nil
}

// git runs a git command in the repository's root directory.
func (s *Source) git(ctx context.Context, repo histcache.Repository, args ...string) (string, error) {
	if isMemoryFilesystem(s.fs) {
		return "", wrapError(
			fmt.Errorf("git CLI operations not supported with memory filesystem"),
			"memory filesystem detected",
		)
	}

	git := exec.NewWrapper(s.command.Clone(), "git")
	result, err := git.WithDir(repo.Root).WithContext(ctx).Run(args...)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// parseCLILog parses cliLogFormat output into log entries. Records that do
// not carry all six fields, or whose timestamp does not parse, are skipped
// rather than failing the page: they are fragments produced by a body that
// happened to contain the record separator.
func parseCLILog(out string) []histcache.LogEntry {
	var entries []histcache.LogEntry
	for _, record := range strings.Split(out, "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, "\x1f", 6)
		if len(fields) != 6 {
			continue
		}

		timestamp, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			continue
		}

		entries = append(entries, histcache.LogEntry{
			Hash:    fields[0],
			Subject: fields[1],
			Author:  fields[2],
			Email:   fields[3],
			Date:    time.Unix(timestamp, 0),
			Body:    strings.TrimSpace(fields[5]),
		})
	}
	return entries
}

// pageOf slices the window [start, start+count) out of entries, clamped to
// the slice bounds.
func pageOf(entries []histcache.LogEntry, start, count int) []histcache.LogEntry {
	if start < 0 || count <= 0 || start >= len(entries) {
		return nil
	}
	end := min(start+count, len(entries))
	return entries[start:end]
}

// isMemoryFilesystem checks if the given filesystem is memory-based.
// Memory-based filesystems cannot be used with git CLI operations since the
// CLI operates on the real filesystem.
func isMemoryFilesystem(fs billy.Filesystem) bool {
	if fs == nil {
		return false
	}
	typeName := fmt.Sprintf("%T", fs)
	return strings.Contains(strings.ToLower(typeName), "mem")
}
