package histcache

import (
	"strconv"
	"strings"
)

// keySep joins key fields. NUL cannot appear in branch names, author
// strings, or file paths, so distinct filter tuples can never collide.
const keySep = "\x00"

// countKey builds the commit-count cache key for a (branch, author) pair.
// An empty author is a valid key of its own, meaning "all authors".
func countKey(branch, author string) string {
	return branch + keySep + author
}

// logEntryKey builds the log-entry cache key for a filter. Omitted optional
// fields contribute an empty segment, so a key with a field absent is always
// distinct from any key where that field is present.
func logEntryKey(f LogFilter) string {
	line := ""
	if f.Line > 0 {
		line = strconv.Itoa(f.Line)
	}
	return strings.Join([]string{
		f.Branch,
		strconv.FormatBool(f.Stash),
		f.File,
		line,
		f.Author,
	}, keySep)
}
