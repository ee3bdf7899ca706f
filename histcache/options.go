package histcache

import (
	"log/slog"
	"time"
)

// Option configures a Service at construction time.
type Option func(*serviceOptions)

type serviceOptions struct {
	quietPeriod       time.Duration
	fullPageSize      int
	logEntryCacheSize int
	countCacheSize    int
	watcherFactory    WatcherFactory
	logger            *slog.Logger
}

// WithQuietPeriod sets the debounce interval for filesystem change
// notifications. A reload runs only after this much time elapses with no
// further notification. Defaults to DefaultQuietPeriod.
//
// Example:
//
//	svc := histcache.New(src, histcache.WithQuietPeriod(500*time.Millisecond))
func WithQuietPeriod(d time.Duration) Option {
	return func(opts *serviceOptions) {
		opts.quietPeriod = d
	}
}

// WithFullPageSize sets the number of most-recent log entries eagerly
// cached by reloads and warming fetches. Defaults to DefaultFullPageSize.
func WithFullPageSize(n int) Option {
	return func(opts *serviceOptions) {
		opts.fullPageSize = n
	}
}

// WithLogEntryCacheSize sets the capacity of the log-entry LRU cache.
// Defaults to DefaultLogEntryCacheSize.
func WithLogEntryCacheSize(n int) Option {
	return func(opts *serviceOptions) {
		opts.logEntryCacheSize = n
	}
}

// WithCountCacheSize sets the capacity of the commit-count LRU cache.
// Defaults to DefaultCountCacheSize.
func WithCountCacheSize(n int) Option {
	return func(opts *serviceOptions) {
		opts.countCacheSize = n
	}
}

// WithWatcherFactory sets the factory used to establish the filesystem
// watch on attach. Defaults to NewFSWatcher. Primarily useful for callers
// that already have watch plumbing (an editor host, for example) or for
// tests.
//
// Example:
//
//	svc := histcache.New(src, histcache.WithWatcherFactory(myFactory))
func WithWatcherFactory(f WatcherFactory) Option {
	return func(opts *serviceOptions) {
		opts.watcherFactory = f
	}
}

// WithLogger sets the logger for background diagnostics (reload outcomes,
// discarded stale reloads, warming failures). If unset, diagnostics are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *serviceOptions) {
		opts.logger = logger
	}
}
