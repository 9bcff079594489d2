package zipkit

import "log/slog"

// ExtractOption configures Extract and ExtractFile.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite          bool
	preserveAttributes bool
	password           string
	progress           ProgressFunc
	cancel             CancelFunc
	filter             FilterFunc
	logger             *slog.Logger
}

// ExtractWithOverwrite allows replacing existing files.
// By default, existing files are skipped and counted in ExtractStats.Skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithPreserveAttributes applies stored permission bits and
// modification times to extracted files and directories.
// By default, files use umask defaults and the current time.
func ExtractWithPreserveAttributes(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveAttributes = preserve
	}
}

// ExtractWithPassword sets the password for encrypted entries, overriding
// the session password.
func ExtractWithPassword(password string) ExtractOption {
	return func(c *extractConfig) {
		c.password = password
	}
}

// ExtractWithProgress sets a callback invoked after each entry, whether it
// was written or skipped.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// ExtractWithCancel sets a hook polled before each entry. When it returns
// true, extraction stops with ErrCancelled. The entry in progress always
// completes.
func ExtractWithCancel(fn CancelFunc) ExtractOption {
	return func(c *extractConfig) {
		c.cancel = fn
	}
}

// FilterFunc reports whether an entry should be extracted.
type FilterFunc func(e Entry) bool

// ExtractWithFilter restricts extraction to entries for which fn returns
// true. Excluded entries are counted in ExtractStats.Filtered and produce no
// progress events. Entry indexes in errors and events keep their stored
// positions.
func ExtractWithFilter(fn FilterFunc) ExtractOption {
	return func(c *extractConfig) {
		c.filter = fn
	}
}

// ExtractWithLogger sets the logger for extraction.
// If not set, the session logger is used.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}
