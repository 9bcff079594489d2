package zipkit

import "log/slog"

// DefaultMaxFiles is the default limit on the number of entries added by a
// single PackDirectory call.
const DefaultMaxFiles = 200_000

// PackOption configures PackFiles and PackDirectory.
type PackOption func(*packConfig)

type packConfig struct {
	password        string
	keepParent      bool
	progress        ProgressFunc
	cancel          CancelFunc
	skipUnsupported bool
	logger          *slog.Logger
	maxFiles        int
	archiveOpts     []Option
}

// PackWithPassword encrypts the packed entries with password, overriding the
// session password.
func PackWithPassword(password string) PackOption {
	return func(c *packConfig) {
		c.password = password
	}
}

// PackWithKeepParentDirectory prefixes entry names with the base name of the
// packed directory, so "root/sub/c.txt" is stored as "root/sub/c.txt" rather
// than "sub/c.txt".
func PackWithKeepParentDirectory(keep bool) PackOption {
	return func(c *packConfig) {
		c.keepParent = keep
	}
}

// PackWithProgress sets a callback invoked after each entry is added.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(c *packConfig) {
		c.progress = fn
	}
}

// PackWithCancel sets a hook polled before each entry. Returning true stops
// packing with ErrCancelled.
func PackWithCancel(fn CancelFunc) PackOption {
	return func(c *packConfig) {
		c.cancel = fn
	}
}

// PackWithSkipUnsupported skips symbolic links and special files instead of
// failing with ErrUnsupportedFileType.
func PackWithSkipUnsupported(skip bool) PackOption {
	return func(c *packConfig) {
		c.skipUnsupported = skip
	}
}

// PackWithLogger sets the logger for packing.
// If not set, the session logger is used.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(c *packConfig) {
		c.logger = logger
	}
}

// PackWithMaxFiles limits the number of entries PackDirectory adds.
// Zero uses DefaultMaxFiles; a negative value disables the limit.
func PackWithMaxFiles(n int) PackOption {
	return func(c *packConfig) {
		c.maxFiles = n
	}
}

// PackWithArchiveOptions sets the session options used by CreateFromFiles
// and CreateFromDirectory when they create the archive.
func PackWithArchiveOptions(opts ...Option) PackOption {
	return func(c *packConfig) {
		c.archiveOpts = append(c.archiveOpts, opts...)
	}
}
