package zipkit

import (
	"io/fs"
	"log/slog"
	"time"

	"github.com/meigma/zipkit/internal/compress"
)

// DefaultMaxEntrySize is the default limit on the uncompressed size of an
// entry read or written through a session (1GB).
const DefaultMaxEntrySize = 1 << 30

// Option configures an Archive session.
type Option func(*config)

type config struct {
	password         string
	logger           *slog.Logger
	maxEntrySize     uint64
	method           Method
	level            int
	encryption       Encryption
	skipCompression  []SkipCompressionFunc
	comment          string
	maxDecoderMemory uint64
}

func defaultConfig() config {
	return config{
		maxEntrySize:     DefaultMaxEntrySize,
		method:           MethodDeflate,
		encryption:       EncryptionAES256,
		maxDecoderMemory: compress.DefaultMaxDecoderMemory,
	}
}

// WithPassword sets the password used to encrypt entries on write and to
// decrypt them on read. The password is never stored in the archive.
func WithPassword(password string) Option {
	return func(c *config) {
		c.password = password
	}
}

// WithLogger sets the logger for session operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxEntrySize limits the uncompressed size of a single entry.
// Set limit to 0 to disable the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(c *config) {
		c.maxEntrySize = limit
	}
}

// WithCompression sets the preferred compression method for new entries.
// The default is MethodDeflate. Entries that do not shrink are stored.
func WithCompression(m Method) Option {
	return func(c *config) {
		c.method = m
	}
}

// WithCompressionLevel sets the deflate level (1-9).
func WithCompressionLevel(level int) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithEncryption selects the scheme used when a password is set.
// The default is EncryptionAES256; EncryptionZipCrypto is weak and only
// useful for compatibility with old tools.
func WithEncryption(e Encryption) Option {
	return func(c *config) {
		c.encryption = e
	}
}

// WithSkipCompression adds predicates that decide to store an entry
// uncompressed. If any predicate returns true, compression is skipped.
func WithSkipCompression(fns ...SkipCompressionFunc) Option {
	return func(c *config) {
		c.skipCompression = append(c.skipCompression, fns...)
	}
}

// WithComment sets the archive comment written on Close.
func WithComment(comment string) Option {
	return func(c *config) {
		c.comment = comment
	}
}

// WithMaxDecoderMemory limits the memory used by zstd decoders.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = limit
	}
}

// EntryOption configures a single entry written with WriteEntry, WriteFile
// or WriteDir.
type EntryOption func(*entryConfig)

type entryConfig struct {
	modTime time.Time
	mode    fs.FileMode
	comment string
}

// EntryWithModTime sets the entry's modification time. The default is the
// time of the write, or the file's own time for WriteFile.
func EntryWithModTime(t time.Time) EntryOption {
	return func(c *entryConfig) {
		c.modTime = t
	}
}

// EntryWithMode sets the entry's permission bits. Only mode.Perm() is used.
func EntryWithMode(mode fs.FileMode) EntryOption {
	return func(c *entryConfig) {
		c.mode = mode.Perm()
	}
}

// EntryWithComment sets the per-entry comment.
func EntryWithComment(comment string) EntryOption {
	return func(c *entryConfig) {
		c.comment = comment
	}
}
