// Package fsops provides the filesystem operations used by extraction:
// existence checks, directory creation, atomic file writes and attribute
// updates, all confined to a root directory through os.Root.
package fsops

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Sink writes extracted entries beneath a root directory.
//
// Files are written to a temporary file in the destination directory and
// renamed into place on success, so a partially written file is never
// visible at its final path.
type Sink struct {
	root          *os.Root
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithOverwrite allows replacing existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(s *Sink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode applies stored permission bits to written files.
func WithPreserveMode(preserve bool) Option {
	return func(s *Sink) {
		s.preserveMode = preserve
	}
}

// WithPreserveTimes applies stored modification times to written files.
func WithPreserveTimes(preserve bool) Option {
	return func(s *Sink) {
		s.preserveTimes = preserve
	}
}

// NewSink creates a Sink writing beneath root. The caller keeps ownership
// of root.
func NewSink(root *os.Root, opts ...Option) *Sink {
	s := &Sink{root: root}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exists reports whether name exists beneath the root. Symbolic links are
// not followed.
func (s *Sink) Exists(name string) bool {
	_, err := s.root.Lstat(name)
	return err == nil
}

// ShouldWrite returns false if name already exists and overwrite is disabled.
func (s *Sink) ShouldWrite(name string) bool {
	return s.overwrite || !s.Exists(name)
}

// MkdirAll creates directory name and any missing parents.
func (s *Sink) MkdirAll(name string) error {
	if name == "." || name == "" {
		return nil
	}
	if err := s.root.MkdirAll(name, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", name, err)
	}
	return nil
}

// WriteFile atomically replaces name with data. Parent directories are
// created as needed. mode and mtime are applied when the Sink preserves them.
func (s *Sink) WriteFile(name string, data []byte, mode fs.FileMode, mtime time.Time) error {
	dir := filepath.Dir(name)
	if err := s.MkdirAll(dir); err != nil {
		return err
	}

	tmp, tmpName, err := s.createTemp(dir)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()            //nolint:errcheck // we're cleaning up
		_ = s.root.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.root.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.applyAttrs(tmpName, mode, mtime); err != nil {
		_ = s.root.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := s.root.Rename(tmpName, name); err != nil {
		_ = s.root.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", name, err)
	}
	return nil
}

// SetAttributes applies mode and mtime to an existing file or directory,
// subject to the Sink's preservation settings.
func (s *Sink) SetAttributes(name string, mode fs.FileMode, mtime time.Time) error {
	return s.applyAttrs(name, mode, mtime)
}

func (s *Sink) applyAttrs(name string, mode fs.FileMode, mtime time.Time) error {
	if s.preserveMode {
		if err := s.root.Chmod(name, mode.Perm()); err != nil {
			return fmt.Errorf("chmod %s: %w", name, err)
		}
	}
	if s.preserveTimes && !mtime.IsZero() {
		if err := s.root.Chtimes(name, mtime, mtime); err != nil {
			return fmt.Errorf("chtimes %s: %w", name, err)
		}
	}
	return nil
}

// createTemp creates an exclusive temporary file in dir.
func (s *Sink) createTemp(dir string) (*os.File, string, error) {
	var suffix [8]byte
	for range 10 {
		if _, err := rand.Read(suffix[:]); err != nil {
			return nil, "", fmt.Errorf("create temp file: %w", err)
		}
		name := filepath.Join(dir, ".zipkit-"+hex.EncodeToString(suffix[:]))
		f, err := s.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // extracted files follow the umask
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create temp file: %w", err)
		}
	}
	return nil, "", errors.New("create temp file: too many collisions")
}
