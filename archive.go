package zipkit

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/zipkit/internal/codec"
	"github.com/meigma/zipkit/internal/compress"
	"github.com/meigma/zipkit/internal/index"
	"github.com/meigma/zipkit/internal/platform"
	"github.com/meigma/zipkit/internal/sizing"
)

// Mode is the state of an Archive session.
type Mode uint8

const (
	// ModeClosed is the state after Close. No operation is valid.
	ModeClosed Mode = iota

	// ModeRead is the state of a session returned by Open.
	ModeRead

	// ModeWrite is the state of a session returned by Create.
	ModeWrite
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Archive is an open ZIP archive, either for reading or for writing.
//
// A read session parses the central directory once at Open; entries are
// decoded on demand. A write session appends entries as they are written and
// emits the central directory on Close.
//
// An Archive is not safe for concurrent use. Use independent sessions on
// independent archives for parallel work.
type Archive struct {
	path   string
	f      *os.File
	mode   Mode
	idx    *index.Index
	codec  *codec.Codec
	cfg    config
	logger *slog.Logger

	// write state
	buf      *bufio.Writer
	out      *countingWriter
	digester digest.Digester
	digest   digest.Digest
	writeErr error
}

// Open opens the archive at path for reading.
//
// Only the end records and the central directory are read. A file without a
// valid end of central directory record fails with ErrContainerUnreadable.
func Open(path string, opts ...Option) (*Archive, error) {
	a := newArchive(path, opts)

	if info, err := os.Stat(path); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrContainerUnreadable, path)
	}
	f, err := platform.OpenNonBlocking(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainerUnreadable, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %w", ErrContainerUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrContainerUnreadable, path)
	}
	idx, err := index.Parse(f, info.Size())
	if err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	a.f = f
	a.idx = idx
	a.mode = ModeRead
	a.log().Debug("archive opened", "path", path, "entries", idx.Len(), "size", info.Size())
	return a, nil
}

// Create creates or truncates the archive at path for writing.
//
// The central directory is written by Close; an archive that is never
// closed is not readable.
func Create(path string, opts ...Option) (*Archive, error) {
	a := newArchive(path, opts)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // archives are shared artifacts
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotCreateContainer, err)
	}

	a.f = f
	a.idx = index.New()
	a.mode = ModeWrite
	a.digester = digest.Canonical.Digester()
	a.buf = bufio.NewWriterSize(io.MultiWriter(f, a.digester.Hash()), 256<<10)
	a.out = &countingWriter{w: a.buf}
	a.log().Debug("archive created", "path", path)
	return a, nil
}

func newArchive(path string, opts []Option) *Archive {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	compOpts := []compress.Option{compress.WithMaxDecoderMemory(cfg.maxDecoderMemory)}
	if cfg.level != 0 {
		compOpts = append(compOpts, compress.WithLevel(cfg.level))
	}
	return &Archive{
		path:   path,
		cfg:    cfg,
		logger: cfg.logger,
		codec:  codec.New(compress.New(compOpts...), codec.WithMaxEntrySize(cfg.maxEntrySize)),
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Path returns the archive's filesystem path.
func (a *Archive) Path() string {
	return a.path
}

// Mode returns the session state.
func (a *Archive) Mode() Mode {
	return a.mode
}

func (a *Archive) require(m Mode, op string) error {
	if a.mode != m {
		return fmt.Errorf("%w: %s on %s session", ErrInvalidOperationForMode, op, a.mode)
	}
	return nil
}

// WriteEntry compresses, optionally encrypts, and appends data under name.
//
// Names ending in "/" are directories and must carry no data. Writing a name
// that already exists supersedes the earlier entry; both remain in the file
// but only the last is visible when reading.
func (a *Archive) WriteEntry(name string, data []byte, opts ...EntryOption) (Entry, error) {
	var ec entryConfig
	for _, opt := range opts {
		opt(&ec)
	}
	return a.writeEntry(name, data, a.cfg.password, ec)
}

func (a *Archive) writeEntry(name string, data []byte, password string, ec entryConfig) (Entry, error) {
	if err := a.require(ModeWrite, "write entry"); err != nil {
		return Entry{}, err
	}
	if a.writeErr != nil {
		return Entry{}, fmt.Errorf("archive write failed earlier: %w", a.writeErr)
	}
	if a.cfg.maxEntrySize > 0 && uint64(len(data)) > a.cfg.maxEntrySize {
		return Entry{}, fmt.Errorf("%s: %w: %d bytes exceeds limit %d", name, ErrSizeOverflow, len(data), a.cfg.maxEntrySize)
	}

	start := a.out.n
	e, _, err := a.codec.Encode(a.out, start, name, data, codec.EncodeOptions{
		Method:     a.cfg.method,
		Skip:       a.cfg.skipCompression,
		Password:   password,
		Encryption: a.cfg.encryption,
		Modified:   ec.modTime,
		Mode:       ec.mode,
		Comment:    ec.comment,
	})
	if err != nil {
		if a.out.n != start {
			// Partial bytes are on disk; later offsets would be wrong.
			a.writeErr = err
		}
		return Entry{}, err
	}

	if _, dup := a.idx.Lookup(name); dup {
		a.log().Debug("superseding duplicate entry", "name", name)
	}
	a.idx.Append(e)
	a.log().Debug("entry written",
		"name", name,
		"method", e.Method.String(),
		"size", e.UncompressedSize,
		"compressed", e.CompressedSize,
		"encrypted", e.Encrypted())
	return e, nil
}

// WriteFile adds the regular file at fsPath as entry name. The file's
// permission bits and modification time are recorded unless overridden.
// Symbolic links and special files fail with ErrUnsupportedFileType.
func (a *Archive) WriteFile(fsPath, name string, opts ...EntryOption) (Entry, error) {
	if err := a.require(ModeWrite, "write file"); err != nil {
		return Entry{}, err
	}
	data, info, err := readRegularFile(fsPath, a.cfg.maxEntrySize)
	if err != nil {
		return Entry{}, err
	}
	ec := entryConfig{modTime: info.ModTime(), mode: info.Mode().Perm()}
	for _, opt := range opts {
		opt(&ec)
	}
	return a.writeEntry(name, data, a.cfg.password, ec)
}

// WriteDir adds a directory entry. A trailing "/" is appended to name if missing.
func (a *Archive) WriteDir(name string, opts ...EntryOption) (Entry, error) {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return a.WriteEntry(name, nil, opts...)
}

// readRegularFile reads fsPath without following a final symlink.
func readRegularFile(fsPath string, limit uint64) ([]byte, fs.FileInfo, error) {
	root, err := os.OpenRoot(filepath.Dir(fsPath))
	if err != nil {
		return nil, nil, err
	}
	defer root.Close()
	return readFromRoot(root, filepath.Base(fsPath), limit)
}

// readFromRoot reads name beneath root, refusing anything that is not a
// regular file. The type is checked before opening so named pipes and
// devices are never opened.
func readFromRoot(root *os.Root, name string, limit uint64) ([]byte, fs.FileInfo, error) {
	linfo, err := root.Lstat(name)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case linfo.Mode()&fs.ModeSymlink != 0:
		return nil, nil, fmt.Errorf("%w: %s is a symbolic link", ErrUnsupportedFileType, name)
	case !linfo.Mode().IsRegular():
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, name, linfo.Mode().Type())
	}

	f, err := platform.OpenFileNoFollow(root, name)
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) {
			return nil, nil, fmt.Errorf("%w: %s is a symbolic link", ErrUnsupportedFileType, name)
		}
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, name, info.Mode().Type())
	}
	if limit == 0 {
		data, err := io.ReadAll(f)
		return data, info, err
	}
	data, err := sizing.ReadAllWithLimit(f, limit, ErrSizeOverflow)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, info, nil
}

// Entry returns the metadata of the named entry.
func (a *Archive) Entry(name string) (Entry, error) {
	if err := a.require(ModeRead, "stat entry"); err != nil {
		return Entry{}, err
	}
	e, ok := a.idx.Lookup(name)
	if !ok {
		return Entry{}, &fs.PathError{Op: "stat", Path: name, Err: ErrNotFound}
	}
	return e, nil
}

// Entries returns an iterator over the entries in stored order. Superseded
// duplicates are skipped. For a write session it lists the entries written
// so far; after Close the sequence is empty.
func (a *Archive) Entries() iter.Seq[Entry] {
	if a.mode == ModeClosed {
		return func(func(Entry) bool) {}
	}
	return a.idx.All()
}

// Len returns the number of distinct entries, or zero after Close.
func (a *Archive) Len() int {
	if a.mode == ModeClosed {
		return 0
	}
	return a.idx.Len()
}

// Comment returns the archive comment.
func (a *Archive) Comment() string {
	switch a.mode {
	case ModeRead:
		return a.idx.Comment()
	case ModeWrite:
		return a.cfg.comment
	default:
		return ""
	}
}

// ReadEntry returns the content of the named entry using the session password.
//
// A wrong password fails with ErrAuthentication before any decompression;
// a checksum mismatch fails with ErrCorruptEntry.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	if err := a.require(ModeRead, "read entry"); err != nil {
		return nil, err
	}
	e, ok := a.idx.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: ErrNotFound}
	}
	return a.readEntry(&e, a.cfg.password)
}

// OpenEntry returns a reader over the content of the named entry. The
// content is decoded and verified before OpenEntry returns.
func (a *Archive) OpenEntry(name string) (io.ReadCloser, error) {
	data, err := a.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *Archive) readEntry(e *Entry, password string) ([]byte, error) {
	loc, err := a.locate(e)
	if err != nil {
		return nil, err
	}
	return a.codec.Decode(a.f, e, loc, password)
}

// locate reads the local header of e. A disagreement with the central
// record is logged and flagged; the central values are used.
func (a *Archive) locate(e *Entry) (codec.Location, error) {
	loc, err := codec.Locate(a.f, e)
	if err != nil {
		return codec.Location{}, err
	}
	if loc.Mismatch != nil && !e.Inconsistent {
		a.idx.MarkInconsistent(e.Name)
		e.Inconsistent = true
		a.log().Warn("inconsistent entry", "name", e.Name, "error", loc.Mismatch)
	}
	return loc, nil
}

// IsPasswordProtected reports whether any entry is encrypted. No password
// is needed.
func (a *Archive) IsPasswordProtected() (bool, error) {
	if err := a.require(ModeRead, "check password protection"); err != nil {
		return false, err
	}
	for e := range a.idx.All() {
		if e.Encrypted() {
			return true, nil
		}
	}
	return false, nil
}

// ValidatePassword checks password against the first encrypted entry only,
// reading its encryption header without decompressing anything. An archive
// without encrypted entries accepts any password.
//
// A password rejected here fails ReadEntry with ErrAuthentication. The
// converse does not hold: the header check lets a wrong password through
// about once in 256 tries for ZipCrypto and once in 65536 for AES, and
// ReadEntry then fails with ErrCorruptEntry instead.
func (a *Archive) ValidatePassword(password string) error {
	if err := a.require(ModeRead, "validate password"); err != nil {
		return err
	}
	for e := range a.idx.All() {
		if !e.Encrypted() {
			continue
		}
		loc, err := a.locate(&e)
		if err != nil {
			return err
		}
		return a.codec.VerifyPassword(a.f, &e, loc, password)
	}
	return nil
}

// Check reads every local header and returns one error per entry that is
// unreadable or disagrees with its central directory record. Disagreeing
// entries stay readable; they are flagged Inconsistent.
func (a *Archive) Check() []error {
	if err := a.require(ModeRead, "check"); err != nil {
		return []error{err}
	}
	var errs []error
	i := 0
	for e := range a.idx.All() {
		loc, err := a.locate(&e)
		switch {
		case err != nil:
			errs = append(errs, &EntryError{Op: "check", Name: e.Name, Index: i, Err: err})
		case loc.Mismatch != nil:
			errs = append(errs, &EntryError{Op: "check", Name: e.Name, Index: i, Err: loc.Mismatch})
		}
		i++
	}
	return errs
}

// Digest returns the SHA-256 digest of the archive written by a write
// session, available once Close has succeeded. It is empty otherwise.
func (a *Archive) Digest() digest.Digest {
	return a.digest
}

// Close releases the archive. For a write session it first writes the
// central directory and end records. Close is idempotent.
func (a *Archive) Close() error {
	switch a.mode {
	case ModeClosed:
		return nil
	case ModeRead:
		a.mode = ModeClosed
		return a.f.Close()
	}

	a.mode = ModeClosed
	err := a.finish()
	if cerr := a.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", a.path, err)
	}
	a.digest = a.digester.Digest()
	a.log().Info("archive written",
		"path", a.path,
		"entries", a.idx.Len(),
		"size", a.out.n,
		"digest", a.digest.String())
	return nil
}

func (a *Archive) finish() error {
	if a.writeErr != nil {
		return a.writeErr
	}
	if _, err := a.idx.WriteCentralDirectory(a.out, a.out.n, a.cfg.comment); err != nil {
		return err
	}
	return a.buf.Flush()
}

// IsPasswordProtected reports whether the archive at path has any encrypted entry.
func IsPasswordProtected(path string) (bool, error) {
	a, err := Open(path)
	if err != nil {
		return false, err
	}
	defer a.Close()
	return a.IsPasswordProtected()
}

// ValidatePassword checks password against the first encrypted entry of the
// archive at path.
func ValidatePassword(path, password string) error {
	a, err := Open(path)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.ValidatePassword(password)
}

// countingWriter tracks the archive offset of the next byte.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n) //nolint:gosec // n is non-negative
	return n, err
}
