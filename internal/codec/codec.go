// Package codec encodes and decodes single archive entries: the local file
// header, the compressed and optionally encrypted payload, and the checks
// that tie them back to the central directory record.
//
// The codec performs no filesystem access; it reads through io.ReaderAt and
// writes through io.Writer.
package codec

import (
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/meigma/zipkit/internal/compress"
	"github.com/meigma/zipkit/internal/format"
	"github.com/meigma/zipkit/internal/sizing"
	"github.com/meigma/zipkit/internal/zcrypto"
	"github.com/meigma/zipkit/internal/ziptype"
)

// maxNameLen bounds entry names and comments, which are stored with 16-bit lengths.
const maxNameLen = 0xffff

// Codec encodes and decodes entry payloads.
//
// A Codec is safe for concurrent use.
type Codec struct {
	comp         *compress.Codec
	maxEntrySize uint64
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxEntrySize limits the uncompressed size Decode will materialize.
// Zero disables the limit.
func WithMaxEntrySize(limit uint64) Option {
	return func(c *Codec) {
		c.maxEntrySize = limit
	}
}

// New creates a Codec that delegates compression to comp.
// A nil comp uses compress.New().
func New(comp *compress.Codec, opts ...Option) *Codec {
	if comp == nil {
		comp = compress.New()
	}
	c := &Codec{comp: comp}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncodeOptions controls how a single entry is written.
type EncodeOptions struct {
	// Method is the preferred compression method. Empty payloads,
	// directories and entries matched by Skip are stored, as is any payload
	// that Method does not shrink.
	Method ziptype.Method

	// Skip lists predicates that force an entry to be stored.
	Skip []compress.SkipFunc

	// Password enables encryption when non-empty.
	Password string

	// Encryption selects the scheme used with Password.
	// EncryptionNone means EncryptionAES256.
	Encryption ziptype.Encryption

	// Modified is the modification time. The zero value means now.
	Modified time.Time

	// Mode holds the permission bits. Zero means 0o644 for files and
	// 0o755 for directories.
	Mode fs.FileMode

	// Comment is the per-entry comment.
	Comment string
}

// Encode writes the local header and payload for raw under name to w, which
// is positioned at offset. It returns the entry metadata and the number of
// bytes written.
func (c *Codec) Encode(w io.Writer, offset uint64, name string, raw []byte, opts EncodeOptions) (ziptype.Entry, uint64, error) {
	if err := validateName(name); err != nil {
		return ziptype.Entry{}, 0, err
	}
	if len(opts.Comment) > maxNameLen {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: %s: comment too long", ziptype.ErrInvalidName, name)
	}
	isDir := strings.HasSuffix(name, "/")
	if isDir && len(raw) > 0 {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: %s: directory entries carry no data", ziptype.ErrInvalidName, name)
	}

	e := ziptype.Entry{
		Name:             name,
		UncompressedSize: uint64(len(raw)),
		CRC32:            crc32.ChecksumIEEE(raw),
		Modified:         opts.Modified,
		Mode:             entryMode(opts.Mode, isDir),
		Flags:            format.NameFlags(name),
		CreatorVersion:   format.CreatorVersion,
		Offset:           offset,
		Comment:          opts.Comment,
	}
	if e.Modified.IsZero() {
		e.Modified = time.Now()
	}
	e.ExternalAttrs = format.ModeToExternal(e.Mode)

	payload, method, err := c.compress(name, raw, opts)
	if err != nil {
		return ziptype.Entry{}, 0, err
	}
	e.Method = method

	if opts.Password != "" && !isDir {
		payload, err = seal(&e, payload, opts)
		if err != nil {
			return ziptype.Entry{}, 0, err
		}
	}
	e.CompressedSize = uint64(len(payload))

	header := format.EncodeLocal(&e)
	if _, err := w.Write(header); err != nil {
		return ziptype.Entry{}, 0, fmt.Errorf("write local header %s: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return ziptype.Entry{}, 0, fmt.Errorf("write entry data %s: %w", name, err)
	}
	return e, uint64(len(header)) + e.CompressedSize, nil
}

// compress picks the method for raw and returns the encoded payload.
func (c *Codec) compress(name string, raw []byte, opts EncodeOptions) ([]byte, ziptype.Method, error) {
	method := opts.Method
	if len(raw) == 0 || strings.HasSuffix(name, "/") || compress.ShouldSkip(name, int64(len(raw)), opts.Skip) {
		method = ziptype.MethodStore
	}
	if method == ziptype.MethodStore {
		return raw, method, nil
	}
	packed, err := c.comp.Compress(raw, method)
	if err != nil {
		return nil, 0, fmt.Errorf("compress %s: %w", name, err)
	}
	if len(packed) >= len(raw) {
		return raw, ziptype.MethodStore, nil
	}
	return packed, method, nil
}

func seal(e *ziptype.Entry, payload []byte, opts EncodeOptions) ([]byte, error) {
	enc := opts.Encryption
	if enc == ziptype.EncryptionNone {
		enc = ziptype.EncryptionAES256
	}
	scheme, err := zcrypto.For(enc)
	if err != nil {
		return nil, err
	}
	sealed, err := scheme.Seal(opts.Password, payload, byte(e.CRC32>>24))
	if err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", e.Name, err)
	}
	e.Flags |= ziptype.FlagEncrypted
	e.Encryption = enc
	if enc == ziptype.EncryptionAES256 {
		e.AESVersion = 1
		e.AESStrength = zcrypto.AESStrength256
	}
	return sealed, nil
}

func validateName(name string) error {
	switch {
	case name == "" || name == "/":
		return fmt.Errorf("%w: empty name", ziptype.ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: name too long (%d bytes)", ziptype.ErrInvalidName, len(name))
	case strings.IndexByte(name, 0) >= 0:
		return fmt.Errorf("%w: %q contains NUL", ziptype.ErrInvalidName, name)
	}
	return nil
}

func entryMode(mode fs.FileMode, isDir bool) fs.FileMode {
	perm := mode.Perm()
	if isDir {
		if perm == 0 {
			perm = 0o755
		}
		return fs.ModeDir | perm
	}
	if perm == 0 {
		perm = 0o644
	}
	return perm
}

// Location is where an entry's data starts, as found by Locate.
type Location struct {
	// DataOffset is the offset of the first payload byte.
	DataOffset int64

	// ModTime is the DOS time field of the local header. Traditional
	// encryption derives its check byte from it when a data descriptor is used.
	ModTime uint16

	// Mismatch is non-nil when the local header disagrees with the central
	// directory record. It wraps ErrInconsistentEntry. The central values
	// stay authoritative.
	Mismatch error
}

// Locate reads the local header of e and compares it with the central record.
// Errors reading the header itself wrap ErrCorruptEntry.
func Locate(r io.ReaderAt, e *ziptype.Entry) (Location, error) {
	off, err := sizing.ToInt64(e.Offset, ziptype.ErrSizeOverflow)
	if err != nil {
		return Location{}, fmt.Errorf("%s: %w", e.Name, err)
	}
	h, dataOff, err := format.ReadLocalHeader(r, off)
	if err != nil {
		return Location{}, fmt.Errorf("%s: %w", e.Name, err)
	}
	loc := Location{DataOffset: dataOff, ModTime: h.ModTime}
	loc.Mismatch = compareLocal(r, e, h, dataOff)
	return loc, nil
}

func compareLocal(r io.ReaderAt, e *ziptype.Entry, h *format.LocalHeader, dataOff int64) error {
	mismatch := func(field string, local, central any) error {
		return fmt.Errorf("%w: %s: local %s %v, central %v", ziptype.ErrInconsistentEntry, e.Name, field, local, central)
	}
	if string(h.Name) != e.Name {
		return mismatch("name", string(h.Name), e.Name)
	}
	centralMethod := e.Method
	if e.Encryption == ziptype.EncryptionAES256 {
		centralMethod = ziptype.MethodAES
	}
	if h.Method != centralMethod {
		return mismatch("method", h.Method, centralMethod)
	}
	if h.Flags&ziptype.FlagDataDescriptor != 0 {
		compressed, err := sizing.ToInt64(e.CompressedSize, ziptype.ErrSizeOverflow)
		if err != nil {
			return mismatch("descriptor offset", "overflow", e.CompressedSize)
		}
		crc, err := format.ReadDescriptorCRC(r, dataOff+compressed)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ziptype.ErrInconsistentEntry, e.Name, err)
		}
		if crc != e.CRC32 {
			return mismatch("descriptor crc", crc, e.CRC32)
		}
		return nil
	}
	if h.CRC32 != e.CRC32 {
		return mismatch("crc", h.CRC32, e.CRC32)
	}
	if h.CompressedSize != e.CompressedSize {
		return mismatch("compressed size", h.CompressedSize, e.CompressedSize)
	}
	if h.UncompressedSize != e.UncompressedSize {
		return mismatch("size", h.UncompressedSize, e.UncompressedSize)
	}
	return nil
}

// Decode reads, decrypts, decompresses and verifies the content of e.
//
// For encrypted entries the password is checked against the encryption
// header before the payload is read; a mismatch returns ErrAuthentication.
// A CRC mismatch returns ErrCorruptEntry.
func (c *Codec) Decode(r io.ReaderAt, e *ziptype.Entry, loc Location, password string) ([]byte, error) {
	if e.IsDir() {
		return []byte{}, nil
	}
	if !compress.Supported(e.Method) {
		return nil, fmt.Errorf("%s: %w: compression %d", e.Name, ziptype.ErrUnsupportedMethod, e.Method)
	}
	if c.maxEntrySize > 0 && e.UncompressedSize > c.maxEntrySize {
		return nil, fmt.Errorf("%s: %w: %d bytes exceeds limit %d", e.Name, ziptype.ErrSizeOverflow, e.UncompressedSize, c.maxEntrySize)
	}

	var scheme zcrypto.Scheme
	if e.Encrypted() {
		var err error
		scheme, err = c.verify(r, e, loc, password)
		if err != nil {
			return nil, err
		}
	}

	size, err := sizing.ToInt(e.CompressedSize, ziptype.ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	payload := make([]byte, size)
	if err := readFull(r, payload, loc.DataOffset); err != nil {
		return nil, fmt.Errorf("%w: %s: read data: %w", ziptype.ErrCorruptEntry, e.Name, err)
	}

	if scheme != nil {
		payload, err = scheme.Open(password, payload, checkByte(e, loc))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
	}

	raw, err := c.comp.Decompress(payload, e.Method, e.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if skipsCRC(e) {
		return raw, nil
	}
	if sum := crc32.ChecksumIEEE(raw); sum != e.CRC32 {
		return nil, fmt.Errorf("%w: %s: crc32 %08x, want %08x", ziptype.ErrCorruptEntry, e.Name, sum, e.CRC32)
	}
	return raw, nil
}

// VerifyPassword checks password against the encryption header of e without
// reading the payload. Unencrypted entries always verify.
func (c *Codec) VerifyPassword(r io.ReaderAt, e *ziptype.Entry, loc Location, password string) error {
	if !e.Encrypted() {
		return nil
	}
	_, err := c.verify(r, e, loc, password)
	return err
}

func (c *Codec) verify(r io.ReaderAt, e *ziptype.Entry, loc Location, password string) (zcrypto.Scheme, error) {
	if password == "" {
		return nil, fmt.Errorf("%s: %w", e.Name, ziptype.ErrPasswordRequired)
	}
	scheme, err := zcrypto.ForEntry(e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if e.CompressedSize < uint64(scheme.Overhead()) {
		return nil, fmt.Errorf("%w: %s: payload shorter than encryption overhead", ziptype.ErrCorruptEntry, e.Name)
	}
	header := make([]byte, scheme.HeaderSize())
	if err := readFull(r, header, loc.DataOffset); err != nil {
		return nil, fmt.Errorf("%w: %s: read encryption header: %w", ziptype.ErrCorruptEntry, e.Name, err)
	}
	if err := scheme.Verify(password, header, checkByte(e, loc)); err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	return scheme, nil
}

// checkByte is the last byte of a traditional encryption header.
func checkByte(e *ziptype.Entry, loc Location) byte {
	if e.HasDataDescriptor() {
		return byte(loc.ModTime >> 8)
	}
	return byte(e.CRC32 >> 24)
}

// skipsCRC reports whether e carries no CRC to verify (WinZip AE-2).
func skipsCRC(e *ziptype.Entry) bool {
	return e.Encryption == ziptype.EncryptionAES256 && e.AESVersion == 2
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}
