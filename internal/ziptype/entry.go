package ziptype

import (
	"io/fs"
	"strings"
	"time"
)

// General purpose bit flags.
const (
	FlagEncrypted      uint16 = 1 << 0
	FlagDataDescriptor uint16 = 1 << 3
	FlagUTF8           uint16 = 1 << 11
)

// Entry describes a file or directory stored in an archive.
type Entry struct {
	// Name is the archive-relative path, forward-slash separated.
	// Directory names end in "/".
	Name string

	// UncompressedSize is the size of the original content.
	UncompressedSize uint64

	// CompressedSize is the size of the stored payload, including any
	// encryption header and trailer.
	CompressedSize uint64

	// CRC32 is the IEEE checksum of the uncompressed content.
	CRC32 uint32

	// Modified is the last modification time.
	Modified time.Time

	// Mode holds the permission bits, plus fs.ModeDir for directories.
	Mode fs.FileMode

	// ExternalAttrs is the raw external attributes field.
	ExternalAttrs uint32

	// Method is the real compression method, even for encrypted entries.
	Method Method

	// Encryption is the protection scheme, EncryptionNone for plain entries.
	Encryption Encryption

	// AESVersion is the WinZip AES vendor version (1 or 2) for AES entries.
	// AE-2 entries do not carry a CRC.
	AESVersion uint16

	// AESStrength is the WinZip AES key strength (1, 2 or 3 for 128, 192
	// or 256 bits) for AES entries.
	AESStrength byte

	// Flags is the general purpose bit flag field.
	Flags uint16

	// CreatorVersion is the "version made by" field.
	CreatorVersion uint16

	// Offset is the byte offset of the local file header.
	Offset uint64

	// Comment is the per-entry comment.
	Comment string

	// Inconsistent is set when the local header was found to disagree with
	// the central directory record.
	Inconsistent bool
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Encrypted reports whether the entry is password protected.
func (e *Entry) Encrypted() bool {
	return e.Flags&FlagEncrypted != 0
}

// HasDataDescriptor reports whether sizes and CRC follow the entry data.
func (e *Entry) HasDataDescriptor() bool {
	return e.Flags&FlagDataDescriptor != 0
}
