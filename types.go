package zipkit

import (
	"github.com/meigma/zipkit/internal/compress"
	"github.com/meigma/zipkit/internal/ziptype"
)

// Entry describes a file or directory stored in an archive.
type Entry = ziptype.Entry

// Method identifies the compression method of an entry.
type Method = ziptype.Method

// Encryption identifies the password protection scheme of an entry.
type Encryption = ziptype.Encryption

// SkipCompressionFunc returns true when an entry should be stored uncompressed.
// It is called once per entry and should be inexpensive.
type SkipCompressionFunc = compress.SkipFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// payloads and known already-compressed extensions.
var DefaultSkipCompression = compress.DefaultSkipCompression

// Compression methods.
const (
	MethodStore   = ziptype.MethodStore
	MethodDeflate = ziptype.MethodDeflate
	MethodZstd    = ziptype.MethodZstd
)

// Encryption schemes.
const (
	EncryptionNone      = ziptype.EncryptionNone
	EncryptionAES256    = ziptype.EncryptionAES256
	EncryptionZipCrypto = ziptype.EncryptionZipCrypto
)
