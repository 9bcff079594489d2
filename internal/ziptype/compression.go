package ziptype

// Method identifies the compression method of an entry, using the ZIP method codes.
type Method uint16

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
	MethodZstd    Method = 93

	// MethodAES is the method code written to headers of WinZip AES entries.
	// The real compression method lives in the AES extra field.
	MethodAES Method = 99
)

// String returns the human-readable name of the compression method.
func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	case MethodAES:
		return "aes"
	default:
		return "unknown"
	}
}

// Encryption identifies the password protection scheme of an entry.
type Encryption uint8

const (
	EncryptionNone Encryption = iota
	EncryptionAES256
	EncryptionZipCrypto
)

// String returns the human-readable name of the encryption scheme.
func (e Encryption) String() string {
	switch e {
	case EncryptionNone:
		return "none"
	case EncryptionAES256:
		return "aes-256"
	case EncryptionZipCrypto:
		return "zipcrypto"
	default:
		return "unknown"
	}
}
