// Package zcrypto implements the password protection schemes used by ZIP
// entries: WinZip AES-256 and traditional PKWARE encryption.
//
// Each scheme prefixes the ciphertext with a short header carrying the
// material needed to reject a wrong password without decrypting the payload.
package zcrypto

import (
	"crypto/rand"
	"fmt"

	"github.com/meigma/zipkit/internal/ziptype"
)

// Scheme encrypts and decrypts a single entry payload.
type Scheme interface {
	// HeaderSize is the number of leading bytes Verify needs.
	HeaderSize() int

	// Overhead is the total number of bytes Seal adds to the plaintext.
	Overhead() int

	// Seal encrypts plain and returns header, ciphertext and any trailer.
	Seal(password string, plain []byte, check byte) ([]byte, error)

	// Verify checks password against the header only. It returns
	// ErrAuthentication on mismatch.
	Verify(password string, header []byte, check byte) error

	// Open verifies and decrypts data produced by Seal.
	Open(password string, data []byte, check byte) ([]byte, error)
}

// For returns the Scheme used to write new entries protected with enc.
func For(enc ziptype.Encryption) (Scheme, error) {
	switch enc {
	case ziptype.EncryptionAES256:
		return AES{Strength: AESStrength256}, nil
	case ziptype.EncryptionZipCrypto:
		return ZipCrypto{}, nil
	default:
		return nil, fmt.Errorf("%w: encryption %s", ziptype.ErrUnsupportedMethod, enc)
	}
}

// ForEntry returns the Scheme needed to read e.
func ForEntry(e *ziptype.Entry) (Scheme, error) {
	if e.Encryption != ziptype.EncryptionAES256 {
		return For(e.Encryption)
	}
	if e.AESStrength < 1 || e.AESStrength > AESStrength256 {
		return nil, fmt.Errorf("%w: aes strength %d", ziptype.ErrUnsupportedMethod, e.AESStrength)
	}
	return AES{Strength: e.AESStrength}, nil
}

// randomBytes is a variable so tests can make salts deterministic.
var randomBytes = func(b []byte) error {
	_, err := rand.Read(b)
	return err
}
