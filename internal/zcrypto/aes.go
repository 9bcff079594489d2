package zcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // mandated by the WinZip AES format
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/meigma/zipkit/internal/ziptype"
)

// WinZip AES parameters. AESSaltSize is the salt size for 256-bit keys.
const (
	AESSaltSize     = 16
	AESVerifierSize = 2
	AESAuthCodeSize = 10
	AESStrength256  = 3

	aesIterations = 1000
)

// AESKey is the key material derived from a password and salt.
type AESKey struct {
	Cipher   []byte
	MAC      []byte
	Verifier [AESVerifierSize]byte
}

// DeriveKey derives the AES key material for password and salt. The key size
// is twice the salt size, as WinZip pairs them.
func DeriveKey(password string, salt []byte) AESKey {
	keySize := 2 * len(salt)
	dk := pbkdf2.Key([]byte(password), salt, aesIterations, 2*keySize+AESVerifierSize, sha1.New)
	var k AESKey
	k.Cipher = dk[:keySize]
	k.MAC = dk[keySize : 2*keySize]
	copy(k.Verifier[:], dk[2*keySize:])
	return k
}

// AES implements WinZip AES (salt, verifier, ciphertext, auth code).
// Strength selects 128, 192 or 256-bit keys; zero means 256.
type AES struct {
	Strength byte
}

func (a AES) saltSize() int {
	s := a.Strength
	if s == 0 {
		s = AESStrength256
	}
	return 4 + 4*int(s)
}

// HeaderSize implements Scheme.
func (a AES) HeaderSize() int { return a.saltSize() + AESVerifierSize }

// Overhead implements Scheme.
func (a AES) Overhead() int { return a.HeaderSize() + AESAuthCodeSize }

// Seal implements Scheme. The check byte is unused.
func (a AES) Seal(password string, plain []byte, _ byte) ([]byte, error) {
	out := make([]byte, a.Overhead()+len(plain))
	salt := out[:a.saltSize()]
	if err := randomBytes(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := DeriveKey(password, salt)
	copy(out[len(salt):], key.Verifier[:])

	body := out[a.HeaderSize() : a.HeaderSize()+len(plain)]
	stream, err := newCTR(key.Cipher)
	if err != nil {
		return nil, err
	}
	stream.XORKeyStream(body, plain)

	mac := hmac.New(sha1.New, key.MAC)
	mac.Write(body)
	copy(out[a.HeaderSize()+len(plain):], mac.Sum(nil)[:AESAuthCodeSize])
	return out, nil
}

// Verify implements Scheme.
func (a AES) Verify(password string, header []byte, _ byte) error {
	_, err := a.verify(password, header)
	return err
}

func (a AES) verify(password string, header []byte) (AESKey, error) {
	if len(header) < a.HeaderSize() {
		return AESKey{}, fmt.Errorf("%w: short aes header", ziptype.ErrCorruptEntry)
	}
	n := a.saltSize()
	key := DeriveKey(password, header[:n])
	pv := header[n : n+AESVerifierSize]
	if subtle.ConstantTimeCompare(pv, key.Verifier[:]) != 1 {
		return AESKey{}, ziptype.ErrAuthentication
	}
	return key, nil
}

// Open implements Scheme.
//
// A verifier match followed by an authentication code mismatch means the
// ciphertext was altered and is reported as ErrCorruptEntry.
func (a AES) Open(password string, data []byte, _ byte) ([]byte, error) {
	if len(data) < a.Overhead() {
		return nil, fmt.Errorf("%w: short aes payload", ziptype.ErrCorruptEntry)
	}
	key, err := a.verify(password, data)
	if err != nil {
		return nil, err
	}
	body := data[a.HeaderSize() : len(data)-AESAuthCodeSize]
	code := data[len(data)-AESAuthCodeSize:]

	mac := hmac.New(sha1.New, key.MAC)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil)[:AESAuthCodeSize], code) {
		return nil, fmt.Errorf("%w: aes authentication code mismatch", ziptype.ErrCorruptEntry)
	}

	plain := make([]byte, len(body))
	stream, err := newCTR(key.Cipher)
	if err != nil {
		return nil, err
	}
	stream.XORKeyStream(plain, body)
	return plain, nil
}

// ctrLE is AES in counter mode with the little-endian counter WinZip uses,
// starting at 1. cipher.NewCTR increments big-endian and cannot be used.
type ctrLE struct {
	block   cipher.Block
	counter [aes.BlockSize]byte
	stream  [aes.BlockSize]byte
	pos     int
}

func newCTR(key []byte) (*ctrLE, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	return &ctrLE{block: block, pos: aes.BlockSize}, nil
}

func (c *ctrLE) XORKeyStream(dst, src []byte) {
	for i, b := range src {
		if c.pos == aes.BlockSize {
			for j := range c.counter {
				c.counter[j]++
				if c.counter[j] != 0 {
					break
				}
			}
			c.block.Encrypt(c.stream[:], c.counter[:])
			c.pos = 0
		}
		dst[i] = b ^ c.stream[c.pos]
		c.pos++
	}
}
