package zcrypto

import (
	"fmt"
	"hash/crc32"

	"github.com/meigma/zipkit/internal/ziptype"
)

// ZipCryptoHeaderSize is the size of the traditional encryption header.
const ZipCryptoHeaderSize = 12

// ZipCrypto implements traditional PKWARE encryption. Its 12-byte header ends
// with a check byte that gives a 1 in 256 chance of accepting a wrong password.
type ZipCrypto struct{}

// HeaderSize implements Scheme.
func (ZipCrypto) HeaderSize() int { return ZipCryptoHeaderSize }

// Overhead implements Scheme.
func (ZipCrypto) Overhead() int { return ZipCryptoHeaderSize }

// Seal implements Scheme. check becomes the last header byte.
func (ZipCrypto) Seal(password string, plain []byte, check byte) ([]byte, error) {
	out := make([]byte, ZipCryptoHeaderSize+len(plain))
	if err := randomBytes(out[:ZipCryptoHeaderSize-1]); err != nil {
		return nil, fmt.Errorf("generate header: %w", err)
	}
	out[ZipCryptoHeaderSize-1] = check
	copy(out[ZipCryptoHeaderSize:], plain)

	k := newPKKeys(password)
	for i, p := range out {
		out[i] = p ^ k.streamByte()
		k.update(p)
	}
	return out, nil
}

// Verify implements Scheme.
func (ZipCrypto) Verify(password string, header []byte, check byte) error {
	if len(header) < ZipCryptoHeaderSize {
		return fmt.Errorf("%w: short encryption header", ziptype.ErrCorruptEntry)
	}
	k := newPKKeys(password)
	var last byte
	for _, c := range header[:ZipCryptoHeaderSize] {
		last = c ^ k.streamByte()
		k.update(last)
	}
	if last != check {
		return ziptype.ErrAuthentication
	}
	return nil
}

// Open implements Scheme.
func (ZipCrypto) Open(password string, data []byte, check byte) ([]byte, error) {
	if len(data) < ZipCryptoHeaderSize {
		return nil, fmt.Errorf("%w: short encryption header", ziptype.ErrCorruptEntry)
	}
	k := newPKKeys(password)
	plain := make([]byte, len(data))
	for i, c := range data {
		p := c ^ k.streamByte()
		k.update(p)
		plain[i] = p
	}
	if plain[ZipCryptoHeaderSize-1] != check {
		return nil, ziptype.ErrAuthentication
	}
	return plain[ZipCryptoHeaderSize:], nil
}

type pkKeys [3]uint32

func newPKKeys(password string) *pkKeys {
	k := &pkKeys{0x12345678, 0x23456789, 0x34567890}
	for i := range len(password) {
		k.update(password[i])
	}
	return k
}

func (k *pkKeys) update(b byte) {
	k[0] = crcUpdate(k[0], b)
	k[1] += k[0] & 0xff
	k[1] = k[1]*134775813 + 1
	k[2] = crcUpdate(k[2], byte(k[1]>>24))
}

func (k *pkKeys) streamByte() byte {
	t := uint16(k[2] | 2)
	return byte((t * (t ^ 1)) >> 8)
}

func crcUpdate(crc uint32, b byte) uint32 {
	return crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
}
