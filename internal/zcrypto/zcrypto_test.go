package zcrypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipkit/internal/ziptype"
)

func schemes(t *testing.T) map[string]Scheme {
	t.Helper()
	out := make(map[string]Scheme)
	for _, enc := range []ziptype.Encryption{ziptype.EncryptionAES256, ziptype.EncryptionZipCrypto} {
		s, err := For(enc)
		require.NoError(t, err)
		out[enc.String()] = s
	}
	return out
}

func TestScheme_RoundTrip(t *testing.T) {
	t.Parallel()

	plain := bytes.Repeat([]byte("secret payload "), 37)
	for name, s := range schemes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			sealed, err := s.Seal("secret", plain, 0xAB)
			require.NoError(t, err)
			assert.Len(t, sealed, len(plain)+s.Overhead())
			assert.NotContains(t, string(sealed), "secret payload")

			require.NoError(t, s.Verify("secret", sealed[:s.HeaderSize()], 0xAB))

			out, err := s.Open("secret", sealed, 0xAB)
			require.NoError(t, err)
			assert.Equal(t, plain, out)
		})
	}
}

func TestScheme_WrongPassword(t *testing.T) {
	t.Parallel()

	plain := []byte("hello")
	for name, s := range schemes(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			sealed, err := s.Seal("secret", plain, 0x42)
			require.NoError(t, err)

			// Both checks must agree; a 1-in-256 false accept is possible for
			// ZipCrypto, so try several wrong passwords and compare outcomes.
			for _, wrong := range []string{"wrong", "Secret", "secret ", ""} {
				verifyErr := s.Verify(wrong, sealed[:s.HeaderSize()], 0x42)
				_, openErr := s.Open(wrong, sealed, 0x42)
				if verifyErr != nil {
					require.ErrorIs(t, verifyErr, ziptype.ErrAuthentication)
					require.ErrorIs(t, openErr, ziptype.ErrAuthentication)
				}
			}
		})
	}
}

func TestAES_TamperedCiphertext(t *testing.T) {
	t.Parallel()

	sealed, err := AES{}.Seal("pw", []byte("some content"), 0)
	require.NoError(t, err)
	sealed[AESSaltSize+AESVerifierSize] ^= 0xff

	_, err = AES{}.Open("pw", sealed, 0)
	require.ErrorIs(t, err, ziptype.ErrCorruptEntry)
}

func TestAES_SaltIsRandom(t *testing.T) {
	t.Parallel()

	a, err := AES{}.Seal("pw", []byte("x"), 0)
	require.NoError(t, err)
	b, err := AES{}.Seal("pw", []byte("x"), 0)
	require.NoError(t, err)
	assert.NotEqual(t, a[:AESSaltSize], b[:AESSaltSize])
}

func TestDeriveKey(t *testing.T) {
	t.Parallel()

	salt := bytes.Repeat([]byte{1}, AESSaltSize)
	k1 := DeriveKey("pw", salt)
	k2 := DeriveKey("pw", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1.Cipher, 32)
	assert.Len(t, k1.MAC, 32)

	k3 := DeriveKey("other", salt)
	assert.NotEqual(t, k1.Cipher, k3.Cipher)
}

func TestCTRLittleEndianCounter(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{7}, 32)
	plain := bytes.Repeat([]byte{0}, 40)

	// Encrypting in one call or in odd-sized chunks yields the same keystream.
	whole := make([]byte, len(plain))
	c, err := newCTR(key)
	require.NoError(t, err)
	c.XORKeyStream(whole, plain)

	chunked := make([]byte, len(plain))
	c, err = newCTR(key)
	require.NoError(t, err)
	c.XORKeyStream(chunked[:5], plain[:5])
	c.XORKeyStream(chunked[5:23], plain[5:23])
	c.XORKeyStream(chunked[23:], plain[23:])
	assert.Equal(t, whole, chunked)
	assert.Equal(t, [16]byte{3}, c.counter, "three blocks consumed starting at 1")
}

func TestShortInputs(t *testing.T) {
	t.Parallel()

	_, err := AES{}.Open("pw", []byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ziptype.ErrCorruptEntry)
	require.ErrorIs(t, AES{}.Verify("pw", []byte{1}, 0), ziptype.ErrCorruptEntry)
	_, err = ZipCrypto{}.Open("pw", []byte{1, 2, 3}, 0)
	require.ErrorIs(t, err, ziptype.ErrCorruptEntry)

	_, err = For(ziptype.EncryptionNone)
	require.ErrorIs(t, err, ziptype.ErrUnsupportedMethod)
}

func TestAES_Strengths(t *testing.T) {
	t.Parallel()

	for _, strength := range []byte{1, 2, 3} {
		e := &ziptype.Entry{Encryption: ziptype.EncryptionAES256, AESStrength: strength}
		s, err := ForEntry(e)
		require.NoError(t, err)
		assert.Equal(t, 4+4*int(strength)+AESVerifierSize, s.HeaderSize())

		sealed, err := s.Seal("pw", []byte("payload"), 0)
		require.NoError(t, err)
		out, err := s.Open("pw", sealed, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), out)
	}

	_, err := ForEntry(&ziptype.Entry{Encryption: ziptype.EncryptionAES256, AESStrength: 4})
	require.ErrorIs(t, err, ziptype.ErrUnsupportedMethod)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// Reference values computed with PBKDF2-HMAC-SHA1 (1000 rounds) and AES-256
// in ECB over little-endian counter blocks, independently of this package.
func TestAES_KnownAnswer(t *testing.T) {
	salt := make([]byte, AESSaltSize)
	for i := range salt {
		salt[i] = byte(i)
	}

	key := DeriveKey("password", salt)
	assert.Equal(t, mustHex(t, "0309e2fe4e0bdfe7d0fe4828d41c234416e2d9bfb61cdd8f643a11cfbfdfc119"), key.Cipher)
	assert.Equal(t, mustHex(t, "e78b0eb3d9243415743b2fe4f5e67c6689bd2c3e512d0fda622dd7d1b0565b83"), key.MAC)
	assert.Equal(t, [AESVerifierSize]byte{0x25, 0x6b}, key.Verifier)

	// Not parallel: randomBytes is package state.
	orig := randomBytes
	randomBytes = func(b []byte) error {
		copy(b, salt)
		return nil
	}
	t.Cleanup(func() { randomBytes = orig })

	sealed, err := AES{Strength: AESStrength256}.Seal("password", []byte("hello, winzip aes"), 0)
	require.NoError(t, err)
	want := mustHex(t, "000102030405060708090a0b0c0d0e0f256be3b1a637b71db7d42429eee9cb8559235ec948cb155ed2c57748f1")
	assert.Equal(t, want, sealed)

	plain, err := AES{Strength: AESStrength256}.Open("password", want, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello, winzip aes", string(plain))
}
