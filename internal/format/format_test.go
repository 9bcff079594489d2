package format

import (
	"bytes"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipkit/internal/ziptype"
)

func TestDOSTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "even seconds",
			in:   time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC),
			want: time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC),
		},
		{
			name: "odd seconds round down",
			in:   time.Date(2024, 3, 15, 10, 20, 31, 500, time.UTC),
			want: time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC),
		},
		{
			name: "before epoch clamps",
			in:   time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			date, tm := TimeToDOS(tt.in)
			assert.True(t, tt.want.Equal(DOSToTime(date, tm)), "got %v", DOSToTime(date, tm))
		})
	}
}

func TestExtTime(t *testing.T) {
	t.Parallel()

	mod := time.Date(2023, 7, 4, 12, 0, 1, 0, time.UTC)
	got, ok := ParseExtTime(ExtTimeExtra(mod))
	require.True(t, ok)
	assert.True(t, mod.Equal(got))

	assert.Nil(t, ExtTimeExtra(time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)))
	_, ok = ParseExtTime([]byte{0, 1, 2, 3, 4})
	assert.False(t, ok)
}

func TestModeMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		creator uint16
		attrs   uint32
		isDir   bool
		want    fs.FileMode
	}{
		{"unix file", CreatorVersion, ModeToExternal(0o640), false, 0o640},
		{"unix dir", CreatorVersion, ModeToExternal(fs.ModeDir | 0o700), true, fs.ModeDir | 0o700},
		{"unix symlink", CreatorUnix << 8, (0o120000 | 0o777) << 16, false, fs.ModeSymlink | 0o777},
		{"dos file", CreatorFAT << 8, 0x20, false, 0o644},
		{"dos read-only", CreatorFAT << 8, 0x01, false, 0o444},
		{"dos dir", CreatorFAT << 8, 0x10, true, fs.ModeDir | 0o755},
		{"unix zero mode dir", CreatorUnix << 8, 0, true, fs.ModeDir | 0o755},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExternalToMode(tt.creator, tt.attrs, tt.isDir))
		})
	}

	assert.Equal(t, uint32(0x10), ModeToExternal(fs.ModeDir|0o755)&0xff)
	assert.Equal(t, uint32(0x01), ModeToExternal(0o444)&0xff)
}

func TestNameFlags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0), NameFlags("plain.txt"))
	assert.Equal(t, ziptype.FlagUTF8, NameFlags("résumé.txt"))
	assert.Equal(t, uint16(0), NameFlags("bad\xff.txt"))
}

func sampleEntry() ziptype.Entry {
	return ziptype.Entry{
		Name:             "dir/file.txt",
		UncompressedSize: 1000,
		CompressedSize:   400,
		CRC32:            0xdeadbeef,
		Modified:         time.Date(2022, 2, 2, 2, 2, 3, 0, time.UTC),
		Mode:             0o600,
		ExternalAttrs:    ModeToExternal(0o600),
		Method:           ziptype.MethodDeflate,
		Offset:           1234,
		Comment:          "note",
	}
}

func TestCentral_RoundTrip(t *testing.T) {
	t.Parallel()

	aes := sampleEntry()
	aes.Flags = ziptype.FlagEncrypted
	aes.Encryption = ziptype.EncryptionAES256
	aes.AESVersion = 1
	aes.AESStrength = 3

	crypto := sampleEntry()
	crypto.Flags = ziptype.FlagEncrypted
	crypto.Encryption = ziptype.EncryptionZipCrypto
	crypto.Method = ziptype.MethodStore

	big := sampleEntry()
	big.Offset = 5 << 30
	big.UncompressedSize = 6 << 30
	big.CompressedSize = 4 << 30

	dir := ziptype.Entry{Name: "dir/", Mode: fs.ModeDir | 0o755, ExternalAttrs: ModeToExternal(fs.ModeDir | 0o755)}

	for name, e := range map[string]ziptype.Entry{
		"plain": sampleEntry(), "aes": aes, "zipcrypto": crypto, "zip64": big, "dir": dir,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			encoded := EncodeCentral(&e)
			got, n, err := DecodeCentral(append(encoded, 0xAA, 0xBB))
			require.NoError(t, err)
			assert.Equal(t, len(encoded), n)

			assert.Equal(t, e.Name, got.Name)
			assert.Equal(t, e.UncompressedSize, got.UncompressedSize)
			assert.Equal(t, e.CompressedSize, got.CompressedSize)
			assert.Equal(t, e.CRC32, got.CRC32)
			assert.Equal(t, e.Offset, got.Offset)
			assert.Equal(t, e.Method, got.Method)
			assert.Equal(t, e.Encryption, got.Encryption)
			assert.Equal(t, e.Mode, got.Mode)
			assert.Equal(t, e.Comment, got.Comment)
			if !e.Modified.IsZero() {
				assert.True(t, e.Modified.Equal(got.Modified))
			}
		})
	}
}

func TestDecodeCentral_Truncated(t *testing.T) {
	t.Parallel()

	e := sampleEntry()
	encoded := EncodeCentral(&e)
	_, _, err := DecodeCentral(encoded[:len(encoded)-2])
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	_, _, err = DecodeCentral(encoded[:10])
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	encoded[0] = 'X'
	_, _, err = DecodeCentral(encoded)
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)
}

func TestLocalHeader_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, e := range map[string]ziptype.Entry{
		"plain": sampleEntry(),
		"zip64": func() ziptype.Entry {
			e := sampleEntry()
			e.UncompressedSize = 5 << 30
			return e
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			prefix := []byte("junk")
			buf := append(prefix, EncodeLocal(&e)...)
			buf = append(buf, []byte("DATA")...)

			h, dataOff, err := ReadLocalHeader(bytes.NewReader(buf), int64(len(prefix)))
			require.NoError(t, err)
			assert.Equal(t, e.Name, string(h.Name))
			assert.Equal(t, e.CRC32, h.CRC32)
			assert.Equal(t, e.CompressedSize, h.CompressedSize)
			assert.Equal(t, e.UncompressedSize, h.UncompressedSize)
			assert.Equal(t, "DATA", string(buf[dataOff:]))
		})
	}
}

func TestReadLocalHeader_BadSignature(t *testing.T) {
	t.Parallel()

	_, _, err := ReadLocalHeader(bytes.NewReader(make([]byte, 64)), 0)
	require.ErrorIs(t, err, ziptype.ErrCorruptEntry)
}

func TestEnd_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		end  End
	}{
		{"empty", End{}},
		{"comment", End{Entries: 3, DirSize: 150, DirOffset: 100, Comment: []byte("hello PK\x05\x06 world")}},
		{"many entries", End{Entries: 70000, DirSize: 100, DirOffset: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archive := make([]byte, tt.end.DirOffset+tt.end.DirSize)
			rec, err := tt.end.Encode()
			require.NoError(t, err)
			archive = append(archive, rec...)

			got, err := FindEnd(bytes.NewReader(archive), int64(len(archive)))
			require.NoError(t, err)
			assert.Equal(t, tt.end.Entries, got.Entries)
			assert.Equal(t, tt.end.DirSize, got.DirSize)
			assert.Equal(t, tt.end.DirOffset, got.DirOffset)
			assert.Equal(t, string(tt.end.Comment), string(got.Comment))
			assert.Equal(t, int64(tt.end.DirOffset+tt.end.DirSize), got.Offset)
		})
	}
}

func TestFindEnd_Errors(t *testing.T) {
	t.Parallel()

	_, err := FindEnd(bytes.NewReader([]byte("PK")), 2)
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	garbage := bytes.Repeat([]byte{0x42}, 200)
	_, err = FindEnd(bytes.NewReader(garbage), int64(len(garbage)))
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	// Directory claims to extend beyond the end record.
	rec, err := End{Entries: 1, DirSize: 500, DirOffset: 0}.Encode()
	require.NoError(t, err)
	_, err = FindEnd(bytes.NewReader(rec), int64(len(rec)))
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	// Truncated record.
	rec, err = End{}.Encode()
	require.NoError(t, err)
	short := rec[:len(rec)-3]
	_, err = FindEnd(bytes.NewReader(short), int64(len(short)))
	require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)

	_, err = End{Comment: make([]byte, 70000)}.Encode()
	require.Error(t, err)
}
