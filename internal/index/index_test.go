package index

import (
	"bytes"
	"io/fs"
	"iter"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipkit/internal/ziptype"
)

func entry(name string, offset uint64, size uint64) ziptype.Entry {
	mode := fs.FileMode(0o644)
	if name[len(name)-1] == '/' {
		mode = fs.ModeDir | 0o755
		size = 0
	}
	return ziptype.Entry{
		Name:             name,
		UncompressedSize: size,
		CompressedSize:   size,
		CRC32:            uint32(size) * 7, //nolint:gosec // test values are small
		Modified:         time.Date(2024, 1, 2, 3, 4, 6, 0, time.UTC),
		Mode:             mode,
		Offset:           offset,
	}
}

func names(seq iter.Seq[ziptype.Entry]) []string {
	var out []string
	for e := range seq {
		out = append(out, e.Name)
	}
	return out
}

// buildArchive writes a fake data region of dataLen bytes followed by the
// central directory of idx.
func buildArchive(t *testing.T, idx *Index, dataLen int, comment string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xAB}, dataLen))
	n, err := idx.WriteCentralDirectory(&buf, uint64(dataLen), comment) //nolint:gosec // test sizes are small
	require.NoError(t, err)
	require.Equal(t, uint64(buf.Len()-dataLen), n) //nolint:gosec // test sizes are small
	return buf.Bytes()
}

func TestIndex_AppendLookup(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Append(entry("a.txt", 0, 5))
	idx.Append(entry("dir/", 40, 0))
	idx.Append(entry("dir/b.txt", 80, 3))

	t.Run("existing", func(t *testing.T) {
		t.Parallel()
		e, ok := idx.Lookup("dir/b.txt")
		require.True(t, ok)
		assert.Equal(t, uint64(80), e.Offset)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, ok := idx.Lookup("nope")
		assert.False(t, ok)
	})

	t.Run("order", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"a.txt", "dir/", "dir/b.txt"}, names(idx.All()))
		assert.Equal(t, 3, idx.Len())
	})
}

func TestIndex_DuplicatesLastWins(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Append(entry("x.txt", 0, 1))
	idx.Append(entry("y.txt", 50, 2))
	idx.Append(entry("x.txt", 100, 3))

	e, ok := idx.Lookup("x.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(3), e.UncompressedSize)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"y.txt", "x.txt"}, names(idx.All()))
	assert.Len(t, idx.Records(), 3)
}

func TestIndex_AllStopsEarly(t *testing.T) {
	t.Parallel()

	idx := New()
	for _, n := range []string{"a", "b", "c"} {
		idx.Append(entry(n, 0, 1))
	}
	var seen []string
	for e := range idx.All() {
		seen = append(seen, e.Name)
		if e.Name == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestIndex_Inconsistent(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Append(entry("a", 0, 1))
	idx.Append(entry("b", 10, 1))

	assert.Empty(t, idx.Inconsistent())
	assert.True(t, idx.MarkInconsistent("b"))
	assert.False(t, idx.MarkInconsistent("missing"))
	assert.Equal(t, []string{"b"}, idx.Inconsistent())

	e, _ := idx.Lookup("b")
	assert.True(t, e.Inconsistent)
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []ziptype.Entry
		comment string
	}{
		{name: "empty archive"},
		{
			name:    "files and dirs",
			entries: []ziptype.Entry{entry("a.txt", 0, 5), entry("sub/", 20, 0), entry("sub/c.txt", 40, 9)},
			comment: "archive comment",
		},
		{
			name:    "duplicates",
			entries: []ziptype.Entry{entry("dup", 0, 1), entry("dup", 30, 2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := New()
			for _, e := range tt.entries {
				src.Append(e)
			}
			data := buildArchive(t, src, 128, tt.comment)

			idx, err := Parse(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			assert.Equal(t, tt.comment, idx.Comment())
			assert.Len(t, idx.Records(), len(tt.entries))
			assert.Equal(t, names(src.All()), names(idx.All()))

			for want := range src.All() {
				got, ok := idx.Lookup(want.Name)
				require.True(t, ok)
				assert.Equal(t, want.Offset, got.Offset)
				assert.Equal(t, want.UncompressedSize, got.UncompressedSize)
				assert.Equal(t, want.CRC32, got.CRC32)
				assert.Equal(t, want.Mode, got.Mode)
				assert.True(t, want.Modified.Equal(got.Modified))
			}
		})
	}
}

func TestParse_ManyEntries(t *testing.T) {
	t.Parallel()

	src := New()
	for i := range 70000 {
		src.Append(entry("dir"+strconv.Itoa(i%26)+"/"+strconv.Itoa(i), uint64(i), 1)) //nolint:gosec // i is non-negative
	}
	data := buildArchive(t, src, 0, "")

	idx, err := Parse(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 70000, idx.Len())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	src := New()
	src.Append(entry("a.txt", 0, 5))
	src.Append(entry("b.txt", 10, 5))
	data := buildArchive(t, src, 32, "")

	tests := []struct {
		name string
		data []byte
	}{
		{"empty file", nil},
		{"not a zip", bytes.Repeat([]byte("x"), 256)},
		{"truncated end record", data[:len(data)-5]},
		{"truncated directory", append(bytes.Clone(data[:40]), data[len(data)-22:]...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(bytes.NewReader(tt.data), int64(len(tt.data)))
			require.ErrorIs(t, err, ziptype.ErrContainerUnreadable)
		})
	}
}
