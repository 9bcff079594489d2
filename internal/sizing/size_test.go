package sizing

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTest = errors.New("overflow")

func TestClamp32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      uint64
		want    uint32
		needs64 bool
	}{
		{"zero", 0, 0, false},
		{"small", 1234, 1234, false},
		{"just below", math.MaxUint32 - 1, math.MaxUint32 - 1, false},
		{"sentinel", math.MaxUint32, math.MaxUint32, true},
		{"large", 1 << 40, math.MaxUint32, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, needs := Clamp32(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.needs64, needs)
		})
	}
}

func TestClamp16(t *testing.T) {
	t.Parallel()

	got, needs := Clamp16(10)
	assert.Equal(t, uint16(10), got)
	assert.False(t, needs)

	got, needs = Clamp16(70000)
	assert.Equal(t, uint16(math.MaxUint16), got)
	assert.True(t, needs)
}

func TestAddUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	data, err := ReadAllWithLimit(bytes.NewReader([]byte("hello")), 5, errTest)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("hello!")), 5, errTest)
	require.ErrorIs(t, err, errTest)
}

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(42, errTest)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ToInt64(math.MaxUint64, errTest)
	require.ErrorIs(t, err, errTest)
}
