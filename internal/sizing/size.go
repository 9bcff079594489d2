// Package sizing provides overflow-checked conversions between the integer
// widths used by ZIP headers and Go's native sizes.
package sizing

import (
	"io"
	"math"
)

// Sentinel field values that signal a ZIP64 extra field holds the real value.
const (
	Max16 = math.MaxUint16
	Max32 = math.MaxUint32
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Clamp32 returns v as a 32-bit header field, or Max32 when the value must be
// carried in a ZIP64 extra field instead.
func Clamp32(v uint64) (field uint32, needs64 bool) {
	if v >= Max32 {
		return Max32, true
	}
	return uint32(v), false
}

// Clamp16 is Clamp32 for 16-bit count fields.
func Clamp16(v uint64) (field uint16, needs64 bool) {
	if v >= Max16 {
		return Max16, true
	}
	return uint16(v), false
}

// ReadAllWithLimit reads up to maxSize bytes from r.
// Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int64(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: limit}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize { //nolint:gosec // len is always non-negative
		return nil, overflowErr
	}
	return data, nil
}
