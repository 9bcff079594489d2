package format

import (
	"encoding/binary"
	"math"
	"time"
)

// TimeToDOS converts t to MS-DOS date and time fields, in UTC with two-second
// resolution. Times before 1980 are clamped to 1980-01-01.
func TimeToDOS(t time.Time) (date, tm uint16) {
	t = t.UTC()
	if t.Year() < 1980 {
		return 1<<5 | 1, 0
	}
	if t.Year() > 2107 {
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
	}
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

// DOSToTime converts MS-DOS date and time fields to a UTC time.
func DOSToTime(date, tm uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(tm>>11),
		int(tm>>5&0x3f),
		int(tm&0x1f)*2,
		0,
		time.UTC,
	)
}

// ExtTimeExtra returns the extended timestamp extra field body carrying the
// modification time, or nil if t does not fit in 32-bit Unix seconds.
func ExtTimeExtra(t time.Time) []byte {
	secs := t.Unix()
	if secs < math.MinInt32 || secs > math.MaxInt32 {
		return nil
	}
	var b writeBuf
	// flags: modification time present
	b.uint8(1)
	b.uint32(uint32(int32(secs))) //nolint:gosec // range checked above
	return b
}

// ParseExtTime returns the modification time from an extended timestamp
// extra field body.
func ParseExtTime(data []byte) (time.Time, bool) {
	if len(data) < 5 || data[0]&1 == 0 {
		return time.Time{}, false
	}
	secs := int32(binary.LittleEndian.Uint32(data[1:5])) //nolint:gosec // field is a signed 32-bit value
	return time.Unix(int64(secs), 0).UTC(), true
}
