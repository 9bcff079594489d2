package format

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/zipkit/internal/sizing"
	"github.com/meigma/zipkit/internal/ziptype"
)

// End describes the central directory as recorded by the end of central
// directory record, with ZIP64 values already applied.
type End struct {
	Entries   uint64
	DirSize   uint64
	DirOffset uint64
	Comment   []byte

	// Offset is where the end records start: the ZIP64 end record if
	// present, otherwise the EOCD record.
	Offset int64
}

// Encode returns the end records for a central directory that finishes at
// DirOffset+DirSize. ZIP64 records are emitted only when a field overflows.
func (e End) Encode() ([]byte, error) {
	if len(e.Comment) > maxCommentLen {
		return nil, fmt.Errorf("archive comment too long: %d bytes", len(e.Comment))
	}
	entries, e64 := sizing.Clamp16(e.Entries)
	size, s64 := sizing.Clamp32(e.DirSize)
	offset, o64 := sizing.Clamp32(e.DirOffset)

	var b writeBuf
	if e64 || s64 || o64 {
		zip64End, ok := sizing.AddUint64(e.DirOffset, e.DirSize)
		if !ok {
			return nil, ziptype.ErrSizeOverflow
		}
		b.uint32(Zip64EndSig)
		b.uint64(Zip64EndLen - 12) // size of the remaining record
		b.uint16(CreatorVersion)
		b.uint16(VersionZip64)
		b.uint32(0) // this disk
		b.uint32(0) // disk with central directory
		b.uint64(e.Entries)
		b.uint64(e.Entries)
		b.uint64(e.DirSize)
		b.uint64(e.DirOffset)

		b.uint32(Zip64LocatorSig)
		b.uint32(0) // disk with zip64 end record
		b.uint64(zip64End)
		b.uint32(1) // total disks
	}

	b.uint32(EndSig)
	b.uint16(0) // this disk
	b.uint16(0) // disk with central directory
	b.uint16(entries)
	b.uint16(entries)
	b.uint32(size)
	b.uint32(offset)
	b.uint16(uint16(len(e.Comment))) //nolint:gosec // checked above
	b.bytes(e.Comment)
	return b, nil
}

// FindEnd locates and decodes the end of central directory record of an
// archive of the given size, following the ZIP64 locator when present.
// A missing or truncated record is reported as ErrContainerUnreadable.
func FindEnd(r io.ReaderAt, size int64) (End, error) {
	if size < EndLen {
		return End{}, fmt.Errorf("%w: file too small (%d bytes)", ziptype.ErrContainerUnreadable, size)
	}
	tail := min(size, EndLen+maxCommentLen)
	buf := make([]byte, tail)
	if _, err := r.ReadAt(buf, size-tail); err != nil && !errors.Is(err, io.EOF) {
		return End{}, fmt.Errorf("%w: %w", ziptype.ErrContainerUnreadable, err)
	}

	pos := findEndSignature(buf)
	if pos < 0 {
		return End{}, fmt.Errorf("%w: end of central directory not found", ziptype.ErrContainerUnreadable)
	}
	eocdOffset := size - tail + int64(pos)

	b := readBuf(buf[pos+4:])
	disk := b.uint16()
	dirDisk := b.uint16()
	b.uint16() // entries on this disk
	e := End{Offset: eocdOffset}
	e.Entries = uint64(b.uint16())
	e.DirSize = uint64(b.uint32())
	e.DirOffset = uint64(b.uint32())
	commentLen := int(b.uint16())
	e.Comment = append([]byte(nil), b[:commentLen]...)
	if disk != 0 || dirDisk != 0 {
		return End{}, fmt.Errorf("%w: multi-volume archives are not supported", ziptype.ErrContainerUnreadable)
	}

	if e.Entries == sizing.Max16 || e.DirSize == sizing.Max32 || e.DirOffset == sizing.Max32 {
		if err := readZip64End(r, &e, eocdOffset); err != nil {
			return End{}, err
		}
	}

	dirEnd, ok := sizing.AddUint64(e.DirOffset, e.DirSize)
	if !ok || dirEnd > uint64(e.Offset) { //nolint:gosec // offset is non-negative
		return End{}, fmt.Errorf("%w: central directory extends past end records", ziptype.ErrContainerUnreadable)
	}
	return e, nil
}

// findEndSignature returns the position of the last EOCD signature in buf
// whose record, comment included, fits in buf.
func findEndSignature(buf []byte) int {
	for i := len(buf) - EndLen; i >= 0; i-- {
		if buf[i] != 'P' || buf[i+1] != 'K' || buf[i+2] != 0x05 || buf[i+3] != 0x06 {
			continue
		}
		commentLen := int(buf[i+EndLen-2]) | int(buf[i+EndLen-1])<<8
		if i+EndLen+commentLen <= len(buf) {
			return i
		}
	}
	return -1
}

func readZip64End(r io.ReaderAt, e *End, eocdOffset int64) error {
	if eocdOffset < Zip64LocatorLen {
		// Saturated fields without room for a locator: trust the EOCD values.
		return nil
	}
	var loc [Zip64LocatorLen]byte
	if _, err := r.ReadAt(loc[:], eocdOffset-Zip64LocatorLen); err != nil {
		return fmt.Errorf("%w: read zip64 locator: %w", ziptype.ErrContainerUnreadable, err)
	}
	lb := readBuf(loc[:])
	if lb.uint32() != Zip64LocatorSig {
		return nil
	}
	lb.uint32() // disk with zip64 end record
	recOffset, err := sizing.ToInt64(lb.uint64(), ziptype.ErrContainerUnreadable)
	if err != nil || recOffset+Zip64EndLen > eocdOffset-Zip64LocatorLen {
		return fmt.Errorf("%w: zip64 end record offset out of range", ziptype.ErrContainerUnreadable)
	}

	var rec [Zip64EndLen]byte
	if _, err := r.ReadAt(rec[:], recOffset); err != nil {
		return fmt.Errorf("%w: read zip64 end record: %w", ziptype.ErrContainerUnreadable, err)
	}
	rb := readBuf(rec[:])
	if rb.uint32() != Zip64EndSig {
		return fmt.Errorf("%w: bad zip64 end record signature", ziptype.ErrContainerUnreadable)
	}
	rb.uint64() // record size
	rb.uint16() // version made by
	rb.uint16() // version needed
	rb.uint32() // this disk
	rb.uint32() // disk with central directory
	rb.uint64() // entries on this disk
	e.Entries = rb.uint64()
	e.DirSize = rb.uint64()
	e.DirOffset = rb.uint64()
	e.Offset = recOffset
	return nil
}
