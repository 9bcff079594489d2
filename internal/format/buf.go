package format

import "encoding/binary"

// writeBuf appends little-endian fields to a byte slice.
type writeBuf []byte

func (b *writeBuf) uint8(v uint8) {
	*b = append(*b, v)
}

func (b *writeBuf) uint16(v uint16) {
	*b = binary.LittleEndian.AppendUint16(*b, v)
}

func (b *writeBuf) uint32(v uint32) {
	*b = binary.LittleEndian.AppendUint32(*b, v)
}

func (b *writeBuf) uint64(v uint64) {
	*b = binary.LittleEndian.AppendUint64(*b, v)
}

func (b *writeBuf) bytes(p []byte) {
	*b = append(*b, p...)
}

// readBuf consumes little-endian fields from a byte slice. Callers check the
// length before reading.
type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) sub(n int) readBuf {
	v := (*b)[:n]
	*b = (*b)[n:]
	return v
}
