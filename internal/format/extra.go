package format

import (
	"fmt"

	"github.com/meigma/zipkit/internal/ziptype"
)

// Extra is one entry of an extra field block.
type Extra struct {
	ID   uint16
	Data []byte
}

// ParseExtras splits an extra field block into its records.
func ParseExtras(b []byte) ([]Extra, error) {
	var out []Extra
	rb := readBuf(b)
	for len(rb) > 0 {
		if len(rb) < 4 {
			return nil, fmt.Errorf("%w: truncated extra field", ziptype.ErrContainerUnreadable)
		}
		id := rb.uint16()
		size := int(rb.uint16())
		if size > len(rb) {
			return nil, fmt.Errorf("%w: extra field 0x%04x overruns header", ziptype.ErrContainerUnreadable, id)
		}
		out = append(out, Extra{ID: id, Data: rb.sub(size)})
	}
	return out, nil
}

// AppendExtra appends one extra field record to dst.
func AppendExtra(dst []byte, id uint16, data []byte) []byte {
	b := writeBuf(dst)
	b.uint16(id)
	b.uint16(uint16(len(data))) //nolint:gosec // extra records are small
	b.bytes(data)
	return b
}

// AESExtra is the WinZip AES extra field.
type AESExtra struct {
	// Version is 1 for AE-1 (CRC stored) or 2 for AE-2 (CRC omitted).
	Version  uint16
	Strength byte
	Method   ziptype.Method
}

// Encode returns the extra field body.
func (a AESExtra) Encode() []byte {
	var b writeBuf
	b.uint16(a.Version)
	b.bytes([]byte("AE"))
	b.uint8(a.Strength)
	b.uint16(uint16(a.Method))
	return b
}

// ParseAESExtra decodes a WinZip AES extra field body.
func ParseAESExtra(data []byte) (AESExtra, error) {
	if len(data) < 7 || data[2] != 'A' || data[3] != 'E' {
		return AESExtra{}, fmt.Errorf("%w: malformed aes extra field", ziptype.ErrContainerUnreadable)
	}
	rb := readBuf(data)
	var a AESExtra
	a.Version = rb.uint16()
	rb.sub(2)
	a.Strength = rb.uint8()
	a.Method = ziptype.Method(rb.uint16())
	return a, nil
}

// zip64Values holds the fields a ZIP64 extra record may override. Only the
// fields whose 32-bit counterparts are saturated are present, in this order.
type zip64Values struct {
	uncompressed *uint64
	compressed   *uint64
	offset       *uint64
}

func (z zip64Values) encode() []byte {
	var b writeBuf
	for _, v := range []*uint64{z.uncompressed, z.compressed, z.offset} {
		if v != nil {
			b.uint64(*v)
		}
	}
	return b
}

func (z zip64Values) decode(data []byte) error {
	rb := readBuf(data)
	for _, v := range []*uint64{z.uncompressed, z.compressed, z.offset} {
		if v == nil {
			continue
		}
		if len(rb) < 8 {
			return fmt.Errorf("%w: short zip64 extra field", ziptype.ErrContainerUnreadable)
		}
		*v = rb.uint64()
	}
	return nil
}
