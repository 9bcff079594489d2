package format

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/meigma/zipkit/internal/sizing"
	"github.com/meigma/zipkit/internal/ziptype"
)

// LocalHeader is a decoded local file header.
type LocalHeader struct {
	ReaderVersion    uint16
	Flags            uint16
	Method           ziptype.Method // raw field; MethodAES for AES entries
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Name             []byte
	Extra            []byte
}

// NameFlags returns the general purpose flags implied by name: the UTF-8 bit
// is set when the name is valid UTF-8 and not plain ASCII.
func NameFlags(name string) uint16 {
	for i := range len(name) {
		if name[i] >= utf8.RuneSelf {
			if utf8.ValidString(name) {
				return ziptype.FlagUTF8
			}
			return 0
		}
	}
	return 0
}

// headerFields computes the fields shared by local and central headers.
func headerFields(e *ziptype.Entry) (method ziptype.Method, version uint16, extra []byte) {
	method = e.Method
	version = VersionDefault
	if e.Method == ziptype.MethodZstd {
		version = VersionZstd
	}
	if ext := ExtTimeExtra(e.Modified); ext != nil && !e.Modified.IsZero() {
		extra = AppendExtra(extra, ExtTimeExtraID, ext)
	}
	if e.Encryption == ziptype.EncryptionAES256 {
		method = ziptype.MethodAES
		version = max(version, VersionAES)
		aesVersion, strength := e.AESVersion, e.AESStrength
		if aesVersion == 0 {
			aesVersion = 1
		}
		if strength == 0 {
			strength = 3
		}
		extra = AppendExtra(extra, AESExtraID, AESExtra{
			Version:  aesVersion,
			Strength: strength,
			Method:   e.Method,
		}.Encode())
	}
	return method, version, extra
}

// EncodeLocal returns the local file header for e.
func EncodeLocal(e *ziptype.Entry) []byte {
	method, version, extra := headerFields(e)
	comp, c64 := sizing.Clamp32(e.CompressedSize)
	uncomp, u64 := sizing.Clamp32(e.UncompressedSize)
	if c64 || u64 {
		// Local ZIP64 records must carry both sizes.
		comp, uncomp = sizing.Max32, sizing.Max32
		extra = AppendExtra(extra, Zip64ExtraID, zip64Values{
			uncompressed: &e.UncompressedSize,
			compressed:   &e.CompressedSize,
		}.encode())
		version = max(version, VersionZip64)
	}
	date, tm := TimeToDOS(e.Modified)

	b := make(writeBuf, 0, LocalHeaderLen+len(e.Name)+len(extra))
	b.uint32(LocalHeaderSig)
	b.uint16(version)
	b.uint16(e.Flags)
	b.uint16(uint16(method))
	b.uint16(tm)
	b.uint16(date)
	b.uint32(e.CRC32)
	b.uint32(comp)
	b.uint32(uncomp)
	b.uint16(uint16(len(e.Name))) //nolint:gosec // name length validated by the codec
	b.uint16(uint16(len(extra)))  //nolint:gosec // extra records are small
	b.bytes([]byte(e.Name))
	b.bytes(extra)
	return b
}

// ReadLocalHeader reads the local file header at off and returns it together
// with the offset of the entry's data.
func ReadLocalHeader(r io.ReaderAt, off int64) (*LocalHeader, int64, error) {
	var fixed [LocalHeaderLen]byte
	if _, err := r.ReadAt(fixed[:], off); err != nil {
		return nil, 0, fmt.Errorf("%w: read local header at %d: %w", ziptype.ErrCorruptEntry, off, err)
	}
	b := readBuf(fixed[:])
	if sig := b.uint32(); sig != LocalHeaderSig {
		return nil, 0, fmt.Errorf("%w: bad local header signature at %d", ziptype.ErrCorruptEntry, off)
	}
	h := &LocalHeader{}
	h.ReaderVersion = b.uint16()
	h.Flags = b.uint16()
	h.Method = ziptype.Method(b.uint16())
	h.ModTime = b.uint16()
	h.ModDate = b.uint16()
	h.CRC32 = b.uint32()
	h.CompressedSize = uint64(b.uint32())
	h.UncompressedSize = uint64(b.uint32())
	nameLen := int(b.uint16())
	extraLen := int(b.uint16())

	variable := make([]byte, nameLen+extraLen)
	if _, err := r.ReadAt(variable, off+LocalHeaderLen); err != nil {
		return nil, 0, fmt.Errorf("%w: read local header name at %d: %w", ziptype.ErrCorruptEntry, off, err)
	}
	h.Name = variable[:nameLen]
	h.Extra = variable[nameLen:]

	if h.CompressedSize == sizing.Max32 || h.UncompressedSize == sizing.Max32 {
		extras, err := ParseExtras(h.Extra)
		if err != nil {
			return nil, 0, err
		}
		for _, x := range extras {
			if x.ID != Zip64ExtraID {
				continue
			}
			z := zip64Values{}
			if h.UncompressedSize == sizing.Max32 {
				z.uncompressed = &h.UncompressedSize
			}
			if h.CompressedSize == sizing.Max32 {
				z.compressed = &h.CompressedSize
			}
			if err := z.decode(x.Data); err != nil {
				return nil, 0, err
			}
		}
	}
	return h, off + LocalHeaderLen + int64(nameLen) + int64(extraLen), nil
}

// EncodeCentral returns the central directory header for e.
func EncodeCentral(e *ziptype.Entry) []byte {
	method, version, extra := headerFields(e)

	z := zip64Values{}
	comp, c64 := sizing.Clamp32(e.CompressedSize)
	uncomp, u64 := sizing.Clamp32(e.UncompressedSize)
	off, o64 := sizing.Clamp32(e.Offset)
	if u64 {
		z.uncompressed = &e.UncompressedSize
	}
	if c64 {
		z.compressed = &e.CompressedSize
	}
	if o64 {
		z.offset = &e.Offset
	}
	if c64 || u64 || o64 {
		extra = AppendExtra(extra, Zip64ExtraID, z.encode())
		version = max(version, VersionZip64)
	}
	creator := e.CreatorVersion
	if creator == 0 {
		creator = CreatorVersion
	}
	date, tm := TimeToDOS(e.Modified)

	b := make(writeBuf, 0, CentralHeaderLen+len(e.Name)+len(extra)+len(e.Comment))
	b.uint32(CentralHeaderSig)
	b.uint16(creator)
	b.uint16(version)
	b.uint16(e.Flags)
	b.uint16(uint16(method))
	b.uint16(tm)
	b.uint16(date)
	b.uint32(e.CRC32)
	b.uint32(comp)
	b.uint32(uncomp)
	b.uint16(uint16(len(e.Name)))    //nolint:gosec // validated by the codec
	b.uint16(uint16(len(extra)))     //nolint:gosec // extra records are small
	b.uint16(uint16(len(e.Comment))) //nolint:gosec // validated by the codec
	b.uint16(0)                      // disk number start
	b.uint16(0)                      // internal attributes
	b.uint32(e.ExternalAttrs)
	b.uint32(off)
	b.bytes([]byte(e.Name))
	b.bytes(extra)
	b.bytes([]byte(e.Comment))
	return b
}

// DecodeCentral decodes the central directory header at the start of b and
// returns the entry and the number of bytes consumed.
func DecodeCentral(b []byte) (ziptype.Entry, int, error) {
	if len(b) < CentralHeaderLen {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: truncated central directory", ziptype.ErrContainerUnreadable)
	}
	rb := readBuf(b)
	if sig := rb.uint32(); sig != CentralHeaderSig {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: bad central directory signature", ziptype.ErrContainerUnreadable)
	}
	var e ziptype.Entry
	e.CreatorVersion = rb.uint16()
	rb.uint16() // version needed
	e.Flags = rb.uint16()
	method := ziptype.Method(rb.uint16())
	tm := rb.uint16()
	date := rb.uint16()
	e.CRC32 = rb.uint32()
	e.CompressedSize = uint64(rb.uint32())
	e.UncompressedSize = uint64(rb.uint32())
	nameLen := int(rb.uint16())
	extraLen := int(rb.uint16())
	commentLen := int(rb.uint16())
	rb.uint16() // disk number start
	rb.uint16() // internal attributes
	e.ExternalAttrs = rb.uint32()
	e.Offset = uint64(rb.uint32())

	total := CentralHeaderLen + nameLen + extraLen + commentLen
	if len(b) < total {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: truncated central directory record", ziptype.ErrContainerUnreadable)
	}
	e.Name = string(rb.sub(nameLen))
	extra := rb.sub(extraLen)
	e.Comment = string(rb.sub(commentLen))
	if e.Name == "" {
		return ziptype.Entry{}, 0, fmt.Errorf("%w: empty entry name", ziptype.ErrContainerUnreadable)
	}

	e.Method = method
	e.Modified = DOSToTime(date, tm)
	if err := applyCentralExtras(&e, method, extra); err != nil {
		return ziptype.Entry{}, 0, fmt.Errorf("%s: %w", e.Name, err)
	}
	if e.Encrypted() && e.Encryption == ziptype.EncryptionNone {
		e.Encryption = ziptype.EncryptionZipCrypto
	}
	e.Mode = ExternalToMode(e.CreatorVersion, e.ExternalAttrs, strings.HasSuffix(e.Name, "/"))
	return e, total, nil
}

func applyCentralExtras(e *ziptype.Entry, method ziptype.Method, extra []byte) error {
	extras, err := ParseExtras(extra)
	if err != nil {
		return err
	}
	sawAES := false
	for _, x := range extras {
		switch x.ID {
		case Zip64ExtraID:
			z := zip64Values{}
			if e.UncompressedSize == sizing.Max32 {
				z.uncompressed = &e.UncompressedSize
			}
			if e.CompressedSize == sizing.Max32 {
				z.compressed = &e.CompressedSize
			}
			if e.Offset == sizing.Max32 {
				z.offset = &e.Offset
			}
			if err := z.decode(x.Data); err != nil {
				return err
			}
		case ExtTimeExtraID:
			if t, ok := ParseExtTime(x.Data); ok {
				e.Modified = t
			}
		case AESExtraID:
			a, err := ParseAESExtra(x.Data)
			if err != nil {
				return err
			}
			sawAES = true
			e.Method = a.Method
			e.AESVersion = a.Version
			e.AESStrength = a.Strength
			e.Encryption = ziptype.EncryptionAES256
		}
	}
	if method == ziptype.MethodAES && !sawAES {
		return fmt.Errorf("%w: aes method without aes extra field", ziptype.ErrContainerUnreadable)
	}
	return nil
}

// ReadDescriptorCRC returns the CRC-32 recorded by the data descriptor at off.
// The descriptor signature is optional.
func ReadDescriptorCRC(r io.ReaderAt, off int64) (uint32, error) {
	var b [8]byte
	if _, err := r.ReadAt(b[:], off); err != nil {
		return 0, fmt.Errorf("%w: read data descriptor at %d: %w", ziptype.ErrCorruptEntry, off, err)
	}
	rb := readBuf(b[:])
	first := rb.uint32()
	if first == DataDescriptorSig {
		return rb.uint32(), nil
	}
	return first, nil
}
