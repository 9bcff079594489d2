// Package compress implements the per-entry compression methods used by the
// archive codec: store, deflate and zstd.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zipkit/internal/sizing"
	"github.com/meigma/zipkit/internal/ziptype"
)

// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Codec compresses and decompresses entry payloads.
//
// A Codec is safe for concurrent use; encoders and decoders are pooled.
type Codec struct {
	level            int
	maxDecoderMemory uint64

	flateWriters sync.Pool
	zstdDecoders sync.Pool

	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdErr  error
}

// Option configures a Codec.
type Option func(*Codec)

// WithLevel sets the deflate compression level (1-9).
// Out-of-range values fall back to flate.DefaultCompression.
func WithLevel(level int) Option {
	return func(c *Codec) {
		if level < flate.BestSpeed || level > flate.BestCompression {
			level = flate.DefaultCompression
		}
		c.level = level
	}
}

// WithMaxDecoderMemory limits the memory used by zstd decoders.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *Codec) {
		c.maxDecoderMemory = limit
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{
		level:            flate.DefaultCompression,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supported reports whether m is a compression method the codec can handle.
func Supported(m ziptype.Method) bool {
	switch m {
	case ziptype.MethodStore, ziptype.MethodDeflate, ziptype.MethodZstd:
		return true
	default:
		return false
	}
}

// Compress encodes raw with method m.
func (c *Codec) Compress(raw []byte, m ziptype.Method) ([]byte, error) {
	switch m {
	case ziptype.MethodStore:
		return raw, nil
	case ziptype.MethodDeflate:
		return c.deflate(raw)
	case ziptype.MethodZstd:
		enc, err := c.encoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	default:
		return nil, fmt.Errorf("%w: compression %d", ziptype.ErrUnsupportedMethod, m)
	}
}

// Decompress decodes data with method m. The result must be exactly
// expectedSize bytes; anything else is reported as ErrCorruptEntry.
func (c *Codec) Decompress(data []byte, m ziptype.Method, expectedSize uint64) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch m {
	case ziptype.MethodStore:
		out = data
	case ziptype.MethodDeflate:
		r := flate.NewReader(bytes.NewReader(data))
		out, err = sizing.ReadAllWithLimit(r, expectedSize, ziptype.ErrCorruptEntry)
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	case ziptype.MethodZstd:
		out, err = c.unzstd(data, expectedSize)
	default:
		return nil, fmt.Errorf("%w: compression %d", ziptype.ErrUnsupportedMethod, m)
	}
	if err != nil {
		if errors.Is(err, ziptype.ErrCorruptEntry) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ziptype.ErrCorruptEntry, m, err)
	}
	if uint64(len(out)) != expectedSize {
		return nil, fmt.Errorf("%w: %s: got %d bytes, want %d", ziptype.ErrCorruptEntry, m, len(out), expectedSize)
	}
	return out, nil
}

func (c *Codec) deflate(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(raw) / 2)

	fw, _ := c.flateWriters.Get().(*flate.Writer)
	if fw == nil {
		var err error
		fw, err = flate.NewWriter(&buf, c.level)
		if err != nil {
			return nil, fmt.Errorf("create deflate writer: %w", err)
		}
	} else {
		fw.Reset(&buf)
	}
	defer c.flateWriters.Put(fw)

	if _, err := fw.Write(raw); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) encoder() (*zstd.Encoder, error) {
	c.zstdOnce.Do(func() {
		c.zstdEnc, c.zstdErr = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if c.zstdErr != nil {
			c.zstdErr = fmt.Errorf("create zstd encoder: %w", c.zstdErr)
		}
	})
	return c.zstdEnc, c.zstdErr
}

func (c *Codec) unzstd(data []byte, expectedSize uint64) ([]byte, error) {
	dec, release, err := c.decoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer release()
	return sizing.ReadAllWithLimit(dec, expectedSize, ziptype.ErrCorruptEntry)
}

// decoder returns a zstd decoder reading from r and a release function that
// returns it to the pool.
func (c *Codec) decoder(r io.Reader) (*zstd.Decoder, func(), error) {
	if dec, ok := c.zstdDecoders.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err == nil {
			return dec, func() {
				_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
				c.zstdDecoders.Put(dec)
			}, nil
		}
		dec.Close()
	}

	opts := []zstd.DOption{zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(false)}
	if c.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(c.maxDecoderMemory))
	}
	dec, err := zstd.NewReader(r, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		c.zstdDecoders.Put(dec)
	}, nil
}
