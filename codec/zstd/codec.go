package zstd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/teenjuna/pcdec/codec"
)

var (
	_ codec.Codec   = (*Codec)(nil)
	_ codec.Encoder = (*Codec)(nil)
)

// DefaultMaxMemory is the default upper bound of a single decoded payload.
const DefaultMaxMemory = 1 << 30

// Codec decodes zstd frames with klauspost/compress.
//
// The decoder is created by Init. Decode uses DecodeAll which is safe for concurrent use. Output is
// always limited to the expected size, whatever the frames of the payload declare.
type Codec struct {
	decoderOptions []zstd.DOption
	encoderOptions []zstd.EOption

	decoder atomic.Pointer[zstd.Decoder]

	encoderOnce sync.Once
	encoder     *zstd.Encoder
	encoderErr  error
}

// New returns a codec whose decoder is created with the options. The decoder is limited to
// [DefaultMaxMemory] unless the options say otherwise.
func New(options ...zstd.DOption) *Codec {
	decoderOptions := make([]zstd.DOption, 0, len(options)+2)
	decoderOptions = append(decoderOptions, zstd.WithDecoderMaxMemory(DefaultMaxMemory))
	decoderOptions = append(decoderOptions, options...)
	decoderOptions = append(decoderOptions, zstd.WithDecodeAllCapLimit(true))

	return &Codec{
		decoderOptions: decoderOptions,
	}
}

// WithEncoderOptions sets the options of the encoder used by Encode.
func (c *Codec) WithEncoderOptions(options ...zstd.EOption) *Codec {
	c.encoderOptions = options
	return c
}

func (c *Codec) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.decoder.Load() != nil {
		return nil
	}

	decoder, err := zstd.NewReader(nil, c.decoderOptions...)
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	if !c.decoder.CompareAndSwap(nil, decoder) {
		decoder.Close()
	}

	return nil
}

func (c *Codec) Decode(compressed []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}

	decoder := c.decoder.Load()
	if decoder == nil {
		return nil, codec.ErrNotReady
	}

	if len(compressed) == 0 {
		if size == 0 {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: empty payload, expected %d bytes", codec.ErrSizeMismatch, size)
	}

	// A frame that declares more content than expected can be rejected before allocating.
	var header zstd.Header
	if err := header.Decode(compressed); err == nil && header.HasFCS {
		if header.FrameContentSize > uint64(size) {
			return nil, fmt.Errorf(
				"%w: frame declares %d bytes, expected %d",
				codec.ErrSizeMismatch, header.FrameContentSize, size,
			)
		}
	}

	// DecodeAll stops at the capacity of the buffer.
	data, err := decoder.DecodeAll(compressed, make([]byte, 0, size))
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return nil, fmt.Errorf(
			"%w: payload decodes to more than %d bytes",
			codec.ErrSizeMismatch, size,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(data) != size {
		return nil, fmt.Errorf(
			"%w: decoded %d bytes, expected %d",
			codec.ErrSizeMismatch, len(data), size,
		)
	}

	return data, nil
}

func (c *Codec) Encode(data []byte) ([]byte, error) {
	c.encoderOnce.Do(func() {
		encoder, err := zstd.NewWriter(nil, c.encoderOptions...)
		if err != nil {
			c.encoderErr = fmt.Errorf("create encoder: %w", err)
			return
		}
		c.encoder = encoder
	})
	if c.encoderErr != nil {
		return nil, c.encoderErr
	}

	return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Close releases the decoder and the encoder. Decode and Encode fail afterwards.
func (c *Codec) Close() error {
	if decoder := c.decoder.Swap(nil); decoder != nil {
		decoder.Close()
	}

	var errs []error
	c.encoderOnce.Do(func() {})
	if c.encoder != nil {
		if err := c.encoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close encoder: %w", err))
		}
		c.encoder = nil
	}
	c.encoderErr = codec.ErrClosed

	return errors.Join(errs...)
}
