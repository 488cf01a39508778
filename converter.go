package pcdec

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/teenjuna/pcdec/codec"
)

// Converter turns compressed point cloud messages into uncompressed ones.
//
// A Converter holds no per-message state. Convert may be called from several goroutines as long as
// the registered codecs are safe for concurrent decoding, which is the case for the built-in ones.
// Decoding has no timeout: a codec that never returns blocks the conversion of that message.
type Converter struct {
	cfg      *config
	log      zerolog.Logger
	metrics  *metrics
	registry *Registry
}

// New creates a Converter and starts the initialization of the configured codecs.
//
// By default the "zstd" and "draco" formats are registered. Initialization runs in the
// background; messages converted before a codec is ready come back without data.
func New(options ...Option) *Converter {
	cfg := newConfig(options...)
	metrics := cfg.prometheus.metrics()
	registry := newRegistry(cfg.log, metrics)

	for _, fc := range cfg.codecs {
		registry.Register(fc.format, fc.codec)
	}

	return &Converter{
		cfg:      cfg,
		log:      cfg.log,
		metrics:  metrics,
		registry: registry,
	}
}

// Registry returns the registry owning the codecs of the converter.
func (c *Converter) Registry() *Registry {
	return c.registry
}

// Convert converts the message and never fails.
//
// If the payload can't be decoded, the returned message carries the metadata of the input and no
// data, and the reason is logged. A panicking codec is reported as a decode failure. Passing a nil
// message panics.
func (c *Converter) Convert(in *CompressedPointCloud) *PointCloud {
	out, err := c.Decode(in)
	if err == nil {
		return out
	}

	log := c.log.With().
		Str("format", in.Format).
		Uint32("height", in.Height).
		Uint32("row_step", in.RowStep).
		Int("compressed_size", len(in.CompressedData)).
		Logger()

	var decodeErr *DecodeError
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		log.Warn().Msg("unsupported format")
	case errors.Is(err, ErrDecoderNotReady):
		log.Error().Err(err).Msg("decoder not initialized")
	case errors.As(err, &decodeErr):
		log.Error().Err(decodeErr.Err).Msg("failed to decode payload")
	default:
		log.Error().Err(err).Msg("failed to convert message")
	}

	return out
}

// Decode converts the message and reports why the payload couldn't be decoded.
//
// The returned message is never nil. On error it carries the metadata of the input and no data.
// The error wraps [ErrUnsupportedFormat] or [ErrDecoderNotReady], or is a [*DecodeError].
func (c *Converter) Decode(in *CompressedPointCloud) (*PointCloud, error) {
	if in == nil {
		panic("message can't be nil")
	}

	out := in.Shell()

	b, ok := c.registry.lookup(in.Format)
	if !ok {
		c.metrics.conversions.WithLabelValues(unknownFormat, outcomeUnsupported).Inc()
		return out, fmt.Errorf("%w: %q", ErrUnsupportedFormat, in.Format)
	}

	switch b.State() {
	case StateReady:
	case StateFailed:
		c.metrics.conversions.WithLabelValues(b.format, outcomeNotReady).Inc()
		return out, fmt.Errorf("%w: %s: %w", ErrDecoderNotReady, b.format, b.err)
	default:
		c.metrics.conversions.WithLabelValues(b.format, outcomeNotReady).Inc()
		return out, fmt.Errorf("%w: %s is %s", ErrDecoderNotReady, b.format, b.State())
	}

	size, err := in.DataSize(c.cfg.maxDataSize)
	if err != nil {
		c.metrics.conversions.WithLabelValues(b.format, outcomeFailed).Inc()
		return out, &DecodeError{Format: b.format, Err: err}
	}

	start := time.Now()
	data, err := decode(b.codec, in.CompressedData, size)
	c.metrics.decodeDuration.WithLabelValues(b.format).Observe(time.Since(start).Seconds())
	if errors.Is(err, codec.ErrNotReady) {
		// The codec was closed after the state check.
		c.metrics.conversions.WithLabelValues(b.format, outcomeNotReady).Inc()
		return out, fmt.Errorf("%w: %s: %w", ErrDecoderNotReady, b.format, err)
	}
	if err != nil {
		c.metrics.conversions.WithLabelValues(b.format, outcomeFailed).Inc()
		return out, &DecodeError{Format: b.format, Err: err}
	}
	if len(data) != size {
		c.metrics.conversions.WithLabelValues(b.format, outcomeFailed).Inc()
		return out, &DecodeError{
			Format: b.format,
			Err:    fmt.Errorf("codec returned %d bytes, expected %d", len(data), size),
		}
	}

	c.metrics.conversions.WithLabelValues(b.format, outcomeDecoded).Inc()
	c.metrics.decodedBytes.WithLabelValues(b.format).Add(float64(size))

	out.Data = data
	return out, nil
}

func decode(c Codec, compressed []byte, size int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("codec panicked: %v", r)
		}
	}()
	return c.Decode(compressed, size)
}

// Close closes the registry and its codecs. Conversions after Close come back without data.
func (c *Converter) Close() error {
	if err := c.registry.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	return nil
}
