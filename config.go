package pcdec

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/teenjuna/pcdec/codec/draco"
	"github.com/teenjuna/pcdec/codec/zstd"
)

const (
	// FormatZstd is the format tag of zstd compressed payloads.
	FormatZstd = "zstd"
	// FormatDraco is the format tag of draco compressed payloads.
	FormatDraco = "draco"

	// DefaultMaxDataSize is the default upper bound of row_step * height.
	DefaultMaxDataSize = 1 << 30
)

type Option = func(*config)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithCodec registers a codec for the format, replacing the one configured before.
func WithCodec(format string, codec Codec) Option {
	if strings.TrimSpace(format) == "" {
		panic("format can't be blank")
	}
	if codec == nil {
		panic("codec can't be nil")
	}
	return func(c *config) {
		c.remove(format)
		c.codecs = append(c.codecs, formatCodec{format: format, codec: codec})
	}
}

// WithoutCodec removes the codec configured for the format.
func WithoutCodec(format string) Option {
	return func(c *config) {
		c.remove(format)
	}
}

// WithMaxDataSize limits the declared size of the uncompressed payload. Messages declaring more
// fail to decode without allocating.
func WithMaxDataSize(size int) Option {
	if size < 0 {
		panic("max data size can't be < 0")
	}
	return func(c *config) {
		c.maxDataSize = size
	}
}

// WithPrometheus sets the Prometheus metrics config.
func WithPrometheus(prometheus *PrometheusConfig) Option {
	if prometheus == nil {
		panic("prometheus can't be nil")
	}
	return func(c *config) {
		c.prometheus = prometheus
	}
}

type config struct {
	log         zerolog.Logger
	codecs      []formatCodec
	maxDataSize int
	prometheus  *PrometheusConfig
}

type formatCodec struct {
	format string
	codec  Codec
}

func (c *config) remove(format string) {
	for i, fc := range c.codecs {
		if fc.format == format {
			c.codecs = append(c.codecs[:i], c.codecs[i+1:]...)
			return
		}
	}
}

func newConfig(options ...Option) *config {
	options = append([]Option{
		WithLogger(zerolog.Nop()),
		WithCodec(FormatZstd, zstd.New()),
		WithCodec(FormatDraco, draco.New()),
		WithMaxDataSize(DefaultMaxDataSize),
		WithPrometheus(Prometheus(nil)),
	}, options...)

	cfg := config{}
	for _, opt := range options {
		opt(&cfg)
	}

	return &cfg
}
