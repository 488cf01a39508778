package pcdec_test

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/teenjuna/pcdec"
	"github.com/teenjuna/pcdec/codec"
	"github.com/teenjuna/pcdec/internal/testing/require"
)

func TestConvertZstd(t *testing.T) {
	converter := newConverter(t)

	data := pattern(32)
	in := message(pcdec.FormatZstd, compress(t, data))

	out := converter.Convert(in)
	expected := shell(in)
	expected.Data = data
	require.Equal(t, out, expected)
	require.Equal(t, len(out.Data), int(in.RowStep*in.Height))
}

func TestConvertZstdDeterministic(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatZstd, compress(t, pattern(32)))
	first := converter.Convert(in)
	second := converter.Convert(in)
	require.NotNil(t, first.Data)
	require.Equal(t, first, second)
}

func TestConvertZstdEmpty(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatZstd, nil)
	in.Height = 0
	in.Width = 0

	out, err := converter.Decode(in)
	require.Nil(t, err)
	require.NotNil(t, out.Data)
	require.Equal(t, len(out.Data), 0)
}

func TestConvertZstdCorrupted(t *testing.T) {
	logs := new(syncBuffer)
	converter := newConverter(t, pcdec.WithLogger(zerolog.New(logs)))

	in := message(pcdec.FormatZstd, []byte("this is not a zstd frame at all"))

	out := converter.Convert(in)
	require.Equal(t, out, shell(in))
	require.Equal(t, strings.Contains(logs.String(), "failed to decode payload"), true)

	_, err := converter.Decode(in)
	var decodeErr *pcdec.DecodeError
	require.Equal(t, errors.As(err, &decodeErr), true)
	require.Equal(t, decodeErr.Format, pcdec.FormatZstd)
}

func TestConvertZstdSizeMismatch(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatZstd, compress(t, pattern(48)))

	out, err := converter.Decode(in)
	require.ErrorIs(t, err, codec.ErrSizeMismatch)
	require.Equal(t, out, shell(in))
}

func TestConvertUnsupportedFormat(t *testing.T) {
	logs := new(syncBuffer)
	converter := newConverter(t, pcdec.WithLogger(zerolog.New(logs)))

	for _, format := range []string{"", "lz4", "ZSTD", "png"} {
		in := message(format, compress(t, pattern(32)))

		out := converter.Convert(in)
		require.Equal(t, out, shell(in))

		_, err := converter.Decode(in)
		require.ErrorIs(t, err, pcdec.ErrUnsupportedFormat)
	}
	require.Equal(t, strings.Contains(logs.String(), "unsupported format"), true)
}

func TestConvertDraco(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatDraco, []byte{1, 2, 3, 4})
	out := converter.Convert(in)
	require.Equal(t, out, shell(in))

	_, err := converter.Decode(in)
	require.ErrorIs(t, err, codec.ErrNotImplemented)
}

func TestConvertNotReady(t *testing.T) {
	logs := new(syncBuffer)
	fake := newFakeCodec(nil)
	converter := pcdec.New(
		pcdec.WithLogger(zerolog.New(logs)),
		pcdec.WithCodec(pcdec.FormatZstd, fake),
	)
	t.Cleanup(func() { require.Nil(t, converter.Close()) })

	in := message(pcdec.FormatZstd, []byte{1, 2, 3})

	out := converter.Convert(in)
	require.Equal(t, out, shell(in))
	require.Equal(t, strings.Contains(logs.String(), "decoder not initialized"), true)

	_, err := converter.Decode(in)
	require.ErrorIs(t, err, pcdec.ErrDecoderNotReady)

	fake.Release()
	require.Nil(t, converter.Registry().Wait(t.Context()))

	out = converter.Convert(in)
	require.Equal(t, out.Data, make([]byte, 32))
}

func TestConvertInitFailure(t *testing.T) {
	initErr := errors.New("no wasm for you")
	fake := newFakeCodec(initErr)
	fake.Release()

	converter := pcdec.New(pcdec.WithCodec(pcdec.FormatZstd, fake))
	t.Cleanup(func() { require.Nil(t, converter.Close()) })

	err := converter.Registry().Wait(t.Context())
	require.ErrorIs(t, err, initErr)

	in := message(pcdec.FormatZstd, []byte{1, 2, 3})
	out, err := converter.Decode(in)
	require.ErrorIs(t, err, pcdec.ErrDecoderNotReady)
	require.ErrorIs(t, err, initErr)
	require.Equal(t, out, shell(in))
}

func TestConvertMaxDataSize(t *testing.T) {
	converter := newConverter(t, pcdec.WithMaxDataSize(16))

	in := message(pcdec.FormatZstd, compress(t, pattern(32)))

	out, err := converter.Decode(in)
	require.ErrorIs(t, err, pcdec.ErrDataSize)
	require.Equal(t, out, shell(in))
}

func TestConvertHugeDataSize(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatZstd, []byte{1})
	in.Height = 1 << 31
	in.RowStep = 1 << 31

	_, err := converter.Decode(in)
	require.ErrorIs(t, err, pcdec.ErrDataSize)
}

func TestConvertDoesNotAliasFields(t *testing.T) {
	converter := newConverter(t)

	in := message(pcdec.FormatZstd, compress(t, pattern(32)))
	out := converter.Convert(in)
	out.Fields[0].Name = "changed"
	require.Equal(t, in.Fields[0].Name, "x")
}

func TestConvertNil(t *testing.T) {
	converter := newConverter(t)

	require.PanicWithError(t, "message can't be nil", func() {
		converter.Convert(nil)
	})
}

func TestConvertClosed(t *testing.T) {
	converter := pcdec.New()
	require.Nil(t, converter.Registry().Wait(t.Context()))
	require.Nil(t, converter.Close())

	in := message(pcdec.FormatZstd, compress(t, pattern(32)))
	out, err := converter.Decode(in)
	require.ErrorIs(t, err, pcdec.ErrDecoderNotReady)
	require.Equal(t, out, shell(in))
}

func TestConvertCodecPanic(t *testing.T) {
	logs := new(syncBuffer)
	converter := newConverter(t,
		pcdec.WithLogger(zerolog.New(logs)),
		pcdec.WithCodec("broken", panickingCodec{}),
	)

	in := message("broken", []byte{1, 2, 3})

	out := converter.Convert(in)
	require.Equal(t, out, shell(in))
	require.Equal(t, strings.Contains(logs.String(), "codec panicked"), true)

	_, err := converter.Decode(in)
	var decodeErr *pcdec.DecodeError
	require.Equal(t, errors.As(err, &decodeErr), true)
	require.Equal(t, decodeErr.Format, "broken")
}

func TestConvertConcurrent(t *testing.T) {
	converter := newConverter(t)

	var wg sync.WaitGroup
	for i := range 16 {
		data := pattern(32)
		data[0] = byte(i)
		in := message(pcdec.FormatZstd, compress(t, data))

		wg.Go(func() {
			for range 50 {
				out := converter.Convert(in)
				if !bytes.Equal(out.Data, data) {
					t.Errorf("goroutine %d: decoded %v, expected %v", i, out.Data, data)
					return
				}
			}
		})
	}
	wg.Wait()
}

func TestConvertMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	converter := newConverter(t, pcdec.WithPrometheus(pcdec.Prometheus(registry)))

	converter.Convert(message(pcdec.FormatZstd, compress(t, pattern(32))))
	converter.Convert(message(pcdec.FormatZstd, []byte("garbage")))
	converter.Convert(message("lz4", nil))

	const expected = `
# HELP pcdec_conversions_total Number of converted messages
# TYPE pcdec_conversions_total counter
pcdec_conversions_total{format="unknown",outcome="unsupported"} 1
pcdec_conversions_total{format="zstd",outcome="decoded"} 1
pcdec_conversions_total{format="zstd",outcome="failed"} 1
# HELP pcdec_decoded_bytes_total Number of bytes produced by decoding
# TYPE pcdec_decoded_bytes_total counter
pcdec_decoded_bytes_total{format="zstd"} 32
# HELP pcdec_backend_state State of the codec backend (0 uninitialized, 1 initializing, 2 ready, 3 failed)
# TYPE pcdec_backend_state gauge
pcdec_backend_state{format="draco"} 2
pcdec_backend_state{format="zstd"} 2
`
	err := testutil.GatherAndCompare(
		registry,
		strings.NewReader(expected),
		"pcdec_conversions_total",
		"pcdec_decoded_bytes_total",
		"pcdec_backend_state",
	)
	require.Nil(t, err)
}

func newConverter(t *testing.T, options ...pcdec.Option) *pcdec.Converter {
	t.Helper()
	converter := pcdec.New(options...)
	t.Cleanup(func() { require.Nil(t, converter.Close()) })
	require.Nil(t, converter.Registry().Wait(t.Context()))
	return converter
}
