package pcdec_test

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/teenjuna/pcdec"
	"github.com/teenjuna/pcdec/codec/zstd"
	"github.com/teenjuna/pcdec/internal/testing/require"
)

func run(t *testing.T, name string, fn func(t *testing.T)) {
	t.Run(name, func(t *testing.T) {
		t.Helper()
		t.Parallel()
		synctest.Test(t, func(t *testing.T) {
			fn(t)
		})
	})
}

// fakeCodec blocks in Init until released and decodes any payload into zeroes.
type fakeCodec struct {
	release chan struct{}
	initErr error
	closed  atomic.Int32
}

func newFakeCodec(initErr error) *fakeCodec {
	return &fakeCodec{
		release: make(chan struct{}),
		initErr: initErr,
	}
}

func (c *fakeCodec) Init(ctx context.Context) error {
	<-c.release
	return c.initErr
}

func (c *fakeCodec) Decode(compressed []byte, size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (c *fakeCodec) Close() error {
	c.closed.Add(1)
	return nil
}

func (c *fakeCodec) Release() {
	close(c.release)
}

type panickingCodec struct{}

func (panickingCodec) Init(ctx context.Context) error {
	return nil
}

func (panickingCodec) Decode(compressed []byte, size int) ([]byte, error) {
	panic("index out of range")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	c := zstd.New()
	compressed, err := c.Encode(data)
	require.Nil(t, err)
	require.Nil(t, c.Close())
	return compressed
}

func message(format string, compressed []byte) *pcdec.CompressedPointCloud {
	return &pcdec.CompressedPointCloud{
		Header: pcdec.Header{
			Stamp:   pcdec.Time{Sec: 1700000000, Nanosec: 42},
			FrameID: "lidar_top",
		},
		Height: 2,
		Width:  2,
		Fields: []pcdec.PointField{
			{Name: "x", Offset: 0, Datatype: pcdec.Float32, Count: 1},
			{Name: "y", Offset: 4, Datatype: pcdec.Float32, Count: 1},
			{Name: "z", Offset: 8, Datatype: pcdec.Float32, Count: 1},
			{Name: "intensity", Offset: 12, Datatype: pcdec.Float32, Count: 1},
		},
		IsBigendian:    false,
		PointStep:      16,
		RowStep:        16,
		IsDense:        true,
		Format:         format,
		CompressedData: compressed,
	}
}

func shell(in *pcdec.CompressedPointCloud) *pcdec.PointCloud {
	return &pcdec.PointCloud{
		Header:      in.Header,
		Height:      in.Height,
		Width:       in.Width,
		Fields:      in.Fields,
		IsBigendian: in.IsBigendian,
		PointStep:   in.PointStep,
		RowStep:     in.RowStep,
		IsDense:     in.IsDense,
	}
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}
