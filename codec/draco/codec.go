package draco

import (
	"context"
	"fmt"

	"github.com/teenjuna/pcdec/codec"
)

var _ codec.Codec = (*Codec)(nil)

// Codec is the draco point cloud codec.
//
// Decoding draco attribute streams back into the flat PointCloud2 layout isn't supported. The codec
// initializes successfully so that the format is known and ready, but every Decode fails with
// [codec.ErrNotImplemented]. Callers get a terminal error instead of a partially decoded payload.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

func (c *Codec) Init(ctx context.Context) error {
	return ctx.Err()
}

func (c *Codec) Decode(compressed []byte, size int) ([]byte, error) {
	return nil, fmt.Errorf("draco: %w", codec.ErrNotImplemented)
}
