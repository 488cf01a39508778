package pcdec

import "github.com/teenjuna/pcdec/codec"

// Codec decompresses the payload of a single format. See [codec.Codec].
type Codec = codec.Codec
