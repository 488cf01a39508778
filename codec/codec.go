// This package contains the main [Codec] interface and its implementations inside subpackages.
package codec

import (
	"context"
	"errors"
)

var (
	// ErrNotReady is returned by Decode when the codec hasn't been initialized.
	ErrNotReady = errors.New("codec is not initialized")
	// ErrNotImplemented is returned by codecs that can't decode their format. It is terminal and
	// retrying the same payload will never succeed.
	ErrNotImplemented = errors.New("codec is not implemented")
	// ErrSizeMismatch is returned when the decoded payload doesn't have the expected size.
	ErrSizeMismatch = errors.New("decoded size mismatch")
	// ErrClosed is returned by codecs that have been closed.
	ErrClosed = errors.New("codec is closed")
)

// Codec decompresses the payload of point cloud messages.
//
// Init is called exactly once, asynchronously, before any call to Decode. Once Init has returned
// nil the codec must treat its configuration as immutable: Decode may be called from several
// goroutines and has to be safe for that.
type Codec interface {
	// Init prepares the codec for decoding.
	//
	// It may take a long time to complete. Returning an error marks the codec as failed for the
	// rest of its life.
	Init(ctx context.Context) error
	// Decode decompresses the payload into a buffer of exactly size bytes.
	//
	// The returned slice must have length size. If the payload decodes to anything else, the
	// codec must return an error wrapping [ErrSizeMismatch] instead of truncating or padding.
	// Decoding must not allocate much more than size bytes whatever the payload contains.
	Decode(compressed []byte, size int) ([]byte, error)
}

// Encoder is implemented by codecs that can also compress payloads.
type Encoder interface {
	Encode(data []byte) ([]byte, error)
}
