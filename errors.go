package pcdec

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no codec is registered for the message format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecoderNotReady is returned when the codec is still initializing or failed to initialize.
	ErrDecoderNotReady = errors.New("decoder not initialized")
	// ErrDataSize is returned when the declared payload size can't be allocated.
	ErrDataSize = errors.New("invalid data size")
	// ErrClosed is returned by the registry after it has been closed.
	ErrClosed = errors.New("registry is closed")
)

// DecodeError is returned when a ready codec rejects a message.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
