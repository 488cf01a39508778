package pcdec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the initialization state of a codec backend.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Registry owns the codec backends and tracks their initialization.
//
// Every backend is initialized exactly once, in its own goroutine, as soon as it is registered.
// Readiness is recorded atomically and can be queried without blocking.
type Registry struct {
	log     zerolog.Logger
	metrics *metrics

	mu       sync.RWMutex
	closed   bool
	backends map[string]*backend
}

type backend struct {
	format string
	codec  Codec
	state  atomic.Int32
	err    error
	done   chan struct{}
}

func (b *backend) State() State {
	return State(b.state.Load())
}

// NewRegistry returns an empty registry. Metrics are created but not registered; use [New] with
// [WithPrometheus] to expose them.
func NewRegistry(log zerolog.Logger) *Registry {
	return newRegistry(log, Prometheus(nil).metrics())
}

func newRegistry(log zerolog.Logger, metrics *metrics) *Registry {
	return &Registry{
		log:      log,
		metrics:  metrics,
		backends: make(map[string]*backend),
	}
}

// Register adds a codec for the format and starts its initialization.
//
// Registering a blank format, a nil codec or an already registered format panics.
func (r *Registry) Register(format string, codec Codec) {
	if strings.TrimSpace(format) == "" {
		panic("format can't be blank")
	}
	if codec == nil {
		panic("codec can't be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		panic(ErrClosed.Error())
	}
	if _, ok := r.backends[format]; ok {
		panic(fmt.Sprintf("format %q is already registered", format))
	}

	b := &backend{
		format: format,
		codec:  codec,
		done:   make(chan struct{}),
	}
	r.backends[format] = b
	r.setState(b, StateInitializing)

	go r.initialize(b)
}

func (r *Registry) initialize(b *backend) {
	defer close(b.done)

	log := r.log.With().Str("format", b.format).Logger()
	log.Debug().Msg("initializing decoder")

	if err := b.codec.Init(context.Background()); err != nil {
		// b.err is published by the state store below.
		b.err = err
		r.setState(b, StateFailed)
		log.Error().Err(err).Msg("decoder failed to initialize")
		return
	}

	r.setState(b, StateReady)
	log.Info().Msg("decoder initialized")
}

func (r *Registry) setState(b *backend, state State) {
	b.state.Store(int32(state))
	r.metrics.backendState.WithLabelValues(b.format).Set(float64(state))
}

func (r *Registry) lookup(format string) (*backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[format]
	return b, ok
}

// Get returns the codec registered for the format, or [ErrUnsupportedFormat].
func (r *Registry) Get(format string) (Codec, error) {
	b, ok := r.lookup(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return b.codec, nil
}

// IsReady reports whether the codec for the format has finished initializing successfully.
func (r *Registry) IsReady(format string) bool {
	return r.State(format) == StateReady
}

// State returns the initialization state of the codec for the format. Unknown formats are
// [StateUninitialized].
func (r *Registry) State(format string) State {
	b, ok := r.lookup(format)
	if !ok {
		return StateUninitialized
	}
	return b.State()
}

// Err returns the initialization error of the codec for the format, if it failed.
func (r *Registry) Err(format string) error {
	b, ok := r.lookup(format)
	if !ok || b.State() != StateFailed {
		return nil
	}
	return b.err
}

// Formats returns the registered formats in sorted order.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.backends))
}

// Wait blocks until every registered codec has finished initializing or the context is done.
//
// It returns the first initialization error. Conversions never call Wait; it is meant for hosts
// and tools that prefer to block until decoding is possible.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.RLock()
	backends := slices.Collect(maps.Values(r.backends))
	r.mu.RUnlock()

	group, ctx := errgroup.WithContext(ctx)
	for _, b := range backends {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-b.done:
			}
			if b.State() == StateFailed {
				return fmt.Errorf("initialize %s: %w", b.format, b.err)
			}
			return nil
		})
	}

	return group.Wait()
}

// Close closes every codec that implements [io.Closer].
//
// Codecs that are still initializing are closed once their initialization finishes. Ready codecs
// that get closed go back to [StateUninitialized]. After Close, Register panics.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	backends := slices.Collect(maps.Values(r.backends))
	r.mu.Unlock()

	errs := make([]error, 0)
	for _, b := range backends {
		closer, ok := b.codec.(io.Closer)
		if !ok {
			continue
		}
		<-b.done
		if b.State() == StateReady {
			r.setState(b, StateUninitialized)
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", b.format, err))
		}
	}

	return errors.Join(errs...)
}
