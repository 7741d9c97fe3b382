// Package conn owns the process-wide store clients. Each client is opened on first use,
// exactly once, and a failed open is retried by the next caller.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrConnectionFailure = errors.New("connection failure")

type (
	OpenFunc[T any]  func(ctx context.Context) (T, error)
	CloseFunc[T any] func(ctx context.Context, v T) error
)

// Lazy is a double-checked lazily opened handle. After the first successful open, Get is a
// single atomic load; the mutex only guards the open and close transitions.
type Lazy[T any] struct {
	name  string
	open  OpenFunc[T]
	close CloseFunc[T]

	mu    sync.Mutex
	ready atomic.Pointer[T]
}

func NewLazy[T any](name string, open OpenFunc[T], closeFn CloseFunc[T]) *Lazy[T] {
	return &Lazy[T]{name: name, open: open, close: closeFn}
}

func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v := l.ready.Load(); v != nil {
		return *v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v := l.ready.Load(); v != nil {
		return *v, nil
	}

	v, err := l.open(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrConnectionFailure, l.name, err)
	}
	l.ready.Store(&v)
	return v, nil
}

// Opened reports whether a handle is currently held.
func (l *Lazy[T]) Opened() bool {
	return l.ready.Load() != nil
}

// Close releases the held handle, if any. The next Get opens a fresh one.
func (l *Lazy[T]) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.ready.Swap(nil)
	if v == nil || l.close == nil {
		return nil
	}
	if err := l.close(ctx, *v); err != nil {
		return fmt.Errorf("close %s: %w", l.name, err)
	}
	return nil
}

// Reset forgets the held handle without closing it. Tests use it after the server behind a
// handle went away.
func (l *Lazy[T]) Reset() {
	l.mu.Lock()
	l.ready.Store(nil)
	l.mu.Unlock()
}
