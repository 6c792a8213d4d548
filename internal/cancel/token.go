package cancel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCancelled is the reserved outcome a worker returns after observing a
// cancelled token. It is never surfaced to the user as an error.
var ErrCancelled = errors.New("operation cancelled")

// Token is the read-only view of a cancellation flag.
type Token interface {
	// Cancelled reports whether cancellation has been requested.
	Cancelled() bool

	// Done returns a channel that is closed when cancellation is requested.
	Done() <-chan struct{}

	// Err returns ErrCancelled once cancelled and nil before.
	Err() error
}

// Source owns a cancellation flag. The flag moves from armed to cancelled
// exactly once and never reverts.
type Source struct {
	cancelled atomic.Bool
	done      chan struct{}
	once      sync.Once
}

// NewSource creates an armed Source.
func NewSource() *Source {
	return &Source{done: make(chan struct{})}
}

// Cancel sets the flag. It reports whether this call performed the
// transition; later calls are no-ops.
func (s *Source) Cancel() bool {
	fired := false
	s.once.Do(func() {
		s.cancelled.Store(true)
		close(s.done)
		fired = true
	})
	return fired
}

// Token returns the read-only view handed to the worker.
func (s *Source) Token() Token {
	return view{s: s}
}

// Cancelled reports whether Cancel has been called.
func (s *Source) Cancelled() bool {
	return s.cancelled.Load()
}

// view hides Cancel from the worker.
type view struct {
	s *Source
}

func (v view) Cancelled() bool {
	return v.s.cancelled.Load()
}

func (v view) Done() <-chan struct{} {
	return v.s.done
}

func (v view) Err() error {
	if v.s.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// Check is the worker's poll point: it returns ErrCancelled when the token
// has fired. A nil token never fires.
func Check(token Token) error {
	if token == nil {
		return nil
	}
	return token.Err()
}

// IsCancelled reports whether err is the reserved Cancelled outcome.
// context.Canceled counts as well, so collaborators built on contexts
// derived with Context report cancellation correctly.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Context derives a context that is cancelled when the token fires or the
// parent is done. The returned CancelFunc releases the watcher goroutine.
func Context(parent context.Context, token Token) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if token == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
