// Package dispatch provides the "run on UI context" primitive. Anything that
// mutates visible state is posted through a Dispatcher and executes on a
// single goroutine, in the order it was posted by each submitter.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrStopped is returned when work is posted to a UI context that has gone away.
var ErrStopped = errors.New("dispatcher is stopped")

// Dispatcher schedules units of work on the UI context.
type Dispatcher interface {
	// Post schedules fn to run on the UI context and returns immediately.
	// It reports false when the context no longer accepts work; fn is then
	// never run. Work accepted with true is run exactly once, even when the
	// context stops before reaching it.
	Post(fn func()) bool
}

// Func adapts a function to the Dispatcher interface.
type Func func(fn func()) bool

// Post calls f(fn).
func (f Func) Post(fn func()) bool {
	return f(fn)
}

// Invoke states
const (
	invokePending int32 = iota
	invokeClaimed
	invokeAbandoned
)

// Invoke posts fn and blocks until it has run on the UI context. If ctx ends
// before fn starts, fn is skipped and ctx.Err() is returned; once fn has
// started, Invoke waits for it and returns nil. It must not be called from
// the UI context itself.
func Invoke(ctx context.Context, d Dispatcher, fn func()) error {
	var state atomic.Int32
	done := make(chan struct{})
	if !d.Post(func() {
		if !state.CompareAndSwap(invokePending, invokeClaimed) {
			return
		}
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(invokePending, invokeAbandoned) {
			return ctx.Err()
		}
		<-done
		return nil
	}
}
