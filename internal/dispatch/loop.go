package dispatch

import (
	"context"
	"log/slog"
	"sync"
)

// Loop is a headless UI context: a dedicated goroutine that executes posted
// work one item at a time. Post never blocks, so the loop may post to itself.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once
	logger   *slog.Logger
}

// NewLoop creates and starts a Loop.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With("component", "dispatch_loop"),
	}
	go l.run()
	return l
}

// Post queues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush waits until everything posted before the call has run.
func (l *Loop) Flush(ctx context.Context) error {
	return Invoke(ctx, l, func() {})
}

// Stop prevents further posts and waits for the loop goroutine to exit. Work
// that was accepted but had not run yet is then run on the calling
// goroutine, in order, so an accepted Post is never lost. It is safe to call
// more than once but not from the loop itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()

		close(l.quit)
		<-l.done

		leftover := l.take()
		if len(leftover) > 0 {
			l.logger.Debug("running queued work after stop", "count", len(leftover))
		}
		for _, fn := range leftover {
			l.exec(fn)
		}
	})
	<-l.done
}

// run is the loop body.
func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}

		for {
			batch := l.take()
			if len(batch) == 0 {
				break
			}
			for i, fn := range batch {
				select {
				case <-l.quit:
					l.requeue(batch[i:])
					return
				default:
				}
				l.exec(fn)
			}
		}
	}
}

// requeue puts unexecuted work back in front of anything posted since.
func (l *Loop) requeue(rest []func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(append([]func(){}, rest...), l.pending...)
}

// take removes and returns everything queued so far.
func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

// exec runs one unit of work, recovering panics so the loop survives.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("posted work panicked", "panic", r)
		}
	}()
	fn()
}
