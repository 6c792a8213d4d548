package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender delivers a message to a running Bubble Tea program.
type Sender interface {
	Send(msg tea.Msg)
}

// runMsg carries posted work into Update.
type runMsg struct {
	fn func()
}

// queued is one posted closure. It runs at most once, either in Update or in
// Stop when the program exited before delivering it.
type queued struct {
	fn  func()
	ran atomic.Bool
}

func (q *queued) run() {
	if q.ran.CompareAndSwap(false, true) {
		q.fn()
	}
}

// Dispatcher makes the Bubble Tea event loop the UI context. Posted work is
// queued and forwarded to the program in order; Update runs it.
type Dispatcher struct {
	mu      sync.Mutex
	pending []*queued
	// sent holds work handed to the program that Update may not have run yet
	sent    []*queued
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	attached sync.Once
}

// NewDispatcher creates a Dispatcher. Work posted before Attach is held.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Attach starts forwarding to program. Only the first call has effect.
func (d *Dispatcher) Attach(program Sender) {
	d.attached.Do(func() { go d.pump(program) })
}

// Post implements dispatch.Dispatcher.
func (d *Dispatcher) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	d.pending = append(d.pending, &queued{fn: fn})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop rejects further posts. Call it once the program has exited: accepted
// work the program never ran is run on the calling goroutine, in order.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		leftover := append(d.sent, d.pending...)
		d.sent = nil
		d.pending = nil
		d.mu.Unlock()
		close(d.quit)

		for _, q := range leftover {
			q.run()
		}
	})
}

// next moves the oldest pending item to sent and returns it.
func (d *Dispatcher) next() (*queued, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return nil, false
	}
	q := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]

	live := d.sent[:0]
	for _, s := range d.sent {
		if !s.ran.Load() {
			live = append(live, s)
		}
	}
	d.sent = append(live, q)
	return q, true
}

func (d *Dispatcher) pump(program Sender) {
	for {
		select {
		case <-d.quit:
			return
		case <-d.wake:
		}

		for {
			q, ok := d.next()
			if !ok {
				break
			}
			program.Send(runMsg{fn: q.run})
		}
	}
}
