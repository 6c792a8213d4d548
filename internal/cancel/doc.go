// Package cancel implements the cooperative cancellation token shared between
// a task runner and the worker it starts.
//
// A Source is owned by the runner and is the only writer. The worker receives
// the read-only Token view and is expected to poll it at bounded intervals,
// returning ErrCancelled once it observes the flag.
package cancel
