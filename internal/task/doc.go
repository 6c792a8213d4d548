// Package task runs one long-running, cancellable retrieval job at a time.
//
// The job executes on its own goroutine so it never blocks the UI context.
// Progress and status reports produced by the job are posted through a
// dispatch.Dispatcher before any observer sees them, and every accepted start
// ends in exactly one terminal Outcome: succeeded, cancelled or failed.
package task
