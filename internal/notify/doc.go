// Package notify implements the toast stack: a bounded, newest-first list of
// transient messages that dismiss themselves after a duration.
//
// A Center is owned by the UI context. Show, the severity wrappers (Success,
// Error, Warning, Info), Dismiss and Active must be called there. Post is the
// only method safe from any goroutine; it marshals onto the Dispatcher first. Every toast moves Active -> FadingOut -> Removed,
// except when it is evicted to make room, in which case it is removed at once
// and its timer never fires.
package notify
