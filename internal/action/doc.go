// Package action drives the start/cancel control pair, the progress bar and
// the status line from task runner events.
//
// A Machine lives on the UI context: Start and Cancel must be called there,
// and the runner delivers its observer callbacks there. The machine never
// touches the cancellation token or the job itself.
package action
