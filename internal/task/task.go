package task

import (
	"context"
	"time"

	"github.com/autonfe/desk/internal/cancel"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Runner.
type State string

// Possible runner states
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinishing State = "finishing"
)

// OutcomeKind identifies which terminal path a run took.
type OutcomeKind string

// Terminal outcomes
const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailed    OutcomeKind = "failed"
)

// ProgressEvent is one progress step reported by a job.
type ProgressEvent struct {
	Current uint64
	Total   uint64
}

// Fraction returns Current/Total clamped to [0, 1]. An unknown total yields 0.
func (e ProgressEvent) Fraction() float64 {
	if e.Total == 0 {
		return 0
	}
	f := float64(e.Current) / float64(e.Total)
	if f > 1 {
		return 1
	}
	return f
}

// ProgressFunc receives progress steps. Jobs may call it from any goroutine.
type ProgressFunc func(current, total uint64)

// StatusFunc receives free-form status messages. Jobs may call it from any goroutine.
type StatusFunc func(message string)

// Job is a unit of long-running work. Its parameters are carried by the
// value itself.
// Version: 1.0
type Job interface {
	// Name returns a short identifier used in logs and metrics
	Name() string

	// Execute runs the job. It must poll token at bounded intervals and
	// return cancel.ErrCancelled once it observes cancellation. ctx is
	// cancelled together with token.
	Execute(ctx context.Context, token cancel.Token, progress ProgressFunc, status StatusFunc) error
}

// ExecuteFunc is the signature of Job.Execute.
type ExecuteFunc func(ctx context.Context, token cancel.Token, progress ProgressFunc, status StatusFunc) error

// funcJob adapts a function to the Job interface.
type funcJob struct {
	name string
	fn   ExecuteFunc
}

// NewJob wraps fn as a Job.
func NewJob(name string, fn ExecuteFunc) Job {
	return &funcJob{name: name, fn: fn}
}

func (j *funcJob) Name() string {
	return j.name
}

func (j *funcJob) Execute(ctx context.Context, token cancel.Token, progress ProgressFunc, status StatusFunc) error {
	return j.fn(ctx, token, progress, status)
}

// Observer receives the events of one run. Every method is invoked on the
// UI context, never on the job's goroutine.
// Version: 1.0
type Observer interface {
	// OnProgress delivers the latest progress step
	OnProgress(event ProgressEvent)

	// OnStatus delivers a status message pushed by the job
	OnStatus(message string)

	// OnFinish delivers the terminal outcome; it is the last call for a run
	OnFinish(outcome Outcome)
}

// ObserverFuncs implements Observer with optional callbacks.
type ObserverFuncs struct {
	Progress func(event ProgressEvent)
	Status   func(message string)
	Finish   func(outcome Outcome)
}

// OnProgress calls Progress when set.
func (o ObserverFuncs) OnProgress(event ProgressEvent) {
	if o.Progress != nil {
		o.Progress(event)
	}
}

// OnStatus calls Status when set.
func (o ObserverFuncs) OnStatus(message string) {
	if o.Status != nil {
		o.Status(message)
	}
}

// OnFinish calls Finish when set.
func (o ObserverFuncs) OnFinish(outcome Outcome) {
	if o.Finish != nil {
		o.Finish(outcome)
	}
}

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID           uuid.UUID
	Job             string
	Kind            OutcomeKind
	Err             error
	Message         string
	CancelRequested bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the run took.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// RunInfo describes the run currently owned by a Runner.
type RunInfo struct {
	ID              uuid.UUID
	Job             string
	State           State
	StartedAt       time.Time
	CancelRequested bool
}

// classify maps a job's return value to its terminal outcome kind.
func classify(err error) OutcomeKind {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case cancel.IsCancelled(err):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}
