package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autonfe/desk/internal/cancel"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/redact"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// ErrNilJob is reported to the error handler when Start receives a nil job.
var ErrNilJob = errors.New("job is nil")

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// Logger receives lifecycle logs; defaults to slog.Default()
	Logger *slog.Logger

	// ErrorHandler is called off the UI context when a job fails.
	// If nil, failures are only logged
	ErrorHandler func(job Job, err error)

	// Meter records outcome metrics; defaults to the global OTel meter
	Meter metric.Meter

	// Now returns the current time; defaults to time.Now
	Now func() time.Time
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

// Runner executes at most one job at a time (single-flight) and relays its
// events onto the UI context.
type Runner struct {
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	errHandler func(job Job, err error)
	metrics    runnerMetrics
	now        func() time.Time

	mu      sync.Mutex
	state   State
	current *run
}

// run is the bookkeeping for one accepted Start.
type run struct {
	id        uuid.UUID
	job       Job
	source    *cancel.Source
	observer  Observer
	startedAt time.Time

	// closed is set by the terminal transition; events arriving later are dropped
	closed atomic.Bool

	// idle is closed once the run has returned the runner to Idle
	idle chan struct{}
}

// NewRunner creates a Runner that marshals observer calls through d.
func NewRunner(d dispatch.Dispatcher, config RunnerConfig) *Runner {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger.With("component", "task_runner")

	return &Runner{
		dispatcher: d,
		logger:     logger,
		errHandler: config.ErrorHandler,
		metrics:    newRunnerMetrics(config.Meter, logger),
		now:        config.Now,
		state:      StateIdle,
	}
}

// Start launches job on its own goroutine and reports whether it was
// accepted. A start while another run is not yet Idle is rejected and leaves
// that run untouched. observer may be nil.
func (r *Runner) Start(job Job, observer Observer) bool {
	if job == nil {
		r.logger.Warn("rejecting start", "error", ErrNilJob)
		return false
	}

	r.mu.Lock()
	if r.state != StateIdle {
		state := r.state
		r.mu.Unlock()
		r.metrics.recordRejected(job.Name())
		r.logger.Debug("rejecting start, a run is in flight",
			"job", job.Name(),
			"state", state)
		return false
	}

	rn := &run{
		id:        uuid.New(),
		job:       job,
		source:    cancel.NewSource(),
		observer:  observer,
		startedAt: r.now(),
		idle:      make(chan struct{}),
	}
	r.state = StateRunning
	r.current = rn
	r.mu.Unlock()

	r.logger.Info("starting run", "run_id", rn.id, "job", job.Name())

	go r.execute(rn)
	return true
}

// Cancel requests cooperative cancellation of the running job. It is a
// no-op unless a run is Running, never blocks, and is idempotent.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.state != StateRunning || r.current == nil {
		r.mu.Unlock()
		return
	}
	rn := r.current
	r.mu.Unlock()

	if rn.source.Cancel() {
		r.logger.Info("cancellation requested", "run_id", rn.id, "job", rn.job.Name())
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current describes the run in flight, if any.
func (r *Runner) Current() (RunInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return RunInfo{State: r.state}, false
	}
	return RunInfo{
		ID:              r.current.id,
		Job:             r.current.job.Name(),
		State:           r.state,
		StartedAt:       r.current.startedAt,
		CancelRequested: r.current.source.Cancelled(),
	}, true
}

// Wait blocks until the run in flight (if any) has returned the runner to
// Idle, or ctx is done. It must not be called from the UI context while a
// run is finishing, since the terminal transition itself runs there.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	rn := r.current
	r.mu.Unlock()
	if rn == nil {
		return nil
	}
	select {
	case <-rn.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute is the job goroutine.
func (r *Runner) execute(rn *run) {
	logger := r.logger.With("run_id", rn.id, "job", rn.job.Name())

	progress := func(current, total uint64) {
		event := ProgressEvent{Current: current, Total: total}
		r.post(rn, func(o Observer) { o.OnProgress(event) })
	}
	status := func(message string) {
		r.post(rn, func(o Observer) { o.OnStatus(message) })
	}

	err := r.invoke(rn, progress, status)

	outcome := Outcome{
		RunID:           rn.id,
		Job:             rn.job.Name(),
		Kind:            classify(err),
		CancelRequested: rn.source.Cancelled(),
		StartedAt:       rn.startedAt,
		FinishedAt:      r.now(),
	}
	switch outcome.Kind {
	case OutcomeFailed:
		outcome.Err = err
		outcome.Message = err.Error()
		logger.Error("run failed", "error", redact.Error(err))
		if r.errHandler != nil {
			r.errHandler(rn.job, err)
		}
	case OutcomeCancelled:
		logger.Info("run cancelled")
	default:
		logger.Info("run completed successfully", "duration", outcome.Duration())
	}

	r.mu.Lock()
	r.state = StateFinishing
	r.mu.Unlock()

	if !r.dispatcher.Post(func() { r.finish(rn, outcome, true) }) {
		logger.Warn("ui context unavailable, finishing run without notifying observer")
		r.finish(rn, outcome, false)
	}
}

// invoke runs the job, converting a panic into an error.
func (r *Runner) invoke(rn *run, progress ProgressFunc, status StatusFunc) (err error) {
	token := rn.source.Token()
	ctx, release := cancel.Context(context.Background(), token)
	defer release()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", rn.job.Name(), p)
		}
	}()
	return rn.job.Execute(ctx, token, progress, status)
}

// post marshals an observer call onto the UI context. Calls arriving after
// the terminal transition are dropped there.
func (r *Runner) post(rn *run, call func(Observer)) {
	if rn.closed.Load() || rn.observer == nil {
		return
	}
	r.dispatcher.Post(func() {
		if rn.closed.Load() {
			return
		}
		call(rn.observer)
	})
}

// finish performs the terminal transition exactly once per run.
func (r *Runner) finish(rn *run, outcome Outcome, notify bool) {
	if !rn.closed.CompareAndSwap(false, true) {
		return
	}

	r.mu.Lock()
	if r.current == rn {
		r.current = nil
		r.state = StateIdle
	}
	r.mu.Unlock()

	r.metrics.recordOutcome(outcome)
	defer close(rn.idle)

	if notify && rn.observer != nil {
		rn.observer.OnFinish(outcome)
	}
}
