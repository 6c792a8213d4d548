package task

import (
	"context"
	"sync"

	"github.com/autonfe/desk/internal/cancel"
)

// MockJob is a scriptable Job for tests. Steps are reported one by one and
// the token is polled before each step.
type MockJob struct {
	JobName string

	// Total is the number of progress steps to report
	Total uint64

	// CancelAfter, when non-zero, blocks after that step until the token fires
	CancelAfter uint64

	// FailWith is returned after all steps when set
	FailWith error

	// Statuses are pushed through the status reporter before the first step
	Statuses []string

	// ExecuteFn replaces the scripted behaviour entirely when set
	ExecuteFn ExecuteFunc

	mu       sync.Mutex
	executed int
	tokens   []cancel.Token
}

// NewMockJob creates a MockJob reporting total steps.
func NewMockJob(name string, total uint64) *MockJob {
	return &MockJob{JobName: name, Total: total}
}

// Name returns the job name
func (j *MockJob) Name() string {
	return j.JobName
}

// Execute runs the scripted behaviour
func (j *MockJob) Execute(ctx context.Context, token cancel.Token, progress ProgressFunc, status StatusFunc) error {
	j.mu.Lock()
	j.executed++
	j.tokens = append(j.tokens, token)
	j.mu.Unlock()

	if j.ExecuteFn != nil {
		return j.ExecuteFn(ctx, token, progress, status)
	}

	for _, msg := range j.Statuses {
		status(msg)
	}
	for step := uint64(1); step <= j.Total; step++ {
		if err := cancel.Check(token); err != nil {
			return err
		}
		progress(step, j.Total)
		if j.CancelAfter != 0 && step == j.CancelAfter {
			<-token.Done()
		}
	}
	if err := cancel.Check(token); err != nil && j.CancelAfter != 0 {
		return err
	}
	return j.FailWith
}

// Executions returns how many times Execute was called
func (j *MockJob) Executions() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.executed
}

// Tokens returns the tokens handed to each execution
func (j *MockJob) Tokens() []cancel.Token {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]cancel.Token, len(j.tokens))
	copy(out, j.tokens)
	return out
}

// RecordingObserver captures observer calls in arrival order.
type RecordingObserver struct {
	mu       sync.Mutex
	Events   []string
	Progress []ProgressEvent
	Statuses []string
	Outcomes []Outcome
	finished chan struct{}
	once     sync.Once
}

// NewRecordingObserver creates an empty RecordingObserver.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{finished: make(chan struct{})}
}

// OnProgress records a progress step
func (o *RecordingObserver) OnProgress(event ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, "progress")
	o.Progress = append(o.Progress, event)
}

// OnStatus records a status message
func (o *RecordingObserver) OnStatus(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, "status")
	o.Statuses = append(o.Statuses, message)
}

// OnFinish records the terminal outcome
func (o *RecordingObserver) OnFinish(outcome Outcome) {
	o.mu.Lock()
	o.Events = append(o.Events, "finish")
	o.Outcomes = append(o.Outcomes, outcome)
	o.mu.Unlock()
	o.once.Do(func() { close(o.finished) })
}

// Finished is closed after the first OnFinish
func (o *RecordingObserver) Finished() <-chan struct{} {
	return o.finished
}

// Snapshot returns copies of the recorded slices
func (o *RecordingObserver) Snapshot() (events []string, progress []ProgressEvent, statuses []string, outcomes []Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	events = append([]string(nil), o.Events...)
	progress = append([]ProgressEvent(nil), o.Progress...)
	statuses = append([]string(nil), o.Statuses...)
	outcomes = append([]Outcome(nil), o.Outcomes...)
	return events, progress, statuses, outcomes
}
