package action

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/task"
	"github.com/google/uuid"
)

// Status texts shown on the panel.
const (
	TextConnecting = "Connecting..."
	TextCancelling = "Cancelling..."
	TextCompleted  = "Download completed successfully!"
)

// ErrBusy is returned by Start when a run is already in flight.
var ErrBusy = errors.New("a download is already in progress")

// Phase is the visible state of the control pair.
type Phase string

// Control phases
const (
	PhaseIdle       Phase = "idle"
	PhaseRunning    Phase = "running"
	PhaseCancelling Phase = "cancelling"
)

// Panel is everything a view needs to draw the controls.
type Panel struct {
	Phase           Phase           `json:"phase"`
	StartEnabled    bool            `json:"start_enabled"`
	CancelVisible   bool            `json:"cancel_visible"`
	CancelEnabled   bool            `json:"cancel_enabled"`
	ProgressVisible bool            `json:"progress_visible"`
	Progress        float64         `json:"progress"`
	Current         uint64          `json:"current"`
	Total           uint64          `json:"total"`
	StatusText      string          `json:"status_text"`
	StatusSeverity  notify.Severity `json:"status_severity,omitempty"`
	StatusVisible   bool            `json:"status_visible"`
	Job             string          `json:"job,omitempty"`
}

// IdlePanel returns the panel shown before any run.
func IdlePanel() Panel {
	return Panel{Phase: PhaseIdle, StartEnabled: true}
}

// View draws the panel. Render is called on the UI context after every
// transition; errors and panics are logged and otherwise ignored.
type View interface {
	Render(panel Panel) error
}

// ViewFunc adapts a function to the View interface.
type ViewFunc func(panel Panel) error

// Render calls f(panel).
func (f ViewFunc) Render(panel Panel) error {
	return f(panel)
}

// Runner is the part of task.Runner the machine drives.
type Runner interface {
	Start(job task.Job, observer task.Observer) bool
	Cancel()
}

// Toaster is the part of notify.Center the machine uses.
type Toaster interface {
	Success(message string) uuid.UUID
	Error(message string) uuid.UUID
	Info(message string) uuid.UUID
}

// Machine is the action state machine: Idle -> Running -> Cancelling -> Idle.
type Machine struct {
	runner Runner
	toasts Toaster
	view   View
	logger *slog.Logger

	panel Panel

	// seq identifies the current run so that callbacks of an older run are ignored
	seq uint64
}

// NewMachine creates a Machine in the Idle phase and renders it once.
// view may be nil.
func NewMachine(runner Runner, toasts Toaster, view View, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		runner: runner,
		toasts: toasts,
		view:   view,
		logger: logger.With("component", "action_machine"),
		panel:  IdlePanel(),
	}
	m.render()
	return m
}

// Panel returns the current panel.
func (m *Machine) Panel() Panel {
	return m.panel
}

// Start validates the input and launches job. A validation failure is shown
// as an error toast and leaves the machine Idle; validate may be nil.
func (m *Machine) Start(job task.Job, validate func() error) error {
	if m.panel.Phase != PhaseIdle {
		return ErrBusy
	}
	if validate != nil {
		if err := validate(); err != nil {
			m.toasts.Error(err.Error())
			return err
		}
	}

	m.seq++
	seq := m.seq
	observer := task.ObserverFuncs{
		Progress: func(event task.ProgressEvent) { m.onProgress(seq, event) },
		Status:   func(message string) { m.onStatus(seq, message) },
		Finish:   func(outcome task.Outcome) { m.onFinish(seq, outcome) },
	}
	if !m.runner.Start(job, observer) {
		m.logger.Warn("runner rejected start", "job", job.Name())
		return ErrBusy
	}

	m.panel = Panel{
		Phase:           PhaseRunning,
		CancelVisible:   true,
		CancelEnabled:   true,
		ProgressVisible: true,
		StatusText:      TextConnecting,
		StatusSeverity:  notify.SeverityInfo,
		StatusVisible:   true,
		Job:             job.Name(),
	}
	m.logger.Debug("phase changed", "phase", m.panel.Phase, "job", job.Name())
	m.render()
	return nil
}

// Cancel requests cancellation of the running job. It is a no-op unless the
// machine is Running.
func (m *Machine) Cancel() {
	if m.panel.Phase != PhaseRunning {
		return
	}
	m.panel.Phase = PhaseCancelling
	m.panel.CancelEnabled = false
	m.panel.StatusText = TextCancelling
	m.panel.StatusSeverity = notify.SeverityWarning
	m.panel.StatusVisible = true
	m.logger.Debug("phase changed", "phase", m.panel.Phase)
	m.render()

	m.runner.Cancel()
}

func (m *Machine) onProgress(seq uint64, event task.ProgressEvent) {
	if seq != m.seq || m.panel.Phase == PhaseIdle {
		return
	}
	m.panel.ProgressVisible = true
	m.panel.Progress = event.Fraction()
	m.panel.Current = event.Current
	m.panel.Total = event.Total
	if m.panel.Phase == PhaseRunning {
		m.panel.StatusText = fmt.Sprintf("Downloading: %d/%d", event.Current, event.Total)
		m.panel.StatusSeverity = notify.SeverityInfo
		m.panel.StatusVisible = true
	}
	m.render()
}

func (m *Machine) onStatus(seq uint64, message string) {
	if seq != m.seq || m.panel.Phase == PhaseIdle {
		return
	}
	m.toasts.Info(message)
}

func (m *Machine) onFinish(seq uint64, outcome task.Outcome) {
	if seq != m.seq || m.panel.Phase == PhaseIdle {
		return
	}

	panel := IdlePanel()
	panel.Job = outcome.Job
	switch outcome.Kind {
	case task.OutcomeSucceeded:
		panel.ProgressVisible = true
		panel.Progress = 1
		panel.Current = m.panel.Total
		panel.Total = m.panel.Total
		panel.StatusText = TextCompleted
		panel.StatusSeverity = notify.SeveritySuccess
		panel.StatusVisible = true
		m.toasts.Success(TextCompleted)
	case task.OutcomeFailed:
		panel.StatusText = outcome.Message
		panel.StatusSeverity = notify.SeverityError
		panel.StatusVisible = true
		m.toasts.Error(outcome.Message)
	case task.OutcomeCancelled:
		// progress and status stay hidden
	}

	m.panel = panel
	m.logger.Debug("phase changed",
		"phase", m.panel.Phase,
		"outcome", outcome.Kind,
		"job", outcome.Job)
	m.render()
}

func (m *Machine) render() {
	if m.view == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			m.logger.Debug("view panicked", "panic", fmt.Sprint(p))
		}
	}()
	if err := m.view.Render(m.panel); err != nil {
		m.logger.Debug("view failed to render", "error", err)
	}
}
