package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/notify"
)

// Options configures the live UI model.
type Options struct {
	NoColor bool

	// Title is shown in the header
	Title string

	// AutoStart starts a run as soon as the program starts
	AutoStart bool

	// ExitWhenDone quits once a started run is back to Idle
	ExitWhenDone bool
}

// Model renders the retrieval controls and toast stack. machine and center
// are only touched from Update and View, which run on the program goroutine.
type Model struct {
	machine  *action.Machine
	center   *notify.Center
	start    func() error
	keys     keyMap
	progress progress.Model
	opts     Options

	started  bool
	startErr error
}

type startMsg struct{}

// NewModel constructs a live UI model. start launches a run on the machine
// and is called from Update.
func NewModel(machine *action.Machine, center *notify.Center, start func() error, opts Options) Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	if opts.NoColor {
		bar = progress.New(progress.WithSolidFill("7"), progress.WithoutPercentage())
	}
	if opts.Title == "" {
		opts.Title = "AutoNFe"
	}
	return Model{
		machine:  machine,
		center:   center,
		start:    start,
		keys:     defaultKeyMap(),
		progress: bar,
		opts:     opts,
	}
}

// Init optionally triggers the first run.
func (m Model) Init() tea.Cmd {
	if m.opts.AutoStart {
		return func() tea.Msg { return startMsg{} }
	}
	return nil
}

// Update handles keys, posted work and window changes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(typed.Width-10, 10)
		return m, nil
	case runMsg:
		typed.fn()
		return m, m.quitIfDone()
	case startMsg:
		return m.startRun()
	case tea.KeyMsg:
		switch {
		case key.Matches(typed, m.keys.Quit):
			m.machine.Cancel()
			return m, tea.Quit
		case key.Matches(typed, m.keys.Cancel):
			m.machine.Cancel()
			return m, nil
		case key.Matches(typed, m.keys.Start):
			if m.machine.Panel().StartEnabled {
				return m.startRun()
			}
		}
	}
	return m, nil
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	m.started = true
	m.startErr = nil
	if m.start != nil {
		m.startErr = m.start()
	}
	return m, m.quitIfDone()
}

func (m Model) quitIfDone() tea.Cmd {
	if m.opts.ExitWhenDone && m.started && m.machine.Panel().Phase == action.PhaseIdle {
		return tea.Quit
	}
	return nil
}

// View renders the live UI.
func (m Model) View() string {
	panel := m.machine.Panel()
	sections := []string{
		stylize(m.opts.Title, m.opts.NoColor, lipgloss.Color("33")),
		renderButtons(panel, m.opts.NoColor),
	}
	if panel.ProgressVisible {
		sections = append(sections, renderProgress(m.progress, panel))
	}
	if panel.StatusVisible {
		sections = append(sections, stylize(panel.StatusText, m.opts.NoColor, severityColor(panel.StatusSeverity)))
	}
	if toasts := renderToasts(m.center.Active(), m.opts.NoColor); toasts != "" {
		sections = append(sections, "", toasts)
	}
	sections = append(sections, "", renderHelp(m.keys, m.opts.NoColor))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// StartErr returns the error of the last start attempt.
func (m Model) StartErr() error {
	return m.startErr
}

// Program wraps a Bubble Tea program wired to a Dispatcher.
type Program struct {
	program    *tea.Program
	dispatcher *Dispatcher
}

// NewProgram creates the program for model and attaches d to it.
func NewProgram(model Model, d *Dispatcher, stdout io.Writer) *Program {
	if stdout == nil {
		stdout = os.Stdout
	}
	program := tea.NewProgram(model, tea.WithOutput(stdout), tea.WithAltScreen())
	d.Attach(program)
	return &Program{program: program, dispatcher: d}
}

// Run blocks until the user quits or the run ends with ExitWhenDone, then
// stops the dispatcher.
func (p *Program) Run() (Model, error) {
	final, err := p.program.Run()
	p.dispatcher.Stop()
	model, _ := final.(Model)
	return model, err
}
