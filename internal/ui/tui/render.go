package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/notify"
)

// renderButtons renders the start/cancel pair. Disabled buttons are dimmed;
// a hidden cancel button is omitted.
func renderButtons(panel action.Panel, noColor bool) string {
	start := button("Start", panel.StartEnabled, noColor)
	if !panel.CancelVisible {
		return start
	}
	return start + "  " + button("Cancel", panel.CancelEnabled, noColor)
}

func button(label string, enabled bool, noColor bool) string {
	text := "[ " + label + " ]"
	if noColor {
		if !enabled {
			return "( " + label + " )"
		}
		return text
	}
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	if !enabled {
		style = lipgloss.NewStyle().Faint(true)
	}
	return style.Render(text)
}

func renderProgress(bar progress.Model, panel action.Panel) string {
	line := bar.ViewAs(panel.Progress)
	if panel.Total > 0 {
		line += fmt.Sprintf(" %d/%d", panel.Current, panel.Total)
	}
	return line
}

// renderToasts renders the stack newest first.
func renderToasts(toasts []notify.Toast, noColor bool) string {
	if len(toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(toasts))
	for _, toast := range toasts {
		line := severityIcon(toast.Severity) + " " + toast.Message
		if noColor {
			lines = append(lines, line)
			continue
		}
		style := lipgloss.NewStyle().
			Foreground(severityColor(toast.Severity)).
			Border(lipgloss.RoundedBorder(), false, false, false, true).
			BorderForeground(severityColor(toast.Severity)).
			PaddingLeft(1)
		if toast.Phase == notify.PhaseFadingOut {
			style = style.Faint(true)
		}
		lines = append(lines, style.Render(line))
	}
	return strings.Join(lines, "\n")
}

func renderHelp(keys keyMap, noColor bool) string {
	parts := make([]string, 0, 3)
	for _, binding := range []key.Binding{keys.Start, keys.Cancel, keys.Quit} {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return stylize(strings.Join(parts, " | "), noColor, lipgloss.Color("242"))
}

func severityIcon(severity notify.Severity) string {
	switch severity {
	case notify.SeveritySuccess:
		return "✓"
	case notify.SeverityError:
		return "✗"
	case notify.SeverityWarning:
		return "!"
	default:
		return "i"
	}
}

func severityColor(severity notify.Severity) lipgloss.Color {
	switch severity {
	case notify.SeveritySuccess:
		return lipgloss.Color("42")
	case notify.SeverityError:
		return lipgloss.Color("196")
	case notify.SeverityWarning:
		return lipgloss.Color("214")
	default:
		return lipgloss.Color("39")
	}
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
