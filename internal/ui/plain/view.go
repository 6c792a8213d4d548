// Package plain renders the retrieval panel and toasts as log-style lines
// for terminals without a live UI and for redirected output.
package plain

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/notify"
)

// progressStep is the granularity of progress lines, in percent.
const progressStep = 10

// Printer writes panel transitions and new toasts to out. It must only be
// used from the UI context.
type Printer struct {
	out io.Writer

	phase  action.Phase
	bucket int
	seen   map[uuid.UUID]struct{}
}

// NewPrinter creates a Printer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:    out,
		phase:  action.PhaseIdle,
		bucket: -1,
		seen:   make(map[uuid.UUID]struct{}),
	}
}

// View returns the Printer as an action.View.
func (p *Printer) View() action.View {
	return action.ViewFunc(p.RenderPanel)
}

// Renderer returns the Printer as a notify.Renderer.
func (p *Printer) Renderer() notify.Renderer {
	return notify.RendererFunc(p.RenderToasts)
}

// RenderPanel prints phase changes and progress in fixed steps.
func (p *Printer) RenderPanel(panel action.Panel) error {
	previous := p.phase
	p.phase = panel.Phase

	if panel.Phase != previous {
		switch {
		case panel.Phase == action.PhaseRunning:
			p.bucket = -1
			if err := p.printf("%s: %s\n", jobLabel(panel.Job), panel.StatusText); err != nil {
				return err
			}
		case panel.Phase == action.PhaseCancelling:
			if err := p.printf("%s\n", panel.StatusText); err != nil {
				return err
			}
		case panel.Phase == action.PhaseIdle && previous == action.PhaseCancelling && !panel.StatusVisible:
			if err := p.printf("Download cancelled.\n"); err != nil {
				return err
			}
		}
	}

	if panel.Phase == action.PhaseRunning && panel.ProgressVisible && panel.Total > 0 {
		bucket := int(panel.Progress*100) / progressStep * progressStep
		if bucket != p.bucket {
			p.bucket = bucket
			return p.printf("%s %3d%% (%d/%d)\n", bar(bucket), bucket, panel.Current, panel.Total)
		}
	}
	return nil
}

// RenderToasts prints each toast once, when it first appears.
func (p *Printer) RenderToasts(toasts []notify.Toast) error {
	live := make(map[uuid.UUID]struct{}, len(toasts))
	// oldest first so that lines read chronologically
	for i := len(toasts) - 1; i >= 0; i-- {
		toast := toasts[i]
		live[toast.ID] = struct{}{}
		if _, ok := p.seen[toast.ID]; ok {
			continue
		}
		if err := p.printf("[%s] %s\n", strings.ToUpper(string(toast.Severity)), toast.Message); err != nil {
			return err
		}
	}
	p.seen = live
	return nil
}

func (p *Printer) printf(format string, args ...any) error {
	_, err := fmt.Fprintf(p.out, format, args...)
	return err
}

func bar(percent int) string {
	filled := percent / progressStep
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 100/progressStep-filled) + "]"
}

func jobLabel(job string) string {
	switch job {
	case "nfe":
		return "NF-e"
	case "nfse":
		return "NFS-e"
	case "":
		return "Download"
	default:
		return job
	}
}
