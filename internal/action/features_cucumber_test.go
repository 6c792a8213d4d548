//go:build cucumber

package action

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/task"
)

// TestRetrievalControlScenarios runs the retrieval controls feature scenarios.
func TestRetrievalControlScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name: "retrieval-controls",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			InitializeRetrievalControlScenario(ctx, t)
		},
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "retrieval_controls.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeRetrievalControlScenario wires steps for the controls scenarios.
func InitializeRetrievalControlScenario(ctx *godog.ScenarioContext, t *testing.T) {
	state := &controlScenarioState{t: t}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^a download with (\d+) documents$`, state.givenDownload)
	ctx.Step(`^a download with (\d+) documents that waits for cancellation after (\d+)$`, state.givenCancellableDownload)
	ctx.Step(`^a download that fails with "([^"]+)"$`, state.givenFailingDownload)
	ctx.Step(`^a toast stack holding at most (\d+) toasts$`, state.givenToastStack)
	ctx.Step(`^I start the download$`, state.whenIStart)
	ctx.Step(`^progress reaches (\d+)$`, state.whenProgressReaches)
	ctx.Step(`^I cancel the download$`, state.whenICancel)
	ctx.Step(`^the download finishes$`, state.whenFinished)
	ctx.Step(`^(\d+) toasts are shown$`, state.whenToastsShown)
	ctx.Step(`^progress was reported from 1 to (\d+) in order$`, state.thenProgressInOrder)
	ctx.Step(`^success was reported exactly once$`, state.thenSuccessOnce)
	ctx.Step(`^the start control is enabled$`, state.thenStartEnabled)
	ctx.Step(`^the progress bar is hidden$`, state.thenProgressHidden)
	ctx.Step(`^no error is shown$`, state.thenNoError)
	ctx.Step(`^(\d+) toasts are visible$`, state.thenToastsVisible)
	ctx.Step(`^the first toast is gone$`, state.thenFirstToastGone)
	ctx.Step(`^the first toast's timer never fires$`, state.thenFirstTimerNeverFires)
	ctx.Step(`^the status shows "([^"]+)" as an error$`, state.thenStatusError)
}

type controlScenarioState struct {
	t         *testing.T
	harness   *harness
	job       *task.MockJob
	maxToasts int
}

// reset clears scenario state.
func (s *controlScenarioState) reset() {
	s.harness = nil
	s.job = nil
	s.maxToasts = 5
}

func (s *controlScenarioState) ensureHarness() *harness {
	if s.harness == nil {
		s.harness = newHarness(s.t, s.maxToasts)
	}
	return s.harness
}

func (s *controlScenarioState) givenDownload(documents int) error {
	s.job = task.NewMockJob("nfe", uint64(documents))
	return nil
}

func (s *controlScenarioState) givenCancellableDownload(documents, after int) error {
	s.job = task.NewMockJob("nfse", uint64(documents))
	s.job.CancelAfter = uint64(after)
	return nil
}

func (s *controlScenarioState) givenFailingDownload(message string) error {
	s.job = task.NewMockJob("nfe", 10)
	s.job.FailWith = errors.New(message)
	return nil
}

func (s *controlScenarioState) givenToastStack(limit int) error {
	s.maxToasts = limit
	return nil
}

func (s *controlScenarioState) whenIStart() error {
	h := s.ensureHarness()
	return h.start(s.t, s.job, nil)
}

func (s *controlScenarioState) whenProgressReaches(n int) error {
	return s.poll(func() bool { return s.harness.panel(s.t).Current == uint64(n) },
		fmt.Sprintf("progress never reached %d", n))
}

func (s *controlScenarioState) whenICancel() error {
	s.harness.cancel(s.t)
	return nil
}

func (s *controlScenarioState) whenFinished() error {
	return s.poll(func() bool { return s.harness.panel(s.t).Phase == PhaseIdle }, "download never finished")
}

func (s *controlScenarioState) whenToastsShown(n int) error {
	h := s.ensureHarness()
	h.do(s.t, func() {
		for i := 1; i <= n; i++ {
			h.center.Info(fmt.Sprintf("toast %d", i))
		}
	})
	return nil
}

func (s *controlScenarioState) thenProgressInOrder(total int) error {
	var last uint64
	for _, frame := range s.harness.rendered(s.t) {
		if frame.Phase != PhaseRunning || frame.Current == 0 {
			continue
		}
		if frame.Current != last+1 {
			return fmt.Errorf("progress jumped from %d to %d", last, frame.Current)
		}
		last = frame.Current
	}
	if last != uint64(total) {
		return fmt.Errorf("progress ended at %d, want %d", last, total)
	}
	return nil
}

func (s *controlScenarioState) thenSuccessOnce() error {
	n := 0
	for _, frame := range s.harness.rendered(s.t) {
		if frame.StatusText == TextCompleted {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("success rendered %d times", n)
	}
	if got := countSeverity(s.harness.toasts(s.t), notify.SeveritySuccess); got != 1 {
		return fmt.Errorf("%d success toasts", got)
	}
	return nil
}

func (s *controlScenarioState) thenStartEnabled() error {
	p := s.harness.panel(s.t)
	if !p.StartEnabled || p.CancelVisible {
		return fmt.Errorf("controls not restored: %+v", p)
	}
	return nil
}

func (s *controlScenarioState) thenProgressHidden() error {
	if p := s.harness.panel(s.t); p.ProgressVisible {
		return fmt.Errorf("progress still visible: %+v", p)
	}
	return nil
}

func (s *controlScenarioState) thenNoError() error {
	p := s.harness.panel(s.t)
	if p.StatusSeverity == notify.SeverityError {
		return fmt.Errorf("error status shown: %q", p.StatusText)
	}
	if n := countSeverity(s.harness.toasts(s.t), notify.SeverityError); n != 0 {
		return fmt.Errorf("%d error toasts shown", n)
	}
	return nil
}

func (s *controlScenarioState) thenToastsVisible(n int) error {
	if got := len(s.harness.toasts(s.t)); got != n {
		return fmt.Errorf("%d toasts visible, want %d", got, n)
	}
	return nil
}

func (s *controlScenarioState) thenFirstToastGone() error {
	for _, toast := range s.harness.toasts(s.t) {
		if toast.Message == "toast 1" {
			return errors.New("first toast still visible")
		}
	}
	return nil
}

func (s *controlScenarioState) thenFirstTimerNeverFires() error {
	first := s.harness.scheduler.Timers()[0]
	if !first.Stopped() {
		return errors.New("first toast's timer was not stopped")
	}
	if first.Fire() {
		return errors.New("first toast's timer fired after eviction")
	}
	return nil
}

func (s *controlScenarioState) thenStatusError(message string) error {
	p := s.harness.panel(s.t)
	if p.StatusText != message || p.StatusSeverity != notify.SeverityError || !p.StatusVisible {
		return fmt.Errorf("status is %q (%s), want %q as error", p.StatusText, p.StatusSeverity, message)
	}
	return nil
}

// poll waits for cond on the UI context.
func (s *controlScenarioState) poll(cond func() bool, msg string) error {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return errors.New(msg)
}
