package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/autonfe/desk/internal/cancel"
	"github.com/autonfe/desk/internal/redact"
	"github.com/autonfe/desk/internal/task"
)

// SimulatedConfig controls the simulated client
type SimulatedConfig struct {
	// Documents is the number of steps of an NF-e pull
	Documents int

	// StepDelay is the pause before each step
	StepDelay time.Duration

	// StatusEvery pushes a status message every n steps; 0 disables them
	StatusEvery int

	// FailAt makes the pull fail at that step; 0 never fails
	FailAt int

	// FailMessage is the failure text; defaults to "simulated failure"
	FailMessage string

	Logger *slog.Logger
}

// DefaultSimulatedConfig returns a SimulatedConfig with reasonable defaults
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		Documents:   100,
		StepDelay:   50 * time.Millisecond,
		StatusEvery: 25,
		Logger:      slog.Default(),
	}
}

// Simulated is a Client that only pretends to download. It honours the
// cancellation protocol exactly like a real client must.
type Simulated struct {
	config SimulatedConfig
	logger *slog.Logger
}

// NewSimulated creates a Simulated client.
func NewSimulated(config SimulatedConfig) *Simulated {
	if config.Documents <= 0 {
		config.Documents = DefaultSimulatedConfig().Documents
	}
	if config.FailMessage == "" {
		config.FailMessage = "simulated failure"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Simulated{
		config: config,
		logger: config.Logger.With("component", "simulated_client"),
	}
}

// FetchNFe implements Client.
func (s *Simulated) FetchNFe(ctx context.Context, req NFeRequest, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error {
	s.logger.Info("simulating NF-e pull", "tax_id", redact.TaxID(req.TaxID), "documents", s.config.Documents)
	status(fmt.Sprintf("Certificate accepted for %s", redact.TaxID(req.TaxID)))
	return s.run(ctx, token, s.config.Documents, "XMLs", progress, status)
}

// FetchNFSe implements Client. One step is taken per listed tax ID.
func (s *Simulated) FetchNFSe(ctx context.Context, req NFSeRequest, token cancel.Token, progress task.ProgressFunc, status task.StatusFunc) error {
	ids, err := ReadTaxIDs(req.TaxIDsFile)
	if err != nil {
		return err
	}
	s.logger.Info("simulating NFS-e pull", "tax_ids", len(ids), "start", req.StartDate, "end", req.EndDate)
	status(fmt.Sprintf("Logged in as %s", req.User))
	return s.run(ctx, token, len(ids), "reports", progress, status)
}

func (s *Simulated) run(ctx context.Context, token cancel.Token, total int, noun string, progress task.ProgressFunc, status task.StatusFunc) error {
	for step := 1; step <= total; step++ {
		if err := cancel.Check(token); err != nil {
			return err
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
		if s.config.FailAt == step {
			return errors.New(s.config.FailMessage)
		}
		progress(uint64(step), uint64(total))
		if s.config.StatusEvery > 0 && step%s.config.StatusEvery == 0 && step < total {
			status(fmt.Sprintf("%d of %d %s saved", step, total, noun))
		}
	}
	return nil
}

// pause waits StepDelay or until ctx is done.
func (s *Simulated) pause(ctx context.Context) error {
	if s.config.StepDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.config.StepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
