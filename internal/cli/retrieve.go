package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autonfe/desk/internal/action"
	"github.com/autonfe/desk/internal/dispatch"
	"github.com/autonfe/desk/internal/notify"
	"github.com/autonfe/desk/internal/retrieval"
	"github.com/autonfe/desk/internal/task"
	"github.com/autonfe/desk/internal/ui/plain"
	"github.com/autonfe/desk/internal/ui/tui"
)

// drainTimeout bounds how long a cancelled run may take to wind down after
// the UI has gone away.
const drainTimeout = 30 * time.Second

// retrievalRun describes one run requested from the command line.
type retrievalRun struct {
	title    string
	job      func(client retrieval.Client) task.Job
	validate func() error
}

type uiFlags struct {
	mode    string
	noColor bool
}

func (u *uiFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&u.mode, "ui", "", "Output mode: auto, live or plain (default from config)")
	fs.BoolVar(&u.noColor, "no-color", false, "Disable colors in the live UI")
}

func runNFe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		var common commonFlags
		var ui uiFlags
		common.register(fs)
		ui.register(fs)
		var req retrieval.NFeRequest
		fs.StringVar(&req.TaxID, "tax-id", "", "CNPJ or CPF of the certificate holder")
		fs.StringVar(&req.CertPath, "cert", "", "Path to the A1 certificate (.pfx)")
		fs.StringVar(&req.CertPassword, "cert-password", "", "Certificate password (default $AUTONFE_CERT_PASSWORD)")
		fs.StringVar(&req.SheetPath, "sheet", "", "Spreadsheet listing the access keys")
		fs.StringVar(&req.OutputDir, "output", "", "Folder that receives the XMLs")
		if err := fs.Parse(args); err != nil {
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		if req.CertPassword == "" {
			req.CertPassword = os.Getenv("AUTONFE_CERT_PASSWORD")
		}

		return runRetrieval(retrievalRun{
			title:    "AutoNFe | NF-e download",
			job:      func(client retrieval.Client) task.Job { return retrieval.NewNFeJob(client, req) },
			validate: func() error { return retrieval.ValidateNFe(req) },
		}, common, ui, stdout, stderr)
	}
}

func runNFSe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		var common commonFlags
		var ui uiFlags
		common.register(fs)
		ui.register(fs)
		var req retrieval.NFSeRequest
		fs.StringVar(&req.User, "user", "", "Portal login")
		fs.StringVar(&req.Password, "password", "", "Portal password (default $AUTONFE_PORTAL_PASSWORD)")
		fs.StringVar(&req.TaxIDsFile, "tax-ids", "", "File with one CNPJ/CPF per line")
		fs.StringVar(&req.StartDate, "start", "", "First day, dd/mm/yyyy")
		fs.StringVar(&req.EndDate, "end", "", "Last day, dd/mm/yyyy")
		fs.StringVar(&req.DownloadDir, "output", "", "Folder that receives the reports")
		if err := fs.Parse(args); err != nil {
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		if req.Password == "" {
			req.Password = os.Getenv("AUTONFE_PORTAL_PASSWORD")
		}

		return runRetrieval(retrievalRun{
			title:    "AutoNFe | NFS-e download",
			job:      func(client retrieval.Client) task.Job { return retrieval.NewNFSeJob(client, req) },
			validate: req.Validate,
		}, common, ui, stdout, stderr)
	}
}

// runRetrieval builds the application and drives one run through the live
// or the plain front end.
func runRetrieval(run retrievalRun, common commonFlags, ui uiFlags, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(common)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}

	mode := ui.mode
	if mode == "" {
		mode = cfg.UI.Mode
	}
	decision, err := resolveUIMode(mode, common.verbose, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitUsage
	}
	if decision.warning != "" {
		fmt.Fprintln(stderr, decision.warning)
	}

	// logs must never be drawn over the live UI
	logOutput := stderr
	if decision.useLive {
		logOutput = io.Discard
	}
	app, err := newApplication(common, cfg, logOutput)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}
	defer app.cleanup()

	job := run.job(app.client)
	if decision.useLive {
		return app.runLive(run, job, ui, stdout, stderr)
	}
	return app.runPlain(run, job, stdout, stderr)
}

// runPlain uses a dispatch loop as the UI context and prints transitions.
// SIGINT and SIGTERM cancel the run.
func (app *application) runPlain(run retrievalRun, job task.Job, stdout, stderr io.Writer) int {
	loop := dispatch.NewLoop(app.logger)
	defer loop.Stop()

	printer := plain.NewPrinter(stdout)
	var c *core
	var startErr error
	if err := dispatch.Invoke(context.Background(), loop, func() {
		c = app.newCore(loop, printer.View(), printer.Renderer())
		startErr = c.machine.Start(job, run.validate)
	}); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}
	if startErr != nil {
		return ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := c.runner.Wait(ctx); err != nil {
		app.logger.Info("interrupt received, cancelling run")
		_ = dispatch.Invoke(context.Background(), loop, c.machine.Cancel)
		if code := app.drain(c.runner, stderr); code != ExitOK {
			return code
		}
	}

	var panel action.Panel
	if err := dispatch.Invoke(context.Background(), loop, func() { panel = c.machine.Panel() }); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}
	return exitCode(panel)
}

// runLive hands the terminal to the Bubble Tea program. The program's
// Update is the UI context.
func (app *application) runLive(run retrievalRun, job task.Job, ui uiFlags, stdout, stderr io.Writer) int {
	d := tui.NewDispatcher()
	c := app.newCore(d, nil, nil)

	model := tui.NewModel(c.machine, c.center, func() error {
		return c.machine.Start(job, run.validate)
	}, tui.Options{
		NoColor:      ui.noColor,
		Title:        run.title,
		AutoStart:    true,
		ExitWhenDone: true,
	})

	final, err := tui.NewProgram(model, d, stdout).Run()
	if err != nil {
		fmt.Fprintf(stderr, "UI error: %v\n", err)
	}

	// the program has exited, so nothing else touches the machine
	c.runner.Cancel()
	if code := app.drain(c.runner, stderr); code != ExitOK {
		return code
	}

	panel := c.machine.Panel()
	if startErr := final.StartErr(); startErr != nil {
		fmt.Fprintln(stderr, startErr)
		return ExitError
	}
	if panel.Phase == action.PhaseIdle && panel.StatusVisible {
		fmt.Fprintln(stdout, panel.StatusText)
	}
	if err != nil {
		return ExitError
	}
	return exitCode(panel)
}

// drain waits for the worker to return after a cancel request.
func (app *application) drain(runner *task.Runner, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := runner.Wait(ctx); err != nil {
		app.logger.Error("run did not stop in time", "error", err)
		fmt.Fprintln(stderr, "The download did not stop in time.")
		return ExitError
	}
	return ExitOK
}

// exitCode maps the final panel to a process exit code.
func exitCode(panel action.Panel) int {
	switch {
	case panel.StatusVisible && panel.StatusSeverity == notify.SeverityError:
		return ExitError
	case panel.StatusVisible && panel.StatusSeverity == notify.SeveritySuccess:
		return ExitOK
	case panel.Job != "":
		return ExitCancelled
	default:
		return ExitOK
	}
}
