package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/autonfe/desk/internal/api"
	"github.com/autonfe/desk/internal/dispatch"
)

// serveAPI is a test seam for running the control API.
var serveAPI = api.Serve

// runServe builds the handler for the serve command.
func runServe(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		var common commonFlags
		common.register(fs)
		addr := fs.String("addr", "", "Address to listen on (default from config)")
		if err := fs.Parse(args); err != nil {
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}

		cfg, err := loadConfig(common)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		if *addr == "" {
			*addr = cfg.Server.ListenAddr
		}

		app, err := newApplication(common, cfg, stderr)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		defer app.cleanup()

		loop := dispatch.NewLoop(app.logger)
		defer loop.Stop()

		var c *core
		if err := dispatch.Invoke(context.Background(), loop, func() {
			c = app.newCore(loop, nil, nil)
		}); err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}

		handler := api.NewRetrievalHandler(api.HandlerConfig{
			Dispatcher: loop,
			Machine:    c.machine,
			Center:     c.center,
			Client:     app.client,
			Logger:     app.logger,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = serveAPI(ctx, *addr, api.NewRouter(handler, app.logger), app.logger, func(bound net.Addr) {
			fmt.Fprintf(stdout, "Control API listening on http://%s\n", bound)
		})

		c.runner.Cancel()
		if code := app.drain(c.runner, stderr); code != ExitOK {
			return code
		}
		if err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
}
