package cli

import (
	"fmt"
	"io"
	"runtime"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

func runVersion(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}
		if len(args) > 0 {
			fmt.Fprintln(stderr, "Too many arguments")
			return ExitUsage
		}
		fmt.Fprintf(stdout, "autonfe %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return ExitOK
	}
}
