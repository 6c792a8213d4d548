// Package main is the entry point of the autonfe command.
package main

import (
	"os"

	"github.com/autonfe/desk/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
