// Package main is the entry point for the bz2gl CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/bz2gl/cmd"
	"github.com/danielolaszy/bz2gl/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.Version = version

	logging.Debug("starting bz2gl", "version", version)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
