package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cjkfmt/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	baseDir := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		baseDir = filepath.Join(homeDir, config.DirName)
	}

	startDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine working directory: %v\n", err)
		return 1
	}

	cfg, err := config.LoadWithRepo(baseDir, startDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}

	app := newCLIApp(cfg, baseDir)
	if err := app.Run(args); err != nil {
		return exitCode(err)
	}
	return 0
}

// exitCode prints err to stderr and returns the process exit status.
func exitCode(err error) int {
	var ec cli.ExitCoder
	if stderrors.As(err, &ec) {
		if msg := ec.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return ec.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
