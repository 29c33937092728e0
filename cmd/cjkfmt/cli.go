package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cjkfmt/internal/cache"
	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/errors"
	"github.com/hpungsan/cjkfmt/internal/mcp"
	"github.com/hpungsan/cjkfmt/internal/ops"
	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// stdinArg is the file argument that selects standard input.
const stdinArg = "-"

// newCLIApp creates the CLI application. baseDir holds the cache; an empty
// baseDir disables caching.
func newCLIApp(cfg *config.Config, baseDir string) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := slog.Default()

	app := &cli.App{
		Name:      "cjkfmt",
		Usage:     "CJK-ASCII spacing formatter and linter (Dualbind rules v" + spacing.RulesVersion + ")",
		Version:   Version,
		ArgsUsage: "FILES...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Check formatting without making changes (exit 1 if violations found)"},
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "Format files in place; '-' reads stdin and writes stdout"},
			&cli.BoolFlag{Name: "diff", Usage: "Print a unified diff for every file that changes"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Process every file, ignoring the clean-file cache"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "Files processed concurrently (default: one per CPU)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging on stderr"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format: text|json"},
		},
		Before: func(c *cli.Context) error {
			l, err := newLogger(c.App.ErrWriter, c.Bool("verbose"), c.String("log-format"))
			if err != nil {
				return outputError(err)
			}
			logger = l
			return nil
		},
		Action: func(c *cli.Context) error {
			return runFiles(c, cfg, baseDir, logger)
		},
		Commands: []*cli.Command{
			mcpCmd(cfg, baseDir, func() *slog.Logger { return logger }),
			cacheCmd(baseDir),
			rulesCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runFiles implements the default action: check or format FILES.
func runFiles(c *cli.Context, cfg *config.Config, baseDir string, logger *slog.Logger) error {
	check, write := c.Bool("check"), c.Bool("write")
	if check && write {
		return outputError(errors.NewInvalidRequest("--check and --write are mutually exclusive."))
	}
	if c.NArg() == 0 {
		return outputError(errors.NewInvalidRequest("No files specified."))
	}
	if !check && !write {
		return outputError(errors.NewInvalidRequest("Specify either --check or --write."))
	}

	paths := c.Args().Slice()
	for _, p := range paths {
		if p != stdinArg {
			continue
		}
		if check {
			return outputError(errors.NewInvalidRequest("stdin mode only works with --write."))
		}
		if len(paths) > 1 {
			return outputError(errors.NewInvalidRequest("stdin cannot be combined with other files."))
		}
		return formatStdin(c, cfg)
	}

	var store *cache.Cache
	if baseDir != "" && !c.Bool("no-cache") && !cfg.CacheDisabled {
		var err error
		if store, err = cache.Open(baseDir); err != nil {
			logger.Warn("cache disabled", "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	out := c.App.Writer
	colorize := isTerminal(out)
	runner := &ops.Runner{
		Config:  cfg,
		Cache:   store,
		Logger:  logger,
		Workers: c.Int("workers"),
		Diff:    c.Bool("diff"),
		Color:   colorize,
	}

	var (
		result *ops.RunOutput
		err    error
	)
	if check {
		result, err = runner.Check(c.Context, paths)
	} else {
		result, err = runner.Format(c.Context, paths)
	}
	if err != nil {
		return outputError(err)
	}

	for _, f := range result.Files {
		for _, a := range f.Advisories {
			fmt.Fprintf(c.App.ErrWriter, "warning: %s: %s\n", f.Path, a.Message)
		}
		if f.Err != nil {
			fmt.Fprintf(c.App.ErrWriter, "error: %s: %s\n", f.Path, errorMessage(f.Err))
			continue
		}
		switch {
		case check && f.Changed:
			fmt.Fprintln(out, paint(colorize, color.FgYellow, "Would reformat "+f.Path))
			for _, v := range f.Violations {
				fmt.Fprintf(out, "%s:%d:%d: %s [%s]\n", f.Path, v.Line, v.Column, v.Message(), v.Rule)
			}
		case check:
		case f.Changed:
			fmt.Fprintln(out, paint(colorize, color.FgGreen, "Formatted "+f.Path))
		default:
			fmt.Fprintln(out, "Already formatted "+f.Path)
		}
		if f.Diff != "" {
			fmt.Fprint(out, f.Diff)
		}
	}

	if check {
		if result.Changed > 0 {
			fmt.Fprintf(out, "%d file(s) would be reformatted, %d violation(s).\n", result.Changed, result.Violations)
		} else if result.Errors == 0 {
			fmt.Fprintln(out, "All files are properly formatted.")
		}
	}
	if result.Errors > 0 || (check && result.Changed > 0) {
		return cli.Exit("", 1)
	}
	return nil
}

// formatStdin formats standard input and writes the result to stdout.
func formatStdin(c *cli.Context, cfg *config.Config) error {
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return outputError(errors.NewInternal(err))
	}
	res, err := ops.FormatText(cfg, string(data), false)
	if err != nil {
		return outputError(err)
	}
	for _, a := range res.Advisories {
		fmt.Fprintf(c.App.ErrWriter, "warning: <stdin>: %s\n", a.Message)
	}
	_, err = io.WriteString(c.App.Writer, res.Text)
	return err
}

// mcpCmd creates the mcp command. The logger is looked up when the command
// runs, after the app's Before hook has configured it.
func mcpCmd(cfg *config.Config, baseDir string, logger func() *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the spacing tools over MCP (stdio)",
		Action: func(c *cli.Context) error {
			var store *cache.Cache
			if baseDir != "" && !c.Bool("no-cache") && !cfg.CacheDisabled {
				s, err := cache.Open(baseDir)
				if err != nil {
					logger().Warn("cache disabled", "error", err)
				} else {
					store = s
					defer store.Close()
				}
			}
			if err := mcp.Run(cfg, store, logger(), Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// cacheCmd creates the cache command with its subcommands.
func cacheCmd(baseDir string) *cli.Command {
	open := func() (*cache.Cache, error) {
		if baseDir == "" {
			return nil, errors.NewInvalidRequest("cache directory is not available")
		}
		c, err := cache.Open(baseDir)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		return c, nil
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the clean-file cache",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache entry counts and the last run",
				Action: func(c *cli.Context) error {
					store, err := open()
					if err != nil {
						return outputError(err)
					}
					defer store.Close()

					stats, err := store.Stats()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, stats)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every cache entry and run record",
				Action: func(c *cli.Context) error {
					store, err := open()
					if err != nil {
						return outputError(err)
					}
					defer store.Close()

					removed, err := store.Clear()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"removed": removed})
				},
			},
		},
	}
}

// rulesCmd creates the rules command.
func rulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Print the rule table in evaluation order",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]any{
					"version": spacing.RulesVersion,
					"rules":   spacing.Rules(),
				})
			}
			fmt.Fprintf(c.App.Writer, "Dualbind rules v%s\n\n", spacing.RulesVersion)
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for _, r := range spacing.Rules() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Decision, r.Description)
			}
			return tw.Flush()
		},
	}
}

// Helper functions

// newLogger builds the stderr logger selected by --verbose and --log-format.
func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.NewInvalidRequest("invalid log format: " + format + " (want text or json)")
	}
}

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	return cli.Exit(errorMessage(err), 1)
}

// errorMessage renders err as "[CODE] message" when it carries a code.
func errorMessage(err error) string {
	var fmtErr *errors.FmtError
	if stderrors.As(err, &fmtErr) {
		return fmt.Sprintf("[%s] %s", fmtErr.Code, fmtErr.Message)
	}
	return err.Error()
}

// isTerminal reports whether w is a terminal that accepts colour.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stdout && !color.NoColor
}

func paint(enabled bool, attr color.Attribute, s string) string {
	if !enabled {
		return s
	}
	return color.New(attr).Sprint(s)
}
