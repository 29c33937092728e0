// Package ops runs the spacing engine over files: discovery, parallel
// processing, caching, diffs and atomic in-place writes.
package ops

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cjkfmt/internal/cache"
	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/errors"
	"github.com/hpungsan/cjkfmt/internal/markdown"
	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// Mode selects what a run does with each file.
type Mode string

const (
	ModeCheck  Mode = "check"
	ModeFormat Mode = "format"
)

// FileResult is the outcome for one file.
type FileResult struct {
	Path       string              `json:"path"`
	Changed    bool                `json:"changed"`
	Written    bool                `json:"written,omitempty"`
	Cached     bool                `json:"cached,omitempty"`
	Violations []spacing.Violation `json:"violations,omitempty"`
	Advisories []spacing.Advisory  `json:"advisories,omitempty"`
	Diff       string              `json:"diff,omitempty"`
	Error      string              `json:"error,omitempty"`

	Err error `json:"-"`
}

// RunOutput is the outcome of a run, with files in discovery order.
type RunOutput struct {
	RunID      string       `json:"run_id,omitempty"`
	Files      []FileResult `json:"files"`
	Changed    int          `json:"changed"`
	Violations int          `json:"violations"`
	Errors     int          `json:"errors"`
}

// Runner processes files with a bounded worker pool.
type Runner struct {
	Config *config.Config
	Cache  *cache.Cache // optional
	Logger *slog.Logger

	// Workers bounds concurrency; 0 uses Config.Workers, then one per CPU.
	Workers int

	// Diff attaches a unified diff to every changed file.
	Diff  bool
	Color bool
}

// Check reports the violations of every file without modifying anything.
func (r *Runner) Check(ctx context.Context, paths []string) (*RunOutput, error) {
	return r.run(ctx, ModeCheck, paths)
}

// Format rewrites every file that needs it.
func (r *Runner) Format(ctx context.Context, paths []string) (*RunOutput, error) {
	return r.run(ctx, ModeFormat, paths)
}

func (r *Runner) config() *config.Config {
	if r.Config == nil {
		return config.DefaultConfig()
	}
	return r.Config
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	if n := r.config().Workers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func (r *Runner) run(ctx context.Context, mode Mode, paths []string) (*RunOutput, error) {
	cfg := r.config()
	log := r.logger()

	files, err := Discover(paths, cfg)
	if err != nil {
		return nil, err
	}

	out := &RunOutput{Files: make([]FileResult, len(files))}
	if r.Cache != nil {
		if out.RunID, err = r.Cache.BeginRun(string(mode)); err != nil {
			log.Warn("cache unavailable", "error", err)
			out.RunID = ""
		}
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, path := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Files[i] = r.processFile(mode, path, out.RunID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.NewCancelled(string(mode))
	}

	for _, f := range out.Files {
		if f.Err != nil {
			out.Errors++
			continue
		}
		if f.Changed {
			out.Changed++
		}
		out.Violations += len(f.Violations)
	}

	if out.RunID != "" {
		if err := r.Cache.FinishRun(out.RunID, len(files), out.Changed, out.Violations); err != nil {
			log.Warn("failed to record run", "run_id", out.RunID, "error", err)
		}
	}
	log.Info("run finished",
		"mode", mode,
		"files", len(files),
		"changed", out.Changed,
		"violations", out.Violations,
		"errors", out.Errors,
		"duration", time.Since(start),
	)
	return out, nil
}

// forget drops the cache record of a file that is no longer known clean.
func (r *Runner) forget(path string, log *slog.Logger) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Forget(path); err != nil {
		log.Warn("cache update failed", "error", err)
	}
}

func (r *Runner) processFile(mode Mode, path, runID string) FileResult {
	cfg := r.config()
	log := r.logger().With("path", path)
	res := FileResult{Path: path}
	fail := func(err error) FileResult {
		if fe, ok := err.(*errors.FmtError); ok {
			err = fe.WithPath(path)
		}
		res.Err = err
		res.Error = err.Error()
		log.Error("file failed", "error", err)
		r.forget(path, log)
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(errors.NewFileNotFound(path))
		}
		return fail(errors.NewInternal(err))
	}

	isMarkdown := markdown.IsMarkdown(path, cfg.MarkdownExtensions)
	var key cache.Key
	if r.Cache != nil && !r.Diff {
		key = cache.KeyFor(path, info, cache.OptionsHash(cfg.SpacingOptions(), isMarkdown))
		clean, err := r.Cache.IsClean(key)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		} else if clean {
			log.Debug("skipped clean file")
			res.Cached = true
			return res
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(errors.NewInternal(err))
	}
	if r.Cache != nil && !r.Diff {
		hash := cache.ContentHash(data)
		clean, err := r.Cache.CleanContent(key, hash)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		} else if clean {
			log.Debug("skipped touched clean file")
			if err := r.Cache.MarkClean(key, hash, runID); err != nil {
				log.Warn("cache update failed", "error", err)
			}
			res.Cached = true
			return res
		}
	}
	text := string(data)
	opts := TextOptions(cfg, data, isMarkdown)

	formatted, err := spacing.Format(text, opts)
	if err != nil {
		return fail(err)
	}
	res.Changed = formatted.Changed()
	res.Advisories = formatted.Advisories
	for _, a := range formatted.Advisories {
		log.Debug(a.Message, "code", a.Code, "offset", a.Offset)
	}

	if mode == ModeCheck && res.Changed {
		report, err := spacing.Check(text, opts)
		if err != nil {
			return fail(err)
		}
		res.Violations = report.Violations
	}
	if r.Diff && res.Changed {
		res.Diff = UnifiedDiff(path, text, formatted.Text, r.Color)
	}

	if mode == ModeFormat && res.Changed {
		if err := WriteFileAtomic(path, []byte(formatted.Text), info.Mode().Perm()); err != nil {
			return fail(err)
		}
		res.Written = true
		if info, err = os.Stat(path); err != nil {
			return res
		}
	}

	if r.Cache != nil {
		if mode == ModeFormat || !res.Changed {
			key = cache.KeyFor(path, info, cache.OptionsHash(cfg.SpacingOptions(), isMarkdown))
			if err := r.Cache.MarkClean(key, cache.ContentHash([]byte(formatted.Text)), runID); err != nil {
				log.Warn("cache update failed", "error", err)
			}
		} else {
			r.forget(path, log)
		}
	}
	log.Debug("file processed", "changed", res.Changed, "written", res.Written)
	return res
}
