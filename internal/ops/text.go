package ops

import (
	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/markdown"
	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// TextOptions returns the engine options for text, adding Markdown preserve
// spans when isMarkdown is set.
func TextOptions(cfg *config.Config, text []byte, isMarkdown bool) spacing.Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts := cfg.SpacingOptions()
	if isMarkdown {
		opts = markdown.Options(text, opts)
	}
	return opts
}

// FormatText formats an in-memory text with the configured options.
func FormatText(cfg *config.Config, text string, isMarkdown bool) (*spacing.Result, error) {
	return spacing.Format(text, TextOptions(cfg, []byte(text), isMarkdown))
}

// CheckText checks an in-memory text with the configured options.
func CheckText(cfg *config.Config, text string, isMarkdown bool) (*spacing.Report, error) {
	return spacing.Check(text, TextOptions(cfg, []byte(text), isMarkdown))
}
