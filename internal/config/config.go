package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// DirName is the name of the per-user and per-repository config directory.
const DirName = ".cjkfmt"

// Config holds application configuration.
type Config struct {
	// FenceMarkers delimit fenced opaque spans. Empty means the default
	// triple-backtick fence.
	FenceMarkers []spacing.Fence `json:"fence_markers,omitempty" yaml:"fence_markers,omitempty"`

	// InlineMarker delimits inline opaque spans that close on the same line.
	InlineMarker string `json:"inline_marker,omitempty" yaml:"inline_marker,omitempty"`

	// PreserveDoubleSpace keeps gaps of two or more spaces untouched.
	// nil means the default (true).
	PreserveDoubleSpace *bool `json:"preserve_double_space,omitempty" yaml:"preserve_double_space,omitempty"`

	// ProtectLinks makes URLs and e-mail addresses opaque. nil means true.
	ProtectLinks *bool `json:"protect_links,omitempty" yaml:"protect_links,omitempty"`

	// Extensions selects which files are picked up when a directory is
	// walked. Files named explicitly are always processed.
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`

	// Exclude holds glob patterns (with ** support) matched against
	// slash-separated paths. Matching files and directories are skipped.
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`

	// MarkdownExtensions lists the extensions parsed as Markdown so code
	// blocks and raw HTML are left alone.
	MarkdownExtensions []string `json:"markdown_extensions,omitempty" yaml:"markdown_extensions,omitempty"`

	// Workers bounds the number of files processed concurrently.
	// 0 means one per CPU.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`

	// CacheDisabled turns off the clean-file cache.
	CacheDisabled bool `json:"cache_disabled,omitempty" yaml:"cache_disabled,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FenceMarkers:        []spacing.Fence{{Open: "```", Close: "```"}},
		InlineMarker:        "`",
		PreserveDoubleSpace: boolPtr(true),
		ProtectLinks:        boolPtr(true),
		Extensions:          []string{".md", ".markdown", ".mdx", ".txt", ".rst", ".adoc"},
		MarkdownExtensions:  []string{".md", ".markdown", ".mdx"},
		Exclude:             []string{"**/node_modules/**", "**/vendor/**"},
	}
}

func boolPtr(b bool) *bool { return &b }

// SpacingOptions converts the configuration into engine options.
func (c *Config) SpacingOptions() spacing.Options {
	opts := spacing.DefaultOptions()
	if len(c.FenceMarkers) > 0 {
		opts.FenceMarkers = append([]spacing.Fence(nil), c.FenceMarkers...)
	}
	if c.InlineMarker != "" {
		opts.InlineMarker = c.InlineMarker
	}
	if c.PreserveDoubleSpace != nil {
		opts.PreserveDoubleSpace = *c.PreserveDoubleSpace
	}
	if c.ProtectLinks != nil {
		opts.ProtectLinks = *c.ProtectLinks
	}
	return opts
}

// configNames are tried in order inside a config directory.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if no file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cjkfmt.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findIn(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.cjkfmt) and repo (.cjkfmt) directories.
// Repo config is found by walking upward from startDir to find the nearest .cjkfmt/config.*.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated),
// except fence markers, which the nearest config replaces wholesale.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findIn(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cjkfmt config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if path := findIn(filepath.Join(dir, DirName)); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// findIn returns the first config file present in dir, or "".
func findIn(dir string) string {
	if dir == "" {
		return ""
	}
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if set, else base
	result.InlineMarker = overlay.InlineMarker
	if result.InlineMarker == "" {
		result.InlineMarker = base.InlineMarker
	}

	result.Workers = overlay.Workers
	if result.Workers == 0 {
		result.Workers = base.Workers
	}

	result.PreserveDoubleSpace = overlay.PreserveDoubleSpace
	if result.PreserveDoubleSpace == nil {
		result.PreserveDoubleSpace = base.PreserveDoubleSpace
	}

	result.ProtectLinks = overlay.ProtectLinks
	if result.ProtectLinks == nil {
		result.ProtectLinks = base.ProtectLinks
	}

	// Fence lists replace each other rather than merge.
	result.FenceMarkers = overlay.FenceMarkers
	if len(result.FenceMarkers) == 0 {
		result.FenceMarkers = base.FenceMarkers
	}

	// Booleans: overlay wins if true, else base
	result.CacheDisabled = base.CacheDisabled || overlay.CacheDisabled

	// Arrays: merge and deduplicate
	result.Extensions = mergeStringSlice(base.Extensions, overlay.Extensions)
	result.Exclude = mergeStringSlice(base.Exclude, overlay.Exclude)
	result.MarkdownExtensions = mergeStringSlice(base.MarkdownExtensions, overlay.MarkdownExtensions)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
