// Package mcp exposes the spacing engine as tools over the Model Context
// Protocol (stdio transport).
package mcp

import (
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/cjkfmt/internal/cache"
	"github.com/hpungsan/cjkfmt/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"spacing_format": {
		def:     formatToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFormat },
	},
	"spacing_check": {
		def:     checkToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheck },
	},
	"spacing_check_files": {
		def:     checkFilesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCheckFiles },
	},
	"spacing_rules": {
		def:     rulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRules },
	},
}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the spacing tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
// The cache is optional.
func NewServer(cfg *config.Config, c *cache.Cache, logger *slog.Logger, version string) *server.MCPServer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := server.NewMCPServer(
		"cjkfmt",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(cfg, c, logger)

	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		logger.Warn("unknown tool in disabled_tools", "tool", name)
	}
	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(cfg *config.Config, c *cache.Cache, logger *slog.Logger, version string) error {
	s := NewServer(cfg, c, logger, version)
	return server.ServeStdio(s)
}
