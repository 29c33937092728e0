package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cjkfmt/internal/cache"
	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/errors"
	"github.com/hpungsan/cjkfmt/internal/ops"
	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	cfg    *config.Config
	cache  *cache.Cache
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Config, c *cache.Cache, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{cfg: cfg, cache: c, logger: logger}
}

// TextRequest represents the arguments for spacing_format and spacing_check.
type TextRequest struct {
	Text     *string `json:"text"`
	Markdown bool    `json:"markdown,omitempty"`
}

// CheckFilesRequest represents the arguments for spacing_check_files.
type CheckFilesRequest struct {
	Paths []string `json:"paths"`
	Diff  bool     `json:"diff,omitempty"`
}

// FormatOutput is the result of spacing_format.
type FormatOutput struct {
	Text       string             `json:"text"`
	Changed    bool               `json:"changed"`
	Changes    int                `json:"changes"`
	Advisories []spacing.Advisory `json:"advisories,omitempty"`
}

// ViolationOutput is one violation with a readable message.
type ViolationOutput struct {
	spacing.Violation
	Message string `json:"message"`
}

// CheckOutput is the result of spacing_check.
type CheckOutput struct {
	HasViolations bool               `json:"has_violations"`
	Violations    []ViolationOutput  `json:"violations"`
	Advisories    []spacing.Advisory `json:"advisories,omitempty"`
}

// RulesOutput is the result of spacing_rules.
type RulesOutput struct {
	Version string             `json:"version"`
	Rules   []spacing.RuleInfo `json:"rules"`
}

// HandleFormat handles the spacing_format tool call.
func (h *Handlers) HandleFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Text == nil {
		return errorResult(errors.NewInvalidRequest("text is required")), nil
	}

	res, err := ops.FormatText(h.cfg, *input.Text, input.Markdown)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(FormatOutput{
		Text:       res.Text,
		Changed:    res.Changed(),
		Changes:    res.Changes,
		Advisories: res.Advisories,
	})
}

// HandleCheck handles the spacing_check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Text == nil {
		return errorResult(errors.NewInvalidRequest("text is required")), nil
	}

	report, err := ops.CheckText(h.cfg, *input.Text, input.Markdown)
	if err != nil {
		return errorResult(err), nil
	}

	out := CheckOutput{
		HasViolations: report.HasViolations(),
		Violations:    make([]ViolationOutput, len(report.Violations)),
		Advisories:    report.Advisories,
	}
	for i, v := range report.Violations {
		out.Violations[i] = ViolationOutput{Violation: v, Message: v.Message()}
	}
	return successResult(out)
}

// HandleCheckFiles handles the spacing_check_files tool call.
func (h *Handlers) HandleCheckFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckFilesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Paths) == 0 {
		return errorResult(errors.NewInvalidRequest("paths is required")), nil
	}

	runner := &ops.Runner{
		Config: h.cfg,
		Cache:  h.cache,
		Logger: h.logger,
		Diff:   input.Diff,
	}
	out, err := runner.Check(ctx, input.Paths)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(out)
}

// HandleRules handles the spacing_rules tool call.
func (h *Handlers) HandleRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(RulesOutput{
		Version: spacing.RulesVersion,
		Rules:   spacing.Rules(),
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var fmtErr *errors.FmtError
	if stderrors.As(err, &fmtErr) {
		errorObj := map[string]any{
			"code":    fmtErr.Code,
			"message": fmtErr.Message,
			"status":  fmtErr.Status,
		}
		if fmtErr.Code != errors.ErrInternal && fmtErr.Details != nil {
			errorObj["details"] = fmtErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
