package mcp

import "github.com/mark3labs/mcp-go/mcp"

var formatToolDef = mcp.NewTool("spacing_format",
	mcp.WithDescription("Normalize spacing between CJK and ASCII runs in a text. "+
		"Code spans, fenced blocks and links are left untouched."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to format"),
	),
	mcp.WithBoolean("markdown",
		mcp.Description("Parse the text as Markdown so code blocks and raw HTML are preserved"),
	),
)

var checkToolDef = mcp.NewTool("spacing_check",
	mcp.WithDescription("Report CJK/ASCII spacing violations in a text without changing it."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Text to check"),
	),
	mcp.WithBoolean("markdown",
		mcp.Description("Parse the text as Markdown so code blocks and raw HTML are preserved"),
	),
)

var checkFilesToolDef = mcp.NewTool("spacing_check_files",
	mcp.WithDescription("Check files and directories on disk. Directories are walked "+
		"using the configured extensions and exclude patterns."),
	mcp.WithArray("paths",
		mcp.Required(),
		mcp.Description("Files or directories to check"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("diff",
		mcp.Description("Include a unified diff of the fix for each file that would change"),
	),
)

var rulesToolDef = mcp.NewTool("spacing_rules",
	mcp.WithDescription("List the spacing rule table in evaluation order."),
)
