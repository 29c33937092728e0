// Package markdown finds the parts of a Markdown document that must not be
// re-spaced: code blocks, code spans and raw HTML.
package markdown

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// DefaultExtensions are the file extensions treated as Markdown.
var DefaultExtensions = []string{".md", ".markdown", ".mdx"}

func newParser() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// IsMarkdown reports whether path has one of the given extensions
// (case-insensitive). A nil list means DefaultExtensions.
func IsMarkdown(path string, exts []string) bool {
	if exts == nil {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// PreserveSpans parses src and returns the byte ranges of fenced and
// indented code blocks, HTML blocks, code spans and inline raw HTML,
// sorted by start offset.
func PreserveSpans(src []byte) []spacing.Span {
	doc := newParser().Parser().Parse(text.NewReader(src))

	var spans []spacing.Span
	add := func(seg text.Segment) {
		if seg.Stop > seg.Start {
			spans = append(spans, spacing.Span{Start: seg.Start, End: seg.Stop})
		}
	}
	addLines := func(lines *text.Segments) {
		for i := 0; i < lines.Len(); i++ {
			add(lines.At(i))
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock:
			if seg, ok := fencedExtent(src, node); ok {
				add(seg)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			addLines(node.Lines())
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			addLines(node.Lines())
			if node.HasClosure() {
				add(node.ClosureLine)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			if seg, ok := childExtent(node); ok {
				add(withDelimiters(src, seg, '`'))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			addLines(node.Segments)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

// fencedExtent returns the segment from the start of the opening fence line
// through the end of the closing fence line, or through the last content line
// when the block is never closed.
func fencedExtent(src []byte, node *ast.FencedCodeBlock) (text.Segment, bool) {
	lines := node.Lines()
	var open int
	switch {
	case node.Info != nil:
		open = lineStart(src, node.Info.Segment.Start)
	case lines.Len() > 0:
		first := lineStart(src, lines.At(0).Start)
		if first == 0 {
			return text.Segment{}, false
		}
		open = lineStart(src, first-1)
	default:
		return text.Segment{}, false
	}

	end := lineEnd(src, open)
	if lines.Len() > 0 {
		if last := lines.At(lines.Len() - 1); last.Stop > last.Start {
			end = lineEnd(src, last.Stop-1)
		}
	}

	opener := string(src[open:lineEnd(src, open)])
	i := strings.IndexAny(opener, "`~")
	if i < 0 {
		return text.NewSegment(open, end), true
	}
	delim := opener[i]
	width := len(opener[i:]) - len(strings.TrimLeft(opener[i:], string(delim)))

	if end < len(src) {
		closer := strings.TrimLeft(string(src[end:lineEnd(src, end)]), " \t>")
		rest := strings.TrimLeft(closer, string(delim))
		if len(closer)-len(rest) >= width && strings.TrimSpace(rest) == "" {
			end = lineEnd(src, end)
		}
	}
	return text.NewSegment(open, end), true
}

// lineStart returns the offset of the first byte of the line holding pos.
func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the offset just past the newline ending the line holding
// pos, or len(src) on the last line.
func lineEnd(src []byte, pos int) int {
	for pos < len(src) {
		if src[pos] == '\n' {
			return pos + 1
		}
		pos++
	}
	return len(src)
}

// childExtent returns the segment covering all text children of n.
func childExtent(n ast.Node) (text.Segment, bool) {
	var out text.Segment
	found := false
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if !found || t.Segment.Start < out.Start {
			out.Start = t.Segment.Start
		}
		if !found || t.Segment.Stop > out.Stop {
			out.Stop = t.Segment.Stop
		}
		found = true
	}
	return out, found
}

// withDelimiters widens seg over the runs of delim on either side.
func withDelimiters(src []byte, seg text.Segment, delim byte) text.Segment {
	for seg.Start > 0 && src[seg.Start-1] == delim {
		seg.Start--
	}
	for seg.Stop < len(src) && src[seg.Stop] == delim {
		seg.Stop++
	}
	return seg
}

// Options returns base with the Markdown preserve spans of src appended.
// Backtick and tilde fences and a backtick inline marker are dropped, since
// the parser already resolves code blocks and code spans with CommonMark
// nesting rules. Other markers such as "$$" are kept.
func Options(src []byte, base spacing.Options) spacing.Options {
	opts := base
	opts.FenceMarkers = make([]spacing.Fence, 0, len(base.FenceMarkers))
	for _, f := range base.FenceMarkers {
		if strings.HasPrefix(f.Open, "`") || strings.HasPrefix(f.Open, "~") {
			continue
		}
		opts.FenceMarkers = append(opts.FenceMarkers, f)
	}
	if opts.InlineMarker == "`" {
		opts.InlineMarker = ""
	}

	spans := PreserveSpans(src)
	if len(spans) == 0 {
		return opts
	}
	opts.Preserve = make([]spacing.Span, 0, len(base.Preserve)+len(spans))
	opts.Preserve = append(opts.Preserve, base.Preserve...)
	opts.Preserve = append(opts.Preserve, spans...)
	return opts
}
