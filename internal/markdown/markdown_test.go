package markdown

import (
	"strings"
	"testing"

	"github.com/hpungsan/cjkfmt/internal/spacing"
)

const doc = "# 標題Title\n" +
	"\n" +
	"段落`code中文`和Go\n" +
	"\n" +
	"```go\n" +
	"fmt.Println(\"中文abc\")\n" +
	"```\n" +
	"\n" +
	"    indented中文abc\n" +
	"\n" +
	"<div>\n" +
	"中文abc\n" +
	"</div>\n" +
	"\n" +
	"文字<span>中文abc</span>尾\n"

func covered(spans []spacing.Span, start, end int) bool {
	for _, s := range spans {
		if s.Start <= start && end <= s.End {
			return true
		}
	}
	return false
}

func TestPreserveSpans(t *testing.T) {
	spans := PreserveSpans([]byte(doc))

	mustCover := []string{
		"code中文",
		"fmt.Println(\"中文abc\")",
		"indented中文abc",
		"<div>",
		"</div>",
		"<span>",
		"</span>",
	}
	for _, s := range mustCover {
		i := strings.Index(doc, s)
		if i < 0 {
			t.Fatalf("test document lacks %q", s)
		}
		if !covered(spans, i, i+len(s)) {
			t.Errorf("%q is not preserved; spans = %+v", s, spans)
		}
	}

	inDiv := strings.Index(doc, "<div>\n") + len("<div>\n")
	if !covered(spans, inDiv, inDiv+len("中文abc")) {
		t.Errorf("HTML block content is not preserved; spans = %+v", spans)
	}

	mustNotCover := []string{"標題Title", "和Go", "中文abc</span>"}
	for _, s := range mustNotCover {
		i := strings.Index(doc, s)
		if covered(spans, i, i+1) {
			t.Errorf("%q should not be preserved", s)
		}
	}

	for i := 1; i < len(spans); i++ {
		if spans[i].Start < spans[i-1].Start {
			t.Fatalf("spans not sorted: %+v", spans)
		}
	}
}

func TestPreserveSpans_NestedFence(t *testing.T) {
	src := "````md\n```go\nx\n```\n````\n\n中文abc\n\n~~~\ny\n~~~\n\n后文abc\n"
	spans := PreserveSpans([]byte(src))

	for _, s := range []string{"````md\n```go\nx\n```\n````\n", "~~~\ny\n~~~\n"} {
		i := strings.Index(src, s)
		if !covered(spans, i, i+len(s)) {
			t.Errorf("fenced block %q is not preserved; spans = %+v", s, spans)
		}
	}
	for _, s := range []string{"中文abc", "后文abc"} {
		i := strings.Index(src, s)
		if covered(spans, i, i+1) {
			t.Errorf("%q should not be preserved; spans = %+v", s, spans)
		}
	}
}

func TestPreserveSpans_UnclosedFence(t *testing.T) {
	src := "前文\n\n```\n中文abc\n"
	spans := PreserveSpans([]byte(src))

	i := strings.Index(src, "```")
	if !covered(spans, i, len(src)) {
		t.Errorf("unclosed fence should run to the end; spans = %+v", spans)
	}
}

func TestPreserveSpans_Empty(t *testing.T) {
	if spans := PreserveSpans(nil); len(spans) != 0 {
		t.Errorf("PreserveSpans(nil) = %+v, want none", spans)
	}
	if spans := PreserveSpans([]byte("中文ABC\n")); len(spans) != 0 {
		t.Errorf("PreserveSpans(plain) = %+v, want none", spans)
	}
}

func TestOptions_Format(t *testing.T) {
	opts := Options([]byte(doc), spacing.DefaultOptions())
	res, err := spacing.Format(doc, opts)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "# 標題 Title\n" +
		"\n" +
		"段落`code中文`和 Go\n" +
		"\n" +
		"```go\n" +
		"fmt.Println(\"中文abc\")\n" +
		"```\n" +
		"\n" +
		"    indented中文abc\n" +
		"\n" +
		"<div>\n" +
		"中文abc\n" +
		"</div>\n" +
		"\n" +
		"文字<span>中文 abc</span>尾\n"
	if res.Text != want {
		t.Errorf("Format() =\n%s\nwant\n%s", res.Text, want)
	}
}

func TestOptions_KeepsBase(t *testing.T) {
	base := spacing.DefaultOptions()
	base.Preserve = []spacing.Span{{Start: 0, End: 1}}

	opts := Options([]byte("`x`"), base)
	if len(opts.Preserve) < 2 {
		t.Fatalf("Preserve = %+v, want base span plus code span", opts.Preserve)
	}
	if opts.Preserve[0] != base.Preserve[0] {
		t.Errorf("base span lost: %+v", opts.Preserve)
	}
	if len(base.Preserve) != 1 {
		t.Errorf("base options mutated: %+v", base.Preserve)
	}
}

func TestOptions_DropsCodeMarkers(t *testing.T) {
	base := spacing.DefaultOptions()
	base.FenceMarkers = append(base.FenceMarkers,
		spacing.Fence{Open: "~~~", Close: "~~~"},
		spacing.Fence{Open: "$$", Close: "$$"})

	opts := Options([]byte("中文abc\n"), base)
	if len(opts.FenceMarkers) != 1 || opts.FenceMarkers[0].Open != "$$" {
		t.Errorf("FenceMarkers = %+v, want only $$", opts.FenceMarkers)
	}
	if opts.InlineMarker != "" {
		t.Errorf("InlineMarker = %q, want empty", opts.InlineMarker)
	}
	if len(base.FenceMarkers) != 3 || base.InlineMarker != "`" {
		t.Errorf("base options mutated: %+v", base)
	}

	base.InlineMarker = "$"
	if opts := Options(nil, base); opts.InlineMarker != "$" {
		t.Errorf("InlineMarker = %q, want $", opts.InlineMarker)
	}
}

func TestIsMarkdown(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"README.md", nil, true},
		{"docs/guide.MARKDOWN", nil, true},
		{"notes.txt", nil, false},
		{"notes.txt", []string{".txt"}, true},
		{"README.md", []string{}, false},
		{"Makefile", nil, false},
	}
	for _, tt := range tests {
		if got := IsMarkdown(tt.path, tt.exts); got != tt.want {
			t.Errorf("IsMarkdown(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}
