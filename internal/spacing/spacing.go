// Package spacing normalizes the spacing between CJK and ASCII text
// according to the Dualbind rules v3.1.
//
// Input is split by the region scanner into opaque segments (fenced and
// inline code, links, caller-declared spans), which are never touched, and
// transparent segments. Transparent segments are tokenized with Classify and
// every pair of adjacent significant tokens is resolved against the rule
// table. Format applies the decisions; Check reports where the input differs
// from them. Both are pure and safe for concurrent use.
package spacing

import (
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/cjkfmt/internal/errors"
)

// Options configures the region scanner and the double-space rule.
// The rule table itself is fixed.
type Options struct {
	FenceMarkers        []Fence
	InlineMarker        string
	PreserveDoubleSpace bool
	ProtectLinks        bool

	// Preserve lists extra byte ranges that must be left untouched,
	// e.g. code blocks found by a Markdown parser.
	Preserve []Span
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		FenceMarkers:        []Fence{{Open: "```", Close: "```"}},
		InlineMarker:        "`",
		PreserveDoubleSpace: true,
		ProtectLinks:        true,
	}
}

// Violation is a boundary whose current spacing differs from the decided one.
type Violation struct {
	Span
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Expected Decision `json:"expected"`
	Observed string   `json:"observed"`
	Rule     string   `json:"rule"`
	Left     string   `json:"left"`
	Right    string   `json:"right"`
}

// Message describes the violation for humans.
func (v Violation) Message() string {
	switch v.Expected {
	case InsertSpace:
		if v.Observed == "" {
			return "missing space between " + quote(v.Left) + " and " + quote(v.Right)
		}
		return "expected a single space between " + quote(v.Left) + " and " + quote(v.Right)
	case RemoveSpace:
		return "unexpected space before " + quote(v.Right)
	}
	return "spacing differs between " + quote(v.Left) + " and " + quote(v.Right)
}

func quote(s string) string {
	return "\"" + s + "\""
}

// Result is the output of Format.
type Result struct {
	Text       string     `json:"text"`
	Changes    int        `json:"changes"`
	Advisories []Advisory `json:"advisories,omitempty"`
}

// Changed reports whether Format rewrote anything.
func (r *Result) Changed() bool { return r.Changes > 0 }

// Report is the output of Check.
type Report struct {
	Violations []Violation `json:"violations"`
	Advisories []Advisory  `json:"advisories,omitempty"`
}

// HasViolations reports whether any boundary needs rewriting.
func (r *Report) HasViolations() bool { return len(r.Violations) > 0 }

// Format rewrites text so that every boundary conforms to the rule table.
// Opaque segments are copied byte for byte. Format is idempotent.
func Format(text string, opts Options) (*Result, error) {
	segments, advisories, err := prepare(text, opts)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/16)
	res := &Result{Advisories: advisories}
	for _, seg := range segments {
		if seg.Opaque {
			sb.WriteString(text[seg.Start:seg.End])
			continue
		}
		cursor := seg.Start
		walk(text, seg, opts, func(b *Boundary, d Decision, _ *Rule) {
			sep := d.separator(b.Gap)
			sb.WriteString(text[cursor:b.Left.End])
			sb.WriteString(sep)
			if sep != b.Gap {
				res.Changes++
			}
			cursor = b.Right.Start
		})
		sb.WriteString(text[cursor:seg.End])
	}
	res.Text = sb.String()
	return res, nil
}

// Check reports every boundary of text whose spacing differs from the rule
// table, in input order. It never modifies anything.
func Check(text string, opts Options) (*Report, error) {
	segments, advisories, err := prepare(text, opts)
	if err != nil {
		return nil, err
	}
	rep := &Report{Violations: []Violation{}, Advisories: advisories}
	pos := newPositioner(text)
	for _, seg := range segments {
		if seg.Opaque {
			continue
		}
		walk(text, seg, opts, func(b *Boundary, d Decision, rule *Rule) {
			if d.separator(b.Gap) == b.Gap {
				return
			}
			line, col := pos.at(b.Left.End)
			rep.Violations = append(rep.Violations, Violation{
				Span:     Span{Start: b.Left.End, End: b.Right.Start},
				Line:     line,
				Column:   col,
				Expected: d,
				Observed: b.Gap,
				Rule:     rule.ID,
				Left:     b.Left.Text,
				Right:    b.Right.Text,
			})
		})
	}
	return rep, nil
}

func prepare(text string, opts Options) ([]Segment, []Advisory, error) {
	if !utf8.ValidString(text) {
		return nil, nil, errors.NewInvalidEncoding(firstInvalid(text))
	}
	segments, advisories := Scan(text, opts)
	return segments, advisories, nil
}

func firstInvalid(text string) int {
	for i, r := range text {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(text[i:]); size <= 1 {
				return i
			}
		}
	}
	return len(text)
}

// walk visits every boundary of a transparent segment from left to right.
func walk(text string, seg Segment, opts Options, visit func(*Boundary, Decision, *Rule)) {
	tokens := Tokenize(text, seg.Start, seg.End)
	sig := make([]*Token, 0, len(tokens))
	for i := range tokens {
		if tokens[i].Category.significant() {
			sig = append(sig, &tokens[i])
		}
	}
	for i := 0; i+1 < len(sig); i++ {
		b := &Boundary{
			Left:                sig[i],
			Right:               sig[i+1],
			Gap:                 text[sig[i].End:sig[i+1].Start],
			preserveDoubleSpace: opts.PreserveDoubleSpace,
		}
		if i > 0 {
			b.Before = sig[i-1]
		}
		if i+2 < len(sig) {
			b.After = sig[i+2]
		}
		d, rule := Resolve(b)
		visit(b, d, rule)
	}
}

// positioner converts increasing byte offsets into 1-based line and column
// numbers, counting columns in code points.
type positioner struct {
	text      string
	off       int
	line, col int
}

func newPositioner(text string) *positioner {
	return &positioner{text: text, line: 1, col: 1}
}

func (p *positioner) at(offset int) (int, int) {
	for p.off < offset {
		r, size := utf8.DecodeRuneInString(p.text[p.off:])
		p.off += size
		if r == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
	}
	return p.line, p.col
}
