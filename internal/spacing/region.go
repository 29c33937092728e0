package spacing

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/cjkfmt/internal/errors"
)

// Segment is a contiguous slice of the input. Opaque segments are copied
// verbatim and never tokenized.
type Segment struct {
	Span
	Opaque bool
}

// Fence is a pair of markers delimiting a fenced opaque span.
type Fence struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// Advisory is a non-fatal notice produced while scanning.
type Advisory struct {
	Code    errors.ErrorCode `json:"code"`
	Offset  int              `json:"offset"`
	Marker  string           `json:"marker"`
	Message string           `json:"message"`
}

// linkPattern matches URLs and e-mail addresses. Both are limited to ASCII
// (Go's \w and \b are ASCII-only), so CJK text next to a link never becomes
// part of it.
var linkPattern = regexp.MustCompile(
	`(?i)\b(?:(?:https?|ftp)://|www\.)[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+` +
		`|[\w.+\-]+@[\w\-]+(?:\.[\w\-]+)+`,
)

// linkSpans returns the byte ranges of URLs and e-mail addresses in text.
func linkSpans(text string) []Span {
	matches := linkPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	spans := make([]Span, len(matches))
	for i, m := range matches {
		spans[i] = Span{Start: m[0], End: m[1]}
	}
	return spans
}

// scanner walks the input once, left to right, with a single cursor.
type scanner struct {
	text     string
	fences   []Fence
	inline   string
	preserve []Span // sorted by Start
	next     int    // index of the first preserve span not yet passed

	segments   []Segment
	advisories []Advisory
	plainStart int // start of the pending transparent run
}

// Scan partitions text into transparent and opaque segments.
// An unclosed fence makes the rest of the input opaque and is reported as
// an advisory, never as an error.
func Scan(text string, opts Options) ([]Segment, []Advisory) {
	s := &scanner{
		text:     text,
		fences:   usableFences(opts.FenceMarkers),
		inline:   opts.InlineMarker,
		preserve: preserveSpans(text, opts),
	}
	s.run()
	return s.segments, s.advisories
}

// usableFences drops fences with an empty marker and orders the rest so the
// longest opener is tried first.
func usableFences(fences []Fence) []Fence {
	out := make([]Fence, 0, len(fences))
	for _, f := range fences {
		if f.Open != "" && f.Close != "" {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Open) > len(out[j].Open)
	})
	return out
}

// preserveSpans collects caller spans and link spans, clipped to the input,
// widened to code point boundaries and sorted by start offset.
func preserveSpans(text string, opts Options) []Span {
	var spans []Span
	for _, sp := range opts.Preserve {
		if sp.Start < 0 {
			sp.Start = 0
		}
		if sp.End > len(text) {
			sp.End = len(text)
		}
		for sp.Start > 0 && sp.Start < len(text) && !utf8.RuneStart(text[sp.Start]) {
			sp.Start--
		}
		for sp.End < len(text) && !utf8.RuneStart(text[sp.End]) {
			sp.End++
		}
		if sp.Start < sp.End {
			spans = append(spans, sp)
		}
	}
	if opts.ProtectLinks {
		spans = append(spans, linkSpans(text)...)
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start < spans[j].Start
	})
	return spans
}

func (s *scanner) run() {
	pos := 0
	for pos < len(s.text) {
		if end, ok := s.preservedAt(pos); ok {
			pos = s.opaque(pos, end)
			continue
		}
		if end, ok := s.fenceAt(pos); ok {
			pos = s.opaque(pos, end)
			continue
		}
		if end, ok := s.inlineAt(pos); ok {
			pos = s.opaque(pos, end)
			continue
		}
		pos++
	}
	s.flush(len(s.text))
}

// preservedAt reports whether a preserve span covers pos and where the
// opaque region starting at pos ends. Overlapping spans are merged.
func (s *scanner) preservedAt(pos int) (int, bool) {
	for s.next < len(s.preserve) && s.preserve[s.next].End <= pos {
		s.next++
	}
	if s.next >= len(s.preserve) || s.preserve[s.next].Start > pos {
		return 0, false
	}
	end := s.preserve[s.next].End
	for i := s.next + 1; i < len(s.preserve) && s.preserve[i].Start <= end; i++ {
		if s.preserve[i].End > end {
			end = s.preserve[i].End
		}
	}
	return end, true
}

func (s *scanner) fenceAt(pos int) (int, bool) {
	rest := s.text[pos:]
	for _, f := range s.fences {
		if !strings.HasPrefix(rest, f.Open) {
			continue
		}
		body := pos + len(f.Open)
		if i := strings.Index(s.text[body:], f.Close); i >= 0 {
			return body + i + len(f.Close), true
		}
		s.advisories = append(s.advisories, Advisory{
			Code:    errors.ErrUnclosedFence,
			Offset:  pos,
			Marker:  f.Open,
			Message: "fence " + f.Open + " is never closed; treating the rest of the input as opaque",
		})
		return len(s.text), true
	}
	return 0, false
}

// inlineAt matches an inline span that closes on the same line. An unclosed
// marker is ordinary text.
func (s *scanner) inlineAt(pos int) (int, bool) {
	if s.inline == "" || !strings.HasPrefix(s.text[pos:], s.inline) {
		return 0, false
	}
	body := pos + len(s.inline)
	line := s.text[body:]
	if nl := strings.IndexAny(line, "\r\n"); nl >= 0 {
		line = line[:nl]
	}
	i := strings.Index(line, s.inline)
	if i < 0 {
		return 0, false
	}
	return body + i + len(s.inline), true
}

// opaque records [start, end) as opaque and returns the new cursor.
func (s *scanner) opaque(start, end int) int {
	s.flush(start)
	s.segments = append(s.segments, Segment{Span: Span{Start: start, End: end}, Opaque: true})
	s.plainStart = end
	return end
}

func (s *scanner) flush(end int) {
	if end > s.plainStart {
		s.segments = append(s.segments, Segment{Span: Span{Start: s.plainStart, End: end}})
	}
	s.plainStart = end
}
