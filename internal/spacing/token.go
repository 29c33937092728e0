package spacing

import "unicode/utf8"

// Span is a half-open byte range [Start, End) of the input.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by s.
func (s Span) Len() int { return s.End - s.Start }

// Token is a run of code points sharing one category.
// Offsets are byte offsets into the original input.
type Token struct {
	Category Category
	Start    int
	End      int
	Text     string
}

// isASCIIContent reports whether t counts as ASCII content next to a bracket:
// an alphanumeric run, or a run of printable ASCII symbols.
func (t *Token) isASCIIContent() bool {
	if t == nil {
		return false
	}
	switch t.Category {
	case AsciiAlnum:
		return true
	case Other:
		for i := 0; i < len(t.Text); i++ {
			if t.Text[i] < 0x21 || t.Text[i] > 0x7e {
				return false
			}
		}
		return t.Text != ""
	}
	return false
}

// isWide reports whether t is a single CJK-width code point.
func (t *Token) isWide() bool {
	r, _ := utf8.DecodeRuneInString(t.Text)
	return IsWideTerminal(r)
}

// Tokenize splits text[start:end] into tokens. Runs of one category merge,
// except for categories whose code points are tokens of their own.
// Combining marks extend the preceding token unless that token is
// whitespace or a line break.
func Tokenize(text string, start, end int) []Token {
	var tokens []Token
	for i := start; i < end; {
		r, size := utf8.DecodeRuneInString(text[i:end])
		cat := Classify(r)
		if n := len(tokens); n > 0 {
			last := &tokens[n-1]
			extend := false
			switch {
			case isMark(r):
				extend = last.Category != Whitespace && last.Category != LineBreak
			case cat == last.Category:
				extend = !cat.splits()
			}
			if extend {
				last.End = i + size
				last.Text = text[last.Start:last.End]
				i += size
				continue
			}
		}
		if isMark(r) {
			cat = Other
		}
		tokens = append(tokens, Token{
			Category: cat,
			Start:    i,
			End:      i + size,
			Text:     text[i : i+size],
		})
		i += size
	}
	return tokens
}
