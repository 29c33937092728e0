package spacing

import (
	"unicode"

	"golang.org/x/text/width"
)

// Category is the spacing-relevant class of a code point.
type Category int8

const (
	Other Category = iota
	CJK
	AsciiAlnum
	PunctOpen
	PunctClose
	PunctTerminal
	Whitespace
	LineBreak
)

var categoryNames = [...]string{
	Other:         "Other",
	CJK:           "CJK",
	AsciiAlnum:    "AsciiAlnum",
	PunctOpen:     "PunctOpen",
	PunctClose:    "PunctClose",
	PunctTerminal: "PunctTerminal",
	Whitespace:    "Whitespace",
	LineBreak:     "LineBreak",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Category(?)"
	}
	return categoryNames[c]
}

// cjkTable lists the script blocks treated as CJK.
var cjkTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x309f, Stride: 1}, // Hiragana
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1}, // Katakana
		{Lo: 0x4e00, Hi: 0x9fff, Stride: 1}, // CJK Unified Ideographs
		{Lo: 0xac00, Hi: 0xd7a3, Stride: 1}, // Hangul Syllables
	},
}

// CJK-width terminal punctuation without a narrow counterpart in x/text/width.
var wideTerminals = map[rune]bool{
	0x3001: true, // IDEOGRAPHIC COMMA
	0x3002: true, // IDEOGRAPHIC FULL STOP
	0xff61: true, // HALFWIDTH IDEOGRAPHIC FULL STOP
	0xff64: true, // HALFWIDTH IDEOGRAPHIC COMMA
}

// Classify returns the category of a single code point.
// It is total: surrogates, unassigned and invalid code points are Other.
func Classify(r rune) Category {
	if r < 0x80 {
		return classifyASCII(r)
	}
	switch r {
	case 0x0085, 0x2028, 0x2029:
		return LineBreak
	case 0x201c, 0x2018:
		return PunctOpen
	case 0x201d, 0x2019:
		return PunctClose
	}
	if unicode.Is(cjkTable, r) {
		return CJK
	}
	if unicode.IsSpace(r) {
		return Whitespace
	}
	if IsWideTerminal(r) {
		return PunctTerminal
	}
	return Other
}

func classifyASCII(r rune) Category {
	switch {
	case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return AsciiAlnum
	case r == '\n' || r == '\r':
		return LineBreak
	case r == ' ' || r == '\t' || r == '\v' || r == '\f':
		return Whitespace
	}
	switch r {
	case '(', '[', '{':
		return PunctOpen
	case ')', ']', '}':
		return PunctClose
	case ',', '.', '!', '?':
		return PunctTerminal
	}
	return Other
}

// IsWideTerminal reports whether r is a CJK-width form of terminal
// punctuation, e.g. U+FF0C FULLWIDTH COMMA or U+3002 IDEOGRAPHIC FULL STOP.
func IsWideTerminal(r rune) bool {
	if wideTerminals[r] {
		return true
	}
	p := width.LookupRune(r)
	if p.Kind() != width.EastAsianFullwidth {
		return false
	}
	switch p.Narrow() {
	case ',', '.', '!', '?':
		return true
	}
	return false
}

// isMark reports whether r never starts a token of its own.
func isMark(r rune) bool {
	if r == 0x200d { // ZERO WIDTH JOINER
		return true
	}
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me)
}

// splits reports whether every code point of category c forms its own token.
func (c Category) splits() bool {
	switch c {
	case CJK, PunctOpen, PunctClose, PunctTerminal:
		return true
	}
	return false
}

// significant reports whether tokens of category c take part in boundaries.
func (c Category) significant() bool {
	return c != Whitespace
}
