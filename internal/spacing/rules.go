package spacing

import "strings"

// RulesVersion is the version of the Dualbind rule table implemented here.
const RulesVersion = "3.1"

// Decision is the outcome of resolving one boundary.
type Decision int8

const (
	// Preserve keeps whatever whitespace exists between the tokens, including none.
	Preserve Decision = iota
	// InsertSpace makes the gap exactly one U+0020.
	InsertSpace
	// RemoveSpace makes the gap empty.
	RemoveSpace
)

func (d Decision) String() string {
	switch d {
	case InsertSpace:
		return "InsertSpace"
	case RemoveSpace:
		return "RemoveSpace"
	default:
		return "Preserve"
	}
}

// MarshalText lets decisions appear by name in JSON output.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// separator returns the text a boundary with the given gap must end up with.
func (d Decision) separator(gap string) string {
	switch d {
	case InsertSpace:
		return " "
	case RemoveSpace:
		return ""
	default:
		return gap
	}
}

// Boundary is one adjacent pair of significant tokens inside a transparent
// segment. Before and After are the neighbouring significant tokens in the
// same segment, or nil at the segment edges.
type Boundary struct {
	Left, Right   *Token
	Before, After *Token
	Gap           string

	preserveDoubleSpace bool
}

// Rule is one row of the rule table.
type Rule struct {
	ID          string
	Description string
	Decision    Decision
	match       func(b *Boundary) bool
}

// ruleTable is evaluated top to bottom; the first matching rule decides.
var ruleTable = []Rule{
	{
		ID:          "R1",
		Description: "never change spacing across a line break",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return b.Left.Category == LineBreak || b.Right.Category == LineBreak
		},
	},
	{
		ID:          "R2",
		Description: "an explicit double space is an authorial signal",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return b.preserveDoubleSpace && strings.Contains(b.Gap, "  ")
		},
	},
	{
		ID:          "R3",
		Description: "one space between CJK and ASCII letters or digits",
		Decision:    InsertSpace,
		match: func(b *Boundary) bool {
			return either(b, CJK, AsciiAlnum)
		},
	},
	{
		ID:          "R4a",
		Description: "one space between CJK and an opening bracket directly followed by ASCII content",
		Decision:    InsertSpace,
		match: func(b *Boundary) bool {
			return b.Left.Category == CJK && b.Right.Category == PunctOpen &&
				b.After.isASCIIContent() && b.After.Start == b.Right.End
		},
	},
	{
		ID:          "R4b",
		Description: "no space inside an opening bracket that follows CJK",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return b.Left.Category == PunctOpen && b.Before != nil && b.Before.Category == CJK &&
				b.Right.isASCIIContent()
		},
	},
	{
		ID:          "R5a",
		Description: "one space between a bracket closing ASCII content and CJK",
		Decision:    InsertSpace,
		match: func(b *Boundary) bool {
			return b.Left.Category == PunctClose && b.Right.Category == CJK && b.Before.isASCIIContent()
		},
	},
	{
		ID:          "R5b",
		Description: "other CJK and closing bracket pairs keep their spacing",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return either(b, CJK, PunctClose)
		},
	},
	{
		ID:          "R6a",
		Description: "no space before terminal punctuation in CJK context",
		Decision:    RemoveSpace,
		match: func(b *Boundary) bool {
			return b.Right.Category == PunctTerminal && (b.Right.isWide() || b.Left.Category == CJK)
		},
	},
	{
		ID:          "R6b",
		Description: "never inject a space next to terminal punctuation",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return b.Left.Category == PunctTerminal || b.Right.Category == PunctTerminal
		},
	},
	{
		ID:          "R7",
		Description: "runs of one category are never re-spaced",
		Decision:    Preserve,
		match: func(b *Boundary) bool {
			return b.Left.Category == b.Right.Category
		},
	},
	{
		ID:          "R8",
		Description: "default",
		Decision:    Preserve,
		match:       func(*Boundary) bool { return true },
	},
}

func either(b *Boundary, x, y Category) bool {
	l, r := b.Left.Category, b.Right.Category
	return (l == x && r == y) || (l == y && r == x)
}

// Resolve returns the decision for b and the rule that made it.
func Resolve(b *Boundary) (Decision, *Rule) {
	for i := range ruleTable {
		if ruleTable[i].match(b) {
			return ruleTable[i].Decision, &ruleTable[i]
		}
	}
	// unreachable: R8 always matches
	last := &ruleTable[len(ruleTable)-1]
	return last.Decision, last
}

// RuleInfo describes one rule for listings.
type RuleInfo struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Decision    Decision `json:"decision"`
}

// Rules returns the rule table in evaluation order.
func Rules() []RuleInfo {
	infos := make([]RuleInfo, len(ruleTable))
	for i, r := range ruleTable {
		infos[i] = RuleInfo{ID: r.ID, Description: r.Description, Decision: r.Decision}
	}
	return infos
}
