package ops

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffContextLines is the number of unchanged lines shown around a change.
const DiffContextLines = 3

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// UnifiedDiff returns a line-based unified diff from oldText to newText, or
// "" when they are equal. With colorize set, headers and changed lines are
// coloured.
func UnifiedDiff(path, oldText, newText string, colorize bool) string {
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []diffLine
	for _, d := range diffs {
		for _, l := range splitLines(d.Text) {
			lines = append(lines, diffLine{op: d.Type, text: l})
		}
	}

	paint := func(s string, attr color.Attribute) string {
		if !colorize {
			return s
		}
		return color.New(attr).Sprint(s)
	}

	var sb strings.Builder
	sb.WriteString(paint("--- a/"+path+"\n", color.FgRed))
	sb.WriteString(paint("+++ b/"+path+"\n", color.FgGreen))

	for _, h := range hunks(lines, DiffContextLines) {
		oldStart, newStart := 1, 1
		for _, l := range lines[:h[0]] {
			if l.op != diffmatchpatch.DiffInsert {
				oldStart++
			}
			if l.op != diffmatchpatch.DiffDelete {
				newStart++
			}
		}
		oldCount, newCount := 0, 0
		for _, l := range lines[h[0]:h[1]] {
			if l.op != diffmatchpatch.DiffInsert {
				oldCount++
			}
			if l.op != diffmatchpatch.DiffDelete {
				newCount++
			}
		}
		sb.WriteString(paint(fmt.Sprintf("@@ -%s +%s @@\n",
			hunkRange(oldStart, oldCount), hunkRange(newStart, newCount)), color.FgCyan))

		for _, l := range lines[h[0]:h[1]] {
			switch l.op {
			case diffmatchpatch.DiffInsert:
				sb.WriteString(paint("+"+l.text+"\n", color.FgGreen))
			case diffmatchpatch.DiffDelete:
				sb.WriteString(paint("-"+l.text+"\n", color.FgRed))
			default:
				sb.WriteString(" " + l.text + "\n")
			}
		}
	}
	return sb.String()
}

// hunkRange renders a unified diff range; an empty range starts one line
// earlier, as diff(1) prints it.
func hunkRange(start, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", start-1)
	}
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// hunks groups changed lines into [start, end) windows with context lines
// on both sides, merging windows that touch.
func hunks(lines []diffLine, context int) [][2]int {
	var out [][2]int
	for i, l := range lines {
		if l.op == diffmatchpatch.DiffEqual {
			continue
		}
		start := max(0, i-context)
		end := min(len(lines), i+context+1)
		if n := len(out); n > 0 && start <= out[n-1][1] {
			out[n-1][1] = end
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// splitLines splits s into lines without their terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
