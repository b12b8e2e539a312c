// Package diff renders line diffs between an expected and an actual
// response body.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// maxLines bounds the LCS table; larger inputs are truncated.
const maxLines = 2000

type op byte

const (
	opKeep op = ' '
	opAdd  op = '+'
	opDel  op = '-'
)

type line struct {
	op   op
	text string
}

// Compute returns a unified diff between old and new with DefaultContext
// lines of context. Identical inputs produce an empty string.
func Compute(old, new string) string {
	return Unified(old, new, DefaultContext)
}

// JSON pretty-prints both documents before diffing so that structural
// differences land on separate lines. Inputs that are not JSON are diffed
// as they are.
func JSON(expected, actual string) string {
	return Compute(indent(expected), indent(actual))
}

func indent(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(s)), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

// Unified returns hunks in unified format, each led by an
// "@@ -a,b +c,d @@" header.
func Unified(old, new string, context int) string {
	a := splitLines(old)
	b := splitLines(new)
	lines := walk(a, b, lcsTable(a, b))
	if !changed(lines) {
		return ""
	}

	var sb strings.Builder
	for _, h := range hunks(lines, context) {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldLen, h.newStart, h.newLen)
		for _, l := range lines[h.from:h.to] {
			fmt.Fprintf(&sb, "%c%s\n", l.op, l.text)
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func lcsTable(a, b []string) [][]int {
	table := make([][]int, len(a)+1)
	for i := range table {
		table[i] = make([]int, len(b)+1)
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				table[i][j] = table[i-1][j-1] + 1
			case table[i-1][j] >= table[i][j-1]:
				table[i][j] = table[i-1][j]
			default:
				table[i][j] = table[i][j-1]
			}
		}
	}
	return table
}

// walk backtracks the table into an edit script, deletions before
// additions within a change.
func walk(a, b []string, table [][]int) []line {
	var out []line
	i, j := len(a), len(b)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			out = append(out, line{opKeep, a[i-1]})
			i--
			j--
		case j > 0 && (i == 0 || table[i][j-1] >= table[i-1][j]):
			out = append(out, line{opAdd, b[j-1]})
			j--
		default:
			out = append(out, line{opDel, a[i-1]})
			i--
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func changed(lines []line) bool {
	for _, l := range lines {
		if l.op != opKeep {
			return true
		}
	}
	return false
}

type hunk struct {
	from, to         int
	oldStart, oldLen int
	newStart, newLen int
}

func hunks(lines []line, context int) []hunk {
	var out []hunk
	var cur *hunk
	lastChange := -1

	for idx, l := range lines {
		if l.op != opKeep {
			start := max(idx-context, 0)
			if cur == nil || start > lastChange+context+1 {
				if cur != nil {
					out = append(out, *cur)
				}
				cur = &hunk{from: start}
				cur.oldStart, cur.newStart = position(lines, start)
			}
			lastChange = idx
		}
		if cur != nil && idx <= lastChange+context {
			cur.to = idx + 1
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}

	for i := range out {
		for _, l := range lines[out[i].from:out[i].to] {
			if l.op != opAdd {
				out[i].oldLen++
			}
			if l.op != opDel {
				out[i].newLen++
			}
		}
	}
	return out
}

// position returns the 1-based old and new line numbers at index idx.
func position(lines []line, idx int) (int, int) {
	o, n := 1, 1
	for _, l := range lines[:idx] {
		if l.op != opAdd {
			o++
		}
		if l.op != opDel {
			n++
		}
	}
	return o, n
}
