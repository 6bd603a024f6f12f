package rst

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// splitLines normalizes newlines, expands tabs and strips trailing
// whitespace from every line.
func splitLines(text string, tabWidth int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		l = strings.Map(func(r rune) rune {
			if r == '\v' || r == '\f' {
				return ' '
			}
			return r
		}, l)
		lines[i] = strings.TrimRight(expandTabs(l, tabWidth), " ")
	}
	return lines
}

func expandTabs(s string, width int) string {
	if !strings.ContainsRune(s, '\t') {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := width - col%width
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " "))
}

// block is a run of lines cut out of a body together with where it ended.
type block struct {
	lines []string
	// end is the index of the first line after the block.
	end int
	// blankFinish is false when the block was ended by an unindented line
	// directly following it.
	blankFinish bool
}

func finishBlock(lines []string, out []string, end int) block {
	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return block{
		lines:       out,
		end:         end,
		blankFinish: end >= len(lines) || isBlank(lines[end-1]),
	}
}

// indentedBlock collects the indented lines starting at start and removes
// their common indentation.
func indentedBlock(lines []string, start int) block {
	end := start
	for end < len(lines) && (isBlank(lines[end]) || indentOf(lines[end]) > 0) {
		end++
	}
	return finishBlock(lines, dedent(lines[start:end]), end)
}

// knownIndented takes lines[start] without its first indent columns and the
// following lines indented by at least indent columns.
func knownIndented(lines []string, start, indent int) block {
	out := []string{cut(lines[start], indent)}
	end := start + 1
	for end < len(lines) && (isBlank(lines[end]) || indentOf(lines[end]) >= indent) {
		out = append(out, cut(lines[end], indent))
		end++
	}
	return finishBlock(lines, out, end)
}

// firstKnownIndented takes lines[start] without its first indent columns
// and the following indented lines with their common indentation removed.
func firstKnownIndented(lines []string, start, indent int) block {
	end := start + 1
	for end < len(lines) && (isBlank(lines[end]) || indentOf(lines[end]) > 0) {
		end++
	}
	out := append([]string{cut(lines[start], indent)}, dedent(lines[start+1:end])...)
	return finishBlock(lines, out, end)
}

// dedent removes the smallest indentation of the non-blank lines.
func dedent(lines []string) []string {
	common := -1
	for _, l := range lines {
		if isBlank(l) {
			continue
		}
		if ind := indentOf(l); common < 0 || ind < common {
			common = ind
		}
	}
	if common < 0 {
		common = 0
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = cut(l, common)
	}
	return out
}

// cut drops the first n columns (runes) of s.
func cut(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[i:]
		}
		n--
	}
	return ""
}

// columns returns the number of runes in s, the unit indentation is
// measured in.
func columns(s string) int {
	return utf8.RuneCountInString(s)
}

// textWidth returns the display width of s, counting wide East Asian
// characters as two columns.
func textWidth(s string) int {
	return runewidth.StringWidth(s)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
