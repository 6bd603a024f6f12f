package rst

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

var inlineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Escape", Pattern: `\\[\s\S]`},
	{Name: "Literal", Pattern: "``"},
	{Name: "Strong", Pattern: `\*\*`},
	{Name: "Emphasis", Pattern: `\*`},
	{Name: "Role", Pattern: `:[A-Za-z0-9]+(?:[-._+][A-Za-z0-9]+)*:`},
	{Name: "TargetStart", Pattern: "_`"},
	{Name: "Backquote", Pattern: "`"},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Underscore", Pattern: `_+`},
	{Name: "Word", Pattern: `[\p{L}\p{N}]+`},
	{Name: "Space", Pattern: `\s+`},
	{Name: "Punct", Pattern: `[\s\S]`},
})

var inlineSymbols = inlineLexer.Symbols()

var (
	tokLiteral     = inlineSymbols["Literal"]
	tokStrong      = inlineSymbols["Strong"]
	tokEmphasis    = inlineSymbols["Emphasis"]
	tokRole        = inlineSymbols["Role"]
	tokTargetStart = inlineSymbols["TargetStart"]
	tokBackquote   = inlineSymbols["Backquote"]
	tokPipe        = inlineSymbols["Pipe"]
	tokUnderscore  = inlineSymbols["Underscore"]
	tokWord        = inlineSymbols["Word"]
	tokPunct       = inlineSymbols["Punct"]
)

// tokenize splits inline text into tokens ending with an EOF token.
func tokenize(text string) ([]lexer.Token, error) {
	lex, err := inlineLexer.LexString("", text)
	if err != nil {
		return nil, err
	}
	return lexer.ConsumeAll(lex)
}

// isStartPrefix reports whether r may precede an inline start-string.
func isStartPrefix(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(`-:/'"<([{`, r) ||
		unicode.In(r, unicode.Ps, unicode.Pi, unicode.Pf, unicode.Pd)
}

// isEndSuffix reports whether r may follow an inline end-string.
func isEndSuffix(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(`-.,:;!?\/'")]}>`, r) ||
		unicode.In(r, unicode.Pe, unicode.Pi, unicode.Pf, unicode.Pd, unicode.Po)
}

var quotePairs = map[rune]rune{
	'\'': '\'', '"': '"', '(': ')', '[': ']', '{': '}', '<': '>',
	'‘': '’', '“': '”', '«': '»', '‹': '›',
}

// quoted reports whether a start-string sits between a matching pair such
// as '*' or (*).
func quoted(before, after rune) bool {
	if closer, ok := quotePairs[before]; ok && closer == after {
		return true
	}
	return unicode.Is(unicode.Pi, before) && unicode.Is(unicode.Pf, after)
}

func runeBefore(s string, off int) (rune, bool) {
	if off <= 0 {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:off])
	return r, true
}

func runeAfter(s string, off int) (rune, bool) {
	if off >= len(s) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s[off:])
	return r, true
}

// startOK checks the context of a start-string s[off:end].
func startOK(s string, off, end int) bool {
	before, hasBefore := runeBefore(s, off)
	if hasBefore && !isStartPrefix(before) {
		return false
	}
	after, ok := runeAfter(s, end)
	if !ok || unicode.IsSpace(after) {
		return false
	}
	return !hasBefore || !quoted(before, after)
}

// endOK checks the context of an end-string s[off:end].
func endOK(s string, off, end int) bool {
	before, ok := runeBefore(s, off)
	if !ok || unicode.IsSpace(before) {
		return false
	}
	after, ok := runeAfter(s, end)
	return !ok || isEndSuffix(after)
}
