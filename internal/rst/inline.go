package rst

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
)

var (
	standaloneURIRe = regexp.MustCompile(`(?:(?:https?|ftp|sftp|file|ssh|git|svn)://|mailto:)[^\s<>"` + "`" + `]*[^\s<>"` + "`" + `.,;:!?'")\]}*|_]`)
	embeddedRe      = regexp.MustCompile(`(?s)^(.*?)(?:^|\s+)<([^<>]+)>$`)
)

// inliner parses the inline markup of one text block. Messages are
// reported at the line the block starts on.
type inliner struct {
	st     *state
	body   *bodyParser
	line   int
	source string

	text    string
	toks    []lexer.Token
	nodes   []*document.Node
	msgs    []*document.Node
	flushed int
}

func (in *inliner) parse(text string) (nodes, messages []*document.Node) {
	toks, err := tokenize(text)
	if err != nil {
		return []*document.Node{document.NewText(text)}, nil
	}
	in.text = text
	in.toks = toks
	uris := standaloneURIRe.FindAllStringIndex(text, -1)

	for k := 0; k < len(toks) && !toks[k].EOF(); {
		off := toks[k].Pos.Offset
		if off < in.flushed {
			k++
			continue
		}
		if u := uriAt(uris, off); u != nil {
			in.flush(u[0])
			ref := document.NewTextElement(document.KindReference, text[u[0]:u[1]])
			ref.Refuri = text[u[0]:u[1]]
			in.emit(ref)
			in.flushed = u[1]
			k = in.tokenAt(u[1])
			continue
		}
		k = in.dispatch(k)
	}
	in.flush(len(text))
	return in.nodes, in.msgs
}

func uriAt(uris [][]int, off int) []int {
	for _, u := range uris {
		if off >= u[0] && off < u[1] {
			return u
		}
	}
	return nil
}

// tokenAt returns the index of the first token starting at or after off.
func (in *inliner) tokenAt(off int) int {
	for k, t := range in.toks {
		if t.EOF() || t.Pos.Offset >= off {
			return k
		}
	}
	return len(in.toks)
}

func (in *inliner) flush(upTo int) {
	if upTo > in.flushed {
		in.nodes = append(in.nodes, document.NewText(unescape(in.text[in.flushed:upTo])))
		in.flushed = upTo
	}
}

func (in *inliner) emit(nodes ...*document.Node) {
	for _, n := range nodes {
		if n.Line == 0 {
			n.Line = in.line
		}
	}
	in.nodes = append(in.nodes, nodes...)
}

func (in *inliner) offset(k int) int {
	if k >= len(in.toks) || in.toks[k].EOF() {
		return len(in.text)
	}
	return in.toks[k].Pos.Offset
}

func (in *inliner) end(k int) int {
	return in.offset(k) + len(in.toks[k].Value)
}

func (in *inliner) is(k int, typ lexer.TokenType) bool {
	return k < len(in.toks) && in.toks[k].Type == typ
}

// problem replaces text[off:end] by a problematic node and reports msg.
func (in *inliner) problem(level diagnostics.Level, off, end int, msg string) {
	in.flush(off)
	m := in.st.reporter().SystemMessage(level, msg, in.body.at(in.line)...)
	in.emit(document.NewTextElement(document.KindProblematic, in.text[off:end]))
	in.msgs = append(in.msgs, m)
	in.flushed = end
}

func (in *inliner) dispatch(k int) int {
	switch in.toks[k].Type {
	case tokLiteral:
		return in.literal(k)
	case tokStrong:
		return in.span(k, document.KindStrong, "strong")
	case tokEmphasis:
		return in.span(k, document.KindEmphasis, "emphasis")
	case tokRole:
		if in.is(k+1, tokBackquote) && in.offset(k+1) == in.end(k) {
			return in.interpreted(k, k+1)
		}
	case tokBackquote:
		return in.interpreted(k, k)
	case tokTargetStart:
		return in.inlineTarget(k)
	case tokPipe:
		return in.substitution(k)
	case tokWord:
		return in.simpleReference(k)
	}
	return k + 1
}

// findEnd returns the index of the closing token of type typ for the
// start-string at k, or -1.
func (in *inliner) findEnd(k int, typ lexer.TokenType) int {
	for j := k + 2; j < len(in.toks); j++ {
		if in.toks[j].Type == typ && endOK(in.text, in.offset(j), in.end(j)) {
			return j
		}
	}
	return -1
}

func (in *inliner) literal(k int) int {
	off, start := in.offset(k), in.end(k)
	if !startOK(in.text, off, start) {
		return k + 1
	}
	j := in.findEnd(k, tokLiteral)
	if j < 0 {
		in.problem(diagnostics.LevelWarning, off, start, "Inline literal start-string without end-string.")
		return k + 1
	}
	in.flush(off)
	in.emit(document.NewTextElement(document.KindLiteral, in.text[start:in.offset(j)]))
	in.flushed = in.end(j)
	return j + 1
}

func (in *inliner) span(k int, kind document.Kind, what string) int {
	typ := in.toks[k].Type
	off, start := in.offset(k), in.end(k)
	if !startOK(in.text, off, start) {
		return k + 1
	}
	j := in.findEnd(k, typ)
	if j < 0 {
		in.problem(diagnostics.LevelWarning, off, start,
			fmt.Sprintf("Inline %s start-string without end-string.", what))
		return k + 1
	}
	in.flush(off)
	in.emit(document.NewTextElement(kind, unescape(in.text[start:in.offset(j)])))
	in.flushed = in.end(j)
	return j + 1
}

// interpreted handles interpreted text and phrase references. k is the
// first token of the construct, bq its opening backquote.
func (in *inliner) interpreted(k, bq int) int {
	off, start := in.offset(k), in.end(bq)
	if !startOK(in.text, off, start) {
		return k + 1
	}
	prefix := ""
	if bq != k {
		prefix = strings.Trim(in.toks[k].Value, ":")
	}

	for j := bq + 2; j < len(in.toks); j++ {
		if !in.is(j, tokBackquote) {
			continue
		}
		closeOff := in.offset(j)
		if r, _ := runeBefore(in.text, closeOff); isSpace(r) {
			continue
		}
		next := j + 1
		suffix, ref := "", ""
		switch {
		case in.is(next, tokRole) && in.offset(next) == closeOff+1:
			suffix = strings.Trim(in.toks[next].Value, ":")
			next++
		case in.is(next, tokUnderscore) && in.offset(next) == closeOff+1 && len(in.toks[next].Value) <= 2:
			ref = in.toks[next].Value
			next++
		}
		end := closeOff + 1
		if next > j+1 {
			end = in.end(next - 1)
		}
		if r, ok := runeAfter(in.text, end); ok && !isEndSuffix(r) {
			continue
		}

		raw := in.text[off:end]
		inner := in.text[start:closeOff]
		switch {
		case prefix != "" && ref != "":
			in.problem(diagnostics.LevelError, off, end,
				"Mismatch: both interpreted text role prefix and reference suffix.")
		case prefix != "" && suffix != "":
			in.problem(diagnostics.LevelError, off, end,
				"Multiple roles in interpreted text (both prefix and suffix present; only one allowed).")
		case ref != "":
			in.flush(off)
			in.phraseReference(inner, ref == "__")
			in.flushed = end
		default:
			name := prefix
			if name == "" {
				name = suffix
			}
			in.interpret(name, raw, inner, off, end)
		}
		return next
	}

	in.problem(diagnostics.LevelWarning, off, start,
		"Inline interpreted text or phrase reference start-string without end-string.")
	return bq + 1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func (in *inliner) interpret(name, raw, inner string, off, end int) {
	if name == "" {
		name = in.st.doc.DefaultRole
		if name == "" {
			name = "title-reference"
		}
	}
	r, ok := in.st.role(name)
	if !ok {
		in.msgs = append(in.msgs, in.body.info(in.line, lookupInfo("role", name)))
		in.problem(diagnostics.LevelError, off, end, fmt.Sprintf("Unknown interpreted text role \"%s\".", name))
		return
	}
	in.flush(off)
	nodes, msgs := r.Apply(&construct.RoleCall{
		Name:    strings.ToLower(name),
		RawText: raw,
		Text:    unescape(inner),
		Line:    in.line,
		State:   in.body,
	})
	in.emit(nodes...)
	in.msgs = append(in.msgs, msgs...)
	in.flushed = end
}

func (in *inliner) phraseReference(inner string, anonymous bool) {
	text := inner
	uri, alias := "", ""
	if m := embeddedRe.FindStringSubmatch(inner); m != nil {
		target := m[2]
		if strings.HasSuffix(target, "_") && !strings.HasSuffix(target, `\_`) {
			alias = document.NormalizeName(unescape(target[:len(target)-1]))
		} else {
			uri = strings.Join(strings.Fields(unescape(target)), "")
		}
		text = m[1]
		if text == "" {
			text = target
		}
	}
	text = unescape(text)

	ref := document.NewTextElement(document.KindReference, text)
	ref.Line = in.line
	switch {
	case uri != "":
		ref.Refuri = uri
	case alias != "":
		ref.Refname = alias
	case anonymous:
		ref.Anonymous = true
	default:
		ref.Refname = document.NormalizeName(text)
	}
	in.emit(ref)

	if uri == "" || anonymous {
		return
	}
	target := document.NewElement(document.KindTarget)
	target.Line = in.line
	target.Source = in.source
	target.Refuri = uri
	target.Referenced = true
	target.Names = []string{document.NormalizeName(text)}
	in.emit(target)
	in.msgs = append(in.msgs, in.st.doc.NoteExplicitTarget(target)...)
}

var joiners = "-.+:_"

func (in *inliner) simpleReference(k int) int {
	off := in.offset(k)
	if r, ok := runeBefore(in.text, off); ok && !isStartPrefix(r) {
		return k + 1
	}
	j := k
	for in.is(j+2, tokWord) && in.offset(j+1) == in.end(j) && in.offset(j+2) == in.end(j+1) &&
		len(in.toks[j+1].Value) == 1 && strings.Contains(joiners, in.toks[j+1].Value) &&
		(in.is(j+1, tokPunct) || in.is(j+1, tokUnderscore)) {
		j += 2
	}
	u := j + 1
	if !in.is(u, tokUnderscore) || in.offset(u) != in.end(j) || len(in.toks[u].Value) > 2 {
		return j + 1
	}
	end := in.end(u)
	if r, ok := runeAfter(in.text, end); ok && !isEndSuffix(r) {
		return j + 1
	}

	name := in.text[off:in.offset(u)]
	in.flush(off)
	ref := document.NewTextElement(document.KindReference, name)
	ref.Anonymous = len(in.toks[u].Value) == 2
	if !ref.Anonymous {
		ref.Refname = document.NormalizeName(name)
	}
	in.emit(ref)
	in.flushed = end
	return u + 1
}

func (in *inliner) substitution(k int) int {
	off, start := in.offset(k), in.end(k)
	if !startOK(in.text, off, start) {
		return k + 1
	}
	for j := k + 2; j < len(in.toks); j++ {
		if !in.is(j, tokPipe) {
			continue
		}
		closeOff := in.offset(j)
		if r, _ := runeBefore(in.text, closeOff); isSpace(r) {
			continue
		}
		suffix := ""
		end := closeOff + 1
		if in.is(j+1, tokUnderscore) && in.offset(j+1) == end && len(in.toks[j+1].Value) <= 2 {
			suffix = in.toks[j+1].Value
			end = in.end(j + 1)
		}
		if r, ok := runeAfter(in.text, end); ok && !isEndSuffix(r) {
			continue
		}

		name := unescape(in.text[start:closeOff])
		in.flush(off)
		sub := document.NewTextElement(document.KindSubstitutionReference, name)
		sub.Refname = document.WhitespaceNormalize(name)
		if suffix == "" {
			in.emit(sub)
		} else {
			ref := document.NewElement(document.KindReference, sub)
			ref.Anonymous = suffix == "__"
			if !ref.Anonymous {
				ref.Refname = document.NormalizeName(name)
			}
			in.emit(ref)
		}
		in.flushed = end
		if suffix != "" {
			return j + 2
		}
		return j + 1
	}
	in.problem(diagnostics.LevelWarning, off, start, "Inline substitution_reference start-string without end-string.")
	return k + 1
}

func (in *inliner) inlineTarget(k int) int {
	off, start := in.offset(k), in.end(k)
	if !startOK(in.text, off, start) {
		return k + 1
	}
	j := in.findEnd(k, tokBackquote)
	if j < 0 {
		in.problem(diagnostics.LevelWarning, off, start, "Inline internal target start-string without end-string.")
		return k + 1
	}
	name := unescape(in.text[start:in.offset(j)])
	in.flush(off)
	t := document.NewTextElement(document.KindTarget, name)
	t.Source = in.source
	t.Names = []string{document.NormalizeName(name)}
	in.emit(t)
	in.msgs = append(in.msgs, in.st.doc.NoteExplicitTarget(t)...)
	in.flushed = in.end(j)
	return j + 1
}
