package rst

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/document"
)

var (
	directiveRe    = regexp.MustCompile(`^([\p{L}\p{N}]+(?:[-._+:][\p{L}\p{N}]+)*)[ ]?::( +|$)`)
	substitutionRe = regexp.MustCompile(`^\|([^| ](?:[^|]*[^| ])?)\|( +|$)`)
	refnameRe      = regexp.MustCompile("^(?:`([^`]+)`|([\\p{L}\\p{N}]+(?:[-._+:][\\p{L}\\p{N}]+)*))_$")
)

// markupError is a problem in an explicit markup block that is reported
// instead of running the construct.
type markupError struct {
	msg string
}

func (e *markupError) Error() string { return e.msg }

func (b *bodyParser) explicit() {
	start := b.i
	marker := explicitRe.FindString(b.lines[start])
	blk := firstKnownIndented(b.lines, start, columns(marker))
	lineno := b.lineNo(start)
	blocktext := b.blockText(start, blk.end)

	var nodes []*document.Node
	first := ""
	if len(blk.lines) > 0 {
		first = blk.lines[0]
	}
	switch {
	case len(blk.lines) == 0:
		nodes = b.comment(blk.lines, lineno)
	case strings.HasPrefix(first, "_") && len(first) > 1 && first[1] != ' ':
		nodes = b.hyperlinkTarget(blk.lines, lineno)
	case strings.HasPrefix(first, "|") && len(first) > 1 && first[1] != ' ':
		nodes = b.substitutionDef(blk.lines, lineno, blocktext)
	case directiveRe.MatchString(first):
		m := directiveRe.FindStringSubmatch(first)
		body := append([]string{first[len(m[0]):]}, blk.lines[1:]...)
		nodes = b.directive(m[1], body, lineno, blocktext, "")
	default:
		// Footnotes and citations are kept as comments.
		nodes = b.comment(blk.lines, lineno)
	}
	b.add(nodes...)

	b.i = blk.end
	if !blk.blankFinish && !b.explicitNext() {
		b.add(b.unindentWarning("Explicit markup", blk.end))
	}
}

// explicitNext reports whether the current line continues a run of
// explicit markup blocks.
func (b *bodyParser) explicitNext() bool {
	return b.i < len(b.lines) && (explicitRe.MatchString(b.lines[b.i]) || anonymousRe.MatchString(b.lines[b.i]))
}

// blockText returns the source lines of a construct without trailing blanks.
func (b *bodyParser) blockText(start, end int) string {
	for end > start+1 && isBlank(b.lines[end-1]) {
		end--
	}
	return strings.Join(b.lines[start:end], "\n")
}

func (b *bodyParser) comment(lines []string, lineno int) []*document.Node {
	c := document.NewTextElement(document.KindComment, strings.Join(lines, "\n"))
	c.Line = lineno
	c.Source = b.source
	return []*document.Node{c}
}

func (b *bodyParser) anonymousTarget() {
	start := b.i
	marker := anonymousRe.FindString(b.lines[start])
	blk := firstKnownIndented(b.lines, start, columns(marker))
	b.add(b.makeTarget("", true, blk.lines, b.lineNo(start))...)
	b.i = blk.end
	if !blk.blankFinish && !b.explicitNext() {
		b.add(b.unindentWarning("Explicit markup", blk.end))
	}
}

func (b *bodyParser) hyperlinkTarget(lines []string, lineno int) []*document.Node {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, strings.TrimSpace(l))
	}
	text := strings.Join(parts, " ")

	name, rest, anonymous, ok := splitTarget(text)
	if !ok {
		msg := b.warning(lineno, "malformed hyperlink target.")
		return append(b.comment(lines, lineno), msg)
	}
	return b.makeTarget(name, anonymous, []string{rest}, lineno)
}

// splitTarget splits "_name: rest" into its parts, handling quoted names
// and the anonymous "__:" form.
func splitTarget(text string) (name, rest string, anonymous, ok bool) {
	if text == "__:" || strings.HasPrefix(text, "__: ") {
		return "", strings.TrimSpace(text[3:]), true, true
	}
	if strings.HasPrefix(text, "_`") {
		end := strings.Index(text[2:], "`:")
		if end < 0 {
			return "", "", false, false
		}
		end += 2
		after := end + 2
		if after < len(text) && text[after] != ' ' {
			return "", "", false, false
		}
		return text[2:end], strings.TrimSpace(text[after:]), false, true
	}
	for k := 1; k < len(text); k++ {
		if text[k] != ':' || text[k-1] == '\\' {
			continue
		}
		if k+1 < len(text) && text[k+1] != ' ' {
			continue
		}
		name = strings.TrimSpace(text[1:k])
		if name == "" {
			return "", "", false, false
		}
		return name, strings.TrimSpace(text[k+1:]), false, true
	}
	return "", "", false, false
}

func (b *bodyParser) makeTarget(name string, anonymous bool, lines []string, lineno int) []*document.Node {
	ref := ""
	for _, l := range lines {
		ref += strings.Join(strings.Fields(l), "")
	}

	t := document.NewElement(document.KindTarget)
	t.Line = lineno
	t.Source = b.source
	t.Anonymous = anonymous
	if m := refnameRe.FindStringSubmatch(ref); m != nil {
		refname := m[1]
		if refname == "" {
			refname = m[2]
		}
		t.Refname = document.NormalizeName(unescape(refname))
	} else if ref != "" {
		t.Refuri = unescape(ref)
	}
	if anonymous {
		return []*document.Node{t}
	}
	t.Names = []string{document.NormalizeName(unescape(name))}
	return append([]*document.Node{t}, b.st.doc.NoteExplicitTarget(t)...)
}

func (b *bodyParser) substitutionDef(lines []string, lineno int, blocktext string) []*document.Node {
	m := substitutionRe.FindStringSubmatch(lines[0])
	if m == nil {
		msg := b.warning(lineno, "malformed substitution definition.")
		return append(b.comment(lines, lineno), msg)
	}
	name := document.WhitespaceNormalize(m[1])
	body := append([]string{lines[0][len(m[0]):]}, lines[1:]...)
	for len(body) > 0 && isBlank(body[0]) {
		body = body[1:]
	}
	if len(body) == 0 {
		return []*document.Node{b.warning(lineno, fmt.Sprintf("Substitution definition \"%s\" missing contents.", name),
			document.WithLiteral(blocktext))}
	}

	def := document.NewElement(document.KindSubstitutionDefinition)
	def.Names = []string{name}
	def.Line = lineno
	def.Source = b.source

	var others []*document.Node
	if dm := directiveRe.FindStringSubmatch(body[0]); dm != nil {
		dirBody := append([]string{body[0][len(dm[0]):]}, body[1:]...)
		for _, n := range b.directive(dm[1], dirBody, lineno, blocktext, name) {
			if isInline(n.Kind) {
				def.Append(n)
			} else {
				others = append(others, n)
			}
		}
	} else {
		nodes, msgs := b.InlineParse(strings.TrimSpace(strings.Join(body, "\n")), lineno)
		def.Append(nodes...)
		others = append(others, msgs...)
	}

	if len(def.Children) == 0 {
		return append(others, b.warning(lineno, fmt.Sprintf("Substitution definition \"%s\" empty or invalid.", name),
			document.WithLiteral(blocktext)))
	}
	others = append(others, def)
	return append(others, b.st.doc.NoteSubstitutionDef(name, def)...)
}

func isInline(k document.Kind) bool {
	switch k {
	case document.KindText, document.KindEmphasis, document.KindStrong, document.KindLiteral,
		document.KindInline, document.KindReference, document.KindTitleReference,
		document.KindSubscript, document.KindSuperscript, document.KindAbbreviation,
		document.KindAcronym, document.KindMath, document.KindImage, document.KindProblematic,
		document.KindGeneratedText, document.KindRaw:
		return true
	default:
		return false
	}
}

// directive resolves and runs a directive. body holds the text after "::"
// followed by the indented block; its first line is at lineno.
func (b *bodyParser) directive(name string, body []string, lineno int, blocktext, substitution string) []*document.Node {
	d, ok := b.st.ns.Directive(name)
	if !ok {
		info := b.info(lineno, lookupInfo("directive", name))
		return []*document.Node{info, b.error(lineno, fmt.Sprintf("Unknown directive type \"%s\".", name),
			document.WithLiteral(blocktext))}
	}

	call, err := parseDirectiveBlock(d.Spec(), body, lineno-1)
	if err != nil {
		return []*document.Node{b.error(lineno, fmt.Sprintf("Error in \"%s\" directive:\n%s.", name, err),
			document.WithLiteral(blocktext))}
	}
	call.Name = strings.ToLower(name)
	call.Line = lineno
	call.BlockText = blocktext
	call.State = b
	call.Substitution = substitution

	nodes, err := d.Run(call)
	if err != nil {
		var de *construct.DirectiveError
		if errors.As(err, &de) {
			msg := b.st.reporter().SystemMessage(de.Level, de.Message,
				b.at(lineno, document.WithLiteral(blocktext))...)
			return append(append([]*document.Node(nil), de.Messages...), msg)
		}
		panic(parseFailure{err: fmt.Errorf("rst: directive %q at %s:%d: %w", name, b.source, lineno, err)})
	}
	return nodes
}

// parseDirectiveBlock splits a directive block into arguments, options and
// content. lineOffset is the line number before body[0].
func parseDirectiveBlock(spec construct.DirectiveSpec, body []string, lineOffset int) (*construct.DirectiveCall, error) {
	indented := append([]string(nil), body...)
	if len(indented) > 0 && isBlank(indented[0]) {
		indented = indented[1:]
		lineOffset++
	}
	for len(indented) > 0 && isBlank(indented[len(indented)-1]) {
		indented = indented[:len(indented)-1]
	}

	takesArgs := spec.RequiredArguments > 0 || spec.OptionalArguments > 0
	var argBlock, content []string
	contentOffset := lineOffset
	i := len(indented)
	if len(indented) > 0 && (takesArgs || spec.Options != nil) {
		for k, l := range indented {
			if isBlank(l) {
				i = k
				break
			}
		}
		argBlock = indented[:i]
		if i < len(indented) {
			content = indented[i+1:]
		}
		contentOffset = lineOffset + i + 1
	} else {
		content = indented
	}

	options := make(map[string]string)
	if spec.Options != nil {
		var err error
		options, argBlock, err = parseDirectiveOptions(spec.Options, argBlock)
		if err != nil {
			return nil, err
		}
	}
	if len(argBlock) > 0 && !takesArgs {
		content = append(append([]string(nil), argBlock...), indented[i:]...)
		contentOffset = lineOffset
		argBlock = nil
	}
	for len(content) > 0 && isBlank(content[0]) {
		content = content[1:]
		contentOffset++
	}

	var args []string
	if takesArgs {
		var err error
		if args, err = parseDirectiveArguments(spec, argBlock); err != nil {
			return nil, err
		}
	}
	if len(content) > 0 && !spec.HasContent {
		return nil, &markupError{"no content permitted"}
	}
	return &construct.DirectiveCall{
		Arguments:     args,
		Options:       options,
		Content:       content,
		ContentOffset: contentOffset,
	}, nil
}

func parseDirectiveArguments(spec construct.DirectiveSpec, argBlock []string) ([]string, error) {
	text := strings.Join(argBlock, "\n")
	args := strings.Fields(text)
	limit := spec.RequiredArguments + spec.OptionalArguments
	switch {
	case len(args) < spec.RequiredArguments:
		return nil, &markupError{fmt.Sprintf("%d argument(s) required, %d supplied", spec.RequiredArguments, len(args))}
	case len(args) > limit:
		if !spec.FinalArgumentWhitespace {
			return nil, &markupError{fmt.Sprintf("maximum %d argument(s) allowed, %d supplied", limit, len(args))}
		}
		return splitN(text, limit), nil
	}
	return args, nil
}

// splitN splits on whitespace into at most n fields; the last keeps its
// inner whitespace.
func splitN(text string, n int) []string {
	var out []string
	rest := strings.TrimLeft(text, " \n")
	for len(out) < n-1 {
		k := strings.IndexAny(rest, " \n")
		if k < 0 {
			break
		}
		out = append(out, rest[:k])
		rest = strings.TrimLeft(rest[k:], " \n")
	}
	if rest != "" {
		out = append(out, strings.TrimRight(rest, " \n"))
	}
	return out
}

func parseDirectiveOptions(spec map[string]construct.OptionConverter, argBlock []string) (map[string]string, []string, error) {
	options := make(map[string]string)
	var optBlock []string
	for k, l := range argBlock {
		if fieldRe.MatchString(l) {
			optBlock = argBlock[k:]
			argBlock = argBlock[:k]
			break
		}
	}
	if len(optBlock) == 0 {
		return options, argBlock, nil
	}

	type rawOption struct {
		name  string
		lines []string
	}
	var raw []rawOption
	for _, l := range optBlock {
		if m := fieldRe.FindStringSubmatch(l); m != nil {
			first := strings.TrimSpace(l[len(m[0]):])
			opt := rawOption{name: m[1]}
			if first != "" {
				opt.lines = append(opt.lines, first)
			}
			raw = append(raw, opt)
			continue
		}
		if indentOf(l) == 0 {
			return nil, nil, &markupError{"invalid option block"}
		}
		last := &raw[len(raw)-1]
		last.lines = append(last.lines, strings.TrimSpace(l))
	}

	for _, opt := range raw {
		name := strings.ToLower(opt.name)
		conv, ok := spec[name]
		if !ok {
			return nil, nil, &markupError{fmt.Sprintf("unknown option: \"%s\"", name)}
		}
		if _, dup := options[name]; dup {
			return nil, nil, &markupError{fmt.Sprintf("invalid option data: duplicate option \"%s\"", name)}
		}
		value := strings.Join(opt.lines, "\n")
		v, err := conv(value)
		if err != nil {
			return nil, nil, &markupError{fmt.Sprintf("invalid option value: (option: \"%s\"; value: %s)\n%s",
				name, pyRepr(value, len(opt.lines) == 0), err)}
		}
		options[name] = v
	}
	return options, argBlock, nil
}

// pyRepr quotes an option value the way option errors show it.
func pyRepr(value string, none bool) string {
	if none {
		return "None"
	}
	if strings.Contains(value, "'") && !strings.Contains(value, "\"") {
		return "\"" + value + "\""
	}
	return "'" + strings.ReplaceAll(strings.ReplaceAll(value, "\\", "\\\\"), "'", "\\'") + "'"
}

// unescape removes backslash escapes; an escaped whitespace disappears.
func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var sb strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\\' && i+1 < len(rs) {
			i++
			if rs[i] == ' ' || rs[i] == '\n' {
				continue
			}
		}
		sb.WriteRune(rs[i])
	}
	return sb.String()
}
