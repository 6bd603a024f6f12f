package rst

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/electwix/rst-lint/internal/document"
)

// minUnderline is the shortest underline still taken as a (too short)
// title underline; shorter ones leave the title as ordinary text.
const minUnderline = 3

const adornmentChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	bulletRe     = regexp.MustCompile(`^[-+*\x{2022}\x{2023}\x{2043}]( +|$)`)
	enumRe       = regexp.MustCompile(`^(?:\((\d+|#)\)|(\d+|#)([.)]))( +|$)`)
	fieldRe      = regexp.MustCompile(`^:([^:\s](?:[^:]*[^:\s])?):( +|$)`)
	explicitRe   = regexp.MustCompile(`^\.\.( +|$)`)
	anonymousRe  = regexp.MustCompile(`^__( +|$)`)
	doctestRe    = regexp.MustCompile(`^>>>( +|$)`)
	gridTableRe  = regexp.MustCompile(`^\+-[-+]+-\+$`)
	simpleTable  = regexp.MustCompile(`^=+( +=+)+$`)
	lineBlockRe  = regexp.MustCompile(`^\|( +|$)`)
	optionListRe = regexp.MustCompile(`^(?:--?[A-Za-z0-9][-A-Za-z0-9_]*|/[A-Za-z0-9])(?:[ =][^ ,]+)?(?:, (?:--?|/)[A-Za-z0-9][-A-Za-z0-9_]*(?:[ =][^ ,]+)?)*(  +|$)`)
)

// isAdornment reports whether s is a run of one repeated punctuation character.
func isAdornment(s string) bool {
	if s == "" || indentOf(s) > 0 || !strings.ContainsRune(adornmentChars, rune(s[0])) {
		return false
	}
	return strings.Count(s, s[:1]) == len(s)
}

// isPlainText reports whether s starts no body construct other than a paragraph.
func isPlainText(s string) bool {
	switch {
	case isBlank(s), indentOf(s) > 0:
		return false
	case bulletRe.MatchString(s), enumRe.MatchString(s), fieldRe.MatchString(s),
		explicitRe.MatchString(s), anonymousRe.MatchString(s), doctestRe.MatchString(s),
		gridTableRe.MatchString(s), simpleTable.MatchString(s), isAdornment(s):
		return false
	}
	return true
}

func (b *bodyParser) run() {
	for b.i < len(b.lines) {
		line := b.lines[b.i]
		if isBlank(line) {
			b.i++
			continue
		}
		if indentOf(line) > 0 {
			b.blockQuote()
			continue
		}
		switch {
		case bulletRe.MatchString(line):
			b.bulletList()
		case enumRe.MatchString(line):
			b.enumeratedList()
		case fieldRe.MatchString(line):
			b.fieldList()
		case optionListRe.MatchString(line):
			b.optionList()
		case doctestRe.MatchString(line):
			b.doctest()
		case lineBlockRe.MatchString(line):
			b.lineBlock()
		case gridTableRe.MatchString(line):
			b.gridTable()
		case simpleTable.MatchString(line):
			b.simpleTable()
		case explicitRe.MatchString(line):
			b.explicit()
		case anonymousRe.MatchString(line):
			b.anonymousTarget()
		case isAdornment(line):
			b.line()
		default:
			b.text()
		}
	}
}

// text handles a line of ordinary text, looking at the next line to tell
// a section title or a definition list from a paragraph.
func (b *bodyParser) text() {
	if b.i+1 < len(b.lines) {
		next := b.lines[b.i+1]
		if isAdornment(next) {
			if b.underlineTitle() {
				return
			}
		} else if !isBlank(next) && indentOf(next) > 0 {
			b.definitionList()
			return
		}
	}
	b.paragraph()
}

func (b *bodyParser) paragraph() {
	start := b.i
	j := start + 1
	for j < len(b.lines) && !isBlank(b.lines[j]) && indentOf(b.lines[j]) == 0 {
		j++
	}
	b.i = j

	var indentMsg *document.Node
	if j < len(b.lines) && !isBlank(b.lines[j]) {
		indentMsg = b.error(b.lineNo(j), "Unexpected indentation.")
	}

	text := strings.Join(b.lines[start:j], "\n")
	literalNext := false
	if strings.HasSuffix(text, "::") {
		literalNext = true
		switch {
		case strings.TrimSpace(text) == "::":
			text = ""
		case len(text) >= 3 && (text[len(text)-3] == ' ' || text[len(text)-3] == '\n'):
			text = strings.TrimRight(text[:len(text)-2], " \n")
		default:
			text = text[:len(text)-1]
		}
	}

	if text != "" {
		p := document.NewElement(document.KindParagraph)
		p.Line = b.lineNo(start)
		p.Source = b.source
		nodes, msgs := b.InlineParse(text, b.lineNo(start))
		p.Append(nodes...)
		b.add(p)
		b.add(msgs...)
	}
	if indentMsg != nil {
		b.add(indentMsg)
	}
	if literalNext {
		b.literalBlock()
	}
}

// literalBlock reads the block following a paragraph that ends with "::".
func (b *bodyParser) literalBlock() {
	j := b.i
	for j < len(b.lines) && isBlank(b.lines[j]) {
		j++
	}
	if j < len(b.lines) && indentOf(b.lines[j]) > 0 {
		blk := indentedBlock(b.lines, j)
		lb := document.NewTextElement(document.KindLiteralBlock, strings.Join(blk.lines, "\n"))
		lb.Line = b.lineNo(j)
		b.add(lb)
		b.i = blk.end
		if !blk.blankFinish {
			b.add(b.unindentWarning("Literal block", blk.end))
		}
		return
	}
	if j < len(b.lines) && j > b.i && strings.ContainsRune(adornmentChars, rune(b.lines[j][0])) {
		b.quotedLiteralBlock(j)
		return
	}

	line := b.i
	if line >= len(b.lines) {
		line = len(b.lines) - 1
	}
	b.add(b.warning(b.lineNo(line), "Literal block expected; none found."))
}

// quotedLiteralBlock reads unindented lines that all start with the same
// punctuation character.
func (b *bodyParser) quotedLiteralBlock(start int) {
	quote := b.lines[start][0]
	j := start
	for j < len(b.lines) && !isBlank(b.lines[j]) {
		if b.lines[j][0] != quote {
			b.add(b.error(b.lineNo(j), "Inconsistent literal block quoting."))
			break
		}
		j++
	}
	lb := document.NewTextElement(document.KindLiteralBlock, strings.Join(b.lines[start:j], "\n"))
	lb.Line = b.lineNo(start)
	b.add(lb)
	b.i = j
	for b.i < len(b.lines) && !isBlank(b.lines[b.i]) {
		b.i++
	}
}

func (b *bodyParser) underlineTitle() bool {
	title := b.lines[b.i]
	underline := b.lines[b.i+1]
	lineno := b.lineNo(b.i + 1)
	source := title + "\n" + underline

	tooShort := false
	if textWidth(title) > len(underline) {
		if len(underline) < minUnderline {
			if b.matchTitles {
				b.add(b.info(lineno, "Possible title underline, too short for the title.\n"+
					"Treating it as ordinary text because it's so short."))
			}
			return false
		}
		tooShort = true
	}
	report := func() []*document.Node {
		if !tooShort {
			return nil
		}
		return []*document.Node{b.warning(lineno, "Title underline too short.", document.WithLiteral(source))}
	}
	if !b.matchTitles {
		b.add(report()...)
		b.add(b.severe(lineno, "Unexpected section title.", document.WithLiteral(source)))
		b.i += 2
		return true
	}

	b.i += 2
	b.section(title, source, titleStyle{under: underline[0]}, lineno-1, report)
	return true
}

// line handles an adornment line at the start of a construct: an overline,
// a transition or short text.
func (b *bodyParser) line() {
	marker := b.lines[b.i]
	lineno := b.lineNo(b.i)

	if !b.matchTitles {
		switch {
		case marker == "::":
			b.paragraph()
		case len(marker) < 4:
			b.add(b.info(lineno, "Unexpected possible title overline or transition.\n"+
				"Treating it as ordinary text because it's so short."))
			b.paragraph()
		default:
			b.add(b.severe(lineno, "Unexpected section title or transition.", document.WithLiteral(marker)))
			b.i++
		}
		return
	}

	if b.i+1 >= len(b.lines) || isBlank(b.lines[b.i+1]) {
		if len(marker) < 4 {
			b.paragraph()
			return
		}
		t := document.NewElement(document.KindTransition)
		t.Line = lineno
		t.Source = b.source
		b.add(t)
		b.i++
		return
	}

	next := b.lines[b.i+1]
	if isAdornment(next) {
		if len(marker) < 4 {
			b.shortOverline(lineno)
			return
		}
		b.add(b.error(lineno, "Invalid section title or transition marker.",
			document.WithLiteral(marker+"\n"+next)))
		b.i += 2
		return
	}
	b.overlineTitle()
}

func (b *bodyParser) shortOverline(lineno int) {
	b.add(b.info(lineno, "Possible incomplete section title.\n"+
		"Treating the overline as ordinary text because it's so short."))
	b.paragraph()
}

func (b *bodyParser) overlineTitle() {
	overline := b.lines[b.i]
	title := b.lines[b.i+1]
	lineno := b.lineNo(b.i)

	if b.i+2 >= len(b.lines) {
		if len(overline) < 4 {
			b.shortOverline(lineno)
			return
		}
		b.add(b.severe(lineno, "Incomplete section title.", document.WithLiteral(overline+"\n"+title)))
		b.i += 2
		return
	}

	underline := b.lines[b.i+2]
	source := overline + "\n" + title + "\n" + underline
	switch {
	case !isAdornment(underline):
		if len(overline) < 4 {
			b.shortOverline(lineno)
			return
		}
		b.add(b.severe(lineno, "Missing matching underline for section title overline.", document.WithLiteral(source)))
		b.i += 3
		return
	case overline != underline:
		if len(overline) < 4 {
			b.shortOverline(lineno)
			return
		}
		b.add(b.severe(lineno, "Title overline & underline mismatch.", document.WithLiteral(source)))
		b.i += 3
		return
	}

	tooShort := textWidth(title) > len(overline)
	if tooShort && len(overline) < 4 {
		b.shortOverline(lineno)
		return
	}
	report := func() []*document.Node {
		if !tooShort {
			return nil
		}
		return []*document.Node{b.warning(lineno, "Title overline too short.", document.WithLiteral(source))}
	}
	b.i += 3
	b.section(strings.TrimSpace(title), source, titleStyle{under: underline[0], over: overline[0]}, lineno+1, report)
}

// section opens a section for a title. report raises the title's own
// messages; a title closing open sections is evaluated once more for every
// section it closes, so its messages repeat.
func (b *bodyParser) section(title, source string, style titleStyle, lineno int, report func() []*document.Node) {
	current := len(b.st.sections) - 1
	msgs := report()
	level, ok := b.st.checkSubsection(style)
	for n := level; ok && n <= current; n++ {
		msgs = report()
	}
	if !ok {
		b.add(msgs...)
		b.add(b.severe(lineno, "Title level inconsistent:", document.WithLiteral(source)))
		return
	}

	b.st.sections = b.st.sections[:level]
	parent := b.st.sections[level-1]

	sec := document.NewElement(document.KindSection)
	sec.Line = lineno
	sec.Source = b.source
	titleNode := document.NewElement(document.KindTitle)
	titleNode.Line = lineno
	nodes, inlineMsgs := b.InlineParse(title, lineno)
	titleNode.Append(nodes...)
	sec.Names = []string{document.NormalizeName(titleNode.AsText())}

	parent.Append(sec)
	b.st.sections = append(b.st.sections, sec)
	sec.Append(titleNode)
	sec.Append(msgs...)
	sec.Append(inlineMsgs...)
	sec.Append(b.st.doc.NoteImplicitTarget(sec)...)
}

func (b *bodyParser) blockQuote() {
	start := b.i
	blk := indentedBlock(b.lines, start)
	bq := document.NewElement(document.KindBlockQuote)
	bq.Line = b.lineNo(start)
	b.add(bq)
	b.st.parse(blk.lines, b.offset+start, bq, false, b.source)
	b.i = blk.end
	if !blk.blankFinish {
		b.add(b.unindentWarning("Block quote", blk.end))
	}
}

// listItem parses one item whose marker takes indent columns.
func (b *bodyParser) listItem(indent int) (*document.Node, block) {
	start := b.i
	var blk block
	if strings.TrimSpace(cut(b.lines[start], indent)) != "" {
		blk = knownIndented(b.lines, start, indent)
	} else {
		blk = firstKnownIndented(b.lines, start, indent)
	}
	item := document.NewElement(document.KindListItem)
	item.Line = b.lineNo(start)
	b.st.parse(blk.lines, b.offset+start, item, false, b.source)
	b.i = blk.end
	return item, blk
}

func (b *bodyParser) bulletList() {
	list := document.NewElement(document.KindBulletList)
	list.Line = b.lineNo(b.i)
	bullet := firstRune(b.lines[b.i])
	b.add(list)

	var last block
	for b.i < len(b.lines) {
		m := bulletRe.FindString(b.lines[b.i])
		if m == "" || firstRune(m) != bullet {
			break
		}
		var item *document.Node
		item, last = b.listItem(columns(m))
		list.Append(item)
	}
	if !last.blankFinish {
		b.add(b.unindentWarning("Bullet list", last.end))
	}
}

type enumerator struct {
	ordinal int
	auto    bool
	format  string
	text    string
	width   int
}

func parseEnumerator(line string) (enumerator, bool) {
	m := enumRe.FindStringSubmatch(line)
	if m == nil {
		return enumerator{}, false
	}
	e := enumerator{width: columns(m[0])}
	seq := m[2]
	switch {
	case m[1] != "":
		seq = m[1]
		e.format = "parens"
		e.text = "(" + m[1] + ")"
	case m[3] == ".":
		e.format = "period"
		e.text = m[2] + "."
	default:
		e.format = "rparen"
		e.text = m[2] + ")"
	}
	if seq == "#" {
		e.auto = true
		return e, true
	}
	n, err := strconv.Atoi(seq)
	if err != nil {
		return enumerator{}, false
	}
	e.ordinal = n
	return e, true
}

// isEnumeratedItem checks that an enumerator is really a list item: the
// next line must be blank, indented or another enumerator.
func (b *bodyParser) isEnumeratedItem(i int) bool {
	if i+1 >= len(b.lines) {
		return true
	}
	next := b.lines[i+1]
	if isBlank(next) || indentOf(next) > 0 {
		return true
	}
	_, ok := parseEnumerator(next)
	return ok
}

func (b *bodyParser) enumeratedList() {
	first, _ := parseEnumerator(b.lines[b.i])
	if !b.isEnumeratedItem(b.i) {
		b.paragraph()
		return
	}

	list := document.NewElement(document.KindEnumeratedList)
	list.Line = b.lineNo(b.i)
	list.SetAttr("enumtype", "arabic")
	b.add(list)
	if !first.auto && first.ordinal != 1 {
		list.SetAttr("start", strconv.Itoa(first.ordinal))
		b.add(b.info(b.lineNo(b.i), fmt.Sprintf(
			"Enumerated list start value not ordinal-1: \"%s\" (ordinal %d)", first.text, first.ordinal)))
	}

	expected := first.ordinal
	var last block
	for b.i < len(b.lines) {
		e, ok := parseEnumerator(b.lines[b.i])
		if !ok || e.format != first.format || e.auto != first.auto || (!e.auto && e.ordinal != expected) {
			break
		}
		if !b.isEnumeratedItem(b.i) {
			break
		}
		var item *document.Node
		item, last = b.listItem(e.width)
		list.Append(item)
		expected++
	}
	if !last.blankFinish {
		b.add(b.unindentWarning("Enumerated list", last.end))
	}
}

func (b *bodyParser) fieldList() {
	list := document.NewElement(document.KindFieldList)
	list.Line = b.lineNo(b.i)
	b.add(list)

	var last block
	for b.i < len(b.lines) {
		m := fieldRe.FindStringSubmatch(b.lines[b.i])
		if m == nil {
			break
		}
		start := b.i
		blk := firstKnownIndented(b.lines, start, columns(m[0]))

		field := document.NewElement(document.KindField)
		field.Line = b.lineNo(start)
		name := document.NewElement(document.KindFieldName)
		nodes, msgs := b.InlineParse(m[1], b.lineNo(start))
		name.Append(nodes...)
		body := document.NewElement(document.KindFieldBody)
		field.Append(name, body)
		list.Append(field)
		body.Append(msgs...)
		b.st.parse(blk.lines, b.offset+start, body, false, b.source)

		b.i = blk.end
		last = blk
	}
	if !last.blankFinish {
		b.add(b.unindentWarning("Field list", last.end))
	}
}

func (b *bodyParser) optionList() {
	list := document.NewElement(document.KindDefinitionList)
	list.Line = b.lineNo(b.i)
	list.SetAttr("option_list", "true")
	b.add(list)

	var last block
	for b.i < len(b.lines) {
		m := optionListRe.FindString(b.lines[b.i])
		if m == "" {
			break
		}
		start := b.i
		blk := firstKnownIndented(b.lines, start, columns(m))
		item := document.NewElement(document.KindDefinitionListItem)
		item.Line = b.lineNo(start)
		item.Append(document.NewTextElement(document.KindTerm, strings.TrimSpace(m)))
		def := document.NewElement(document.KindDefinition)
		item.Append(def)
		list.Append(item)
		b.st.parse(blk.lines, b.offset+start, def, false, b.source)

		b.i = blk.end
		last = blk
	}
	if !last.blankFinish {
		b.add(b.unindentWarning("Option list", last.end))
	}
}

func (b *bodyParser) definitionList() {
	list := document.NewElement(document.KindDefinitionList)
	list.Line = b.lineNo(b.i)
	b.add(list)

	for {
		termLine := b.i
		term := b.lines[termLine]
		blk := indentedBlock(b.lines, termLine+1)

		item := document.NewElement(document.KindDefinitionListItem)
		item.Line = b.lineNo(termLine)
		termNode := document.NewElement(document.KindTerm)
		termText := term
		if k := strings.Index(term, " : "); k > 0 {
			termText = term[:k]
			item.SetAttr("classifier", strings.TrimSpace(term[k+3:]))
		}
		nodes, msgs := b.InlineParse(termText, b.lineNo(termLine))
		termNode.Append(nodes...)
		item.Append(termNode)
		item.Append(msgs...)
		if strings.HasSuffix(term, "::") {
			item.Append(b.info(b.lineNo(termLine+1), "Blank line missing before literal block "+
				"(after the \"::\")? Interpreted as a definition list item."))
		}
		def := document.NewElement(document.KindDefinition)
		item.Append(def)
		list.Append(item)
		b.st.parse(blk.lines, b.offset+termLine+1, def, false, b.source)

		b.i = blk.end
		if b.i+1 < len(b.lines) && isPlainText(b.lines[b.i]) &&
			!isBlank(b.lines[b.i+1]) && indentOf(b.lines[b.i+1]) > 0 {
			continue
		}
		if !blk.blankFinish {
			b.add(b.unindentWarning("Definition list", blk.end))
		}
		return
	}
}

func (b *bodyParser) doctest() {
	start := b.i
	for b.i < len(b.lines) && !isBlank(b.lines[b.i]) {
		b.i++
	}
	n := document.NewTextElement(document.KindDoctestBlock, strings.Join(b.lines[start:b.i], "\n"))
	n.Line = b.lineNo(start)
	b.add(n)
}

// lineBlock reads "| " prefixed lines; continuation lines are indented.
func (b *bodyParser) lineBlock() {
	start := b.i
	b.i++
	for b.i < len(b.lines) && !isBlank(b.lines[b.i]) &&
		(lineBlockRe.MatchString(b.lines[b.i]) || indentOf(b.lines[b.i]) > 0) {
		b.i++
	}
	n := document.NewElement(document.KindContainer)
	n.SetAttr("classes", "line-block")
	n.Line = b.lineNo(start)
	for k := start; k < b.i; k++ {
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(b.lines[k]), "|"))
		nodes, msgs := b.InlineParse(text, b.lineNo(k))
		n.Append(nodes...)
		n.Append(msgs...)
	}
	b.add(n)
	if b.i < len(b.lines) && !isBlank(b.lines[b.i]) {
		b.add(b.unindentWarning("Line block", b.i))
	}
}

func (b *bodyParser) gridTable() {
	start := b.i
	for b.i < len(b.lines) && !isBlank(b.lines[b.i]) &&
		(b.lines[b.i][0] == '+' || b.lines[b.i][0] == '|') {
		b.i++
	}
	text := strings.Join(b.lines[start:b.i], "\n")
	last := b.lines[b.i-1]
	if b.i < len(b.lines) && !isBlank(b.lines[b.i]) || !gridTableRe.MatchString(strings.ReplaceAll(last, "=", "-")) {
		b.add(b.error(b.lineNo(start), "Malformed table.", document.WithLiteral(text)))
		for b.i < len(b.lines) && !isBlank(b.lines[b.i]) {
			b.i++
		}
		return
	}
	t := document.NewTextElement(document.KindTable, text)
	t.Line = b.lineNo(start)
	b.add(t)
}

func (b *bodyParser) simpleTable() {
	start := b.i
	borders := 0
	for b.i < len(b.lines) {
		l := b.lines[b.i]
		if isBlank(l) {
			if borders >= 2 || b.i+1 >= len(b.lines) {
				break
			}
		} else if simpleTable.MatchString(l) || isAdornment(l) {
			borders++
		}
		b.i++
	}
	t := document.NewTextElement(document.KindTable, strings.Join(b.lines[start:b.i], "\n"))
	t.Line = b.lineNo(start)
	b.add(t)
}
