// Package rst parses reStructuredText into a document tree. Problems in the
// markup are raised as system messages on the document's reporter; the
// parser itself only fails on internal errors.
package rst

import (
	"fmt"
	"strings"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/transform"
)

// Parser is the reStructuredText grammar engine.
type Parser struct {
	// Namespace resolves directive and role names.
	Namespace *construct.Namespace
}

// NewParser creates a parser resolving constructs from ns, or from
// construct.Default when ns is nil.
func NewParser(ns *construct.Namespace) *Parser {
	if ns == nil {
		ns = construct.Default
	}
	return &Parser{Namespace: ns}
}

// Transforms implements transform.Component. Transforms the parser needs
// are requested per document through pending nodes.
func (p *Parser) Transforms() []transform.Descriptor {
	return nil
}

var _ transform.Component = (*Parser)(nil)

// parseFailure carries an internal error out of the recursive descent.
type parseFailure struct {
	err error
}

// Parse parses text into doc. Markup problems become system messages; an
// error is returned only when processing halts or a directive fails
// internally.
func (p *Parser) Parse(text string, doc *document.Document) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch v := r.(type) {
		case *document.HaltError:
			err = v
		case parseFailure:
			err = v.err
		default:
			panic(r)
		}
	}()

	st := &state{
		doc:        doc,
		ns:         p.Namespace,
		localRoles: make(map[string]construct.Role),
		sections:   []*document.Node{doc.Root},
	}
	lines := splitLines(text, doc.Settings.TabWidth)
	st.parse(lines, 0, doc.Root, true, doc.Source)
	return nil
}

type titleStyle struct {
	under byte
	over  byte
}

// state is shared by every body parsed for one document.
type state struct {
	doc         *document.Document
	ns          *construct.Namespace
	localRoles  map[string]construct.Role
	titleStyles []titleStyle

	// sections is the stack of open sections; sections[0] is the root.
	sections []*document.Node
	// includes is the stack of files being included.
	includes []string
}

func (st *state) parse(lines []string, offset int, parent *document.Node, matchTitles bool, source string) {
	b := &bodyParser{
		st:          st,
		lines:       lines,
		offset:      offset,
		parent:      parent,
		matchTitles: matchTitles,
		source:      source,
	}
	b.run()
}

func (st *state) reporter() *document.Reporter {
	return st.doc.Reporter
}

// checkSubsection returns the level of a title in style, registering new
// styles. ok is false when the style breaks the established hierarchy.
func (st *state) checkSubsection(style titleStyle) (level int, ok bool) {
	current := len(st.sections) - 1
	for i, s := range st.titleStyles {
		if s == style {
			level = i + 1
			return level, level <= current+1
		}
	}
	if len(st.titleStyles) == current {
		st.titleStyles = append(st.titleStyles, style)
		return len(st.titleStyles), true
	}
	return 0, false
}

func (st *state) role(name string) (construct.Role, bool) {
	key := strings.ToLower(name)
	if r, ok := st.localRoles[key]; ok {
		return r, true
	}
	return st.ns.Role(key)
}

// bodyParser parses one run of body lines. It implements construct.State
// for the directives and roles it invokes.
type bodyParser struct {
	st          *state
	lines       []string
	offset      int
	parent      *document.Node
	matchTitles bool
	source      string
	i           int
}

var _ construct.State = (*bodyParser)(nil)

func (b *bodyParser) lineNo(i int) int {
	return b.offset + i + 1
}

// container is the element new body nodes are appended to.
func (b *bodyParser) container() *document.Node {
	if b.matchTitles {
		return b.st.sections[len(b.st.sections)-1]
	}
	return b.parent
}

func (b *bodyParser) add(nodes ...*document.Node) {
	b.container().Append(nodes...)
}

func (b *bodyParser) at(line int, opts ...document.MessageOption) []document.MessageOption {
	return append([]document.MessageOption{document.AtLine(line), document.FromSource(b.source)}, opts...)
}

// languageModule is the construct table lookups are reported against.
const languageModule = "docutils.parsers.rst.languages.en"

// lookupInfo is the note raised when a directive or role name is not in
// the namespace, before the name is reported as unknown.
func lookupInfo(kind, name string) string {
	return fmt.Sprintf("No %s entry for \"%s\" in module \"%s\".\nTrying \"%s\" as canonical %s name.",
		kind, name, languageModule, name, kind)
}

func (b *bodyParser) info(line int, msg string, opts ...document.MessageOption) *document.Node {
	return b.st.reporter().Info(msg, b.at(line, opts...)...)
}

func (b *bodyParser) warning(line int, msg string, opts ...document.MessageOption) *document.Node {
	return b.st.reporter().Warning(msg, b.at(line, opts...)...)
}

func (b *bodyParser) error(line int, msg string, opts ...document.MessageOption) *document.Node {
	return b.st.reporter().Error(msg, b.at(line, opts...)...)
}

func (b *bodyParser) severe(line int, msg string, opts ...document.MessageOption) *document.Node {
	return b.st.reporter().Severe(msg, b.at(line, opts...)...)
}

// unindentWarning reports a construct that ends directly on an unindented line.
func (b *bodyParser) unindentWarning(what string, i int) *document.Node {
	return b.warning(b.lineNo(i), fmt.Sprintf("%s ends without a blank line; unexpected unindent.", what))
}

// Document implements construct.State.
func (b *bodyParser) Document() *document.Document {
	return b.st.doc
}

// NestedParse implements construct.State. Section titles are not allowed
// in nested content.
func (b *bodyParser) NestedParse(lines []string, offset int, parent *document.Node) {
	b.st.parse(lines, offset, parent, false, b.source)
}

// InlineParse implements construct.State.
func (b *bodyParser) InlineParse(text string, line int) (nodes, messages []*document.Node) {
	in := &inliner{st: b.st, body: b, line: line, source: b.source}
	return in.parse(text)
}

// DefineRole implements construct.State.
func (b *bodyParser) DefineRole(name string, r construct.Role) {
	b.st.localRoles[strings.ToLower(name)] = r
}

// Role implements construct.State.
func (b *bodyParser) Role(name string) (construct.Role, bool) {
	return b.st.role(name)
}

// includeLines parses lines from another file into the current body, with
// section titles allowed where the including body allows them.
func (b *bodyParser) includeLines(lines []string, source string) {
	b.st.includes = append(b.st.includes, source)
	defer func() { b.st.includes = b.st.includes[:len(b.st.includes)-1] }()
	b.st.parse(lines, 0, b.container(), b.matchTitles, source)
}

// including reports whether path is already being included, or is the
// document itself.
func (b *bodyParser) including(path string) bool {
	if path == b.st.doc.Source {
		return true
	}
	for _, p := range b.st.includes {
		if p == path {
			return true
		}
	}
	return false
}
