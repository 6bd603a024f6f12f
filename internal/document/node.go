// Package document holds the reStructuredText document tree, the reporter
// that raises system messages while a document is built, and the tables of
// names, substitutions and transform requests attached to a document.
package document

import (
	"maps"
	"strings"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// Kind identifies the type of a Node.
type Kind int

// Node kinds. Structural kinds join their children's text with a blank
// line; textual kinds concatenate it.
const (
	KindDocument Kind = iota
	KindSection
	KindTitle
	KindSubtitle
	KindParagraph
	KindText
	KindLiteralBlock
	KindDoctestBlock
	KindBlockQuote
	KindBulletList
	KindEnumeratedList
	KindListItem
	KindDefinitionList
	KindDefinitionListItem
	KindTerm
	KindDefinition
	KindFieldList
	KindField
	KindFieldName
	KindFieldBody
	KindTransition
	KindTarget
	KindReference
	KindEmphasis
	KindStrong
	KindLiteral
	KindInline
	KindTitleReference
	KindSubscript
	KindSuperscript
	KindAbbreviation
	KindAcronym
	KindMath
	KindMathBlock
	KindSubstitutionDefinition
	KindSubstitutionReference
	KindComment
	KindSystemMessage
	KindProblematic
	KindPending
	KindAdmonition
	KindTopic
	KindSidebar
	KindRubric
	KindContainer
	KindCompound
	KindImage
	KindFigure
	KindCaption
	KindRaw
	KindTable
	KindRow
	KindEntry
	KindHeader
	KindFooter
	KindMeta
	KindGeneratedText
)

var kindNames = map[Kind]string{
	KindDocument:               "document",
	KindSection:                "section",
	KindTitle:                  "title",
	KindSubtitle:               "subtitle",
	KindParagraph:              "paragraph",
	KindText:                   "#text",
	KindLiteralBlock:           "literal_block",
	KindDoctestBlock:           "doctest_block",
	KindBlockQuote:             "block_quote",
	KindBulletList:             "bullet_list",
	KindEnumeratedList:         "enumerated_list",
	KindListItem:               "list_item",
	KindDefinitionList:         "definition_list",
	KindDefinitionListItem:     "definition_list_item",
	KindTerm:                   "term",
	KindDefinition:             "definition",
	KindFieldList:              "field_list",
	KindField:                  "field",
	KindFieldName:              "field_name",
	KindFieldBody:              "field_body",
	KindTransition:             "transition",
	KindTarget:                 "target",
	KindReference:              "reference",
	KindEmphasis:               "emphasis",
	KindStrong:                 "strong",
	KindLiteral:                "literal",
	KindInline:                 "inline",
	KindTitleReference:         "title_reference",
	KindSubscript:              "subscript",
	KindSuperscript:            "superscript",
	KindAbbreviation:           "abbreviation",
	KindAcronym:                "acronym",
	KindMath:                   "math",
	KindMathBlock:              "math_block",
	KindSubstitutionDefinition: "substitution_definition",
	KindSubstitutionReference:  "substitution_reference",
	KindComment:                "comment",
	KindSystemMessage:          "system_message",
	KindProblematic:            "problematic",
	KindPending:                "pending",
	KindAdmonition:             "admonition",
	KindTopic:                  "topic",
	KindSidebar:                "sidebar",
	KindRubric:                 "rubric",
	KindContainer:              "container",
	KindCompound:               "compound",
	KindImage:                  "image",
	KindFigure:                 "figure",
	KindCaption:                "caption",
	KindRaw:                    "raw",
	KindTable:                  "table",
	KindRow:                    "row",
	KindEntry:                  "entry",
	KindHeader:                 "header",
	KindFooter:                 "footer",
	KindMeta:                   "meta",
	KindGeneratedText:          "generated",
}

// String returns the element name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// textual reports whether children of k are concatenated without separator.
func (k Kind) textual() bool {
	switch k {
	case KindTitle, KindSubtitle, KindParagraph, KindLiteralBlock, KindDoctestBlock,
		KindTerm, KindFieldName, KindReference, KindEmphasis, KindStrong, KindLiteral,
		KindInline, KindTitleReference, KindSubscript, KindSuperscript, KindAbbreviation,
		KindAcronym, KindMath, KindMathBlock, KindSubstitutionReference, KindComment,
		KindProblematic, KindRubric, KindCaption, KindRaw, KindTarget, KindGeneratedText,
		KindSubstitutionDefinition:
		return true
	default:
		return false
	}
}

// Node is an element or a text leaf of the document tree.
type Node struct {
	Kind Kind
	// Value holds the text of a KindText leaf.
	Value string

	Source string
	Line   int

	Names      []string
	Refname    string
	Refuri     string
	Anonymous  bool
	Referenced bool

	// Level and Type are set on system messages.
	Level diagnostics.Level
	Type  string

	// Attrs holds directive options and other loose attributes.
	Attrs map[string]string

	Children []*Node
	parent   *Node
}

// NewElement creates an element of kind with children.
func NewElement(kind Kind, children ...*Node) *Node {
	n := &Node{Kind: kind}
	n.Append(children...)
	return n
}

// NewText creates a text leaf.
func NewText(s string) *Node {
	return &Node{Kind: KindText, Value: s}
}

// NewTextElement creates an element holding a single text leaf.
func NewTextElement(kind Kind, text string) *Node {
	if text == "" {
		return NewElement(kind)
	}
	return NewElement(kind, NewText(text))
}

// Parent returns the parent element or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Append adds children at the end, detaching them from any previous parent.
func (n *Node) Append(children ...*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		c.detach()
		c.parent = n
		n.Children = append(n.Children, c)
	}
}

// Insert inserts children before position i.
func (n *Node) Insert(i int, children ...*Node) {
	if i < 0 {
		i = 0
	}
	if i > len(n.Children) {
		i = len(n.Children)
	}
	add := make([]*Node, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		c.detach()
		c.parent = n
		add = append(add, c)
	}
	// Detaching may have shifted the index when a child came from n itself.
	if i > len(n.Children) {
		i = len(n.Children)
	}
	n.Children = append(n.Children[:i], append(add, n.Children[i:]...)...)
}

// Index returns the position of n in its parent, or -1.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	n.detach()
}

// ReplaceWith replaces n in its parent by nodes.
func (n *Node) ReplaceWith(nodes ...*Node) {
	p := n.parent
	if p == nil {
		return
	}
	i := n.Index()
	n.detach()
	p.Insert(i, nodes...)
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// AsText returns the plain text of the node and its descendants.
func (n *Node) AsText() string {
	if n.Kind == KindText {
		return n.Value
	}
	sep := "\n\n"
	if n.Kind.textual() {
		sep = ""
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		parts = append(parts, c.AsText())
	}
	return strings.Join(parts, sep)
}

// Walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	// Copy so fn may restructure the children it has not reached yet.
	children := append([]*Node(nil), n.Children...)
	for _, c := range children {
		c.Walk(fn)
	}
}

// FindAll returns every descendant of kind k (including n) in document order.
func (n *Node) FindAll(k Kind) []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Kind == k {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Attr returns an attribute value.
func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// SetAttr sets an attribute value.
func (n *Node) SetAttr(key, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
}

// Position returns the first known source and line walking up the tree.
func (n *Node) Position() (source string, line int) {
	for c := n; c != nil; c = c.parent {
		if source == "" {
			source = c.Source
		}
		if line <= 0 && c.Line > 0 {
			line = c.Line
		}
		if source != "" && line > 0 {
			break
		}
	}
	return source, line
}

// NextSibling returns the node following n in its parent, or nil.
func (n *Node) NextSibling() *Node {
	i := n.Index()
	if i < 0 || i+1 >= len(n.parent.Children) {
		return nil
	}
	return n.parent.Children[i+1]
}

// DeepCopy returns a detached copy of n and its descendants.
func (n *Node) DeepCopy() *Node {
	c := *n
	c.parent = nil
	c.Names = append([]string(nil), n.Names...)
	c.Attrs = maps.Clone(n.Attrs)
	c.Children = nil
	for _, ch := range n.Children {
		cc := ch.DeepCopy()
		cc.parent = &c
		c.Children = append(c.Children, cc)
	}
	return &c
}
