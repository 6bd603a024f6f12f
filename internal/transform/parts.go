package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/electwix/rst-lint/internal/document"
)

// preBibliographic reports whether n may precede a document title.
func preBibliographic(n *document.Node) bool {
	switch n.Kind {
	case document.KindComment, document.KindSystemMessage, document.KindPending,
		document.KindSubstitutionDefinition, document.KindTarget, document.KindMeta:
		return true
	default:
		return false
	}
}

// loneSection returns the only section of parent when it is the last child
// and nothing but pre-bibliographic elements precede it.
func loneSection(parent *document.Node, from int) *document.Node {
	for i := from; i < len(parent.Children); i++ {
		c := parent.Children[i]
		if preBibliographic(c) {
			continue
		}
		if c.Kind != document.KindSection || i != len(parent.Children)-1 {
			return nil
		}
		return c
	}
	return nil
}

type docTitle struct {
	doc    *document.Document
	target *document.Node
}

func newDocTitle(doc *document.Document, target *document.Node) Transform {
	return &docTitle{doc: doc, target: target}
}

// Apply promotes a lone top-level section to the document title and a lone
// subsection after it to the subtitle.
func (t *docTitle) Apply(map[string]any) error {
	root := t.target
	if _, ok := root.Attr("title"); ok || !t.promote(root, 0, document.KindTitle) {
		return nil
	}
	t.promote(root, 1, document.KindSubtitle)
	return nil
}

func (t *docTitle) promote(root *document.Node, at int, kind document.Kind) bool {
	sec := loneSection(root, at)
	if sec == nil || len(sec.Children) == 0 || sec.Children[0].Kind != document.KindTitle {
		return false
	}
	children := append([]*document.Node(nil), sec.Children...)
	sec.Remove()
	title := children[0]
	title.Kind = kind
	root.Insert(at, title)
	root.Append(children[1:]...)
	if kind == document.KindTitle {
		root.Names = append(root.Names, sec.Names...)
		root.SetAttr("title", title.AsText())
	}
	return true
}

type contents struct {
	doc     *document.Document
	pending *document.Node
}

func newContents(doc *document.Document, target *document.Node) Transform {
	return &contents{doc: doc, pending: target}
}

// Apply replaces the pending node of a contents topic by a nested list of
// links to the sections in scope. An empty topic is removed.
func (t *contents) Apply(options map[string]any) error {
	topic := t.pending.Parent()
	if topic == nil {
		return nil
	}
	scope := t.doc.Root
	if _, local := options["local"]; local {
		for p := topic.Parent(); p != nil; p = p.Parent() {
			if p.Kind == document.KindSection {
				scope = p
				break
			}
		}
	}
	depth, err := intOption(options, "depth", 1<<30)
	if err != nil {
		return err
	}

	list := buildContents(scope, depth)
	if list == nil {
		topic.Remove()
		return nil
	}
	t.pending.ReplaceWith(list)
	return nil
}

func buildContents(scope *document.Node, depth int) *document.Node {
	if depth <= 0 {
		return nil
	}
	var items []*document.Node
	for _, c := range scope.Children {
		if c.Kind != document.KindSection || len(c.Children) == 0 {
			continue
		}
		ref := document.NewTextElement(document.KindReference, c.Children[0].AsText())
		if len(c.Names) > 0 {
			ref.SetAttr("refid", makeID(c.Names[0]))
			c.Referenced = true
		}
		item := document.NewElement(document.KindListItem, document.NewElement(document.KindParagraph, ref))
		if sub := buildContents(c, depth-1); sub != nil {
			item.Append(sub)
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	return document.NewElement(document.KindBulletList, items...)
}

func intOption(options map[string]any, key string, def int) (int, error) {
	v, ok := options[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("option %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %s: unexpected type %T", key, v)
	}
}

func stringOption(options map[string]any, key string) string {
	if v, ok := options[key].(string); ok {
		return v
	}
	return ""
}

type sectNum struct {
	doc     *document.Document
	pending *document.Node
}

func newSectNum(doc *document.Document, target *document.Node) Transform {
	return &sectNum{doc: doc, pending: target}
}

// Apply prefixes section titles with their numbers and removes the pending
// node.
func (t *sectNum) Apply(options map[string]any) error {
	depth, err := intOption(options, "depth", 1<<30)
	if err != nil {
		return err
	}
	start, err := intOption(options, "start", 1)
	if err != nil {
		return err
	}
	prefix := stringOption(options, "prefix")
	suffix := stringOption(options, "suffix")

	t.pending.Remove()
	number(t.doc.Root, nil, depth, start, prefix, suffix)
	return nil
}

func number(node *document.Node, numbers []string, depth, start int, prefix, suffix string) {
	if depth <= 0 {
		return
	}
	n := start
	for _, c := range node.Children {
		if c.Kind != document.KindSection || len(c.Children) == 0 {
			continue
		}
		nums := append(append([]string(nil), numbers...), strconv.Itoa(n))
		label := prefix + strings.Join(nums, ".") + suffix
		gen := document.NewTextElement(document.KindGeneratedText, label+"\u00a0\u00a0\u00a0")
		c.Children[0].Insert(0, gen)
		number(c, nums, depth-1, 1, prefix, suffix)
		n++
	}
}
