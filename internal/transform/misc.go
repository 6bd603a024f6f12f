package transform

import (
	"fmt"

	"github.com/electwix/rst-lint/internal/document"
)

type transitions struct {
	doc    *document.Document
	target *document.Node
}

func newTransitions(doc *document.Document, target *document.Node) Transform {
	return &transitions{doc: doc, target: target}
}

// Apply checks transition placement and moves a transition ending a
// section behind that section.
func (t *transitions) Apply(map[string]any) error {
	for _, n := range t.target.FindAll(document.KindTransition) {
		t.visit(n)
	}
	return nil
}

func (t *transitions) visit(n *document.Node) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	index := n.Index()
	siblings := parent.Children

	var msg *document.Node
	switch {
	case index == 0,
		siblings[0].Kind == document.KindTitle &&
			(index == 1 || (index == 2 && siblings[1].Kind == document.KindSubtitle)):
		msg = t.doc.Reporter.Error("Document or section may not begin with a transition.",
			document.FromSource(n.Source), document.AtLine(n.Line))
	case siblings[index-1].Kind == document.KindTransition:
		msg = t.doc.Reporter.Error("At least one body element must separate transitions; "+
			"adjacent transitions are not allowed.", document.FromSource(n.Source), document.AtLine(n.Line))
	}
	if msg != nil {
		parent.Insert(index, msg)
		index++
	}
	if index != len(parent.Children)-1 {
		return
	}

	sibling := n
	for index == len(sibling.Parent().Children)-1 {
		sibling = sibling.Parent()
		if sibling.Parent() == nil {
			end := t.doc.Reporter.Error("Document may not end with a transition.", document.AtLine(n.Line))
			parent.Insert(n.Index()+1, end)
			return
		}
		index = sibling.Index()
	}
	n.Remove()
	sibling.Parent().Insert(index+1, n)
}

type filterMessages struct {
	doc    *document.Document
	target *document.Node
}

func newFilterMessages(doc *document.Document, target *document.Node) Transform {
	return &filterMessages{doc: doc, target: target}
}

// Apply drops system messages below the report level from the tree. The
// messages were already delivered to observers when raised.
func (t *filterMessages) Apply(map[string]any) error {
	for _, m := range t.target.FindAll(document.KindSystemMessage) {
		if m.Level < t.doc.Settings.ReportLevel {
			m.Remove()
		}
	}
	return nil
}

type classAttribute struct {
	doc     *document.Document
	pending *document.Node
}

func newClassAttribute(doc *document.Document, target *document.Node) Transform {
	return &classAttribute{doc: doc, pending: target}
}

// Apply moves the classes of a "class" directive onto the next visible
// element, climbing out of containers that end with the directive.
func (t *classAttribute) Apply(options map[string]any) error {
	classes := stringOption(options, "class")
	child := t.pending
	for parent := child.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		for _, el := range parent.Children[child.Index()+1:] {
			if preBibliographic(el) {
				continue
			}
			if old, ok := el.Attr("classes"); ok && old != "" {
				classes = old + " " + classes
			}
			el.SetAttr("classes", classes)
			t.pending.Remove()
			return nil
		}
	}

	msg := t.doc.Reporter.Error(
		fmt.Sprintf("No suitable element following \"%s\" directive", stringOption(options, "directive")),
		document.AtLine(t.pending.Line), document.FromSource(t.pending.Source),
		document.WithLiteral(stringOption(options, "rawsource")))
	t.pending.ReplaceWith(msg)
	return nil
}
