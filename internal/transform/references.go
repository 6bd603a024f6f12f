package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/electwix/rst-lint/internal/document"
)

// problematic replaces n by a problematic node holding its text.
func problematic(n *document.Node) {
	prb := document.NewTextElement(document.KindProblematic, n.AsText())
	prb.Line = n.Line
	prb.Source = n.Source
	n.ReplaceWith(prb)
}

// references returns every reference outside substitution definitions.
func references(root *document.Node) []*document.Node {
	var out []*document.Node
	root.Walk(func(n *document.Node) bool {
		if n.Kind == document.KindSubstitutionDefinition {
			return false
		}
		if n.Kind == document.KindReference {
			out = append(out, n)
		}
		return true
	})
	return out
}

type substitutions struct {
	doc    *document.Document
	target *document.Node
}

func newSubstitutions(doc *document.Document, target *document.Node) Transform {
	return &substitutions{doc: doc, target: target}
}

// Apply replaces substitution references by copies of their definitions.
func (t *substitutions) Apply(map[string]any) error {
	var refs []*document.Node
	t.target.Walk(func(n *document.Node) bool {
		if n.Kind == document.KindSubstitutionDefinition {
			return false
		}
		if n.Kind == document.KindSubstitutionReference {
			refs = append(refs, n)
		}
		return true
	})
	for _, ref := range refs {
		t.expand(ref, nil)
	}
	return nil
}

func (t *substitutions) expand(ref *document.Node, chain []string) {
	name := ref.Refname
	def, ok := t.doc.SubstitutionDef(name)
	if !ok {
		t.doc.Reporter.Error(fmt.Sprintf("Undefined substitution referenced: \"%s\".", name), document.WithBase(ref))
		problematic(ref)
		return
	}
	for _, c := range chain {
		if c == name {
			t.doc.Reporter.Error(fmt.Sprintf("Circular substitution definition referenced: \"%s\".", name),
				document.WithBase(ref))
			problematic(ref)
			return
		}
	}

	copies := make([]*document.Node, 0, len(def.Children))
	for _, c := range def.Children {
		copies = append(copies, c.DeepCopy())
	}
	line := ref.Line
	ref.ReplaceWith(copies...)
	for _, c := range copies {
		for _, nested := range c.FindAll(document.KindSubstitutionReference) {
			if nested.Line == 0 {
				nested.Line = line
			}
			t.expand(nested, append(chain, name))
		}
	}
}

type anonymousHyperlinks struct {
	doc    *document.Document
	target *document.Node
}

func newAnonymousHyperlinks(doc *document.Document, target *document.Node) Transform {
	return &anonymousHyperlinks{doc: doc, target: target}
}

// Apply pairs anonymous references with anonymous targets in order.
func (t *anonymousHyperlinks) Apply(map[string]any) error {
	var refs, targets []*document.Node
	for _, r := range references(t.target) {
		if r.Anonymous {
			refs = append(refs, r)
		}
	}
	for _, tg := range t.target.FindAll(document.KindTarget) {
		if tg.Anonymous {
			targets = append(targets, tg)
		}
	}

	if len(refs) != len(targets) {
		t.doc.Reporter.Error(fmt.Sprintf("Anonymous hyperlink mismatch: %d references but %d targets.\n"+
			"See \"backrefs\" attribute for IDs.", len(refs), len(targets)))
		for _, r := range refs {
			problematic(r)
		}
		return nil
	}
	for i, r := range refs {
		tg := targets[i]
		tg.Referenced = true
		r.Anonymous = false
		switch {
		case tg.Refuri != "":
			r.Refuri = tg.Refuri
		case tg.Refname != "":
			r.Refname = tg.Refname
		default:
			r.SetAttr("refid", "anonymous")
		}
	}
	return nil
}

var idRe = regexp.MustCompile(`[^a-z0-9]+`)

// makeID derives an element id from a name.
func makeID(name string) string {
	return strings.Trim(idRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

type indirectHyperlinks struct {
	doc    *document.Document
	target *document.Node
	ids    int
}

func newIndirectHyperlinks(doc *document.Document, target *document.Node) Transform {
	return &indirectHyperlinks{doc: doc, target: target}
}

// Apply resolves targets pointing at other targets by name.
func (t *indirectHyperlinks) Apply(map[string]any) error {
	resolved := make(map[*document.Node]bool)
	for _, tg := range t.target.FindAll(document.KindTarget) {
		if tg.Refname != "" && tg.Refuri == "" {
			t.resolve(tg, resolved, nil)
		}
	}
	return nil
}

func (t *indirectHyperlinks) resolve(tg *document.Node, resolved map[*document.Node]bool, visiting []*document.Node) {
	if resolved[tg] {
		return
	}
	for _, v := range visiting {
		if v == tg {
			t.fail(tg, "forming a circular reference")
			resolved[tg] = true
			return
		}
	}

	ref, known := t.doc.LookupName(tg.Refname)
	switch {
	case !known:
		t.fail(tg, "which does not exist")
	case ref == nil:
		t.fail(tg, "which is a duplicate, and cannot be used as a unique reference")
	default:
		if ref.Kind == document.KindTarget && ref.Refname != "" && ref.Refuri == "" {
			t.resolve(ref, resolved, append(visiting, tg))
		}
		ref.Referenced = true
		if ref.Refuri != "" {
			tg.Refuri = ref.Refuri
		}
		tg.SetAttr("refid", makeID(tg.Refname))
	}
	resolved[tg] = true
}

func (t *indirectHyperlinks) fail(tg *document.Node, explanation string) {
	naming := ""
	if len(tg.Names) > 0 {
		naming = fmt.Sprintf("\"%s\" ", tg.Names[0])
		naming += fmt.Sprintf("(id=\"%s\")", makeID(tg.Names[0]))
	} else {
		t.ids++
		naming = fmt.Sprintf("(id=\"id%d\")", t.ids)
	}
	t.doc.Reporter.Error(fmt.Sprintf("Indirect hyperlink target %s refers to target \"%s\", %s.",
		naming, tg.Refname, explanation), document.WithBase(tg))

	for _, r := range references(t.doc.Root) {
		for _, name := range tg.Names {
			if r.Refname == name && r.Refuri == "" {
				problematic(r)
			}
		}
	}
	tg.Referenced = true
}

type danglingReferences struct {
	doc    *document.Document
	target *document.Node
}

func newDanglingReferences(doc *document.Document, target *document.Node) Transform {
	return &danglingReferences{doc: doc, target: target}
}

// Apply reports references to unknown or ambiguous names, then targets
// nothing refers to.
func (t *danglingReferences) Apply(map[string]any) error {
	for _, r := range references(t.target) {
		if r.Refname == "" || r.Refuri != "" {
			continue
		}
		node, known := t.doc.LookupName(r.Refname)
		switch {
		case !known:
			t.doc.Reporter.Error(fmt.Sprintf("Unknown target name: \"%s\".", r.Refname), document.WithBase(r))
			problematic(r)
		case node == nil:
			t.doc.Reporter.Error(fmt.Sprintf("Duplicate target name, cannot be used as a unique reference: \"%s\".",
				r.Refname), document.WithBase(r))
			problematic(r)
		default:
			node.Referenced = true
		}
	}

	for _, tg := range t.target.FindAll(document.KindTarget) {
		if tg.Referenced || tg.Anonymous {
			continue
		}
		naming := ""
		if len(tg.Names) > 0 {
			naming = tg.Names[0]
		} else if id, ok := tg.Attr("refid"); ok {
			naming = id
		}
		t.doc.Reporter.Info(fmt.Sprintf("Hyperlink target \"%s\" is not referenced.", naming), document.WithBase(tg))
	}
	return nil
}
