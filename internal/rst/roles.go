package rst

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/document"
)

// genericRole wraps the role text in an element of kind.
type genericRole document.Kind

// Apply implements construct.Role.
func (r genericRole) Apply(call *construct.RoleCall) (nodes, messages []*document.Node) {
	n := document.NewTextElement(document.Kind(r), call.Text)
	n.Line = call.Line
	return []*document.Node{n}, nil
}

// customRole is a role defined by the "role" directive.
type customRole struct {
	base    construct.Role
	classes string
}

// Apply implements construct.Role.
func (r *customRole) Apply(call *construct.RoleCall) (nodes, messages []*document.Node) {
	nodes, messages = r.base.Apply(call)
	for _, n := range nodes {
		if n.Kind != document.KindText && n.Kind != document.KindProblematic {
			n.SetAttr("classes", r.classes)
		}
	}
	return nodes, messages
}

// rawRole passes text through to a writer format. Used directly it has no
// format and is an error.
type rawRole struct {
	Format string
}

// Apply implements construct.Role.
func (r *rawRole) Apply(call *construct.RoleCall) (nodes, messages []*document.Node) {
	if r.Format == "" {
		return call.Problem(fmt.Sprintf("No format (Writer name) is associated with this role: \"%s\".\n"+
			"The \"raw\" role cannot be used directly.\n"+
			"Instead, use the \"role\" directive to create a new role with an associated format.", call.Name))
	}
	n := document.NewTextElement(document.KindRaw, call.Text)
	n.Line = call.Line
	n.SetAttr("format", r.Format)
	return []*document.Node{n}, nil
}

var codeRole = &construct.BasicRole{Fn: func(call *construct.RoleCall) (nodes, messages []*document.Node) {
	n := document.NewTextElement(document.KindLiteral, call.Text)
	n.Line = call.Line
	n.SetAttr("classes", "code")
	return []*document.Node{n}, nil
}}

var pepRole = &construct.BasicRole{Fn: func(call *construct.RoleCall) (nodes, messages []*document.Node) {
	num, err := strconv.Atoi(strings.TrimSpace(call.Text))
	if err != nil || num < 0 || num > 9999 {
		return call.Problem(fmt.Sprintf("PEP number must be a number from 0 to 9999; \"%s\" is invalid.", call.Text))
	}
	ref := document.NewTextElement(document.KindReference, "PEP "+call.Text)
	ref.Line = call.Line
	ref.Refuri = fmt.Sprintf("https://peps.python.org/pep-%04d", num)
	return []*document.Node{ref}, nil
}}

var rfcRole = &construct.BasicRole{Fn: func(call *construct.RoleCall) (nodes, messages []*document.Node) {
	text, anchor, _ := strings.Cut(call.Text, "#")
	num, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || num < 1 {
		return call.Problem(fmt.Sprintf("RFC number must be a number greater than or equal to 1; \"%s\" is invalid.", call.Text))
	}
	ref := document.NewTextElement(document.KindReference, "RFC "+text)
	ref.Line = call.Line
	ref.Refuri = fmt.Sprintf("https://tools.ietf.org/html/rfc%d.html", num)
	if anchor != "" {
		ref.Refuri += "#" + anchor
	}
	return []*document.Node{ref}, nil
}}
