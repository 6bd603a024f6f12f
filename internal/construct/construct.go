// Package construct defines directives and interpreted-text roles and the
// namespace the parser resolves them from.
package construct

import (
	"fmt"
	"strings"

	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
)

// State is the parser state handed to directives and roles.
type State interface {
	// Document returns the document being built.
	Document() *document.Document
	// NestedParse parses body lines into parent. offset is the line number
	// of the line before lines[0].
	NestedParse(lines []string, offset int, parent *document.Node)
	// InlineParse parses inline markup, returning nodes and system messages.
	InlineParse(text string, line int) (nodes, messages []*document.Node)
	// DefineRole makes a role available for the rest of the document.
	DefineRole(name string, r Role)
	// Role resolves a role name the way interpreted text does.
	Role(name string) (Role, bool)
}

// DirectiveSpec describes the arguments, options and content a directive accepts.
type DirectiveSpec struct {
	RequiredArguments int
	OptionalArguments int
	// FinalArgumentWhitespace lets the last argument contain spaces.
	FinalArgumentWhitespace bool
	// Options maps option names to converters. Nil means options are not
	// parsed and an option block is treated as content.
	Options    map[string]OptionConverter
	HasContent bool
}

// DirectiveCall carries one directive invocation.
type DirectiveCall struct {
	Name      string
	Arguments []string
	Options   map[string]string
	Content   []string
	// ContentOffset is the line number before Content[0].
	ContentOffset int
	Line          int
	BlockText     string
	State         State
	// Substitution is the substitution name when the directive defines one.
	Substitution string
}

// Reporter returns the document reporter.
func (c *DirectiveCall) Reporter() *document.Reporter {
	return c.State.Document().Reporter
}

// Errorf builds a directive error at ERROR level.
func (c *DirectiveCall) Errorf(format string, args ...any) *DirectiveError {
	return &DirectiveError{Level: diagnostics.LevelError, Message: fmt.Sprintf(format, args...)}
}

// Severef builds a directive error at SEVERE level.
func (c *DirectiveCall) Severef(format string, args ...any) *DirectiveError {
	return &DirectiveError{Level: diagnostics.LevelSevere, Message: fmt.Sprintf(format, args...)}
}

// RequireContent returns an error when the directive body is empty.
func (c *DirectiveCall) RequireContent() error {
	for _, l := range c.Content {
		if strings.TrimSpace(l) != "" {
			return nil
		}
	}
	return c.Errorf("Content block expected for the \"%s\" directive; none found.", c.Name)
}

// DirectiveError is returned by Directive.Run to raise a system message
// quoting the directive block. Other errors abort parsing.
type DirectiveError struct {
	Level   diagnostics.Level
	Message string
	// Messages were reported before the failure and precede it in the tree.
	Messages []*document.Node
}

func (e *DirectiveError) Error() string {
	return e.Message
}

// Directive is an explicit-markup block construct such as "note" or "image".
type Directive interface {
	Spec() DirectiveSpec
	Run(call *DirectiveCall) ([]*document.Node, error)
}

// RoleCall carries one interpreted-text invocation.
type RoleCall struct {
	Name    string
	RawText string
	Text    string
	Line    int
	State   State
}

// Problem reports an error for the call and returns a problematic node
// holding the raw text together with the message.
func (c *RoleCall) Problem(message string) (nodes, messages []*document.Node) {
	msg := c.State.Document().Reporter.Error(message, document.AtLine(c.Line))
	prb := document.NewTextElement(document.KindProblematic, c.RawText)
	return []*document.Node{prb}, []*document.Node{msg}
}

// Role is an interpreted-text construct such as :emphasis:.
type Role interface {
	Apply(call *RoleCall) (nodes, messages []*document.Node)
}

// BasicDirective adapts a function to Directive.
type BasicDirective struct {
	Def DirectiveSpec
	Fn  func(call *DirectiveCall) ([]*document.Node, error)
}

// Spec implements Directive.
func (d *BasicDirective) Spec() DirectiveSpec { return d.Def }

// Run implements Directive.
func (d *BasicDirective) Run(call *DirectiveCall) ([]*document.Node, error) {
	return d.Fn(call)
}

// BasicRole adapts a function to Role.
type BasicRole struct {
	Fn func(call *RoleCall) (nodes, messages []*document.Node)
}

// Apply implements Role.
func (r *BasicRole) Apply(call *RoleCall) (nodes, messages []*document.Node) {
	return r.Fn(call)
}

// NoopDirective accepts any content and produces nothing. It is installed
// for ignored directive names.
type NoopDirective struct{}

// Spec implements Directive. No arguments and no option parsing, so the
// whole block, first line included, is taken as content.
func (NoopDirective) Spec() DirectiveSpec {
	return DirectiveSpec{HasContent: true}
}

// Run implements Directive.
func (NoopDirective) Run(*DirectiveCall) ([]*document.Node, error) {
	return nil, nil
}

// NoopRole produces no nodes and no messages. It is installed for ignored
// role names.
type NoopRole struct{}

// Apply implements Role.
func (NoopRole) Apply(*RoleCall) (nodes, messages []*document.Node) {
	return nil, nil
}

// IsNoop reports whether v is one of the no-op stubs.
func IsNoop(v any) bool {
	switch v.(type) {
	case NoopDirective, *NoopDirective, NoopRole, *NoopRole:
		return true
	default:
		return false
	}
}
