package rst

import (
	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/document"
)

// Builtins returns the standard reStructuredText directives and roles,
// keyed by every name they are known under.
func Builtins() (map[string]construct.Directive, map[string]construct.Role) {
	directives := map[string]construct.Directive{
		"admonition":        genericAdmonition,
		"image":             imageDirective,
		"figure":            figureDirective,
		"code":              codeDirective,
		"code-block":        codeDirective,
		"sourcecode":        codeDirective,
		"math":              mathDirective,
		"parsed-literal":    parsedLiteral,
		"topic":             pseudoSection(document.KindTopic, true),
		"sidebar":           pseudoSection(document.KindSidebar, false),
		"rubric":            rubric,
		"epigraph":          quoteBlock("epigraph"),
		"highlights":        quoteBlock("highlights"),
		"pull-quote":        quoteBlock("pull-quote"),
		"compound":          compound,
		"container":         container,
		"contents":          contentsDirective,
		"sectnum":           sectnumDirective,
		"section-numbering": sectnumDirective,
		"target-notes":      targetNotes,
		"header":            decoration(document.KindHeader),
		"footer":            decoration(document.KindFooter),
		"include":           includeDirective,
		"raw":               rawDirective,
		"replace":           replaceDirective,
		"unicode":           unicodeDirective,
		"date":              dateDirective,
		"class":             classDirective,
		"role":              roleDirective,
		"default-role":      defaultRoleDirective,
		"title":             titleDirective,
		"meta":              metaDirective,
		"table":             tableDirective,
		"csv-table":         csvTableDirective,
		"list-table":        listTableDirective,
	}
	for _, name := range admonitionNames {
		directives[name] = admonition(name)
	}

	roles := map[string]construct.Role{
		"emphasis":        genericRole(document.KindEmphasis),
		"strong":          genericRole(document.KindStrong),
		"literal":         genericRole(document.KindLiteral),
		"code":            codeRole,
		"math":            genericRole(document.KindMath),
		"subscript":       genericRole(document.KindSubscript),
		"sub":             genericRole(document.KindSubscript),
		"superscript":     genericRole(document.KindSuperscript),
		"sup":             genericRole(document.KindSuperscript),
		"title-reference": genericRole(document.KindTitleReference),
		"title":           genericRole(document.KindTitleReference),
		"t":               genericRole(document.KindTitleReference),
		"abbreviation":    genericRole(document.KindAbbreviation),
		"ab":              genericRole(document.KindAbbreviation),
		"acronym":         genericRole(document.KindAcronym),
		"ac":              genericRole(document.KindAcronym),
		"pep-reference":   pepRole,
		"pep":             pepRole,
		"rfc-reference":   rfcRole,
		"rfc":             rfcRole,
		"raw":             &rawRole{},
	}
	return directives, roles
}

// RegisterBuiltins binds the standard directives and roles in ns.
func RegisterBuiltins(ns *construct.Namespace) {
	directives, roles := Builtins()
	for name, d := range directives {
		ns.RegisterDirective(name, d)
	}
	for name, r := range roles {
		ns.RegisterRole(name, r)
	}
}

//nolint:gochecknoinits // the process-wide namespace starts with the standard constructs
func init() {
	RegisterBuiltins(construct.Default)
}
