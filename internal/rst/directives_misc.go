package rst

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/source"
	"github.com/electwix/rst-lint/internal/transform"
)

// resolvePath resolves a directive path argument relative to the file the
// directive appears in.
func resolvePath(call *construct.DirectiveCall, arg string) string {
	path := strings.Join(strings.Fields(arg), "")
	if filepath.IsAbs(path) {
		return path
	}
	if src := origin(call); src != "" && src != "<string>" {
		return filepath.Join(filepath.Dir(src), path)
	}
	return path
}

// inputError renders a read failure the way docutils reports it.
func inputError(path string, err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("InputError: [Errno 2] No such file or directory: '%s'", path)
	}
	return "InputError: " + err.Error()
}

var includeDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options: commonOptions(map[string]construct.OptionConverter{
		"literal":      construct.Flag,
		"code":         construct.Unchanged,
		"encoding":     construct.UnchangedRequired,
		"tab-width":    construct.Integer,
		"start-line":   construct.Integer,
		"end-line":     construct.Integer,
		"start-after":  construct.UnchangedRequired,
		"end-before":   construct.UnchangedRequired,
		"number-lines": construct.Unchanged,
	}),
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	b, ok := call.State.(*bodyParser)
	if !ok {
		return nil, fmt.Errorf("include needs the body parser state, got %T", call.State)
	}
	arg := call.Arguments[0]
	if strings.HasPrefix(arg, "<") && strings.HasSuffix(arg, ">") {
		// Standard include files are not shipped.
		return nil, call.Severef("Problems with \"%s\" directive path:\n%s.", call.Name,
			inputError(arg[1:len(arg)-1], fs.ErrNotExist))
	}
	path := resolvePath(call, arg)
	if b.including(path) {
		chain := []string{path}
		for i := len(b.st.includes) - 1; i >= 0; i-- {
			chain = append(chain, b.st.includes[i])
		}
		chain = append(chain, b.st.doc.Source)
		return nil, &construct.DirectiveError{Level: diagnostics.LevelWarning,
			Message: fmt.Sprintf("circular inclusion in \"%s\" directive: %s", call.Name, strings.Join(chain, " < "))}
	}

	call.State.Document().AddDependency(path)
	text, err := source.ReadFile(path, call.Options["encoding"])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, call.Severef("Problems with \"%s\" directive path:\n%s.", call.Name, inputError(path, err))
		}
		return nil, call.Severef("Problem with \"%s\" directive:\n%s", call.Name, err)
	}

	tabWidth := call.State.Document().Settings.TabWidth
	if v, ok := call.Options["tab-width"]; ok {
		tabWidth, _ = strconv.Atoi(v)
	}
	lines := strings.Split(text, "\n")
	start, end := 0, len(lines)
	if v, ok := call.Options["start-line"]; ok {
		start = clampIndex(v, len(lines))
	}
	if v, ok := call.Options["end-line"]; ok {
		end = clampIndex(v, len(lines))
	}
	if start > end {
		start = end
	}
	text = strings.Join(lines[start:end], "\n")

	for _, opt := range []string{"start-after", "end-before"} {
		marker, ok := call.Options[opt]
		if !ok {
			continue
		}
		i := strings.Index(text, marker)
		if i < 0 {
			return nil, call.Severef("Problem with \"%s\" option of \"%s\" directive:\nText not found.", opt, call.Name)
		}
		if opt == "start-after" {
			text = text[i+len(marker):]
		} else {
			text = text[:i]
		}
	}

	_, literal := call.Options["literal"]
	lang, code := call.Options["code"]
	if literal || code {
		n, msgs := element(call, document.KindLiteralBlock, document.NewText(expandTabs(text, tabWidth)))
		n.Source = path
		if code {
			n.SetAttr("classes", strings.TrimSpace("code "+lang))
			n.SetAttr("language", lang)
		}
		return append([]*document.Node{n}, msgs...), nil
	}
	b.includeLines(splitLines(text, tabWidth), path)
	return nil, nil
})

// clampIndex converts a possibly negative line index the way slicing
// from the end would.
func clampIndex(v string, n int) int {
	i, _ := strconv.Atoi(v)
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

var rawDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options: map[string]construct.OptionConverter{
		"file":     construct.URI,
		"url":      construct.URI,
		"encoding": construct.UnchangedRequired,
		"class":    construct.ClassOption,
	},
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	file, hasFile := call.Options["file"]
	url, hasURL := call.Options["url"]
	var text string
	switch {
	case len(call.Content) > 0:
		if hasFile || hasURL {
			return nil, call.Errorf("\"%s\" directive may not both specify an external file and have content.", call.Name)
		}
		text = strings.Join(call.Content, "\n")
	case hasFile:
		if hasURL {
			return nil, call.Errorf("The \"file\" and \"url\" options may not be simultaneously specified "+
				"for the \"%s\" directive.", call.Name)
		}
		path := resolvePath(call, file)
		call.State.Document().AddDependency(path)
		data, err := source.ReadFile(path, call.Options["encoding"])
		if err != nil {
			return nil, call.Severef("Problems with \"%s\" directive path:\n%s.", call.Name, inputError(path, err))
		}
		text = data
	case hasURL:
		// Remote content is not fetched.
	default:
		return nil, call.RequireContent()
	}

	n, _ := element(call, document.KindRaw, document.NewText(text))
	n.SetAttr("format", strings.Join(strings.Fields(strings.ToLower(call.Arguments[0])), " "))
	if hasURL {
		n.SetAttr("source", url)
	}
	return []*document.Node{n}, nil
})

// substitutionOnly rejects a directive used outside a substitution
// definition.
func substitutionOnly(call *construct.DirectiveCall) error {
	if call.Substitution != "" {
		return nil
	}
	return call.Errorf("Invalid context: the \"%s\" directive can only be used within a substitution definition.",
		call.Name)
}

var replaceDirective = newDirective(construct.DirectiveSpec{HasContent: true},
	func(call *construct.DirectiveCall) ([]*document.Node, error) {
		if err := substitutionOnly(call); err != nil {
			return nil, err
		}
		if err := call.RequireContent(); err != nil {
			return nil, err
		}
		body := document.NewElement(document.KindContainer)
		call.State.NestedParse(call.Content, call.ContentOffset, body)

		var para *document.Node
		var msgs []*document.Node
		for _, c := range body.Children {
			switch {
			case para == nil && c.Kind == document.KindParagraph:
				para = c
			case c.Kind == document.KindSystemMessage:
				msgs = append(msgs, c)
			default:
				return []*document.Node{report(call, diagnostics.LevelError,
					fmt.Sprintf("Error in \"%s\" directive: may contain a single paragraph only.", call.Name), false)}, nil
			}
		}
		if para != nil {
			msgs = append(msgs, detachAll(para.Children)...)
		}
		return msgs, nil
	})

var unicodeCommentRe = regexp.MustCompile(`( |\n|^)\.\. `)

var unicodeDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options: map[string]construct.OptionConverter{
		"trim":  construct.Flag,
		"ltrim": construct.Flag,
		"rtrim": construct.Flag,
	},
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := substitutionOnly(call); err != nil {
		return nil, err
	}
	codes := unicodeCommentRe.Split(call.Arguments[0], 2)[0]
	var sb strings.Builder
	for _, code := range strings.Fields(codes) {
		c, err := construct.CharacterCode(code)
		if err != nil {
			return nil, call.Errorf("Invalid character code: %s\nValueError: %s", code, err)
		}
		sb.WriteString(c)
	}
	return []*document.Node{document.NewText(sb.String())}, nil
})

// now is the date directive's clock. SOURCE_DATE_EPOCH pins it for
// reproducible output.
func now() time.Time {
	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC()
		}
	}
	return time.Now()
}

var dateDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := substitutionOnly(call); err != nil {
		return nil, err
	}
	format := "%Y-%m-%d"
	if len(call.Arguments) > 0 {
		format = call.Arguments[0]
	}
	return []*document.Node{document.NewText(strftime.Format(format, now()))}, nil
})

var classDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	HasContent:              true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	classes, err := construct.ClassOption(call.Arguments[0])
	if err != nil {
		return nil, call.Errorf("Invalid class attribute value for \"%s\" directive: \"%s\".", call.Name, call.Arguments[0])
	}
	if len(call.Content) == 0 {
		return []*document.Node{pending(call, transform.KindClassAttribute, transform.PriorityClassAttribute,
			map[string]any{"class": classes, "directive": call.Name, "rawsource": call.BlockText})}, nil
	}
	body := document.NewElement(document.KindContainer)
	call.State.NestedParse(call.Content, call.ContentOffset, body)
	out := detachAll(body.Children)
	for _, n := range out {
		if old, ok := n.Attr("classes"); ok && old != "" {
			n.SetAttr("classes", old+" "+classes)
		} else {
			n.SetAttr("classes", classes)
		}
	}
	return out, nil
})

const simpleName = `[\p{L}\p{N}]+(?:[-._+:][\p{L}\p{N}]+)*`

var roleArgRe = regexp.MustCompile(`^(` + simpleName + `)\s*(\(\s*(` + simpleName + `)\s*\)\s*)?$`)

// unknownRole reports a role name that resolves to nothing, preceded by
// the lookup note.
func unknownRole(call *construct.DirectiveCall, name string) error {
	err := call.Errorf("Unknown interpreted text role \"%s\".", name)
	if b, ok := call.State.(*bodyParser); ok {
		err.Messages = []*document.Node{b.info(call.Line, lookupInfo("role", name))}
	}
	return err
}

var roleDirective = newDirective(construct.DirectiveSpec{HasContent: true},
	func(call *construct.DirectiveCall) ([]*document.Node, error) {
		if len(call.Content) == 0 || strings.TrimSpace(call.Content[0]) == "" {
			return nil, call.Errorf("\"%s\" directive requires arguments on the first line.", call.Name)
		}
		args := strings.TrimSpace(call.Content[0])
		m := roleArgRe.FindStringSubmatch(args)
		if m == nil {
			return nil, call.Errorf("\"%s\" directive arguments not valid role names: \"%s\".", call.Name, args)
		}
		name, baseName := strings.ToLower(m[1]), strings.ToLower(m[3])

		var base construct.Role = genericRole(document.KindInline)
		if baseName != "" {
			r, ok := call.State.Role(baseName)
			if !ok {
				return nil, unknownRole(call, baseName)
			}
			base = r
		}

		spec := construct.DirectiveSpec{
			Options: map[string]construct.OptionConverter{
				"class":    construct.ClassOption,
				"format":   construct.UnchangedRequired,
				"language": construct.UnchangedRequired,
			},
			HasContent: true,
		}
		opts, err := parseDirectiveBlock(spec, call.Content[1:], call.ContentOffset+1)
		if err != nil {
			return nil, call.Errorf("Error in \"%s\" directive:\n%s.", call.Name, err)
		}
		classes := opts.Options["class"]
		if classes == "" {
			classes = name
		}
		if _, ok := base.(*rawRole); ok {
			base = &rawRole{Format: opts.Options["format"]}
		}
		call.State.DefineRole(name, &customRole{base: base, classes: classes})
		return nil, nil
	})

var defaultRoleDirective = newDirective(construct.DirectiveSpec{OptionalArguments: 1},
	func(call *construct.DirectiveCall) ([]*document.Node, error) {
		doc := call.State.Document()
		if len(call.Arguments) == 0 {
			doc.DefaultRole = ""
			return nil, nil
		}
		name := strings.ToLower(call.Arguments[0])
		if _, ok := call.State.Role(name); !ok {
			return nil, unknownRole(call, call.Arguments[0])
		}
		doc.DefaultRole = name
		return nil, nil
	})

var titleDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	call.State.Document().Root.SetAttr("title", call.Arguments[0])
	return nil, nil
})

var metaDirective = newDirective(construct.DirectiveSpec{HasContent: true},
	func(call *construct.DirectiveCall) ([]*document.Node, error) {
		if err := call.RequireContent(); err != nil {
			return nil, err
		}
		body := document.NewElement(document.KindContainer)
		call.State.NestedParse(call.Content, call.ContentOffset, body)

		var out []*document.Node
		for _, c := range detachAll(body.Children) {
			switch c.Kind {
			case document.KindSystemMessage:
				out = append(out, c)
			case document.KindFieldList:
				out = append(out, metaTags(call, c)...)
			default:
				return append(out, report(call, diagnostics.LevelError, "Invalid meta directive.", true)), nil
			}
		}
		return out, nil
	})

func metaTags(call *construct.DirectiveCall, list *document.Node) []*document.Node {
	var out []*document.Node
	for _, field := range list.Children {
		if field.Kind != document.KindField || len(field.Children) < 2 {
			continue
		}
		name := field.Children[0].AsText()
		content := strings.TrimSpace(field.Children[1].AsText())
		if content == "" {
			line := fmt.Sprintf(":%s:", name)
			out = append(out, call.Reporter().Info(fmt.Sprintf("No content for meta tag \"%s\".", name),
				document.AtLine(field.Line), document.FromSource(origin(call)), document.WithLiteral(line)))
			continue
		}
		meta := document.NewElement(document.KindMeta)
		meta.Line = field.Line
		meta.SetAttr("name", name)
		meta.SetAttr("content", content)
		out = append(out, meta)
	}
	return out
}
