package rst

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/transform"
)

type directiveFunc = func(call *construct.DirectiveCall) ([]*document.Node, error)

func newDirective(def construct.DirectiveSpec, fn directiveFunc) *construct.BasicDirective {
	return &construct.BasicDirective{Def: def, Fn: fn}
}

// commonOptions returns the "class" and "name" options plus extra.
func commonOptions(extra map[string]construct.OptionConverter) map[string]construct.OptionConverter {
	opts := map[string]construct.OptionConverter{
		"class": construct.ClassOption,
		"name":  construct.Unchanged,
	}
	maps.Copy(opts, extra)
	return opts
}

// origin returns the file the directive was read from.
func origin(call *construct.DirectiveCall) string {
	if b, ok := call.State.(*bodyParser); ok {
		return b.source
	}
	return call.State.Document().Source
}

// element creates a node for the directive, applying its "class" and
// "name" options. Duplicate-name messages are returned alongside.
func element(call *construct.DirectiveCall, kind document.Kind, children ...*document.Node) (*document.Node, []*document.Node) {
	n := document.NewElement(kind, children...)
	n.Line = call.Line
	n.Source = origin(call)
	if classes := call.Options["class"]; classes != "" {
		n.SetAttr("classes", classes)
	}
	name, ok := call.Options["name"]
	if !ok {
		return n, nil
	}
	n.Names = append(n.Names, document.NormalizeName(name))
	return n, call.State.Document().NoteExplicitTarget(n)
}

// report raises a message for the directive without aborting it.
func report(call *construct.DirectiveCall, level diagnostics.Level, msg string, literal bool) *document.Node {
	opts := []document.MessageOption{document.AtLine(call.Line), document.FromSource(origin(call))}
	if literal {
		opts = append(opts, document.WithLiteral(call.BlockText))
	}
	return call.Reporter().SystemMessage(level, msg, opts...)
}

// inlineTitle parses text into a title-like node of kind.
func inlineTitle(call *construct.DirectiveCall, kind document.Kind, text string) (*document.Node, []*document.Node) {
	nodes, msgs := call.State.InlineParse(text, call.Line)
	n := document.NewElement(kind, nodes...)
	n.Line = call.Line
	return n, msgs
}

// inSection reports whether the directive appears where a section title
// could, i.e. not inside a body element.
func inSection(call *construct.DirectiveCall) (ok, sidebar bool) {
	b, isBody := call.State.(*bodyParser)
	if !isBody {
		return true, false
	}
	sidebar = b.parent != nil && b.parent.Kind == document.KindSidebar
	return b.matchTitles || sidebar, sidebar
}

var admonitionNames = []string{
	"attention", "caution", "danger", "error", "hint", "important", "note", "tip", "warning",
}

func admonition(kind string) *construct.BasicDirective {
	return newDirective(construct.DirectiveSpec{Options: commonOptions(nil), HasContent: true},
		func(call *construct.DirectiveCall) ([]*document.Node, error) {
			if err := call.RequireContent(); err != nil {
				return nil, err
			}
			n, msgs := element(call, document.KindAdmonition)
			n.SetAttr("type", kind)
			call.State.NestedParse(call.Content, call.ContentOffset, n)
			return append([]*document.Node{n}, msgs...), nil
		})
}

var genericAdmonition = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options:                 commonOptions(nil),
	HasContent:              true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	title, titleMsgs := inlineTitle(call, document.KindTitle, call.Arguments[0])
	n, msgs := element(call, document.KindAdmonition, title)
	n.SetAttr("type", "admonition")
	n.Append(titleMsgs...)
	call.State.NestedParse(call.Content, call.ContentOffset, n)
	return append([]*document.Node{n}, msgs...), nil
})

var (
	alignHorizontal = []string{"left", "center", "right"}
	alignVertical   = []string{"top", "middle", "bottom"}
)

func imageOptions() map[string]construct.OptionConverter {
	return commonOptions(map[string]construct.OptionConverter{
		"alt":     construct.Unchanged,
		"height":  construct.LengthOrUnitless,
		"width":   construct.LengthOrPercentageOrUnitless,
		"scale":   construct.Percentage,
		"align":   construct.Choice(slices.Concat(alignVertical, alignHorizontal)...),
		"target":  construct.UnchangedRequired,
		"loading": construct.Choice("embed", "link", "lazy"),
	})
}

// makeImage builds an image node, wrapped in a reference when the
// directive has a target.
func makeImage(call *construct.DirectiveCall, alignValues []string) ([]*document.Node, error) {
	if align, ok := call.Options["align"]; ok && !slices.Contains(alignValues, align) {
		where := ""
		if call.Substitution != "" {
			where = " within a substitution definition"
		}
		return nil, call.Errorf("Error in \"%s\" directive: \"%s\" is not a valid value for the \"align\" option%s.  "+
			"Valid values for \"align\" are: \"%s\".", call.Name, align, where, strings.Join(alignValues, "\", \""))
	}
	img, msgs := element(call, document.KindImage)
	img.SetAttr("uri", strings.Join(strings.Fields(call.Arguments[0]), ""))
	for _, k := range []string{"alt", "height", "width", "scale", "align", "loading"} {
		if v, ok := call.Options[k]; ok {
			img.SetAttr(k, v)
		}
	}
	target, ok := call.Options["target"]
	if !ok {
		return append([]*document.Node{img}, msgs...), nil
	}
	ref := document.NewElement(document.KindReference, img)
	ref.Line = call.Line
	ref.Source = img.Source
	if m := refnameRe.FindStringSubmatch(target); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		ref.Refname = document.NormalizeName(unescape(name))
	} else {
		ref.Refuri = strings.Join(strings.Fields(target), "")
	}
	return append([]*document.Node{ref}, msgs...), nil
}

var imageDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options:                 imageOptions(),
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if call.Substitution != "" {
		return makeImage(call, alignVertical)
	}
	return makeImage(call, alignHorizontal)
})

var figureDirective = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options: func() map[string]construct.OptionConverter {
		opts := imageOptions()
		opts["figwidth"] = construct.Unchanged
		opts["figclass"] = construct.ClassOption
		opts["align"] = construct.Choice(alignHorizontal...)
		return opts
	}(),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	align, hasAlign := call.Options["align"]
	delete(call.Options, "align")
	imgNodes, err := makeImage(call, alignHorizontal)
	if err != nil {
		return nil, err
	}
	fig := document.NewElement(document.KindFigure, imgNodes...)
	fig.Line = call.Line
	fig.Source = origin(call)
	if hasAlign {
		fig.SetAttr("align", align)
	}
	if c := call.Options["figclass"]; c != "" {
		fig.SetAttr("classes", c)
	}
	if len(call.Content) == 0 {
		return []*document.Node{fig}, nil
	}

	body := document.NewElement(document.KindContainer)
	call.State.NestedParse(call.Content, call.ContentOffset, body)
	if len(body.Children) == 0 {
		return []*document.Node{fig}, nil
	}
	first := body.Children[0]
	switch {
	case first.Kind == document.KindParagraph:
		caption := document.NewElement(document.KindCaption, detachAll(first.Children)...)
		caption.Line = first.Line
		fig.Append(caption)
	case first.Kind == document.KindComment && len(first.Children) == 0:
	default:
		return []*document.Node{fig, report(call, diagnostics.LevelError,
			"Figure caption must be a paragraph or empty comment.", true)}, nil
	}
	if len(body.Children) > 1 {
		legend := document.NewElement(document.KindContainer, detachAll(body.Children[1:])...)
		legend.SetAttr("classes", "legend")
		fig.Append(legend)
	}
	return []*document.Node{fig}, nil
})

var codeDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments: 1,
	Options:           commonOptions(map[string]construct.OptionConverter{"number-lines": construct.Unchanged}),
	HasContent:        true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	if start, ok := call.Options["number-lines"]; ok && start != "" {
		if _, err := strconv.Atoi(start); err != nil {
			return nil, call.Errorf(":number-lines: with non-integer start value")
		}
	}
	n, msgs := element(call, document.KindLiteralBlock, document.NewText(strings.Join(call.Content, "\n")))
	classes := strings.TrimSpace("code " + call.Options["class"])
	if len(call.Arguments) > 0 {
		n.SetAttr("language", call.Arguments[0])
		classes += " " + call.Arguments[0]
	}
	n.SetAttr("classes", classes)
	return append([]*document.Node{n}, msgs...), nil
})

var mathDirective = newDirective(construct.DirectiveSpec{
	Options:    commonOptions(nil),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	var out []*document.Node
	for _, block := range strings.Split(strings.Join(call.Content, "\n"), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		n, msgs := element(call, document.KindMathBlock, document.NewText(block))
		out = append(append(out, n), msgs...)
	}
	return out, nil
})

var parsedLiteral = newDirective(construct.DirectiveSpec{
	Options:    commonOptions(nil),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	nodes, inlineMsgs := call.State.InlineParse(strings.Join(call.Content, "\n"), call.ContentOffset+1)
	n, msgs := element(call, document.KindLiteralBlock, nodes...)
	n.SetAttr("classes", strings.TrimSpace("parsed-literal "+call.Options["class"]))
	return append(append([]*document.Node{n}, inlineMsgs...), msgs...), nil
})

// pseudoSection builds topics and sidebars, which may only appear where
// sections may.
func pseudoSection(kind document.Kind, titleRequired bool) *construct.BasicDirective {
	spec := construct.DirectiveSpec{
		FinalArgumentWhitespace: true,
		HasContent:              true,
	}
	extra := map[string]construct.OptionConverter{}
	if titleRequired {
		spec.RequiredArguments = 1
	} else {
		spec.OptionalArguments = 1
		extra["subtitle"] = construct.UnchangedRequired
	}
	spec.Options = commonOptions(extra)

	return newDirective(spec, func(call *construct.DirectiveCall) ([]*document.Node, error) {
		ok, inSidebar := inSection(call)
		if kind == document.KindSidebar && inSidebar {
			return nil, call.Errorf("The \"%s\" directive may not be used within a sidebar element.", call.Name)
		}
		if !ok {
			return nil, call.Errorf("The \"%s\" directive may not be used within topics or body elements.", call.Name)
		}
		if err := call.RequireContent(); err != nil {
			return nil, err
		}
		n, msgs := element(call, kind)
		if len(call.Arguments) > 0 {
			title, titleMsgs := inlineTitle(call, document.KindTitle, call.Arguments[0])
			n.Append(title)
			msgs = append(msgs, titleMsgs...)
		}
		if sub, ok := call.Options["subtitle"]; ok {
			subtitle, subMsgs := inlineTitle(call, document.KindSubtitle, sub)
			n.Append(subtitle)
			msgs = append(msgs, subMsgs...)
		}
		n.Append(msgs...)
		call.State.NestedParse(call.Content, call.ContentOffset, n)
		return []*document.Node{n}, nil
	})
}

var rubric = newDirective(construct.DirectiveSpec{
	RequiredArguments:       1,
	FinalArgumentWhitespace: true,
	Options:                 commonOptions(nil),
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	nodes, inlineMsgs := call.State.InlineParse(call.Arguments[0], call.Line)
	n, msgs := element(call, document.KindRubric, nodes...)
	return append(append([]*document.Node{n}, inlineMsgs...), msgs...), nil
})

// quoteBlock builds the epigraph, highlights and pull-quote block quotes.
func quoteBlock(class string) *construct.BasicDirective {
	return newDirective(construct.DirectiveSpec{HasContent: true}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
		if err := call.RequireContent(); err != nil {
			return nil, err
		}
		n, _ := element(call, document.KindBlockQuote)
		n.SetAttr("classes", class)
		call.State.NestedParse(call.Content, call.ContentOffset, n)
		return []*document.Node{n}, nil
	})
}

var compound = newDirective(construct.DirectiveSpec{
	Options:    commonOptions(nil),
	HasContent: true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	n, msgs := element(call, document.KindCompound)
	call.State.NestedParse(call.Content, call.ContentOffset, n)
	return append([]*document.Node{n}, msgs...), nil
})

var container = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
	Options:                 map[string]construct.OptionConverter{"name": construct.Unchanged},
	HasContent:              true,
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if err := call.RequireContent(); err != nil {
		return nil, err
	}
	n, msgs := element(call, document.KindContainer)
	if len(call.Arguments) > 0 {
		classes, err := construct.ClassOption(call.Arguments[0])
		if err != nil {
			return nil, call.Errorf("Invalid class attribute value for \"%s\" directive: \"%s\".", call.Name, call.Arguments[0])
		}
		n.SetAttr("classes", classes)
	}
	call.State.NestedParse(call.Content, call.ContentOffset, n)
	return append([]*document.Node{n}, msgs...), nil
})

// detachAll copies a child slice so the nodes can be moved to a new parent.
func detachAll(children []*document.Node) []*document.Node {
	return append([]*document.Node(nil), children...)
}

// optionsAny converts directive options for a transform.
func optionsAny(call *construct.DirectiveCall) map[string]any {
	out := make(map[string]any, len(call.Options))
	for k, v := range call.Options {
		out[k] = v
	}
	return out
}

// pending creates a pending node for a transform requested by the directive.
func pending(call *construct.DirectiveCall, kind string, priority int, options map[string]any) *document.Node {
	p := call.State.Document().NewPending(kind, priority, options)
	p.Line = call.Line
	p.Source = origin(call)
	return p
}

var contentsDirective = newDirective(construct.DirectiveSpec{
	OptionalArguments:       1,
	FinalArgumentWhitespace: true,
	Options: map[string]construct.OptionConverter{
		"depth":     construct.NonNegativeInt,
		"local":     construct.Flag,
		"backlinks": construct.Choice("entry", "top", "none"),
		"class":     construct.ClassOption,
	},
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	if ok, _ := inSection(call); !ok {
		return nil, call.Errorf("The \"%s\" directive may not be used within topics or body elements.", call.Name)
	}
	doc := call.State.Document()
	topic := document.NewElement(document.KindTopic)
	topic.Line = call.Line
	topic.SetAttr("classes", strings.TrimSpace("contents "+call.Options["class"]))

	var msgs []*document.Node
	name := ""
	switch {
	case len(call.Arguments) > 0:
		title, titleMsgs := inlineTitle(call, document.KindTitle, call.Arguments[0])
		topic.Append(title)
		msgs = titleMsgs
		name = title.AsText()
	case !hasKey(call.Options, "local"):
		name = "Contents"
		topic.Append(document.NewTextElement(document.KindTitle, name))
	}
	if name != "" {
		name = document.NormalizeName(name)
		if _, taken := doc.LookupName(name); !taken {
			topic.Names = []string{name}
			msgs = append(msgs, doc.NoteImplicitTarget(topic)...)
		}
	}
	topic.Append(pending(call, transform.KindContents, transform.PriorityContents, optionsAny(call)))
	return append([]*document.Node{topic}, msgs...), nil
})

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

var sectnumDirective = newDirective(construct.DirectiveSpec{
	Options: map[string]construct.OptionConverter{
		"depth":  construct.Integer,
		"start":  construct.Integer,
		"prefix": construct.UnchangedRequired,
		"suffix": construct.UnchangedRequired,
	},
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	return []*document.Node{pending(call, transform.KindSectNum, transform.PrioritySectNum, optionsAny(call))}, nil
})

var targetNotes = newDirective(construct.DirectiveSpec{
	Options: commonOptions(nil),
}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
	return nil, nil
})

func decoration(kind document.Kind) *construct.BasicDirective {
	return newDirective(construct.DirectiveSpec{HasContent: true}, func(call *construct.DirectiveCall) ([]*document.Node, error) {
		if err := call.RequireContent(); err != nil {
			return nil, err
		}
		n, _ := element(call, kind)
		call.State.NestedParse(call.Content, call.ContentOffset, n)
		return []*document.Node{n}, nil
	})
}
