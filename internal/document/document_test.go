package document

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

func TestAsTextSeparators(t *testing.T) {
	para := NewElement(KindParagraph, NewText("Hello "), NewElement(KindEmphasis, NewText("world")))
	assert.Equal(t, "Hello world", para.AsText())

	msg := NewElement(KindSystemMessage,
		NewTextElement(KindParagraph, "Title underline too short."),
		NewTextElement(KindLiteralBlock, "Hello\n==="))
	assert.Equal(t, "Title underline too short.\n\nHello\n===", msg.AsText())
}

func TestNodeTreeEditing(t *testing.T) {
	a, b, c := NewText("a"), NewText("b"), NewText("c")
	p := NewElement(KindParagraph, a, c)
	p.Insert(1, b)
	assert.Equal(t, "abc", p.AsText())
	assert.Equal(t, 1, b.Index())
	assert.Same(t, p, b.Parent())

	b.ReplaceWith(NewText("x"), NewText("y"))
	assert.Equal(t, "axyc", p.AsText())
	assert.Nil(t, b.Parent())

	a.Remove()
	assert.Equal(t, "xyc", p.AsText())
	assert.Equal(t, -1, a.Index())

	other := NewElement(KindParagraph)
	other.Append(c)
	assert.Equal(t, "xy", p.AsText(), "appending elsewhere must detach")
	assert.Same(t, other, c.Parent())
}

func TestFindAllInDocumentOrder(t *testing.T) {
	root := NewElement(KindDocument,
		NewElement(KindSection, NewElement(KindTarget), NewElement(KindParagraph)),
		NewElement(KindTarget))
	targets := root.FindAll(KindTarget)
	require.Len(t, targets, 2)
	assert.Same(t, root.Children[0].Children[0], targets[0])
	assert.Same(t, root.Children[1], targets[1])
}

func TestPositionWalksUp(t *testing.T) {
	root := NewElement(KindDocument)
	root.Source = "doc.rst"
	para := NewElement(KindParagraph)
	para.Line = 7
	text := NewText("x")
	para.Append(text)
	root.Append(para)

	src, line := text.Position()
	assert.Equal(t, "doc.rst", src)
	assert.Equal(t, 7, line)
}

func TestReporterNotifiesObservers(t *testing.T) {
	r := NewReporter("a.rst", diagnostics.LevelWarning, HaltNever, nil)
	var got []diagnostics.Message
	detach := r.AttachObserver(func(m diagnostics.Message) { got = append(got, m) })

	r.Warning("Title underline too short.", AtLine(2), WithLiteral("Hello\n==="))
	r.Error("no line")
	r.DebugMessage("hidden without debug")
	detach()
	r.Error("after detach")

	require.Len(t, got, 2)
	line, ok := got[0].Line()
	assert.True(t, ok)
	assert.Equal(t, 2, line)
	assert.Equal(t, "WARNING", got[0].Type())
	assert.Equal(t, "Title underline too short.", got[0].ChildText(0))
	assert.Equal(t, "Title underline too short.\n\nHello\n===", got[0].Text())

	_, ok = got[1].Line()
	assert.False(t, ok)
}

func TestReporterStreamAndHalt(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("a.rst", diagnostics.LevelWarning, diagnostics.LevelError, &buf)

	r.Info("quiet")
	r.Warning("loud", AtLine(3))
	assert.Equal(t, "a.rst:3: (WARNING/2) loud\n", buf.String())

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		halt, ok := rec.(*HaltError)
		require.True(t, ok)
		assert.Contains(t, halt.Error(), "fatal")
	}()
	r.Error("fatal")
}

func TestReporterBaseNode(t *testing.T) {
	r := NewReporter("a.rst", diagnostics.LevelWarning, HaltNever, nil)
	base := NewElement(KindReference)
	base.Source = "b.rst"
	base.Line = 12
	msg := r.Error("Unknown target name: \"x\".", WithBase(base))
	assert.Equal(t, 12, msg.Line)
	assert.Equal(t, "b.rst", msg.Source)
}

func TestDuplicateTargetNames(t *testing.T) {
	doc := New("a.rst", DefaultSettings())
	var levels []diagnostics.Level
	doc.Reporter.AttachObserver(func(m diagnostics.Message) { levels = append(levels, m.Level()) })

	first := &Node{Kind: KindTarget, Names: []string{"home"}, Refuri: "http://a"}
	second := &Node{Kind: KindTarget, Names: []string{"home"}, Refuri: "http://b"}
	assert.Empty(t, doc.NoteExplicitTarget(first))
	msgs := doc.NoteExplicitTarget(second)
	require.Len(t, msgs, 1)
	assert.Equal(t, []diagnostics.Level{diagnostics.LevelWarning}, levels)

	n, ok := doc.LookupName("home")
	assert.True(t, ok)
	assert.Nil(t, n, "conflicting explicit targets make the name ambiguous")

	same := &Node{Kind: KindTarget, Names: []string{"same"}, Refuri: "http://x"}
	again := &Node{Kind: KindTarget, Names: []string{"same"}, Refuri: "http://x"}
	doc.NoteExplicitTarget(same)
	doc.NoteExplicitTarget(again)
	n, _ = doc.LookupName("same")
	assert.Same(t, same, n)
}

func TestExplicitTargetOverridesImplicit(t *testing.T) {
	doc := New("a.rst", DefaultSettings())
	section := &Node{Kind: KindSection, Names: []string{"intro"}}
	target := &Node{Kind: KindTarget, Names: []string{"intro"}, Refuri: "http://x"}
	doc.NoteImplicitTarget(section)
	msgs := doc.NoteExplicitTarget(target)
	require.Len(t, msgs, 1)
	assert.Equal(t, diagnostics.LevelInfo, msgs[0].Level)
	n, _ := doc.LookupName("intro")
	assert.Same(t, target, n)
}

func TestSubstitutionDefs(t *testing.T) {
	doc := New("a.rst", DefaultSettings())
	def := NewElement(KindSubstitutionDefinition)
	assert.Empty(t, doc.NoteSubstitutionDef("Project  Name", def))

	got, ok := doc.SubstitutionDef("project name")
	assert.True(t, ok)
	assert.Same(t, def, got)

	dup := doc.NoteSubstitutionDef("Project Name", NewElement(KindSubstitutionDefinition))
	require.Len(t, dup, 1)
	assert.Contains(t, dup[0].AsText(), "Duplicate substitution definition name")
}

func TestTransformRequests(t *testing.T) {
	doc := New("a.rst", DefaultSettings())
	p := doc.NewPending("parts.contents", 280, map[string]any{"depth": 2})
	doc.RequestTransform(TransformRequest{Kind: "misc.transitions", Priority: 170})

	reqs := doc.TakeTransformRequests()
	require.Len(t, reqs, 2)
	assert.Same(t, p, reqs[0].Target)
	assert.Same(t, doc.Root, reqs[1].Target)
	assert.Empty(t, doc.TakeTransformRequests())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeName("  Hello\n  World "))
	assert.Equal(t, "Hello World", WhitespaceNormalize("Hello \t World"))
}

func TestDependenciesKeepFirstReadOrder(t *testing.T) {
	doc := New("main.rst", DefaultSettings())
	assert.Empty(t, doc.Dependencies())

	doc.AddDependency("b.rst")
	doc.AddDependency("a.rst")
	doc.AddDependency("b.rst")
	deps := doc.Dependencies()
	assert.Equal(t, []string{"b.rst", "a.rst"}, deps)

	deps[0] = "changed"
	assert.Equal(t, []string{"b.rst", "a.rst"}, doc.Dependencies())
}
