package rst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
)

type problem struct {
	Type    string
	Line    int
	Message string
}

// parse parses text as source and returns the document with every message
// the reporter raised.
func parse(t *testing.T, source, text string) (*document.Document, []problem) {
	t.Helper()
	doc := document.New(source, document.DefaultSettings())
	var got []problem
	doc.Reporter.AttachObserver(func(m diagnostics.Message) {
		line, _ := m.Line()
		got = append(got, problem{Type: m.Type(), Line: line, Message: m.ChildText(0)})
	})
	require.NoError(t, NewParser(nil).Parse(text, doc))
	return doc, got
}

// noEntry is the INFO raised before an unknown directive or role is
// reported.
func noEntry(kind, name string, line int) problem {
	return problem{"INFO", line, "No " + kind + " entry for \"" + name +
		"\" in module \"docutils.parsers.rst.languages.en\".\n" +
		"Trying \"" + name + "\" as canonical " + kind + " name."}
}

const validDocument = `Title
=====

A paragraph with *emphasis*, **strong**, ` + "``literal``" + ` and a link_.

.. _link: https://example.com

- item one
- item two

1. first
2. second

:field: value
:other: value

term
   definition
other term
   another definition

Literal::

    code here

.. note::

   A note.

Section
-------

Text with :code:` + "`x = 1`" + ` and ` + "`title ref`" + `.
`

func TestParseValidDocument(t *testing.T) {
	doc, got := parse(t, "test.rst", validDocument)
	assert.Empty(t, got)

	sections := doc.Root.FindAll(document.KindSection)
	require.Len(t, sections, 2)
	assert.Equal(t, []string{"title"}, sections[0].Names)
	assert.Equal(t, []string{"section"}, sections[1].Names)
	assert.Len(t, doc.Root.FindAll(document.KindDefinitionListItem), 2)
	assert.Len(t, doc.Root.FindAll(document.KindField), 2)
	assert.Len(t, doc.Root.FindAll(document.KindAdmonition), 1)

	blocks := doc.Root.FindAll(document.KindLiteralBlock)
	require.Len(t, blocks, 1)
	assert.Equal(t, "code here", blocks[0].AsText())
}

func TestParseProblems(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []problem
	}{
		{
			name: "short underline",
			text: "Hello\n===\n",
			want: []problem{{"WARNING", 2, "Title underline too short."}},
		},
		{
			name: "short underline closing a section",
			text: "Heading\n=======\nSome text.\n\nSecond\n====\n",
			want: []problem{
				{"WARNING", 6, "Title underline too short."},
				{"WARNING", 6, "Title underline too short."},
			},
		},
		{
			name: "overline mismatch",
			text: "=====\nTitle\n-----\n",
			want: []problem{{"SEVERE", 1, "Title overline & underline mismatch."}},
		},
		{
			name: "inconsistent title level",
			text: "Title\n=====\n\nSub\n---\n\nAgain\n=====\n\nBad\n~~~\n",
			want: []problem{{"SEVERE", 10, "Title level inconsistent:"}},
		},
		{
			name: "unknown directive",
			text: ".. mydirective::\n\n   body\n",
			want: []problem{
				noEntry("directive", "mydirective", 1),
				{"ERROR", 1, `Unknown directive type "mydirective".`},
			},
		},
		{
			name: "missing literal block",
			text: "Paragraph::\n\nNot indented.\n",
			want: []problem{{"WARNING", 2, "Literal block expected; none found."}},
		},
		{
			name: "unterminated emphasis",
			text: "This is *emphasis without end.\n",
			want: []problem{{"WARNING", 1, "Inline emphasis start-string without end-string."}},
		},
		{
			name: "unterminated literal",
			text: "Some ``code here.\n",
			want: []problem{{"WARNING", 1, "Inline literal start-string without end-string."}},
		},
		{
			name: "unknown role",
			text: "A :foo:`bar` role.\n",
			want: []problem{
				noEntry("role", "foo", 1),
				{"ERROR", 1, `Unknown interpreted text role "foo".`},
			},
		},
		{
			name: "unexpected indentation",
			text: "Para\nmore\n  indented\n",
			want: []problem{{"ERROR", 3, "Unexpected indentation."}},
		},
		{
			name: "bullet list without blank line",
			text: "- one\n- two\nafter\n",
			want: []problem{{"WARNING", 3, "Bullet list ends without a blank line; unexpected unindent."}},
		},
		{
			name: "consecutive explicit markup",
			text: ".. _a: https://a.example\n.. _b: https://b.example\n",
		},
		{
			name: "explicit markup without blank line",
			text: ".. comment\nafter\n",
			want: []problem{{"WARNING", 2, "Explicit markup ends without a blank line; unexpected unindent."}},
		},
		{
			name: "duplicate explicit target",
			text: ".. _a: https://a.example\n.. _a: https://b.example\n",
			want: []problem{{"WARNING", 2, `Duplicate explicit target name: "a".`}},
		},
		{
			name: "title in nested content",
			text: ".. note::\n\n   Title\n   =====\n\n   text\n",
			want: []problem{{"SEVERE", 4, "Unexpected section title."}},
		},
		{
			name: "non-ordinal enumerated list",
			text: "3. three\n4. four\n",
			want: []problem{{"INFO", 1, `Enumerated list start value not ordinal-1: "3." (ordinal 3)`}},
		},
		{
			name: "malformed substitution",
			text: ".. |name|\n",
			want: []problem{{"WARNING", 1, `Substitution definition "name" missing contents.`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := parse(t, "test.rst", tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInlineMarkup(t *testing.T) {
	doc, got := parse(t, "test.rst", "See *this*, **that** and ``code``, then `Python <https://python.org>`_.\n")
	assert.Empty(t, got)

	para := doc.Root.Children[0]
	require.Equal(t, document.KindParagraph, para.Kind)
	assert.Equal(t, "See this, that and code, then Python.", para.AsText())

	refs := para.FindAll(document.KindReference)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://python.org", refs[0].Refuri)
	_, ok := doc.LookupName("python")
	assert.True(t, ok)
}

func TestParseStandaloneURI(t *testing.T) {
	doc, got := parse(t, "test.rst", "Visit https://example.com/path.\n")
	assert.Empty(t, got)

	refs := doc.Root.FindAll(document.KindReference)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://example.com/path", refs[0].Refuri)
}

func TestParseHaltsAtHaltLevel(t *testing.T) {
	settings := document.DefaultSettings()
	settings.HaltLevel = diagnostics.LevelWarning
	doc := document.New("test.rst", settings)

	err := NewParser(nil).Parse("Hello\n===\n\nmore text\n", doc)

	var halt *document.HaltError
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, diagnostics.LevelWarning, halt.Message.Level)
}

func TestParseEmptyInput(t *testing.T) {
	doc, got := parse(t, "test.rst", "")
	assert.Empty(t, got)
	assert.Empty(t, doc.Root.Children)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b   c", "", "d"}, splitLines("a\r\nb\tc  \r\n\nd\n", 4))
	assert.Equal(t, []string{"x"}, splitLines("\ufeffx", 8))
	assert.Nil(t, splitLines("", 8))
}

func TestTextWidthCountsWideCharacters(t *testing.T) {
	assert.Equal(t, 4, textWidth("日本"))
	assert.Equal(t, 5, textWidth("hello"))
}
