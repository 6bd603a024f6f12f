package lint

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/electwix/rst-lint/internal/construct"
	"github.com/electwix/rst-lint/internal/diagnostics"
	"github.com/electwix/rst-lint/internal/document"
)

type goldenRecord struct {
	Line    *int              `yaml:"line"`
	Level   diagnostics.Level `yaml:"level"`
	Type    string            `yaml:"type"`
	Message string            `yaml:"message"`
}

type goldenCase struct {
	Name             string         `yaml:"name"`
	Input            string         `yaml:"input"`
	IgnoreDirectives []string       `yaml:"ignore_directives"`
	IgnoreRoles      []string       `yaml:"ignore_roles"`
	Records          []goldenRecord `yaml:"records"`
}

func loadCases(t *testing.T) []goldenCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "cases.yaml"))
	require.NoError(t, err)
	var cases []goldenCase
	require.NoError(t, yaml.Unmarshal(data, &cases))
	require.NotEmpty(t, cases)
	return cases
}

func TestLintGolden(t *testing.T) {
	for _, tc := range loadCases(t) {
		t.Run(tc.Name, func(t *testing.T) {
			records, err := Lint(tc.Input, Options{
				Source:           "case.rst",
				IgnoreDirectives: tc.IgnoreDirectives,
				IgnoreRoles:      tc.IgnoreRoles,
			})
			require.NoError(t, err)

			got := make([]goldenRecord, 0, len(records))
			for _, r := range records {
				assert.Equal(t, "case.rst", r.Source)
				assert.Contains(t, r.FullMessage, r.Message)
				got = append(got, goldenRecord{Line: r.Line, Level: r.Level, Type: r.Type, Message: r.Message})
			}
			want := tc.Records
			if want == nil {
				want = []goldenRecord{}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLintShortUnderline(t *testing.T) {
	records, err := Lint("Hello\n===\n", Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, diagnostics.LevelWarning, r.Level)
	assert.Equal(t, "WARNING", r.Type)
	assert.Equal(t, 2, r.LineOr(0))
	assert.Contains(t, r.Message, "Title underline too short.")
	assert.Empty(t, r.Source)
}

func TestLintIsDeterministic(t *testing.T) {
	text := "Hello\n===\n\nSee `nowhere`_ and :foo:`bar`.\n\n.. mydirective::\n"
	first, err := Lint(text, Options{Source: "a.rst"})
	require.NoError(t, err)
	second, err := Lint(text, Options{Source: "a.rst"})
	require.NoError(t, err)

	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestLintRestoresNamespace(t *testing.T) {
	before := construct.Default.Snapshot()

	_, err := Lint(".. note:: text\n", Options{
		IgnoreDirectives: []string{"mydirective", "note"},
		IgnoreRoles:      []string{"myrole", "emphasis"},
	})
	require.NoError(t, err)

	assert.True(t, before.Equal(construct.Default.Snapshot()))
	d, ok := construct.Default.Directive("note")
	require.True(t, ok)
	assert.False(t, construct.IsNoop(d))
	_, ok = construct.Default.Directive("mydirective")
	assert.False(t, ok)
}

func TestLintIgnoringBuiltinSuppressesIt(t *testing.T) {
	records, err := Lint(".. note::\n", Options{IgnoreDirectives: []string{"note"}})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = Lint(".. note::\n", Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, diagnostics.LevelError, records[0].Level)
}

// failingNamespace returns a namespace holding the builtins plus a
// directive "explode" that panics and a directive "broken" that fails.
func failingNamespace() *construct.Namespace {
	ns := construct.Default.Clone()
	ns.RegisterDirective("explode", &construct.BasicDirective{
		Fn: func(*construct.DirectiveCall) ([]*document.Node, error) {
			panic("directive exploded")
		},
	})
	ns.RegisterDirective("broken", &construct.BasicDirective{
		Fn: func(*construct.DirectiveCall) ([]*document.Node, error) {
			return nil, errors.New("backend unavailable")
		},
	})
	return ns
}

func TestLintRestoresNamespaceAfterPanic(t *testing.T) {
	ns := failingNamespace()
	before := ns.Snapshot()
	l := New()
	l.Namespace = ns

	records, err := l.Lint("Hello\n===\n\n.. explode::\n", Options{
		Source:           "boom.rst",
		IgnoreDirectives: []string{"mydirective"},
	})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "directive exploded", perr.Panic)
	assert.Equal(t, "lint boom.rst: panic: directive exploded", perr.Error())
	assert.True(t, before.Equal(ns.Snapshot()))
	require.Len(t, records, 1)
	assert.Equal(t, "WARNING", records[0].Type)
}

func TestLintRestoresNamespaceAfterDirectiveFailure(t *testing.T) {
	ns := failingNamespace()
	before := ns.Snapshot()
	l := New()
	l.Namespace = ns

	_, err := l.Lint(".. broken::\n", Options{IgnoreRoles: []string{"myrole"}})

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Nil(t, perr.Panic)
	assert.ErrorContains(t, err, "backend unavailable")
	assert.True(t, before.Equal(ns.Snapshot()))
}

func TestLinterBaseIgnores(t *testing.T) {
	l := New().WithSphinx()
	records, err := l.Lint(".. toctree::\n\n   intro\n\nUse :ctype:`int`.\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = New().Lint(".. toctree::\n", Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, diagnostics.LevelInfo, records[0].Level)
	assert.Contains(t, records[0].Message, `No directive entry for "toctree"`)
	assert.Contains(t, records[1].Message, "Unknown directive type")
}

func TestLinterReportLevelDoesNotFilter(t *testing.T) {
	l := New()
	l.Settings.ReportLevel = diagnostics.LevelSevere
	records, err := l.Lint("3. three\n4. four\n", Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, diagnostics.LevelInfo, records[0].Level)
}

func TestLintConcurrentWithClonedNamespaces(t *testing.T) {
	const workers = 8
	var wg sync.WaitGroup
	results := make([][]diagnostics.Record, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := New()
			l.Namespace = construct.Default.Clone()
			records, err := l.Lint(".. mydirective::\n\nHello\n===\n", Options{
				IgnoreDirectives: []string{"mydirective"},
			})
			assert.NoError(t, err)
			results[i] = records
		}()
	}
	wg.Wait()

	for i := range workers {
		require.Len(t, results[i], 1)
		assert.Equal(t, "Title underline too short.", results[i][0].Message)
	}
}

func TestLintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.rst")
	require.NoError(t, os.WriteFile(path, []byte("Caf\xe9\n===\n"), 0o600))

	records, err := LintFile(path, "iso-8859-1", Options{Source: "ignored"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, path, records[0].Source)
	assert.Equal(t, 2, records[0].LineOr(0))
}

func TestLintFileMissing(t *testing.T) {
	_, err := LintFile(filepath.Join(t.TempDir(), "missing.rst"), "", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLintResultReportsDependencies(t *testing.T) {
	dir := t.TempDir()
	part := filepath.Join(dir, "part.rst")
	table := filepath.Join(dir, "table.csv")
	require.NoError(t, os.WriteFile(part, []byte("Included text.\n"), 0o600))
	require.NoError(t, os.WriteFile(table, []byte("a,b\n"), 0o600))

	content := ".. include:: part.rst\n\n.. include:: part.rst\n\n" +
		".. csv-table::\n   :file: table.csv\n\n.. include:: missing.rst\n"
	res, err := New().LintResult(content, Options{Source: filepath.Join(dir, "main.rst")})
	require.NoError(t, err)
	assert.Equal(t, []string{part, table, filepath.Join(dir, "missing.rst")}, res.Dependencies)
	require.Len(t, res.Records, 1)
	assert.Equal(t, diagnostics.LevelSevere, res.Records[0].Level)
}

func TestLintResultWithoutDependencies(t *testing.T) {
	res, err := New().LintResult("Plain text.\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)
	assert.Empty(t, res.Records)
}
