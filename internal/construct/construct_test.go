package construct

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electwix/rst-lint/internal/document"
)

func realDirective() *BasicDirective {
	return &BasicDirective{
		Def: DirectiveSpec{HasContent: true},
		Fn: func(*DirectiveCall) ([]*document.Node, error) {
			return []*document.Node{document.NewElement(document.KindContainer)}, nil
		},
	}
}

func realRole() *BasicRole {
	return &BasicRole{Fn: func(c *RoleCall) (nodes, messages []*document.Node) {
		return []*document.Node{document.NewTextElement(document.KindEmphasis, c.Text)}, nil
	}}
}

func TestNamespaceCaseInsensitive(t *testing.T) {
	ns := NewNamespace()
	d := realDirective()
	ns.RegisterDirective("Note", d)

	got, ok := ns.Directive("NOTE")
	require.True(t, ok)
	assert.Same(t, d, got)

	ns.RemoveDirective("note")
	_, ok = ns.Directive("note")
	assert.False(t, ok)
	ns.RemoveDirective("note")
}

func TestRegisterInstallsStubsAndRestores(t *testing.T) {
	ns := NewNamespace()
	ns.RegisterDirective("note", realDirective())
	before := ns.Snapshot()

	reg := Register(ns, []string{"mydirective", "toctree"}, []string{"myrole"})
	assert.Equal(t, []string{"mydirective", "toctree"}, reg.Directives)
	assert.Equal(t, []string{"myrole"}, reg.Roles)

	d, ok := ns.Directive("mydirective")
	require.True(t, ok)
	assert.True(t, IsNoop(d))
	r, ok := ns.Role("myrole")
	require.True(t, ok)
	assert.True(t, IsNoop(r))

	Unregister(ns, reg)
	assert.True(t, before.Equal(ns.Snapshot()))
	_, ok = ns.Directive("mydirective")
	assert.False(t, ok)
}

func TestRegisterRestoresPreviousBinding(t *testing.T) {
	ns := NewNamespace()
	orig := realDirective()
	origRole := realRole()
	ns.RegisterDirective("include", orig)
	ns.RegisterRole("ctype", origRole)

	reg := Register(ns, []string{"include"}, []string{"ctype"})
	d, _ := ns.Directive("include")
	assert.True(t, IsNoop(d))

	Unregister(ns, reg)
	d, ok := ns.Directive("include")
	require.True(t, ok)
	assert.Same(t, orig, d)
	r, ok := ns.Role("ctype")
	require.True(t, ok)
	assert.Same(t, origRole, r)
}

func TestRegisterDeduplicates(t *testing.T) {
	ns := NewNamespace()
	reg := Register(ns, []string{"a", "A", "b", "a"}, []string{"r", "r"})
	assert.Equal(t, []string{"a", "b"}, reg.Directives)
	assert.Equal(t, []string{"r"}, reg.Roles)

	Unregister(ns, reg)
	assert.Empty(t, ns.DirectiveNames())
	assert.Empty(t, ns.RoleNames())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	ns := NewNamespace()
	reg := Register(ns, []string{"x"}, nil)
	Unregister(ns, reg)

	// A later registration of the same name must survive a stale unregister.
	later := realDirective()
	ns.RegisterDirective("x", later)
	Unregister(ns, reg)
	Unregister(ns, nil)

	d, ok := ns.Directive("x")
	require.True(t, ok)
	assert.Same(t, later, d)
}

func TestUnregisterToleratesRemovedNames(t *testing.T) {
	ns := NewNamespace()
	reg := Register(ns, []string{"gone"}, []string{"gone"})
	ns.RemoveDirective("gone")
	ns.RemoveRole("gone")

	assert.NotPanics(t, func() { Unregister(ns, reg) })
	assert.Empty(t, ns.DirectiveNames())
}

func TestNestedScopesRestoreInOrder(t *testing.T) {
	ns := NewNamespace()
	before := ns.Snapshot()

	outer := Register(ns, []string{"a"}, nil)
	inner := Register(ns, []string{"a", "b"}, nil)
	Unregister(ns, inner)
	_, ok := ns.Directive("a")
	assert.True(t, ok, "outer binding survives the inner scope")
	Unregister(ns, outer)

	assert.True(t, before.Equal(ns.Snapshot()))
}

func TestScopedRestoresOnError(t *testing.T) {
	ns := NewNamespace()
	before := ns.Snapshot()
	boom := errors.New("boom")

	err := Scoped(ns, []string{"mydirective"}, []string{"myrole"}, func() error {
		_, ok := ns.Directive("mydirective")
		assert.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, before.Equal(ns.Snapshot()))
}

func TestScopedRestoresOnPanic(t *testing.T) {
	ns := NewNamespace()
	before := ns.Snapshot()

	assert.Panics(t, func() {
		_ = Scoped(ns, []string{"mydirective"}, nil, func() error {
			panic("parser failure")
		})
	})
	assert.True(t, before.Equal(ns.Snapshot()))
}

func TestUseInstallsRealConstructs(t *testing.T) {
	ns := NewNamespace()
	d := realDirective()
	r := realRole()

	err := Use(ns, map[string]Directive{"custom": d}, map[string]Role{"custom": r}, func() error {
		got, ok := ns.Directive("custom")
		require.True(t, ok)
		assert.Same(t, d, got)
		assert.False(t, IsNoop(got))
		return nil
	})
	require.NoError(t, err)
	_, ok := ns.Directive("custom")
	assert.False(t, ok)

	err = Use(ns, map[string]Directive{"nil": nil}, nil, func() error { return nil })
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	ns := NewNamespace()
	ns.RegisterDirective("note", realDirective())
	clone := ns.Clone()

	Register(clone, []string{"only-in-clone"}, nil)
	_, ok := ns.Directive("only-in-clone")
	assert.False(t, ok)
	_, ok = clone.Directive("note")
	assert.True(t, ok)
}

func TestSnapshotEqual(t *testing.T) {
	ns := NewNamespace()
	ns.RegisterDirective("a", realDirective())
	snap := ns.Snapshot()
	assert.True(t, snap.Equal(ns.Snapshot()))

	ns.RegisterDirective("a", realDirective())
	assert.False(t, snap.Equal(ns.Snapshot()), "a different implementation is a different binding")
}

// valueRole is a role bound by value whose dynamic field may hold a func.
type valueRole struct {
	name   string
	action any
}

func (valueRole) Apply(*RoleCall) (nodes, messages []*document.Node) { return nil, nil }

func TestSnapshotEqualWithUncomparableValueBinding(t *testing.T) {
	action := func() {}
	ns := NewNamespace()
	ns.RegisterRole("r", valueRole{name: "r", action: action})
	ns.RegisterRole("plain", valueRole{name: "plain", action: 3})
	snap := ns.Snapshot()

	require.NotPanics(t, func() {
		assert.True(t, snap.Equal(ns.Snapshot()))
	})

	ns.RegisterRole("r", valueRole{name: "other", action: action})
	assert.False(t, snap.Equal(ns.Snapshot()))

	ns.RegisterRole("r", valueRole{name: "r", action: func() { panic("unused") }})
	assert.False(t, snap.Equal(ns.Snapshot()), "a different func is a different binding")

	ns.RegisterRole("r", valueRole{name: "r", action: action})
	ns.RegisterRole("plain", valueRole{name: "plain", action: 4})
	assert.False(t, snap.Equal(ns.Snapshot()))
}

func TestOptionConverters(t *testing.T) {
	tests := []struct {
		name    string
		conv    OptionConverter
		input   string
		want    string
		wantErr bool
	}{
		{"flag empty", Flag, "", "", false},
		{"flag with value", Flag, "x", "", true},
		{"nonnegative", NonNegativeInt, " 3 ", "3", false},
		{"nonnegative negative", NonNegativeInt, "-1", "", true},
		{"nonnegative junk", NonNegativeInt, "two", "", true},
		{"positive zero", PositiveInt, "0", "", true},
		{"uri", URI, "http://exa\n mple.com", "http://example.com", false},
		{"class", ClassOption, "Big  Red", "big red", false},
		{"choice", Choice("left", "right"), "LEFT", "left", false},
		{"choice bad", Choice("left", "right"), "up", "", true},
		{"unchanged required", UnchangedRequired, "", "", true},
		{"integer negative", Integer, "-4", "-4", false},
		{"length", LengthOrUnitless, "2.5 em", "2.5em", false},
		{"length unitless", LengthOrUnitless, "200", "200", false},
		{"length percent", LengthOrUnitless, "50%", "", true},
		{"width percent", LengthOrPercentageOrUnitless, "50%", "50%", false},
		{"width bad unit", LengthOrPercentageOrUnitless, "3 furlongs", "", true},
		{"percentage", Percentage, "80 %", "80", false},
		{"single char", SingleChar, ";", ";", false},
		{"single char code", SingleChar, "0x09", "\t", false},
		{"single char too long", SingleChar, "ab", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conv(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChoiceMessage(t *testing.T) {
	_, err := Choice("left", "center", "right")("up")
	assert.EqualError(t, err, `"up" unknown; choose from "left", "center", or "right"`)
}

func TestCharacterCode(t *testing.T) {
	tests := map[string]string{
		"65":      "A",
		"0x41":    "A",
		"U+263A":  "\u263a",
		"\\u263a": "\u263a",
		"&#x41;":  "A",
		"text":    "text",
	}
	for in, want := range tests {
		got, err := CharacterCode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := CharacterCode("0x110000")
	assert.EqualError(t, err, "code too large")
}

func TestRequireContent(t *testing.T) {
	call := &DirectiveCall{Name: "note", Content: []string{"", "  "}}
	err := call.RequireContent()
	var de *DirectiveError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, `Content block expected for the "note" directive; none found.`, de.Message)

	call.Content = []string{"text"}
	assert.NoError(t, call.RequireContent())
}
