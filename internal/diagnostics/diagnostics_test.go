package diagnostics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func intPtr(v int) *int { return &v }

type fakeMessage struct {
	level    Level
	typ      string
	line     int
	hasLine  bool
	source   string
	children []string
}

func (m fakeMessage) Level() Level      { return m.level }
func (m fakeMessage) Type() string      { return m.typ }
func (m fakeMessage) Line() (int, bool) { return m.line, m.hasLine }
func (m fakeMessage) Source() string    { return m.source }
func (m fakeMessage) ChildText(i int) string {
	if i < len(m.children) {
		return m.children[i]
	}
	return ""
}

func (m fakeMessage) Text() string {
	out := ""
	for i, c := range m.children {
		if i > 0 {
			out += "\n\n"
		}
		out += c
	}
	return out
}

type fakeEmitter struct {
	observers map[int]func(Message)
	next      int
}

func (e *fakeEmitter) AttachObserver(fn func(Message)) func() {
	if e.observers == nil {
		e.observers = make(map[int]func(Message))
	}
	id := e.next
	e.next++
	e.observers[id] = fn
	return func() { delete(e.observers, id) }
}

func (e *fakeEmitter) emit(m Message) {
	for i := 0; i < e.next; i++ {
		if fn, ok := e.observers[i]; ok {
			fn(m)
		}
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarning, "WARNING"},
		{LevelError, "ERROR"},
		{LevelSevere, "SEVERE"},
		{Level(9), "LEVEL(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarning, false},
		{"warn", LevelWarning, false},
		{"Error", LevelError, false},
		{"severe", LevelSevere, false},
		{"fatal", LevelWarning, true},
		{"", LevelWarning, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	order := []Level{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelSevere}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			t.Errorf("%v should be below %v", order[i-1], order[i])
		}
	}
	if Level(5).Valid() || !LevelSevere.Valid() {
		t.Error("Valid() disagrees with the defined levels")
	}
}

func TestFromMessage(t *testing.T) {
	msg := fakeMessage{
		level:    LevelWarning,
		typ:      "WARNING",
		line:     2,
		hasLine:  true,
		source:   "README.rst",
		children: []string{"Title underline too short.", "Hello\n==="},
	}

	got := FromMessage(msg)
	want := Record{
		Line:        intPtr(2),
		Source:      "README.rst",
		Level:       LevelWarning,
		Type:        "WARNING",
		Message:     "Title underline too short.",
		FullMessage: "Title underline too short.\n\nHello\n===",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromMessage() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromMessageWithoutLine(t *testing.T) {
	got := FromMessage(fakeMessage{level: LevelError, typ: "ERROR", children: []string{"boom"}})
	if got.HasLine() {
		t.Fatalf("expected no line, got %d", *got.Line)
	}
	if got.LineOr(-1) != -1 {
		t.Errorf("LineOr() = %d, want -1", got.LineOr(-1))
	}
}

func TestCollectorPreservesEmissionOrder(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCollector()
	c.Attach(e)

	e.emit(fakeMessage{level: LevelError, typ: "ERROR", children: []string{"first"}})
	e.emit(fakeMessage{level: LevelInfo, typ: "INFO", children: []string{"second"}})
	e.emit(fakeMessage{level: LevelDebug, typ: "DEBUG", children: []string{"third"}})

	got := c.Collected()
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Message != want {
			t.Errorf("record %d = %q, want %q", i, got[i].Message, want)
		}
	}
}

func TestCollectorDetachKeepsRecords(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCollector()
	c.Attach(e)
	e.emit(fakeMessage{level: LevelWarning, typ: "WARNING", children: []string{"kept"}})
	c.Detach()
	e.emit(fakeMessage{level: LevelWarning, typ: "WARNING", children: []string{"dropped"}})

	if c.Len() != 1 {
		t.Fatalf("expected 1 record after detach, got %d", c.Len())
	}
	c.Detach()
}

func TestCollectedReturnsCopies(t *testing.T) {
	e := &fakeEmitter{}
	c := NewCollector()
	c.Attach(e)
	e.emit(fakeMessage{level: LevelWarning, typ: "WARNING", line: 4, hasLine: true, children: []string{"x"}})

	first := c.Collected()
	*first[0].Line = 99
	first[0].Message = "changed"

	second := c.Collected()
	if *second[0].Line != 4 || second[0].Message != "x" {
		t.Errorf("collector state leaked through a returned copy: %+v", second[0])
	}
}

func TestFilter(t *testing.T) {
	records := []Record{
		{Level: LevelInfo, Message: "a"},
		{Level: LevelError, Message: "b"},
		{Level: LevelWarning, Message: "c"},
		{Level: LevelSevere, Message: "d"},
	}

	got := Filter(records, LevelWarning)
	var messages []string
	for _, r := range got {
		messages = append(messages, r.Message)
	}
	if diff := cmp.Diff([]string{"b", "c", "d"}, messages); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}

	if !AnyAtLeast(records, LevelSevere) {
		t.Error("AnyAtLeast(SEVERE) = false, want true")
	}
	if AnyAtLeast(records[:1], LevelWarning) {
		t.Error("AnyAtLeast(WARNING) on info-only records = true, want false")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Record{
		{Level: LevelWarning},
		{Level: LevelWarning},
		{Level: LevelError},
		{Level: LevelInfo},
	})
	if s.Total != 4 || s.Warnings != 2 || s.Errors != 1 || s.Info != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if got, want := s.String(), "1 error(s), 2 warning(s), 1 info(s)"; got != want {
		t.Errorf("Summary.String() = %q, want %q", got, want)
	}
	if got := Summarize(nil).String(); got != "no diagnostics" {
		t.Errorf("empty summary = %q", got)
	}
}
