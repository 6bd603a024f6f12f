// Package diagnostics provides the diagnostic records rst-lint reports.
// A Record is a plain value describing one problem found while parsing or
// transforming a document; a Collector gathers them from a document's
// reporter in emission order.
package diagnostics

import (
	"fmt"
	"strings"
)

// Level indicates the seriousness of a diagnostic. Levels are totally
// ordered from Debug to Severe.
type Level int

const (
	// LevelDebug is reserved for parser tracing.
	LevelDebug Level = iota
	// LevelInfo is a note that does not need attention.
	LevelInfo
	// LevelWarning is a likely mistake; output is still produced.
	LevelWarning
	// LevelError is a definite markup error.
	LevelError
	// LevelSevere is a structural error the parser could not recover from cleanly.
	LevelSevere
)

var levelNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR", "SEVERE"}

// String returns the upper-case level name, e.g. "WARNING".
func (l Level) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	return l >= LevelDebug && l <= LevelSevere
}

// ParseLevel parses a level name case-insensitively. "warn" and "err" are
// accepted as aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error", "err":
		return LevelError, nil
	case "severe":
		return LevelSevere, nil
	default:
		return LevelWarning, fmt.Errorf("unknown level %q (want debug, info, warning, error or severe)", s)
	}
}

// LevelNames returns the lower-case level names in ascending order.
func LevelNames() []string {
	names := make([]string, len(levelNames))
	for i, n := range levelNames {
		names[i] = strings.ToLower(n)
	}
	return names
}

// Record is one diagnostic. Records are values; the collector hands out
// copies so holders can never observe each other's changes.
type Record struct {
	// Line is the 1-based source line, nil when the problem has no line context.
	Line        *int   `json:"line" msgpack:"line"`
	Source      string `json:"source" msgpack:"source"`
	Level       Level  `json:"level" msgpack:"level"`
	Type        string `json:"type" msgpack:"type"`
	Message     string `json:"message" msgpack:"message"`
	FullMessage string `json:"full_message" msgpack:"full_message"`
}

// HasLine reports whether the record carries a line number.
func (r Record) HasLine() bool {
	return r.Line != nil
}

// LineOr returns the line number or def when absent.
func (r Record) LineOr(def int) int {
	if r.Line == nil {
		return def
	}
	return *r.Line
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	if r.Line != nil {
		line := *r.Line
		r.Line = &line
	}
	return r
}

// String renders the record the way the text formatter prints it, without color.
func (r Record) String() string {
	return SimpleFormatter{}.Format(r)
}

// Message is the raw system message a reporter hands to its observers.
type Message interface {
	Level() Level
	Type() string
	// Line returns the message line and whether it is known.
	Line() (int, bool)
	Source() string
	// ChildText returns the plain text of the i-th child, or "" when absent.
	ChildText(i int) string
	// Text returns the plain text of the whole message.
	Text() string
}

// Emitter is anything that notifies observers of system messages.
type Emitter interface {
	AttachObserver(fn func(Message)) (detach func())
}

// FromMessage converts a raw system message into a Record.
func FromMessage(m Message) Record {
	rec := Record{
		Source:      m.Source(),
		Level:       m.Level(),
		Type:        m.Type(),
		Message:     m.ChildText(0),
		FullMessage: m.Text(),
	}
	if line, ok := m.Line(); ok {
		rec.Line = &line
	}
	return rec
}

// Collector accumulates every system message its emitter raises, in
// emission order, without filtering.
type Collector struct {
	records []Record
	detach  func()
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Attach subscribes the collector to e. Attaching again moves the
// subscription to the new emitter.
func (c *Collector) Attach(e Emitter) {
	c.Detach()
	c.detach = e.AttachObserver(c.OnDiagnostic)
}

// Detach stops observing. Records collected so far are kept.
func (c *Collector) Detach() {
	if c.detach != nil {
		c.detach()
		c.detach = nil
	}
}

// OnDiagnostic records one message.
func (c *Collector) OnDiagnostic(m Message) {
	c.records = append(c.records, FromMessage(m))
}

// Collected returns a copy of the records in emission order.
func (c *Collector) Collected() []Record {
	out := make([]Record, len(c.records))
	for i, r := range c.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of collected records.
func (c *Collector) Len() int {
	return len(c.records)
}

// Filter returns the records whose level is at least threshold, preserving order.
func Filter(records []Record, threshold Level) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Level >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// AnyAtLeast reports whether any record reaches threshold.
func AnyAtLeast(records []Record, threshold Level) bool {
	for _, r := range records {
		if r.Level >= threshold {
			return true
		}
	}
	return false
}

// Summary counts records per level.
type Summary struct {
	Total    int
	Debug    int
	Info     int
	Warnings int
	Errors   int
	Severe   int
}

// Summarize counts records per level.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	for _, r := range records {
		switch r.Level {
		case LevelDebug:
			s.Debug++
		case LevelInfo:
			s.Info++
		case LevelWarning:
			s.Warnings++
		case LevelError:
			s.Errors++
		case LevelSevere:
			s.Severe++
		}
	}
	return s
}

// String returns a human-readable summary.
func (s Summary) String() string {
	if s.Total == 0 {
		return "no diagnostics"
	}

	parts := make([]string, 0, 4)
	if s.Severe > 0 {
		parts = append(parts, fmt.Sprintf("%d severe", s.Severe))
	}
	if s.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", s.Errors))
	}
	if s.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", s.Warnings))
	}
	if s.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d info(s)", s.Info))
	}
	if s.Debug > 0 {
		parts = append(parts, fmt.Sprintf("%d debug", s.Debug))
	}
	return strings.Join(parts, ", ")
}
