package document

import (
	"fmt"
	"io"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// HaltNever is a halt level no message can reach.
const HaltNever = diagnostics.LevelSevere + 1

// HaltError is the panic value raised when a message reaches the halt level.
// The parser and the transform scheduler recover it and return it.
type HaltError struct {
	Message *Node
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("processing halted: (%s/%d) %s", e.Message.Type, e.Message.Level, e.Message.AsText())
}

type observer struct {
	id int
	fn func(diagnostics.Message)
}

// Reporter creates system messages, writes them to an optional stream and
// notifies observers. A Reporter belongs to one document.
type Reporter struct {
	Source string
	// ReportLevel is the minimum level written to Stream.
	ReportLevel diagnostics.Level
	// HaltLevel is the level at which processing is aborted.
	HaltLevel diagnostics.Level
	// Debug enables DEBUG messages.
	Debug bool
	// Stream receives formatted messages; nil disables console output.
	Stream io.Writer

	observers []observer
	nextID    int
}

// NewReporter creates a reporter for source with the given levels.
func NewReporter(source string, reportLevel, haltLevel diagnostics.Level, stream io.Writer) *Reporter {
	return &Reporter{
		Source:      source,
		ReportLevel: reportLevel,
		HaltLevel:   haltLevel,
		Stream:      stream,
	}
}

// AttachObserver subscribes fn to every message the reporter raises. The
// returned function unsubscribes it.
func (r *Reporter) AttachObserver(fn func(diagnostics.Message)) (detach func()) {
	id := r.nextID
	r.nextID++
	r.observers = append(r.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

var _ diagnostics.Emitter = (*Reporter)(nil)

// MessageOption adjusts a system message before it is raised.
type MessageOption func(*messageConfig)

type messageConfig struct {
	line     int
	hasLine  bool
	source   string
	base     *Node
	children []*Node
}

// AtLine sets the message line explicitly.
func AtLine(line int) MessageOption {
	return func(c *messageConfig) {
		c.line = line
		c.hasLine = true
	}
}

// FromSource overrides the message source, e.g. for included files. An
// empty source keeps the reporter's.
func FromSource(source string) MessageOption {
	return func(c *messageConfig) { c.source = source }
}

// WithBase takes source and line from node when no line is given.
func WithBase(node *Node) MessageOption {
	return func(c *messageConfig) { c.base = node }
}

// WithChildren appends extra children, usually a literal block quoting the
// offending markup.
func WithChildren(children ...*Node) MessageOption {
	return func(c *messageConfig) { c.children = append(c.children, children...) }
}

// WithLiteral appends a literal block holding text.
func WithLiteral(text string) MessageOption {
	return WithChildren(NewTextElement(KindLiteralBlock, text))
}

// SystemMessage raises a message at level and returns its node. It panics
// with *HaltError when level reaches the halt level.
func (r *Reporter) SystemMessage(level diagnostics.Level, message string, opts ...MessageOption) *Node {
	var cfg messageConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	msg := NewElement(KindSystemMessage)
	msg.Level = level
	msg.Type = level.String()
	msg.Source = r.Source
	if cfg.base != nil {
		src, line := cfg.base.Position()
		if src != "" {
			msg.Source = src
		}
		msg.Line = line
	}
	if cfg.hasLine {
		msg.Line = cfg.line
	}
	if cfg.source != "" {
		msg.Source = cfg.source
	}
	if message != "" {
		msg.Append(NewTextElement(KindParagraph, message))
	}
	msg.Append(cfg.children...)

	if r.Stream != nil && (level >= r.ReportLevel || level >= r.HaltLevel || (r.Debug && level == diagnostics.LevelDebug)) {
		_, _ = fmt.Fprintln(r.Stream, FormatMessage(msg))
	}
	if level >= r.HaltLevel {
		panic(&HaltError{Message: msg})
	}
	if level > diagnostics.LevelDebug || r.Debug {
		m := SystemMessage{node: msg}
		for _, o := range append([]observer(nil), r.observers...) {
			o.fn(m)
		}
	}
	return msg
}

// DebugMessage raises a DEBUG message.
func (r *Reporter) DebugMessage(message string, opts ...MessageOption) *Node {
	return r.SystemMessage(diagnostics.LevelDebug, message, opts...)
}

// Info raises an INFO message.
func (r *Reporter) Info(message string, opts ...MessageOption) *Node {
	return r.SystemMessage(diagnostics.LevelInfo, message, opts...)
}

// Warning raises a WARNING message.
func (r *Reporter) Warning(message string, opts ...MessageOption) *Node {
	return r.SystemMessage(diagnostics.LevelWarning, message, opts...)
}

// Error raises an ERROR message.
func (r *Reporter) Error(message string, opts ...MessageOption) *Node {
	return r.SystemMessage(diagnostics.LevelError, message, opts...)
}

// Severe raises a SEVERE message.
func (r *Reporter) Severe(message string, opts ...MessageOption) *Node {
	return r.SystemMessage(diagnostics.LevelSevere, message, opts...)
}

// FormatMessage renders a system message the way it is written to a stream:
// "source:line: (TYPE/level) text".
func FormatMessage(msg *Node) string {
	line := ""
	if msg.Line > 0 {
		line = fmt.Sprint(msg.Line)
	}
	return fmt.Sprintf("%s:%s: (%s/%d) %s", msg.Source, line, msg.Type, msg.Level, msg.AsText())
}

// SystemMessage adapts a system message node to diagnostics.Message.
type SystemMessage struct {
	node *Node
}

// AsMessage wraps a system message node.
func AsMessage(n *Node) SystemMessage {
	return SystemMessage{node: n}
}

// Node returns the wrapped node.
func (m SystemMessage) Node() *Node { return m.node }

// Level implements diagnostics.Message.
func (m SystemMessage) Level() diagnostics.Level { return m.node.Level }

// Type implements diagnostics.Message.
func (m SystemMessage) Type() string { return m.node.Type }

// Line implements diagnostics.Message.
func (m SystemMessage) Line() (int, bool) { return m.node.Line, m.node.Line > 0 }

// Source implements diagnostics.Message.
func (m SystemMessage) Source() string { return m.node.Source }

// ChildText implements diagnostics.Message.
func (m SystemMessage) ChildText(i int) string {
	if i < 0 || i >= len(m.node.Children) {
		return ""
	}
	return m.node.Children[i].AsText()
}

// Text implements diagnostics.Message.
func (m SystemMessage) Text() string { return m.node.AsText() }
