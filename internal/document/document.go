package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/electwix/rst-lint/internal/diagnostics"
)

// Settings control how a document reports problems.
type Settings struct {
	// ReportLevel is the minimum level written to Stream.
	ReportLevel diagnostics.Level
	// HaltLevel aborts processing when reached. HaltNever disables halting.
	HaltLevel diagnostics.Level
	// Debug enables DEBUG messages.
	Debug bool
	// Stream receives formatted messages; nil keeps the reporter silent.
	Stream io.Writer
	// TabWidth is the tab stop used when expanding tabs.
	TabWidth int
}

// DefaultSettings returns settings that report warnings and never halt.
func DefaultSettings() Settings {
	return Settings{
		ReportLevel: diagnostics.LevelWarning,
		HaltLevel:   HaltNever,
		TabWidth:    8,
	}
}

// TransformRequest asks the transform scheduler to apply a transform of
// Kind to Target. Higher priorities apply first.
type TransformRequest struct {
	Kind     string
	Priority int
	Target   *Node
	Options  map[string]any
}

// Document is the root of a parsed tree plus the per-document tables the
// parser and the transforms share.
type Document struct {
	Root     *Node
	Source   string
	Settings Settings
	Reporter *Reporter

	// DefaultRole names the role used for interpreted text without a role.
	DefaultRole string

	names    map[string]*Node
	explicit map[string]bool

	substitutionDefs  map[string]*Node
	substitutionNames map[string]string

	requests []TransformRequest

	dependencies []string
}

// New creates an empty document for source.
func New(source string, settings Settings) *Document {
	if settings.TabWidth <= 0 {
		settings.TabWidth = 8
	}
	root := NewElement(KindDocument)
	root.Source = source
	rep := NewReporter(source, settings.ReportLevel, settings.HaltLevel, settings.Stream)
	rep.Debug = settings.Debug
	return &Document{
		Root:              root,
		Source:            source,
		Settings:          settings,
		Reporter:          rep,
		names:             make(map[string]*Node),
		explicit:          make(map[string]bool),
		substitutionDefs:  make(map[string]*Node),
		substitutionNames: make(map[string]string),
	}
}

// AddDependency records that the document read path. Reading it again is
// not recorded twice.
func (d *Document) AddDependency(path string) {
	for _, p := range d.dependencies {
		if p == path {
			return
		}
	}
	d.dependencies = append(d.dependencies, path)
}

// Dependencies returns the files the document read besides its own
// source, in first-read order.
func (d *Document) Dependencies() []string {
	return append([]string(nil), d.dependencies...)
}

// NormalizeName lower-cases s and collapses its whitespace, the form used
// to match reference names against target names.
func NormalizeName(s string) string {
	return strings.ToLower(WhitespaceNormalize(s))
}

// WhitespaceNormalize collapses runs of whitespace to one space.
func WhitespaceNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NoteImplicitTarget registers the names of an implicit target such as a
// section title. It returns any duplicate-name messages raised.
func (d *Document) NoteImplicitTarget(n *Node) []*Node {
	return d.noteTarget(n, false)
}

// NoteExplicitTarget registers the names of an explicit hyperlink target.
// It returns any duplicate-name messages raised.
func (d *Document) NoteExplicitTarget(n *Node) []*Node {
	return d.noteTarget(n, true)
}

func (d *Document) noteTarget(n *Node, explicit bool) []*Node {
	var msgs []*Node
	for _, name := range n.Names {
		if _, exists := d.names[name]; exists {
			msgs = append(msgs, d.duplicateName(n, name, explicit)...)
			continue
		}
		d.names[name] = n
		d.explicit[name] = explicit
	}
	return msgs
}

func (d *Document) duplicateName(n *Node, name string, explicit bool) []*Node {
	var msgs []*Node
	old := d.names[name]
	oldExplicit := d.explicit[name]
	d.explicit[name] = oldExplicit || explicit

	if explicit {
		if oldExplicit {
			level := diagnostics.LevelWarning
			if old != nil && n.Refuri != "" && old.Refuri == n.Refuri {
				level = diagnostics.LevelInfo
			}
			if level > diagnostics.LevelInfo {
				d.names[name] = nil
			}
			msgs = append(msgs, d.Reporter.SystemMessage(level,
				fmt.Sprintf("Duplicate explicit target name: \"%s\".", name), WithBase(n)))
		} else {
			d.names[name] = n
		}
	} else if old != nil && !oldExplicit {
		d.names[name] = nil
	}

	if !explicit || (!oldExplicit && old != nil) {
		msgs = append(msgs, d.Reporter.Info(
			fmt.Sprintf("Duplicate implicit target name: \"%s\".", name), WithBase(n)))
	}
	return msgs
}

// LookupName resolves a normalized reference name. It reports whether the
// name is known; a known name with a nil node is ambiguous.
func (d *Document) LookupName(name string) (*Node, bool) {
	n, ok := d.names[name]
	return n, ok
}

// NoteSubstitutionDef registers a substitution definition. The last
// definition of a name wins; duplicates raise an error message.
func (d *Document) NoteSubstitutionDef(name string, def *Node) []*Node {
	name = WhitespaceNormalize(name)
	var msgs []*Node
	if _, exists := d.substitutionDefs[name]; exists {
		msgs = append(msgs, d.Reporter.Error(
			fmt.Sprintf("Duplicate substitution definition name: \"%s\".", name), WithBase(def)))
	}
	d.substitutionDefs[name] = def
	d.substitutionNames[NormalizeName(name)] = name
	return msgs
}

// SubstitutionDef returns the definition for name, matching exactly first
// and case-insensitively second.
func (d *Document) SubstitutionDef(name string) (*Node, bool) {
	name = WhitespaceNormalize(name)
	if def, ok := d.substitutionDefs[name]; ok {
		return def, true
	}
	if exact, ok := d.substitutionNames[NormalizeName(name)]; ok {
		def, ok := d.substitutionDefs[exact]
		return def, ok
	}
	return nil, false
}

// RequestTransform queues a transform for the scheduler. Requests may be
// made while parsing or from a running transform.
func (d *Document) RequestTransform(req TransformRequest) {
	if req.Target == nil {
		req.Target = d.Root
	}
	d.requests = append(d.requests, req)
}

// NewPending creates a pending node bound to a transform request and
// returns it for insertion into the tree.
func (d *Document) NewPending(kind string, priority int, options map[string]any) *Node {
	p := NewElement(KindPending)
	p.SetAttr("transform", kind)
	d.RequestTransform(TransformRequest{Kind: kind, Priority: priority, Target: p, Options: options})
	return p
}

// TakeTransformRequests returns and clears the queued requests in the
// order they were made.
func (d *Document) TakeTransformRequests() []TransformRequest {
	reqs := d.requests
	d.requests = nil
	return reqs
}
