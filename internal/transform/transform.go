// Package transform applies structural passes to a parsed document in
// priority order.
package transform

import (
	"fmt"
	"sync"

	"github.com/electwix/rst-lint/internal/document"
)

// Priorities of the standard transforms. Higher values apply first.
const (
	PriorityClassAttribute      = 790
	PrioritySubstitutions       = 780
	PriorityDocTitle            = 680
	PriorityAnonymousHyperlinks = 560
	PriorityIndirectHyperlinks  = 540
	PrioritySectNum             = 290
	PriorityContents            = 280
	PriorityTransitions         = 170
	PriorityDanglingReferences  = 150
	PriorityFilterMessages      = 130
)

// Kinds of the standard transforms.
const (
	KindSubstitutions       = "references.substitutions"
	KindAnonymousHyperlinks = "references.anonymous"
	KindIndirectHyperlinks  = "references.indirect"
	KindDanglingReferences  = "references.dangling"
	KindDocTitle            = "frontmatter.doctitle"
	KindContents            = "parts.contents"
	KindSectNum             = "parts.sectnum"
	KindTransitions         = "misc.transitions"
	KindClassAttribute      = "misc.class-attribute"
	KindFilterMessages      = "universal.filter-messages"
)

// Descriptor asks for one application of a transform.
type Descriptor struct {
	Priority int
	Kind     string
	// Target is the node the transform works on; nil means the root.
	Target  *document.Node
	Options map[string]any
}

// Component contributes default transforms, the way a reader or writer
// does.
type Component interface {
	Transforms() []Descriptor
}

// Transform is one instantiated pass.
type Transform interface {
	Apply(options map[string]any) error
}

// Factory instantiates a transform for a document and target node.
type Factory func(doc *document.Document, target *document.Node) Transform

// Func adapts a function to Transform.
type Func func(options map[string]any) error

// Apply implements Transform.
func (f Func) Apply(options map[string]any) error { return f(options) }

// UnknownKindError is returned when a descriptor names a kind nothing
// registered.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("transform: unknown kind %q", e.Kind)
}

// registry is the global kind registry.
var registry = &Registry{kinds: make(map[string]Factory)}

// Registry maps transform kinds to factories.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Factory
}

// Register adds a factory. Panics if the kind is already registered.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind]; exists {
		panic(fmt.Sprintf("transform: kind %q already registered", kind))
	}
	r.kinds[kind] = f
}

// Lookup returns the factory for kind.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.kinds[kind]
	return f, ok
}

// Register adds a factory to the global registry, for transforms defined
// outside this package.
func Register(kind string, f Factory) {
	registry.Register(kind, f)
}

// Lookup resolves a kind in the global registry.
func Lookup(kind string) (Factory, bool) {
	return registry.Lookup(kind)
}

//nolint:gochecknoinits // standard transforms register on import
func init() {
	Register(KindSubstitutions, newSubstitutions)
	Register(KindAnonymousHyperlinks, newAnonymousHyperlinks)
	Register(KindIndirectHyperlinks, newIndirectHyperlinks)
	Register(KindDanglingReferences, newDanglingReferences)
	Register(KindDocTitle, newDocTitle)
	Register(KindContents, newContents)
	Register(KindSectNum, newSectNum)
	Register(KindTransitions, newTransitions)
	Register(KindClassAttribute, newClassAttribute)
	Register(KindFilterMessages, newFilterMessages)
}

// Reader is the component contributing the transforms every parsed
// document goes through.
type Reader struct{}

// Transforms implements Component.
func (Reader) Transforms() []Descriptor {
	return []Descriptor{
		{Priority: PrioritySubstitutions, Kind: KindSubstitutions},
		{Priority: PriorityDocTitle, Kind: KindDocTitle},
		{Priority: PriorityAnonymousHyperlinks, Kind: KindAnonymousHyperlinks},
		{Priority: PriorityIndirectHyperlinks, Kind: KindIndirectHyperlinks},
		{Priority: PriorityDanglingReferences, Kind: KindDanglingReferences},
		{Priority: PriorityTransitions, Kind: KindTransitions},
	}
}

// Writer is the component contributing output-side transforms.
type Writer struct{}

// Transforms implements Component.
func (Writer) Transforms() []Descriptor {
	return []Descriptor{
		{Priority: PriorityFilterMessages, Kind: KindFilterMessages},
	}
}

var (
	_ Component = Reader{}
	_ Component = Writer{}
)
