package transform

import (
	"container/heap"
	"fmt"

	"github.com/electwix/rst-lint/internal/document"
	"github.com/electwix/rst-lint/internal/logging"
)

type queued struct {
	Descriptor
	seq int
}

// queue orders descriptors by priority, highest first; equal priorities
// pop most recently added first.
type queue []queued

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].seq > q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Scheduler applies the transforms queued for one document. Transforms may
// queue further descriptors while running, either through the document's
// transform requests or by calling Add; all of them are applied before Run
// returns. A transform that keeps queueing itself never terminates.
type Scheduler struct {
	// Logger receives one debug line per applied transform.
	Logger logging.Logger

	doc     *document.Document
	local   map[string]Factory
	queue   queue
	seq     int
	applied []Descriptor
}

// NewScheduler creates a scheduler for doc.
func NewScheduler(doc *document.Document) *Scheduler {
	return &Scheduler{
		Logger: logging.NewNopLogger(),
		doc:    doc,
		local:  make(map[string]Factory),
	}
}

// Register binds kind for this scheduler only, shadowing the global
// registry.
func (s *Scheduler) Register(kind string, f Factory) {
	s.local[kind] = f
}

// Add queues a descriptor.
func (s *Scheduler) Add(d Descriptor) {
	if d.Target == nil {
		d.Target = s.doc.Root
	}
	heap.Push(&s.queue, queued{Descriptor: d, seq: s.seq})
	s.seq++
}

// AddPending queues the transform a pending node stands for.
func (s *Scheduler) AddPending(pending *document.Node, priority int, options map[string]any) {
	kind, _ := pending.Attr("transform")
	s.Add(Descriptor{Priority: priority, Kind: kind, Target: pending, Options: options})
}

// PopulateFromComponents queues the default transforms of every component.
func (s *Scheduler) PopulateFromComponents(components ...Component) {
	for _, c := range components {
		for _, d := range c.Transforms() {
			s.Add(d)
		}
	}
}

// Pending returns the number of queued descriptors.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Applied returns the descriptors applied so far, in order.
func (s *Scheduler) Applied() []Descriptor {
	return append([]Descriptor(nil), s.applied...)
}

func (s *Scheduler) drain() {
	for _, req := range s.doc.TakeTransformRequests() {
		s.Add(Descriptor{Priority: req.Priority, Kind: req.Kind, Target: req.Target, Options: req.Options})
	}
}

func (s *Scheduler) factory(kind string) (Factory, bool) {
	if f, ok := s.local[kind]; ok {
		return f, true
	}
	return Lookup(kind)
}

// Run applies queued transforms until none are left. It returns the
// halting message as *document.HaltError when one reaches the halt level.
func (s *Scheduler) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			halt, ok := r.(*document.HaltError)
			if !ok {
				panic(r)
			}
			err = halt
		}
	}()

	s.drain()
	for s.queue.Len() > 0 {
		d := heap.Pop(&s.queue).(queued).Descriptor
		f, ok := s.factory(d.Kind)
		if !ok {
			return &UnknownKindError{Kind: d.Kind}
		}
		if err := f(s.doc, d.Target).Apply(d.Options); err != nil {
			return fmt.Errorf("transform %s: %w", d.Kind, err)
		}
		s.applied = append(s.applied, d)
		s.Logger.Debug("transform applied", "kind", d.Kind, "priority", d.Priority)
		s.drain()
	}
	return nil
}
