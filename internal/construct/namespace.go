package construct

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Default is the process-wide namespace. The grammar engine registers its
// built-in directives and roles here.
var Default = NewNamespace()

// Namespace maps directive and role names to their implementations. Names
// are case-insensitive. Each method is safe for concurrent use, but a scope
// opened with Register must not overlap a scope from another goroutine on
// the same namespace; give each goroutine its own Clone.
type Namespace struct {
	mu         sync.RWMutex
	directives map[string]Directive
	roles      map[string]Role
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		directives: make(map[string]Directive),
		roles:      make(map[string]Role),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Directive resolves a directive name.
func (ns *Namespace) Directive(name string) (Directive, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	d, ok := ns.directives[normalize(name)]
	return d, ok
}

// Role resolves a role name.
func (ns *Namespace) Role(name string) (Role, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	r, ok := ns.roles[normalize(name)]
	return r, ok
}

// RegisterDirective binds name to d, replacing any previous binding.
func (ns *Namespace) RegisterDirective(name string, d Directive) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.directives[normalize(name)] = d
}

// RegisterRole binds name to r, replacing any previous binding.
func (ns *Namespace) RegisterRole(name string, r Role) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.roles[normalize(name)] = r
}

// RemoveDirective deletes the binding of name if present.
func (ns *Namespace) RemoveDirective(name string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	delete(ns.directives, normalize(name))
}

// RemoveRole deletes the binding of name if present.
func (ns *Namespace) RemoveRole(name string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	delete(ns.roles, normalize(name))
}

// DirectiveNames returns the registered directive names, sorted.
func (ns *Namespace) DirectiveNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	names := make([]string, 0, len(ns.directives))
	for name := range ns.directives {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RoleNames returns the registered role names, sorted.
func (ns *Namespace) RoleNames() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	names := make([]string, 0, len(ns.roles))
	for name := range ns.roles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns an independent copy holding the same bindings.
func (ns *Namespace) Clone() *Namespace {
	snap := ns.Snapshot()
	return &Namespace{directives: snap.Directives, roles: snap.Roles}
}

// Snapshot is a point-in-time copy of a namespace's bindings.
type Snapshot struct {
	Directives map[string]Directive
	Roles      map[string]Role
}

// Snapshot copies the current bindings.
func (ns *Namespace) Snapshot() Snapshot {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	snap := Snapshot{
		Directives: make(map[string]Directive, len(ns.directives)),
		Roles:      make(map[string]Role, len(ns.roles)),
	}
	for k, v := range ns.directives {
		snap.Directives[k] = v
	}
	for k, v := range ns.roles {
		snap.Roles[k] = v
	}
	return snap
}

// Equal reports whether both snapshots bind the same names to the same
// implementations. Implementations are compared by identity.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.Directives) != len(other.Directives) || len(s.Roles) != len(other.Roles) {
		return false
	}
	for k, v := range s.Directives {
		w, ok := other.Directives[k]
		if !ok || !sameBinding(v, w) {
			return false
		}
	}
	for k, v := range s.Roles {
		w, ok := other.Roles[k]
		if !ok || !sameBinding(v, w) {
			return false
		}
	}
	return true
}

func sameBinding(a, b any) bool {
	return sameValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

// sameValue compares by identity: reference kinds match when they point at
// the same thing, composite values match field by field.
func sameValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Func, reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Slice:
		return a.Pointer() == b.Pointer() && a.Len() == b.Len()
	case reflect.Interface:
		return sameValue(a.Elem(), b.Elem())
	case reflect.Struct:
		for i := range a.NumField() {
			if !sameValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := range a.Len() {
			if !sameValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	default:
		return a.Equal(b)
	}
}
