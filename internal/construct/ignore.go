package construct

import "fmt"

type binding[T any] struct {
	value T
	ok    bool
}

// Registration records the names a scope installed and what each name was
// bound to before, so the namespace can be restored exactly.
type Registration struct {
	// Directives and Roles list the installed names once each, in the order
	// they were first requested.
	Directives []string
	Roles      []string

	prevDirectives map[string]binding[Directive]
	prevRoles      map[string]binding[Role]
	released       bool
}

// Register installs NoopDirective for every directive name and NoopRole for
// every role name, replacing existing bindings. Duplicate names are
// installed once.
func Register(ns *Namespace, directives, roles []string) *Registration {
	dirs := make([]namedDirective, 0, len(directives))
	for _, name := range directives {
		dirs = append(dirs, namedDirective{name, NoopDirective{}})
	}
	rls := make([]namedRole, 0, len(roles))
	for _, name := range roles {
		rls = append(rls, namedRole{name, NoopRole{}})
	}
	return install(ns, dirs, rls)
}

type namedDirective struct {
	name string
	d    Directive
}

type namedRole struct {
	name string
	r    Role
}

func install(ns *Namespace, directives []namedDirective, roles []namedRole) *Registration {
	reg := &Registration{
		prevDirectives: make(map[string]binding[Directive]),
		prevRoles:      make(map[string]binding[Role]),
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	for _, nd := range directives {
		name := normalize(nd.name)
		if name == "" {
			continue
		}
		if _, seen := reg.prevDirectives[name]; !seen {
			prev, ok := ns.directives[name]
			reg.prevDirectives[name] = binding[Directive]{value: prev, ok: ok}
			reg.Directives = append(reg.Directives, name)
		}
		ns.directives[name] = nd.d
	}
	for _, nr := range roles {
		name := normalize(nr.name)
		if name == "" {
			continue
		}
		if _, seen := reg.prevRoles[name]; !seen {
			prev, ok := ns.roles[name]
			reg.prevRoles[name] = binding[Role]{value: prev, ok: ok}
			reg.Roles = append(reg.Roles, name)
		}
		ns.roles[name] = nr.r
	}
	return reg
}

// Unregister restores every name reg installed to its previous binding and
// removes names that had none. Calling it again is a no-op.
func Unregister(ns *Namespace, reg *Registration) {
	if reg == nil || reg.released {
		return
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	for _, name := range reg.Directives {
		if prev := reg.prevDirectives[name]; prev.ok {
			ns.directives[name] = prev.value
		} else {
			delete(ns.directives, name)
		}
	}
	for _, name := range reg.Roles {
		if prev := reg.prevRoles[name]; prev.ok {
			ns.roles[name] = prev.value
		} else {
			delete(ns.roles, name)
		}
	}
	reg.released = true
}

// Scoped installs no-op stubs for the given names, runs fn and restores the
// namespace afterwards, also when fn panics.
func Scoped(ns *Namespace, directives, roles []string, fn func() error) error {
	reg := Register(ns, directives, roles)
	defer Unregister(ns, reg)

	return fn()
}

// Use installs real directive and role implementations for the duration of
// fn and restores the namespace afterwards.
func Use(ns *Namespace, directives map[string]Directive, roles map[string]Role, fn func() error) error {
	dirs := make([]namedDirective, 0, len(directives))
	for name, d := range directives {
		if d == nil {
			return fmt.Errorf("construct: directive %q has no implementation", name)
		}
		dirs = append(dirs, namedDirective{name, d})
	}
	rls := make([]namedRole, 0, len(roles))
	for name, r := range roles {
		if r == nil {
			return fmt.Errorf("construct: role %q has no implementation", name)
		}
		rls = append(rls, namedRole{name, r})
	}

	reg := install(ns, dirs, rls)
	defer Unregister(ns, reg)

	return fn()
}
