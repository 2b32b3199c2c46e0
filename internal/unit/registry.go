package unit

import "fmt"

// Holds parsed unit definitions keyed by name.
//
// Enumeration order is insertion order, stable across repeated calls within
// one process run. The registry owns the Unit values; graphs and plans refer
// to units by name only.
type Registry struct {
	units map[string]*Unit
	names []string
}

// Creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// Adds a unit to the registry.
//
// Fails with [ErrDuplicateName] if a unit with the same name is already
// registered.
func (r *Registry) Register(u *Unit) error {
	if _, ok := r.units[u.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, u.Name)
	}
	r.units[u.Name] = u
	r.names = append(r.names, u.Name)
	return nil
}

// Returns the unit with the given name.
//
// Fails with [ErrUnknownUnit] if no such unit is registered.
func (r *Registry) Lookup(name string) (*Unit, error) {
	u, ok := r.units[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return u, nil
}

// Returns all registered unit names in insertion order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.names)
}
