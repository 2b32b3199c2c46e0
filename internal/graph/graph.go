package graph

import (
	"github.com/cruciblehq/strata/internal/unit"
)

// A validated directed acyclic graph over unit names.
//
// An edge A -> B means "A requires B". The graph holds names only; unit
// definitions stay owned by the registry, so an edit to a unit is visible
// everywhere without copies to keep in sync.
type Graph struct {
	reg        *unit.Registry
	order      []string            // registry insertion order
	requires   map[string][]string // declaration-order edges
	dependents map[string][]string // reverse edges, discovery order
}

// Traversal colors for cycle detection.
const (
	white = iota // unvisited
	grey         // on the current traversal stack
	black        // fully explored
)

// Constructs the dependency graph for every unit in the registry.
//
// Every name in every requires list must resolve through the registry;
// otherwise the build fails with a [DanglingError]. Cycle detection runs
// over the whole graph and fails with a [CycleError] that names the full
// cycle path. Building is a pure transformation of registry state: calling
// it twice on the same registry yields the same graph.
func Build(reg *unit.Registry) (*Graph, error) {
	g := &Graph{
		reg:        reg,
		order:      reg.Names(),
		requires:   make(map[string][]string, reg.Len()),
		dependents: make(map[string][]string, reg.Len()),
	}

	for _, name := range g.order {
		u, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		for _, dep := range u.Requires {
			if _, err := reg.Lookup(dep); err != nil {
				return nil, &DanglingError{Unit: name, Missing: dep}
			}
			g.requires[name] = append(g.requires[name], dep)
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	return g, nil
}

// Runs a depth-first search with a three-color visited set and returns the
// first cycle found as a closed path (first element repeated at the end),
// or nil when the graph is acyclic.
func (g *Graph) findCycle() []string {
	colors := make(map[string]int, len(g.order))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		colors[name] = grey
		stack = append(stack, name)

		for _, dep := range g.requires[name] {
			switch colors[dep] {
			case grey:
				// Found a back edge: the cycle is the stack suffix
				// starting at dep, closed with dep itself.
				for i, n := range stack {
					if n == dep {
						cycle := make([]string, 0, len(stack)-i+1)
						cycle = append(cycle, stack[i:]...)
						return append(cycle, dep)
					}
				}
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[name] = black
		return nil
	}

	for _, name := range g.order {
		if colors[name] == white {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Returns the units the named unit requires, in declaration order.
func (g *Graph) Requires(name string) []string {
	return g.requires[name]
}

// Returns the units that require the named unit directly.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Returns every unit name in registry insertion order.
func (g *Graph) Names() []string {
	return g.order
}

// Returns the unit definition for a validated graph node.
func (g *Graph) Unit(name string) (*unit.Unit, error) {
	return g.reg.Lookup(name)
}
