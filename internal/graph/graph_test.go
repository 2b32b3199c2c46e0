package graph

import (
	"errors"
	"testing"

	"github.com/cruciblehq/strata/internal/unit"
)

func registryOf(t *testing.T, units ...*unit.Unit) *unit.Registry {
	t.Helper()
	r := unit.NewRegistry()
	for _, u := range units {
		if err := r.Register(u); err != nil {
			t.Fatalf("Register %q: %v", u.Name, err)
		}
	}
	return r
}

func TestBuildAcyclic(t *testing.T) {
	r := registryOf(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "python", Requires: []string{"base"}},
		&unit.Unit{Name: "notebook", Requires: []string{"python"}},
	)

	g, err := Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	deps := g.Requires("notebook")
	if len(deps) != 1 || deps[0] != "python" {
		t.Fatalf("Requires(notebook) = %v, want [python]", deps)
	}
	dependents := g.Dependents("base")
	if len(dependents) != 1 || dependents[0] != "python" {
		t.Fatalf("Dependents(base) = %v, want [python]", dependents)
	}
}

func TestBuildDanglingReference(t *testing.T) {
	r := registryOf(t, &unit.Unit{Name: "app", Requires: []string{"ghost"}})

	_, err := Build(r)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("err = %v, want ErrDanglingReference", err)
	}

	var dangling *DanglingError
	if !errors.As(err, &dangling) {
		t.Fatalf("err is %T, want *DanglingError", err)
	}
	if dangling.Unit != "app" || dangling.Missing != "ghost" {
		t.Fatalf("DanglingError = %+v, want Unit=app Missing=ghost", dangling)
	}
}

func TestBuildCycle(t *testing.T) {
	r := registryOf(t,
		&unit.Unit{Name: "a", Requires: []string{"b"}},
		&unit.Unit{Name: "b", Requires: []string{"c"}},
		&unit.Unit{Name: "c", Requires: []string{"a"}},
	)

	_, err := Build(r)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("err = %v, want ErrCyclicDependency", err)
	}

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err is %T, want *CycleError", err)
	}

	// The closed path names every unit on the cycle.
	onPath := make(map[string]bool)
	for _, n := range cycle.Path {
		onPath[n] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !onPath[want] {
			t.Fatalf("cycle path %v missing %q", cycle.Path, want)
		}
	}
	if cycle.Path[0] != cycle.Path[len(cycle.Path)-1] {
		t.Fatalf("cycle path %v is not closed", cycle.Path)
	}
}

func TestBuildSelfCycle(t *testing.T) {
	r := registryOf(t, &unit.Unit{Name: "narcissus", Requires: []string{"narcissus"}})

	_, err := Build(r)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("err = %v, want ErrCyclicDependency", err)
	}
}

func TestBuildIdempotent(t *testing.T) {
	r := registryOf(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "app", Requires: []string{"base"}},
	)

	g1, err := Build(r)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	g2, err := Build(r)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	n1, n2 := g1.Names(), g2.Names()
	if len(n1) != len(n2) {
		t.Fatalf("node counts differ: %d vs %d", len(n1), len(n2))
	}
	for i := range n1 {
		if n1[i] != n2[i] {
			t.Fatalf("Names()[%d]: %q vs %q", i, n1[i], n2[i])
		}
	}
}
