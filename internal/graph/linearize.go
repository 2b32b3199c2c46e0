package graph

import (
	"fmt"
	"strings"
)

// The linearized, deduplicated build sequence for one unit.
//
// Units holds names in application order: every ancestor appears before any
// unit that depends on it, a unit appears at most once even when reachable
// through multiple paths, and the target is always last. The plan holds
// names only; recipe text stays in the registry.
type Plan struct {
	Target string
	Units  []string
}

// Computes the effective build plan for the named unit.
//
// The traversal is a deterministic post-order walk of the requires edges:
// each required unit's own requirements are visited first, then the required
// unit itself, and finally the target. A seen set keyed by name collapses
// diamond dependencies to the position of first encounter. Ties among
// unrelated siblings follow requires declaration order, so identical input
// always produces identical output.
//
// Assumes a validated acyclic graph; the only possible failure is an
// unknown target name.
func (g *Graph) Linearize(target string) (*Plan, error) {
	if _, err := g.reg.Lookup(target); err != nil {
		return nil, err
	}

	plan := &Plan{Target: target}
	seen := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range g.requires[name] {
			visit(dep)
		}
		plan.Units = append(plan.Units, name)
	}
	visit(target)

	return plan, nil
}

// Composes the plan's recipe texts into one effective build script.
//
// Entries appear in plan order, each introduced by a comment naming the
// unit it came from. Units with empty recipe text contribute nothing.
func (g *Graph) ComposeScript(plan *Plan) (string, error) {
	var b strings.Builder
	for _, name := range plan.Units {
		u, err := g.reg.Lookup(name)
		if err != nil {
			return "", err
		}
		steps := strings.TrimSpace(u.Steps)
		if steps == "" {
			continue
		}
		fmt.Fprintf(&b, "# unit %s\n%s\n", name, steps)
	}
	return b.String(), nil
}

// Resolves the base image reference for the plan's target.
//
// A unit either declares its own base or inherits the single base declared
// along its dependency chain. Two distinct declared bases reachable from the
// target fail with [ErrAmbiguousBase]; no declared base at all fails with
// [ErrMissingBase]. Both are structural errors, surfaced before any build
// starts.
func (g *Graph) EffectiveBase(plan *Plan) (string, error) {
	base := ""
	declaredBy := ""
	for _, name := range plan.Units {
		u, err := g.reg.Lookup(name)
		if err != nil {
			return "", err
		}
		if u.Base == "" {
			continue
		}
		if base != "" && u.Base != base {
			return "", fmt.Errorf("%w: unit %q declares %q but unit %q declares %q on the same chain",
				ErrAmbiguousBase, declaredBy, base, name, u.Base)
		}
		base = u.Base
		declaredBy = name
	}
	if base == "" {
		return "", fmt.Errorf("%w: nothing on the dependency chain of %q declares a base image",
			ErrMissingBase, plan.Target)
	}
	return base, nil
}

// Checks that every registered unit resolves to exactly one base image.
//
// Companion to [Build]'s edge and cycle validation: an ambiguous or missing
// base anywhere in the registry fails the whole run up front, before any
// planning or building happens.
func (g *Graph) ValidateBases() error {
	for _, name := range g.Names() {
		plan, err := g.Linearize(name)
		if err != nil {
			return err
		}
		if _, err := g.EffectiveBase(plan); err != nil {
			return err
		}
	}
	return nil
}
