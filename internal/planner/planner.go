package planner

import (
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/strata/internal/graph"
	"github.com/cruciblehq/strata/internal/record"
)

// Why a unit was included in the plan.
type Reason int

const (
	NeverBuilt Reason = iota // No record of a previous successful build.
	Changed                  // Fingerprint differs from the recorded one.
	Unknown                  // Fingerprint could not be computed.
	Cascade                  // A required unit is itself planned.
	Forced                   // Fingerprint comparison bypassed by the caller.
)

func (r Reason) String() string {
	switch r {
	case NeverBuilt:
		return "never built"
	case Changed:
		return "changed"
	case Unknown:
		return "fingerprint unknown"
	case Cascade:
		return "dependency rebuilt"
	case Forced:
		return "forced"
	default:
		return "unknown reason"
	}
}

// One planned build.
type Step struct {
	Unit   string
	Reason Reason
}

// Settings for one planning pass.
type Options struct {
	Targets []string // Units to bring up to date; empty means every unit.
	Force   bool     // Rebuild regardless of fingerprints.
}

// Decides which units to build and in what order.
//
// A unit is planned if and only if it has no build record, its fingerprint
// differs from the recorded one (or could not be computed), or any of its
// required units is itself planned. The cascade rule is a safety margin:
// a rebuilt dependency forces every dependent to rebuild even when the
// dependent's own fingerprint looks unchanged.
//
// The result is topologically ordered, dependencies before dependents, with
// ties among independents broken by declaration order. Units whose
// fingerprints match their records are left out entirely.
func Plan(g *graph.Graph, fps map[string]digest.Digest, records map[string]record.Record, opts Options) ([]Step, error) {
	targets := opts.Targets
	if len(targets) == 0 {
		targets = g.Names()
	}

	order, err := closure(g, targets)
	if err != nil {
		return nil, err
	}

	planned := make(map[string]bool, len(order))
	var steps []Step

	for _, name := range order {
		reason, include := decide(g, name, fps, records, planned, opts.Force)
		if !include {
			continue
		}
		planned[name] = true
		steps = append(steps, Step{Unit: name, Reason: reason})
	}

	return steps, nil
}

// Decides whether a single unit belongs in the plan.
//
// Cascade wins over the unit's own staleness checks so that a planned
// dependency is always reported as the cause when one exists: it is the
// rule an operator needs to see to understand why an "unchanged" unit is
// rebuilding.
func decide(g *graph.Graph, name string, fps map[string]digest.Digest, records map[string]record.Record, planned map[string]bool, force bool) (Reason, bool) {
	for _, dep := range g.Requires(name) {
		if planned[dep] {
			return Cascade, true
		}
	}
	if force {
		return Forced, true
	}
	rec, ok := records[name]
	if !ok {
		return NeverBuilt, true
	}
	fp, ok := fps[name]
	if !ok {
		return Unknown, true
	}
	if fp != rec.Fingerprint {
		return Changed, true
	}
	return 0, false
}

// Returns the transitive closure of the targets in topological order:
// dependencies first, ties by requires declaration order, targets in the
// order given.
func closure(g *graph.Graph, targets []string) ([]string, error) {
	seen := make(map[string]bool)
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		if _, err := g.Unit(name); err != nil {
			return err
		}
		seen[name] = true
		for _, dep := range g.Requires(name) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		order = append(order, name)
		return nil
	}

	for _, target := range targets {
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return order, nil
}
