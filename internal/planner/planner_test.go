package planner

import (
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/strata/internal/fingerprint"
	"github.com/cruciblehq/strata/internal/graph"
	"github.com/cruciblehq/strata/internal/record"
	"github.com/cruciblehq/strata/internal/unit"
)

func buildGraph(t *testing.T, units ...*unit.Unit) *graph.Graph {
	t.Helper()
	r := unit.NewRegistry()
	for _, u := range units {
		if err := r.Register(u); err != nil {
			t.Fatalf("Register %q: %v", u.Name, err)
		}
	}
	g, err := graph.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func planNames(t *testing.T, steps []Step) []string {
	t.Helper()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Unit
	}
	return names
}

func assertPlan(t *testing.T, steps []Step, want ...string) {
	t.Helper()
	got := planNames(t, steps)
	if len(got) != len(want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("plan = %v, want %v", got, want)
		}
	}
}

func recordsFor(fps map[string]digest.Digest, names ...string) map[string]record.Record {
	records := make(map[string]record.Record, len(names))
	for _, name := range names {
		records[name] = record.Record{Fingerprint: fps[name], BuiltAt: time.Unix(0, 0)}
	}
	return records
}

func TestPlanEmptyRecords(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "app", Requires: []string{"base"}},
	)
	fps := map[string]digest.Digest{
		"base": digest.FromString("base-v1"),
		"app":  digest.FromString("app-v1"),
	}

	steps, err := Plan(g, fps, nil, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "base", "app")
	if steps[0].Reason != NeverBuilt {
		t.Fatalf("base reason = %v, want NeverBuilt", steps[0].Reason)
	}
	if steps[1].Reason != Cascade {
		t.Fatalf("app reason = %v, want Cascade", steps[1].Reason)
	}
}

func TestPlanNothingChanged(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "app", Requires: []string{"base"}},
	)
	fps := map[string]digest.Digest{
		"base": digest.FromString("base-v1"),
		"app":  digest.FromString("app-v1"),
	}

	steps, err := Plan(g, fps, recordsFor(fps, "base", "app"), Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("plan = %v, want empty", planNames(t, steps))
	}
}

func TestPlanUnchangedUnitNeverIncludedWithoutCascade(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "left", Requires: []string{"base"}},
		&unit.Unit{Name: "right", Requires: []string{"base"}},
	)
	fps := map[string]digest.Digest{
		"base":  digest.FromString("base-v1"),
		"left":  digest.FromString("left-v2"), // changed
		"right": digest.FromString("right-v1"),
	}
	records := recordsFor(map[string]digest.Digest{
		"base":  digest.FromString("base-v1"),
		"left":  digest.FromString("left-v1"),
		"right": digest.FromString("right-v1"),
	}, "base", "left", "right")

	steps, err := Plan(g, fps, records, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "left")
	if steps[0].Reason != Changed {
		t.Fatalf("left reason = %v, want Changed", steps[0].Reason)
	}
}

func TestPlanCascade(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "mid", Requires: []string{"base"}},
		&unit.Unit{Name: "top", Requires: []string{"mid"}},
	)
	// Only base changed; mid and top match their records but must rebuild
	// anyway because their dependency rebuilds.
	fps := map[string]digest.Digest{
		"base": digest.FromString("base-v2"),
		"mid":  digest.FromString("mid-v1"),
		"top":  digest.FromString("top-v1"),
	}
	records := recordsFor(map[string]digest.Digest{
		"base": digest.FromString("base-v1"),
		"mid":  digest.FromString("mid-v1"),
		"top":  digest.FromString("top-v1"),
	}, "base", "mid", "top")

	steps, err := Plan(g, fps, records, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "base", "mid", "top")
	if steps[1].Reason != Cascade || steps[2].Reason != Cascade {
		t.Fatalf("reasons = %v %v, want Cascade Cascade", steps[1].Reason, steps[2].Reason)
	}
}

func TestPlanMissingFingerprintForcesRebuild(t *testing.T) {
	g := buildGraph(t, &unit.Unit{Name: "base"})
	records := recordsFor(map[string]digest.Digest{
		"base": digest.FromString("base-v1"),
	}, "base")

	steps, err := Plan(g, nil, records, Options{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "base")
	if steps[0].Reason != Unknown {
		t.Fatalf("reason = %v, want Unknown", steps[0].Reason)
	}
}

func TestPlanForce(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "app", Requires: []string{"base"}},
	)
	fps := map[string]digest.Digest{
		"base": digest.FromString("base-v1"),
		"app":  digest.FromString("app-v1"),
	}

	steps, err := Plan(g, fps, recordsFor(fps, "base", "app"), Options{Force: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "base", "app")
	if steps[0].Reason != Forced {
		t.Fatalf("base reason = %v, want Forced", steps[0].Reason)
	}
}

func TestPlanTargetSubset(t *testing.T) {
	g := buildGraph(t,
		&unit.Unit{Name: "base"},
		&unit.Unit{Name: "left", Requires: []string{"base"}},
		&unit.Unit{Name: "right", Requires: []string{"base"}},
	)
	fps := map[string]digest.Digest{
		"base":  digest.FromString("base-v1"),
		"left":  digest.FromString("left-v1"),
		"right": digest.FromString("right-v1"),
	}

	// No records at all: planning only "left" must not pull in "right".
	steps, err := Plan(g, fps, nil, Options{Targets: []string{"left"}})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertPlan(t, steps, "base", "left")
}

func TestPlanUnknownTarget(t *testing.T) {
	g := buildGraph(t, &unit.Unit{Name: "base"})
	if _, err := Plan(g, nil, nil, Options{Targets: []string{"ghost"}}); err == nil {
		t.Fatal("Plan accepted an unknown target")
	}
}

// The four-run scenario: fresh store, clean rerun, leaf edit, root edit.
func TestPlanScenarioLifecycle(t *testing.T) {
	root := t.TempDir()

	units := func(baseSteps, notebookSteps string) []*unit.Unit {
		return []*unit.Unit{
			{Name: "base", Base: "debian:bookworm", Steps: baseSteps},
			{Name: "python_install", Requires: []string{"base"}, Steps: "RUN install python"},
			{Name: "notebook", Requires: []string{"python_install"}, Steps: notebookSteps},
		}
	}

	fingerprintAll := func(t *testing.T, g *graph.Graph) map[string]digest.Digest {
		t.Helper()
		fps, err := fingerprint.NewEngine(root).All(g, g.Names())
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		return fps
	}

	// Run 1: empty record store plans everything in dependency order.
	g := buildGraph(t, units("RUN base v1", "RUN notebook v1")...)
	fps := fingerprintAll(t, g)
	steps, err := Plan(g, fps, nil, Options{})
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	assertPlan(t, steps, "base", "python_install", "notebook")

	records := recordsFor(fps, "base", "python_install", "notebook")

	// Run 2: nothing changed, nothing planned.
	fps = fingerprintAll(t, g)
	steps, err = Plan(g, fps, records, Options{})
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("run 2 plan = %v, want empty", planNames(t, steps))
	}

	// Run 3: editing the leaf recipe plans only the leaf.
	g = buildGraph(t, units("RUN base v1", "RUN notebook v2")...)
	fps = fingerprintAll(t, g)
	steps, err = Plan(g, fps, records, Options{})
	if err != nil {
		t.Fatalf("run 3: %v", err)
	}
	assertPlan(t, steps, "notebook")

	// Run 4: editing the root recipe cascades to every descendant.
	g = buildGraph(t, units("RUN base v2", "RUN notebook v1")...)
	fps = fingerprintAll(t, g)
	steps, err = Plan(g, fps, records, Options{})
	if err != nil {
		t.Fatalf("run 4: %v", err)
	}
	assertPlan(t, steps, "base", "python_install", "notebook")
}
