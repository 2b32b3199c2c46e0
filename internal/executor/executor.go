package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/strata/internal/builder"
	"github.com/cruciblehq/strata/internal/graph"
	"github.com/cruciblehq/strata/internal/planner"
)

// Persists the last-successful fingerprint for a unit.
//
// Implemented by [record.Store]. Write failures are logged and otherwise
// ignored: a lost record only causes an unnecessary rebuild on the next
// invocation, never a missed one.
type RecordWriter interface {
	Put(name string, fp digest.Digest, builtAt time.Time) error
}

// Controls how a run executes.
type Options struct {
	// Number of concurrent builds. Defaults to 1.
	Workers int

	// Deadline for a single builder invocation. Zero disables the limit.
	Timeout time.Duration

	// Directory unit context paths are resolved against.
	Root string

	// Directory composed build contexts are staged under.
	Staging string
}

// Terminal outcome of one planned unit.
type Result struct {
	Unit     string
	Reason   planner.Reason
	State    State
	Duration time.Duration
	Err      error
}

// Outcome of a full run, one entry per planned unit in plan order.
type Summary struct {
	Results []Result
}

// Reports whether every planned unit succeeded.
func (s *Summary) OK() bool {
	for _, r := range s.Results {
		if r.State != Succeeded {
			return false
		}
	}
	return true
}

// Runs planned units against an external builder with bounded parallelism.
type Executor struct {
	graph   *graph.Graph
	builder builder.Builder
	records RecordWriter
	fps     map[string]digest.Digest
	opts    Options
}

// Creates a new [Executor]. fps maps unit names to their current
// fingerprints, used to update the record store after a successful build.
func New(g *graph.Graph, b builder.Builder, records RecordWriter, fps map[string]digest.Digest, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Executor{graph: g, builder: b, records: records, fps: fps, opts: opts}
}

// Executes every planned unit, dependencies before dependents.
//
// A unit starts building the instant all of its in-plan dependencies have
// succeeded. When a unit fails, builds already in flight finish, every
// transitive dependent is marked Skipped without being attempted, and
// unrelated branches continue. A structural error (unknown unit, ambiguous
// or missing base) fails the run with a nil summary before any builder
// invocation; otherwise the summary covers every planned unit and the
// error wraps the first root-cause failure, if any.
func (e *Executor) Run(ctx context.Context, steps []planner.Step) (*Summary, error) {
	if len(steps) == 0 {
		return &Summary{}, nil
	}

	// Base resolution is structural: an ambiguous or missing base on any
	// planned unit's chain fails the run before a single build starts.
	for _, step := range steps {
		plan, err := e.graph.Linearize(step.Unit)
		if err != nil {
			return nil, err
		}
		if _, err := e.graph.EffectiveBase(plan); err != nil {
			return nil, err
		}
	}

	tasks := make(map[string]*task, len(steps))
	ordered := make([]*task, 0, len(steps))
	for _, step := range steps {
		t := &task{name: step.Unit}
		tasks[step.Unit] = t
		ordered = append(ordered, t)
	}
	for _, t := range ordered {
		for _, dep := range e.graph.Requires(t.name) {
			if dt, ok := tasks[dep]; ok {
				t.depCount.Add(1)
				dt.dependents = append(dt.dependents, t)
			}
		}
	}

	ready := make(chan *task, len(ordered))
	for _, t := range ordered {
		if t.depCount.Load() == 0 {
			ready <- t
		}
	}

	var wg sync.WaitGroup
	wg.Add(len(ordered))

	workers := min(e.opts.Workers, len(ordered))
	slog.Debug("starting workers", "count", workers, "units", len(ordered))
	for range workers {
		go e.worker(ctx, ready, &wg)
	}

	wg.Wait()
	close(ready)

	summary := &Summary{Results: make([]Result, 0, len(steps))}
	var cause error
	for i, t := range ordered {
		state := t.currentState()
		summary.Results = append(summary.Results, Result{
			Unit:     t.name,
			Reason:   steps[i].Reason,
			State:    state,
			Duration: t.duration,
			Err:      t.err,
		})
		if state == Failed && cause == nil {
			cause = t.err
		}
	}

	if cause != nil {
		return summary, fmt.Errorf("%w: %w", ErrRun, cause)
	}
	if !summary.OK() {
		return summary, ErrRun
	}
	return summary, nil
}

// Processing loop for a single worker.
func (e *Executor) worker(ctx context.Context, ready chan *task, wg *sync.WaitGroup) {
	for t := range ready {
		if ctx.Err() != nil {
			e.skip(t, ctx.Err(), wg)
			continue
		}

		t.setState(Building)
		slog.Info("building unit", "unit", t.name)
		start := time.Now()
		err := e.build(ctx, t.name)
		t.duration = time.Since(start)

		if err != nil {
			slog.Error("unit failed", "unit", t.name, "error", err)
			t.err = err
			t.setState(Failed)
			e.skipDependents(t, wg)
			wg.Done()
			continue
		}

		slog.Info("unit succeeded", "unit", t.name, "duration", t.duration)
		t.setState(Succeeded)
		for _, dep := range t.dependents {
			if dep.depCount.Add(-1) == 0 {
				ready <- dep
			}
		}
		wg.Done()
	}
}

// Composes the unit's effective script and context, then invokes the
// external builder. On success the unit's fingerprint record is written;
// a record write failure is logged and tolerated.
func (e *Executor) build(ctx context.Context, name string) error {
	plan, err := e.graph.Linearize(name)
	if err != nil {
		return err
	}
	script, err := e.graph.ComposeScript(plan)
	if err != nil {
		return err
	}
	base, err := e.graph.EffectiveBase(plan)
	if err != nil {
		return err
	}
	contextDir, err := e.stage(name, plan)
	if err != nil {
		return err
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	if _, err := e.builder.Build(ctx, builder.Request{
		Unit:       name,
		Base:       base,
		Script:     script,
		ContextDir: contextDir,
	}); err != nil {
		return err
	}

	if fp, ok := e.fps[name]; ok {
		if err := e.records.Put(name, fp, time.Now()); err != nil {
			slog.Warn("record write failed", "unit", name, "error", err)
		}
	}

	return nil
}

// Marks a task Skipped exactly once and cascades to its dependents.
func (e *Executor) skip(t *task, cause error, wg *sync.WaitGroup) {
	t.skipOnce.Do(func() {
		slog.Warn("skipping unit", "unit", t.name, "cause", cause)
		t.err = fmt.Errorf("%w: %w", ErrSkipped, cause)
		t.setState(Skipped)
		wg.Done()
		e.skipDependents(t, wg)
	})
}

func (e *Executor) skipDependents(t *task, wg *sync.WaitGroup) {
	for _, dep := range t.dependents {
		e.skip(dep, fmt.Errorf("unit %q did not succeed", t.name), wg)
	}
}
