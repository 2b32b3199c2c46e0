package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cruciblehq/strata/internal/builder"
	"github.com/cruciblehq/strata/internal/executor"
	"github.com/cruciblehq/strata/internal/fingerprint"
	"github.com/cruciblehq/strata/internal/paths"
	"github.com/cruciblehq/strata/internal/planner"
	"github.com/cruciblehq/strata/internal/record"
)

// Represents the 'strata build' command.
type BuildCmd struct {
	Targets []string      `arg:"" optional:"" name:"unit" help:"Units to build. Defaults to every unit."`
	Force   bool          `help:"Rebuild even when fingerprints are unchanged."`
	Jobs    int           `short:"j" default:"2" help:"Maximum concurrent builds."`
	Timeout time.Duration `help:"Deadline for a single unit build. Zero disables it."`

	Address     string `help:"Containerd socket address." env:"STRATA_CONTAINERD_ADDRESS" default:"/run/containerd/containerd.sock" placeholder:"PATH"`
	Namespace   string `help:"Containerd namespace." env:"STRATA_CONTAINERD_NAMESPACE" default:"strata"`
	Snapshotter string `help:"Containerd snapshotter." env:"STRATA_CONTAINERD_SNAPSHOTTER" default:"overlayfs"`
	Platform    string `help:"Target platform (e.g. linux/amd64). Defaults to the host." placeholder:"OS/ARCH"`
	Output      string `short:"o" help:"Directory exported image archives are written to." placeholder:"DIR"`
}

// Executes the build command.
//
// Plans against the persisted build records, then drives the containerd
// builder for every stale unit. Exits nonzero if any unit fails or is
// skipped.
func (c *BuildCmd) Run(ctx context.Context) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}
	targets := resolveTargets(g, c.Targets)
	root := filepath.Dir(RootCmd.Manifest)

	fps, err := fingerprint.NewEngine(root).All(g, g.Names())
	if err != nil {
		return err
	}

	store, err := record.Open(paths.RecordDB())
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.All()
	if err != nil {
		// A lost record only means an unnecessary rebuild.
		slog.Warn("record store unreadable, planning from scratch", "error", err)
		records = nil
	}

	steps, err := planner.Plan(g, fps, records, planner.Options{
		Targets: targets,
		Force:   c.Force,
	})
	if err != nil {
		return err
	}

	plannedSet := make(map[string]bool, len(steps))
	for _, step := range steps {
		plannedSet[step.Unit] = true
	}
	for _, name := range targets {
		if !plannedSet[name] {
			slog.Debug("unit up to date", "unit", name)
		}
	}

	slog.Debug("planned", "stale", len(steps), "targets", len(targets))
	if len(steps) == 0 {
		slog.Info("everything up to date")
		return nil
	}

	output := c.Output
	if output == "" {
		output = paths.Images()
	}

	b, err := builder.NewContainerd(builder.Config{
		Address:     c.Address,
		Namespace:   c.Namespace,
		Snapshotter: c.Snapshotter,
		Output:      output,
		Platform:    c.Platform,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	exec := executor.New(g, b, store, fps, executor.Options{
		Workers: c.Jobs,
		Timeout: c.Timeout,
		Root:    root,
		Staging: paths.Staging(),
	})

	summary, err := exec.Run(ctx, steps)
	if summary != nil {
		report(summary)
	}
	return err
}

// Logs one line per planned unit with its terminal state.
func report(summary *executor.Summary) {
	for _, r := range summary.Results {
		attrs := []any{
			"unit", r.Unit,
			"state", r.State.String(),
			"reason", r.Reason.String(),
		}
		if r.Duration > 0 {
			attrs = append(attrs, "duration", r.Duration.Round(time.Millisecond))
		}
		if r.Err != nil {
			attrs = append(attrs, "error", r.Err)
		}

		if r.State == executor.Succeeded {
			slog.Info("unit finished", attrs...)
		} else {
			slog.Error("unit did not finish", attrs...)
		}
	}
}
