package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cruciblehq/strata/internal/fingerprint"
	"github.com/cruciblehq/strata/internal/paths"
	"github.com/cruciblehq/strata/internal/planner"
	"github.com/cruciblehq/strata/internal/record"
)

// Represents the 'strata plan' command.
type PlanCmd struct {
	Targets []string `arg:"" optional:"" name:"unit" help:"Units to plan for. Defaults to every unit."`
	Force   bool     `help:"Plan as if every fingerprint had changed."`
}

// Executes the plan command.
//
// Prints, in build order, each unit that would rebuild and the reason,
// without invoking the builder or touching the record store.
func (c *PlanCmd) Run(ctx context.Context) error {
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

	if len(steps) == 0 {
		fmt.Println("everything up to date")
		return nil
	}

	for _, step := range steps {
		fmt.Printf("%s\t%s\n", step.Unit, step.Reason)
	}
	return nil
}
