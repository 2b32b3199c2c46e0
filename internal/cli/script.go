package cli

import (
	"context"
	"fmt"
)

// Represents the 'strata script' command.
type ScriptCmd struct {
	Unit string `arg:"" help:"Unit to print the composed script for."`
}

// Executes the script command.
//
// Prints the unit's effective build script: every inherited recipe in
// linearized order, ending with the unit's own steps.
func (c *ScriptCmd) Run(ctx context.Context) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}

	plan, err := g.Linearize(c.Unit)
	if err != nil {
		return err
	}
	script, err := g.ComposeScript(plan)
	if err != nil {
		return err
	}

	fmt.Print(script)
	return nil
}
