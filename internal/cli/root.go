package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/cruciblehq/strata/internal"
	"github.com/cruciblehq/strata/internal/graph"
	"github.com/cruciblehq/strata/internal/manifest"
)

// Literal target meaning "every registered unit".
const allTargets = "_ALL_"

// Represents the root command for the strata CLI.
var RootCmd struct {
	Quiet    bool   `short:"q" help:"Suppress informational output."`
	Debug    bool   `short:"d" help:"Enable debug output."`
	Manifest string `short:"f" default:"strata.hcl" help:"Path to the unit manifest." placeholder:"PATH"`

	Build   BuildCmd   `cmd:"" help:"Build stale units."`
	Plan    PlanCmd    `cmd:"" help:"Show which units would rebuild, and why."`
	Script  ScriptCmd  `cmd:"" help:"Print a unit's composed build script."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional .env overrides for flag env bindings (containerd address,
	// namespace). Absence is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env overrides")
	}

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Content-addressed image build orchestrator.\n\nReads an HCL manifest of inheritance-linked image units, fingerprints each unit's recipe and build context, and rebuilds only what changed."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	level := slog.LevelInfo
	if RootCmd.Debug || internal.IsDebug() {
		level = slog.LevelDebug
	} else if RootCmd.Quiet || internal.IsQuiet() {
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Loads the manifest and builds the validated dependency graph every
// subcommand operates on.
//
// Base resolution is validated here for every unit, so a conflicting or
// missing base anywhere in the manifest fails the run before any planning
// or building starts.
func loadGraph() (*graph.Graph, error) {
	reg, err := manifest.Load(RootCmd.Manifest)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(reg)
	if err != nil {
		return nil, err
	}
	if err := g.ValidateBases(); err != nil {
		return nil, err
	}
	return g, nil
}

// Expands the target argument list.
//
// No arguments, or the literal "_ALL_", selects every registered unit in
// declaration order.
func resolveTargets(g *graph.Graph, args []string) []string {
	if len(args) == 0 {
		return g.Names()
	}
	for _, arg := range args {
		if arg == allTargets {
			return g.Names()
		}
	}
	return args
}
