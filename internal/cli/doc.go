// Parses flags and dispatches the strata subcommands.
//
// The tool accepts the following global flags:
//
//	-q, --quiet      Suppress informational output.
//	-d, --debug      Enable debug output.
//	-f, --manifest   Path to the unit manifest.
//
// Subcommands: build (rebuild stale units), plan (dry run showing what
// would rebuild and why), script (print a unit's composed build script),
// and version. Flags override build-time defaults set via linker flags;
// after parsing, the global logger is reconfigured to the final level
// before the subcommand runs.
package cli
