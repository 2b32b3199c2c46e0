// Package executor runs planned units against an external builder.
//
// An [Executor] takes the planner's ordered steps and executes them with a
// bounded worker pool. Each unit moves from Pending through Building to
// Succeeded or Failed; a unit becomes ready to build the instant every
// dependency it has in the plan has succeeded, so independent branches of
// the graph build in parallel.
//
// Failure is contained to its subtree: transitive dependents of a failed
// unit are marked Skipped without being attempted while unrelated units
// continue. Successful builds write the unit's fingerprint to the record
// store; failed builds leave the prior record untouched so the unit is
// retried next invocation.
//
// Example usage:
//
//	exec := executor.New(g, b, store, fps, executor.Options{
//	    Workers: 4,
//	    Root:    ".",
//	    Staging: stagingDir,
//	})
//
//	summary, err := exec.Run(ctx, steps)
//	for _, r := range summary.Results {
//	    fmt.Printf("%s: %s\n", r.Unit, r.State)
//	}
package executor
