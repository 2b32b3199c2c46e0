// Package planner decides which units actually need rebuilding.
//
// The planner is pure: it maps a validated graph, the current fingerprints,
// and the recorded fingerprints of previous successful builds to an ordered
// list of build steps. It performs no I/O, so the same inputs always yield
// the same plan.
package planner
