// Package graph builds and linearizes the unit dependency graph.
//
// [Build] validates every requires edge against the registry and rejects
// cycles with the full cycle path. [Graph.Linearize] turns a unit's
// dependency chain into an effective build plan: the ordered, deduplicated
// sequence of units whose recipe texts compose into one build script.
//
// Structural errors here are fatal for the whole run. Nothing is built
// until the graph is known to be a DAG with no dangling references and an
// unambiguous base image per target.
package graph
