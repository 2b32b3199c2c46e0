// Package record persists the fingerprint of each unit's last successful
// build.
//
// The store is the system's only durable state. It is written exclusively
// on build success and never on failure, so a failed unit is always retried
// on the next invocation. A lost write is safe: it can only cause an
// unnecessary rebuild, never a missed one.
package record
