// Package fingerprint detects whether units need rebuilding.
//
// A fingerprint is a pure function of a unit's effective build plan and the
// bytes of every file in every plan entry's build context. The planner
// compares fingerprints against the record store: a matching fingerprint
// means the unit's entire ancestry is unchanged and the build can be
// skipped.
package fingerprint
