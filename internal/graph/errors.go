package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDanglingReference = errors.New("dangling reference")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrAmbiguousBase     = errors.New("ambiguous base image")
	ErrMissingBase       = errors.New("missing base image")
)

// Reports a requires entry that names no registered unit.
type DanglingError struct {
	Unit    string // The unit whose requires list is broken.
	Missing string // The name that failed to resolve.
}

func (e *DanglingError) Error() string {
	return fmt.Sprintf("dangling reference: unit %q requires unknown unit %q", e.Unit, e.Missing)
}

func (e *DanglingError) Unwrap() error { return ErrDanglingReference }

// Reports a dependency cycle.
//
// Path is the closed walk through the cycle, with the first unit repeated
// at the end (e.g. ["a", "b", "c", "a"]).
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }
