package unit

import "errors"

var (
	ErrDuplicateName = errors.New("duplicate unit name")
	ErrUnknownUnit   = errors.New("unknown unit")
)
