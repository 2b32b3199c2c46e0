package executor

import "errors"

var (
	ErrRun     = errors.New("run failed")
	ErrSkipped = errors.New("skipped after dependency failure")
	ErrStage   = errors.New("context staging failed")
)
