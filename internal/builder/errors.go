package builder

import "errors"

var (
	ErrBuild        = errors.New("build failed")
	ErrScriptFailed = errors.New("build script failed")
	ErrImageResolve = errors.New("base image resolution failed")
	ErrImageExport  = errors.New("image export failed")
	ErrContainer    = errors.New("container operation failed")
)
