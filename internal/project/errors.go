package project

import "errors"

// Standard errors returned by project resolution.
var (
	// ErrConfigParse indicates a malformed project configuration file. The
	// project stays Uninitialized until the file is fixed and re-ensured.
	ErrConfigParse = errors.New("malformed project configuration")

	// ErrNoProject indicates no project configuration matches a path and no
	// catch-all root configuration exists.
	ErrNoProject = errors.New("no project configuration found for path")
)
