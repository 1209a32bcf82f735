package planner

import "errors"

var (
	errNoOracle  = errors.New("no oracle configured")
	errEmptyPlan = errors.New("oracle returned no scenes")
)
