package jobs

import "errors"

// ErrNotFound is returned when a job ID is unknown to the store.
var ErrNotFound = errors.New("job not found")

// ErrStatusChanged is returned by Put when the stored job has moved to a
// different status than the caller's copy, for example after stale-run
// reclamation.
var ErrStatusChanged = errors.New("job status changed")

var errMissingID = errors.New("job id required")
