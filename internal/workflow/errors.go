package workflow

import (
	"fmt"

	"clarifai/internal/ownerlock"
)

// ErrOwnerBusy rejects a request while the owner's previous job is running.
var ErrOwnerBusy = fmt.Errorf("workflow: %w", ownerlock.ErrBusy)
