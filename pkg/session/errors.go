package session

import (
	"errors"
	"fmt"

	backendtypes "dialpilot/pkg/backend/types"
)

// ErrEmptyInput marks an inbound message with no usable text. No context or
// run is created for it.
var ErrEmptyInput = errors.New("inbound text is empty")

// ErrRunTimedOut marks a run that exhausted the polling budget without
// reaching a terminal state.
var ErrRunTimedOut = errors.New("generation run timed out")

// GenerationError reports a run that ended in a non-success terminal state.
type GenerationError struct {
	Status backendtypes.RunStatus
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation run ended as %s", e.Status)
}

// IsBackendUnavailable reports whether err came from a backend transport,
// auth, or malformed-response failure.
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, backendtypes.ErrUnavailable)
}
