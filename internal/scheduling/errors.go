package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrLocalConflict means the pre-check found an overlap against the
	// caller's known windows. Nothing was sent to the service.
	ErrLocalConflict = errors.New("scheduling: window conflicts with an existing availability")

	// ErrNotEligible means the actor's role or validation status does not
	// permit the operation. Nothing was sent to the service.
	ErrNotEligible = errors.New("scheduling: actor is not allowed to perform this action")

	// ErrRemoteConflict means the service found an overlap the local
	// pre-check could not see.
	ErrRemoteConflict = errors.New("scheduling: service rejected window as conflicting")

	// ErrAlreadyTaken means another patient reserved the slot first.
	ErrAlreadyTaken = errors.New("scheduling: availability already reserved")

	// ErrNoLongerAvailable means the slot left the AVAILABLE state (or was
	// removed) between listing and reserving.
	ErrNoLongerAvailable = errors.New("scheduling: availability is no longer open")

	// ErrSessionExpired means the service no longer accepts the credential.
	// The caller must re-authenticate; the workflow never retries.
	ErrSessionExpired = errors.New("scheduling: session expired")
)

// RemoteError is the catch-all for service failures with no scheduling
// meaning. Message carries the service's reason verbatim for display.
type RemoteError struct {
	Message string
	err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("scheduling: remote error: %s", e.Message)
}

func (e *RemoteError) Unwrap() error { return e.err }
