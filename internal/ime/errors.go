package ime

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the compositor revoked the input method. It is
	// permanent for the session.
	ErrUnavailable = errors.New("ime: input method unavailable")

	// ErrNotReady means no serial has been announced yet, so there is
	// nothing to commit against.
	ErrNotReady = errors.New("ime: session has no serial yet")

	// ErrNotFound means a required global is not advertised.
	ErrNotFound = errors.New("ime: required global not advertised")

	// ErrConnectFailed means the compositor socket could not be reached.
	ErrConnectFailed = errors.New("ime: cannot connect to compositor")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("ime: transport failure")
)

// TransportError is a failure of the underlying connection while applying
// an action. The connection is unusable afterwards.
type TransportError struct {
	Op  string // request that failed: "set_action", "set_string", "commit" or "roundtrip"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ime: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport as a match.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
