package reactor

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrNoBackend is returned by New if no backend could be initialized.
	ErrNoBackend = errors.New("reactor: no backend available")

	// ErrBackendUnsupported is returned when a backend does not exist on the
	// current platform.
	ErrBackendUnsupported = errors.New("reactor: backend not supported on this platform")

	// ErrClosed is returned for operations on a closed Multiplexer or source.
	ErrClosed = errors.New("reactor: closed")

	// ErrWrongThread is returned when a mutation is attempted from a goroutine
	// other than the owner.
	ErrWrongThread = errors.New("reactor: called from a goroutine that does not own the multiplexer")

	// ErrInvalidHandle is returned for negative handles.
	ErrInvalidHandle = errors.New("reactor: invalid handle")

	// ErrInvalidFlags is returned when registering with no flags.
	ErrInvalidFlags = errors.New("reactor: invalid notify flags")

	// ErrHandleOutOfRange is returned by the select backend for handles it
	// cannot represent.
	ErrHandleOutOfRange = errors.New("reactor: handle out of range for backend")

	// ErrAlreadyRegistered is returned by a backend asked to add a handle twice.
	ErrAlreadyRegistered = errors.New("reactor: handle already registered with backend")

	// ErrNotRegistered is returned by a backend asked about an unknown handle.
	ErrNotRegistered = errors.New("reactor: handle not registered with backend")

	// ErrWaitInProgress is returned by Close while a Wait is blocked.
	ErrWaitInProgress = errors.New("reactor: wait in progress")
)

// BackendError wraps a failure of a backend operation.
type BackendError struct {
	Err  error
	Op   string
	Kind BackendKind
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("reactor: %s %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(kind BackendKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Kind: kind, Op: op, Err: err}
}
