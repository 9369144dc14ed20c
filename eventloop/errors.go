package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when operating on a terminated loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrReentrantRun is returned when Run is called from within the loop.
	ErrReentrantRun = errors.New("eventloop: cannot call Run() from within the loop")

	// ErrUnknownRecipient is returned when addressing a recipient that is not
	// registered with the loop.
	ErrUnknownRecipient = errors.New("eventloop: unknown recipient")

	// ErrPostQueueFull is returned by Post when the configured capacity is
	// reached.
	ErrPostQueueFull = errors.New("eventloop: post queue full")

	// ErrRejected is returned when the multiplexer rejected an Unregister or
	// Modify, e.g. due to a stale registration ID.
	ErrRejected = errors.New("eventloop: rejected by multiplexer")
)

// PanicError wraps a value recovered from a panicking recipient.
type PanicError struct {
	Value     any
	Recipient RecipientID
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("eventloop: recipient %d panicked: %v", e.Recipient, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
