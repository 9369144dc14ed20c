package reactor

import (
	"fmt"
	"sync/atomic"
)

// Notifier is a pollable, self-signalling message source: eventfd on Linux,
// a non-blocking pipe elsewhere. Notify may be called from any goroutine;
// Drain is meant for the goroutine that polls Fd.
//
// Register it with NotifyMessage to receive a WakeRecord per notified wait.
type Notifier struct {
	rfd    int
	wfd    int
	closed atomic.Bool
}

// NewNotifier opens a Notifier. The descriptors are non-blocking and
// close-on-exec.
func NewNotifier() (*Notifier, error) {
	rfd, wfd, err := openNotifier()
	if err != nil {
		return nil, fmt.Errorf("reactor: open notifier: %w", err)
	}
	return &Notifier{rfd: rfd, wfd: wfd}, nil
}

// Fd returns the readable end.
func (x *Notifier) Fd() Handle { return Handle(x.rfd) }

// Notify makes Fd readable. Notifications coalesce until drained.
func (x *Notifier) Notify() error {
	if x.closed.Load() {
		return ErrClosed
	}
	return writeFD(x.wfd, notifyPayload[:])
}

// Drain consumes all pending notifications, returning how many were
// consumed. Linux reports the eventfd counter, elsewhere the number of bytes
// read from the pipe.
func (x *Notifier) Drain() (uint64, error) {
	if x.closed.Load() {
		return 0, ErrClosed
	}
	var buf [64]byte
	return drainFD(x.rfd, buf[:], notifyCount)
}

// Close releases the descriptors. It is safe to call more than once.
func (x *Notifier) Close() error {
	if x.closed.Swap(true) {
		return nil
	}
	err := closeFD(x.rfd)
	if x.wfd != x.rfd {
		if err2 := closeFD(x.wfd); err == nil {
			err = err2
		}
	}
	return err
}
