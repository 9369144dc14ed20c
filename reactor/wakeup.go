package reactor

import (
	"sync/atomic"
)

// WakeupChannel interrupts a blocking Wait from any goroutine. Requests
// coalesce: only the first outstanding Raise touches the OS primitive, and
// only the last Release (or a ReleaseAll) consumes it.
type WakeupChannel struct {
	notifier *Notifier
	misuse   *misuseLog
	pending  atomic.Int64
}

func newWakeupChannel(misuse *misuseLog) (*WakeupChannel, error) {
	n, err := NewNotifier()
	if err != nil {
		return nil, err
	}
	return &WakeupChannel{notifier: n, misuse: misuse}, nil
}

// Raise records a wakeup request. It returns false only if signalling the OS
// primitive failed, in which case the request remains counted.
func (x *WakeupChannel) Raise() bool {
	if x.pending.Add(1) != 1 {
		return true
	}
	if err := x.notifier.Notify(); err != nil {
		x.misuse.build("raise").Err(err).Log("reactor: wakeup signal failed")
		return false
	}
	return true
}

// Release retires one request. Releasing with nothing pending is a
// programming error, reported and ignored.
func (x *WakeupChannel) Release() bool {
	var drained bool
	for {
		n := x.pending.Load()
		if n <= 0 {
			x.misuse.build("release").Log("reactor: release without a pending wakeup")
			return false
		}
		// consume before the count reaches zero, a Raise after that signals again
		if n == 1 && !drained {
			if _, err := x.notifier.Drain(); err != nil {
				x.misuse.build("release").Err(err).Log("reactor: wakeup consume failed")
				return false
			}
			drained = true
		}
		if !x.pending.CompareAndSwap(n, n-1) {
			continue
		}
		if drained && n != 1 {
			// lost a race with a Raise that saw the signal still set
			if err := x.notifier.Notify(); err != nil {
				x.misuse.build("release").Err(err).Log("reactor: wakeup signal failed")
				return false
			}
		}
		return true
	}
}

// ReleaseAll retires every request, returning how many were outstanding.
func (x *WakeupChannel) ReleaseAll() (int64, error) {
	if x.pending.Load() == 0 {
		return 0, nil
	}
	_, err := x.notifier.Drain()
	return x.pending.Swap(0), err
}

// Pending returns the number of outstanding requests.
func (x *WakeupChannel) Pending() int64 { return x.pending.Load() }

// Fd returns the pollable handle.
func (x *WakeupChannel) Fd() Handle { return x.notifier.Fd() }

// drain consumes the OS primitive without touching the request count.
func (x *WakeupChannel) drain() error {
	_, err := x.notifier.Drain()
	return err
}

// Close releases the OS primitive.
func (x *WakeupChannel) Close() error { return x.notifier.Close() }
