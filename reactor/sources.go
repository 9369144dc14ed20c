package reactor

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"time"
)

// TimerSource is a pollable timer, firing once or periodically. Register
// Fd with NotifyTimer, and call Ack when notified.
type TimerSource struct {
	notifier *Notifier
	timer    *time.Timer
	period   time.Duration
	mu       sync.Mutex
	stopped  bool
}

// NewTimerSource starts a timer that first fires after delay. A positive
// period re-arms it after every fire.
func NewTimerSource(delay, period time.Duration) (*TimerSource, error) {
	if delay < 0 || period < 0 {
		return nil, errors.New("reactor: timer durations must not be negative")
	}
	n, err := NewNotifier()
	if err != nil {
		return nil, err
	}
	x := &TimerSource{notifier: n, period: period}
	x.mu.Lock()
	x.timer = time.AfterFunc(delay, x.fire)
	x.mu.Unlock()
	return x, nil
}

func (x *TimerSource) fire() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.stopped {
		return
	}
	_ = x.notifier.Notify()
	if x.period > 0 {
		x.timer.Reset(x.period)
	}
}

// Fd returns the pollable handle.
func (x *TimerSource) Fd() Handle { return x.notifier.Fd() }

// Ack consumes pending fires, returning how many were coalesced. On Linux
// this is exact; elsewhere it is the number of fires not yet acknowledged,
// bounded by the pipe buffer.
func (x *TimerSource) Ack() (uint64, error) { return x.notifier.Drain() }

// Stop prevents further fires. Pending fires remain until acknowledged.
func (x *TimerSource) Stop() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stopped = true
	x.timer.Stop()
}

// Close stops the timer and releases its handle. Unregister it first.
func (x *TimerSource) Close() error {
	x.Stop()
	return x.notifier.Close()
}

// SignalSource bridges os/signal into a pollable handle. Register Fd with
// NotifySignal, and call Signals when notified.
type SignalSource struct {
	notifier *Notifier
	ch       chan os.Signal
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	received []os.Signal
}

// NewSignalSource relays the given signals (all incoming signals if none are
// given, as per signal.Notify).
func NewSignalSource(sigs ...os.Signal) (*SignalSource, error) {
	n, err := NewNotifier()
	if err != nil {
		return nil, err
	}
	x := &SignalSource{
		notifier: n,
		ch:       make(chan os.Signal, 16),
		done:     make(chan struct{}),
	}
	signal.Notify(x.ch, sigs...)
	x.wg.Add(1)
	go x.relay()
	return x, nil
}

func (x *SignalSource) relay() {
	defer x.wg.Done()
	for {
		select {
		case <-x.done:
			return
		case sig := <-x.ch:
			x.mu.Lock()
			x.received = append(x.received, sig)
			x.mu.Unlock()
			_ = x.notifier.Notify()
		}
	}
}

// Fd returns the pollable handle.
func (x *SignalSource) Fd() Handle { return x.notifier.Fd() }

// Signals consumes the notification and returns the signals received since
// the last call, in arrival order.
func (x *SignalSource) Signals() ([]os.Signal, error) {
	if _, err := x.notifier.Drain(); err != nil {
		return nil, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	sigs := x.received
	x.received = nil
	return sigs, nil
}

// Close stops relaying and releases the handle. Unregister it first.
func (x *SignalSource) Close() error {
	signal.Stop(x.ch)
	select {
	case <-x.done:
		return nil
	default:
		close(x.done)
	}
	x.wg.Wait()
	return x.notifier.Close()
}
