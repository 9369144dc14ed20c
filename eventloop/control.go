package eventloop

import (
	"context"

	"github.com/joeycumines/go-reactor/reactor"
)

// Register registers handle with the loop's multiplexer, delivering its
// readiness to recipient. Called from a goroutine other than the running
// loop's, the request is queued to the loop and Register waits for the
// result, or ctx.
func (l *Loop) Register(ctx context.Context, handle reactor.Handle, flags reactor.NotifyFlags, recipient RecipientID) (reactor.RegistrationID, error) {
	return callOnLoop(ctx, l, func() (reactor.RegistrationID, error) {
		l.recMu.RLock()
		_, ok := l.recipients[recipient]
		l.recMu.RUnlock()
		if !ok {
			return reactor.InvalidRegistration, ErrUnknownRecipient
		}
		id, err := l.mux.Register(handle, flags)
		if err != nil {
			return reactor.InvalidRegistration, err
		}
		l.recMu.Lock()
		l.bindings[handle] = binding{id: id, recipient: recipient}
		l.recMu.Unlock()
		return id, nil
	})
}

// Unregister removes a registration made via Register. See Register for the
// calling goroutine.
func (l *Loop) Unregister(ctx context.Context, id reactor.RegistrationID) error {
	_, err := callOnLoop(ctx, l, func() (struct{}, error) {
		l.recMu.Lock()
		for h, b := range l.bindings {
			if b.id == id {
				delete(l.bindings, h)
				break
			}
		}
		l.recMu.Unlock()
		if !l.mux.Unregister(id) {
			return struct{}{}, ErrRejected
		}
		return struct{}{}, nil
	})
	return err
}

// Modify enables or disables socket flags of a registration. See Register
// for the calling goroutine.
func (l *Loop) Modify(ctx context.Context, id reactor.RegistrationID, flags reactor.NotifyFlags, enable bool) error {
	_, err := callOnLoop(ctx, l, func() (struct{}, error) {
		if !l.mux.Modify(id, flags, enable) {
			return struct{}{}, ErrRejected
		}
		return struct{}{}, nil
	})
	return err
}

type controlResult[T any] struct {
	value T
	err   error
}

// callOnLoop runs fn directly on the loop goroutine, or before the loop
// runs, otherwise passes it to the loop and waits.
func callOnLoop[T any](ctx context.Context, l *Loop, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	switch {
	case l.isLoopThread():
		return fn()
	case l.state.Load() == StateAwake:
		return fn()
	}

	result := make(chan controlResult[T], 1)
	if err := l.submitControl(func() {
		value, err := fn()
		result <- controlResult[T]{value: value, err: err}
	}); err != nil {
		return zero, err
	}

	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// submitControl queues a task for the loop goroutine.
func (l *Loop) submitControl(task func()) error {
	l.controlMu.Lock()
	if l.controlClosed {
		l.controlMu.Unlock()
		return ErrLoopTerminated
	}
	l.control = append(l.control, task)
	l.controlLen.Add(1)
	l.controlMu.Unlock()
	l.mux.Wakeup()
	return nil
}

// runControl runs queued control tasks.
func (l *Loop) runControl() {
	if l.controlLen.Load() == 0 {
		return
	}
	l.controlMu.Lock()
	tasks := l.control
	l.control = nil
	l.controlLen.Add(-int64(len(tasks)))
	l.controlMu.Unlock()
	for _, task := range tasks {
		task()
	}
}
