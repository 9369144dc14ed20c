package eventloop

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-reactor/goroutineid"
	"github.com/joeycumines/go-reactor/reactor"
)

// Loop is a per-thread dispatch loop. It owns one reactor.Multiplexer, and
// merges posted events and readiness into a single delivery sequence, calling
// recipients on the goroutine running Run.
//
// Post, Exit, AddRecipient, RemoveRecipient and State are safe from any
// goroutine. Register, Unregister and Modify are routed to the loop goroutine
// while the loop runs.
type Loop struct {
	mux    *reactor.Multiplexer
	logger *reactor.Logger
	state  *FastState
	done   chan struct{}

	// posted holds *PostedEvent
	posted       *queue.Queue
	postedLen    atomic.Int64
	postCapacity int
	postMu       sync.Mutex

	control    []func()
	controlLen atomic.Int64
	controlMu  sync.Mutex
	// controlClosed is set under controlMu once the loop stops accepting
	// control tasks
	controlClosed bool

	recipients    map[RecipientID]Recipient
	order         []RecipientID
	bindings      map[reactor.Handle]binding
	nextRecipient RecipientID
	recMu         sync.RWMutex

	thread   atomic.Uint64
	exitCode atomic.Int64
	quit     atomic.Bool
	closed   sync.Once
}

// binding correlates a registered handle with its recipient.
type binding struct {
	id        reactor.RegistrationID
	recipient RecipientID
}

// New creates a new dispatch loop, and its multiplexer.
func New(opts ...LoopOption) (*Loop, error) {
	options, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	loop := &Loop{
		logger:       options.logger,
		state:        NewFastState(),
		done:         make(chan struct{}),
		posted:       queue.New(),
		postCapacity: options.postCapacity,
		recipients:   make(map[RecipientID]Recipient),
		bindings:     make(map[reactor.Handle]binding),
	}

	reactorOptions := make([]reactor.Option, 0, len(options.reactorOptions)+2)
	reactorOptions = append(reactorOptions, reactor.WithLogger(options.logger))
	reactorOptions = append(reactorOptions, options.reactorOptions...)
	reactorOptions = append(reactorOptions, reactor.WithPendingWork(loop.hasPendingWork))

	loop.mux, err = reactor.New(reactorOptions...)
	if err != nil {
		return nil, err
	}

	return loop, nil
}

// hasPendingWork is consulted by Multiplexer.Wait before blocking. Producers
// bump the counters before raising the wakeup.
func (l *Loop) hasPendingWork() bool {
	return l.postedLen.Load() != 0 || l.controlLen.Load() != 0 || l.quit.Load()
}

// Run runs the loop on the calling goroutine, locked to its OS thread, until
// Exit is called, the context is canceled, or no recipients remain with
// nothing queued. It returns the exit code, and ctx.Err() if the context
// stopped the loop.
func (l *Loop) Run(ctx context.Context) (int, error) {
	if l.isLoopThread() {
		return 0, ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.IsRunning() {
			return 0, ErrLoopAlreadyRunning
		}
		return 0, ErrLoopTerminated
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	me := goroutineid.Get()
	l.thread.Store(uint64(me))
	registerLoop(me, l)
	defer unregisterLoop(me, l)

	defer l.shutdown()

	if !l.mux.Bind() {
		return 0, reactor.ErrWrongThread
	}

	var ctxErr atomic.Pointer[error]
	stop := context.AfterFunc(ctx, func() {
		err := ctx.Err()
		ctxErr.Store(&err)
		l.quit.Store(true)
		l.mux.Wakeup()
	})
	defer stop()

	l.logger.Debug().
		Uint64("thread", uint64(me)).
		Stringer("backend", l.mux.Backend()).
		Log("eventloop: running")

	l.run()

	code := int(l.exitCode.Load())
	if err := ctxErr.Load(); err != nil {
		return code, *err
	}
	return code, nil
}

// run is the dispatch loop proper.
func (l *Loop) run() {
	for {
		l.runControl()

		if l.quit.Load() {
			return
		}

		processed, idle := l.deliverPosted()
		if idle {
			l.logger.Debug().Log("eventloop: no recipients, terminating")
			return
		}

		timeout := -1
		if processed {
			timeout = 0
		}

		l.state.TryTransition(StateRunning, StateSleeping)
		n := l.mux.Wait(timeout)
		l.state.TryTransition(StateSleeping, StateRunning)

		switch {
		case n > 0:
			l.deliverReadiness()
		case n == reactor.WaitFlushing:
			if l.mux.CanExit() {
				l.logger.Debug().
					Bool("flushing", l.mux.Flushing()).
					Err(l.mux.Err()).
					Log("eventloop: multiplexer stopped, terminating")
				return
			}
		case n == reactor.WaitBusy:
			l.logger.Err().Log("eventloop: multiplexer wait rejected")
		}
	}
}

// deliverPosted delivers at most one posted event. It reports whether one
// was delivered, and whether the loop is idle: no queued events and no
// recipients.
func (l *Loop) deliverPosted() (processed, idle bool) {
	l.postMu.Lock()
	if l.posted.Length() == 0 {
		l.postMu.Unlock()
		l.recMu.RLock()
		idle = len(l.recipients) == 0
		l.recMu.RUnlock()
		return false, idle
	}
	ev := l.posted.Remove().(*PostedEvent)
	l.postedLen.Add(-1)
	l.postMu.Unlock()

	if ev.Recipient != nil {
		l.deliver(*ev.Recipient, ev.Payload)
		return true, false
	}

	l.recMu.RLock()
	order := slices.Clone(l.order)
	l.recMu.RUnlock()
	for _, id := range order {
		l.deliver(id, ev.Payload)
	}
	return true, false
}

// deliverReadiness drains the records of the last wait.
func (l *Loop) deliverReadiness() {
	now := time.Now()
	for {
		rec, ok := l.mux.FetchWake()
		if !ok {
			return
		}
		l.recMu.RLock()
		b, ok := l.bindings[rec.Handle]
		l.recMu.RUnlock()
		if !ok {
			l.logger.Debug().
				Int("handle", int(rec.Handle)).
				Stringer("flags", rec.Flags).
				Log("eventloop: readiness for unbound handle")
			continue
		}
		l.deliver(b.recipient, Notification{
			Time:   now,
			Handle: rec.Handle,
			Flags:  rec.Flags,
		})
	}
}

// deliver calls the recipient, recovering panics.
func (l *Loop) deliver(id RecipientID, n Notification) {
	l.recMu.RLock()
	r, ok := l.recipients[id]
	l.recMu.RUnlock()
	if !ok {
		l.logger.Warning().
			Uint64("recipient", uint64(id)).
			Err(ErrUnknownRecipient).
			Log("eventloop: notification dropped")
		return
	}

	defer func() {
		if v := recover(); v != nil {
			l.logger.Err().
				Err(PanicError{Value: v, Recipient: id}).
				Log("eventloop: recipient panicked")
		}
	}()

	if !r.Event(n) {
		l.logger.Trace().
			Uint64("recipient", uint64(id)).
			Stringer("flags", n.Flags).
			Log("eventloop: notification not handled")
	}
}

// shutdown releases the multiplexer, and fails queued control tasks.
func (l *Loop) shutdown() {
	l.state.TransitionAny([]LoopState{StateRunning, StateSleeping}, StateTerminating)
	l.controlMu.Lock()
	l.controlClosed = true
	l.controlMu.Unlock()
	if err := l.mux.Close(); err != nil {
		l.logger.Err().Err(err).Log("eventloop: failed to close multiplexer")
	}
	// tasks queued before controlClosed now fail against the closed
	// multiplexer
	l.runControl()
	l.state.Store(StateTerminated)
	l.closed.Do(func() { close(l.done) })
	l.logger.Debug().Int64("code", l.exitCode.Load()).Log("eventloop: terminated")
}

// Exit requests termination. Run returns code once the loop observes it.
// Safe to call from any goroutine.
func (l *Loop) Exit(code int) {
	l.exitCode.Store(int64(code))
	l.quit.Store(true)
	l.mux.Wakeup()
}

// Close terminates a loop that was never run, or requests Exit(0) and waits
// for a running loop to stop. Calling Close from a recipient only requests
// the exit.
func (l *Loop) Close() error {
	if l.state.TryTransition(StateAwake, StateTerminated) {
		l.controlMu.Lock()
		l.controlClosed = true
		l.controlMu.Unlock()
		err := l.mux.Close()
		l.runControl()
		l.closed.Do(func() { close(l.done) })
		return err
	}
	if l.isLoopThread() {
		l.Exit(0)
		return nil
	}
	if !l.state.IsTerminal() {
		l.Exit(0)
	}
	<-l.done
	return nil
}

// Done is closed once the loop has terminated.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post queues a notification for one recipient, or (recipient == nil) for
// every recipient of the loop, and wakes the loop. Safe to call from any
// goroutine. Posted events are delivered in FIFO order.
func (l *Loop) Post(n Notification, recipient *RecipientID) error {
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	l.postMu.Lock()
	if l.postCapacity > 0 && l.posted.Length() >= l.postCapacity {
		l.postMu.Unlock()
		return ErrPostQueueFull
	}
	l.posted.Add(&PostedEvent{Recipient: recipient, Payload: n})
	l.postedLen.Add(1)
	l.postMu.Unlock()
	l.mux.Wakeup()
	return nil
}

// postBatch queues events in one critical section, with one wakeup.
func (l *Loop) postBatch(events []*PostedEvent) error {
	if !l.state.CanAcceptWork() {
		return ErrLoopTerminated
	}
	l.postMu.Lock()
	if l.postCapacity > 0 && l.posted.Length()+len(events) > l.postCapacity {
		l.postMu.Unlock()
		return ErrPostQueueFull
	}
	for _, ev := range events {
		l.posted.Add(ev)
	}
	l.postedLen.Add(int64(len(events)))
	l.postMu.Unlock()
	l.mux.Wakeup()
	return nil
}

// AddRecipient registers a recipient with the loop. Broadcasts reach
// recipients in the order they were added.
func (l *Loop) AddRecipient(r Recipient) RecipientID {
	if home := r.HomeThread(); home.Valid() {
		if thread := l.Thread(); thread.Valid() && thread != home {
			l.logger.Warning().
				Uint64("home", uint64(home)).
				Uint64("thread", uint64(thread)).
				Log("eventloop: recipient added to a loop on another thread")
		}
	}
	l.recMu.Lock()
	defer l.recMu.Unlock()
	l.nextRecipient++
	id := l.nextRecipient
	l.recipients[id] = r
	l.order = append(l.order, id)
	return id
}

// RemoveRecipient removes a recipient. Handles bound to it stay registered,
// but their readiness is dropped. Returns false if id is unknown.
func (l *Loop) RemoveRecipient(id RecipientID) bool {
	l.recMu.Lock()
	defer l.recMu.Unlock()
	if _, ok := l.recipients[id]; !ok {
		return false
	}
	delete(l.recipients, id)
	if i := slices.Index(l.order, id); i >= 0 {
		l.order = slices.Delete(l.order, i, i+1)
	}
	return true
}

// Recipients returns the number of recipients.
func (l *Loop) Recipients() int {
	l.recMu.RLock()
	defer l.recMu.RUnlock()
	return len(l.recipients)
}

// Multiplexer returns the loop's multiplexer. Its owner-only operations must
// only be used from recipients.
func (l *Loop) Multiplexer() *reactor.Multiplexer { return l.mux }

// Thread returns the goroutine running the loop, or 0 if not yet run.
func (l *Loop) Thread() goroutineid.ID { return goroutineid.ID(l.thread.Load()) }

// State returns the current state.
func (l *Loop) State() LoopState { return l.state.Load() }

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	thread := l.thread.Load()
	if thread == 0 {
		return false
	}
	return uint64(goroutineid.Get()) == thread
}
