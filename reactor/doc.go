// Package reactor implements an I/O readiness multiplexer, for use by a single
// owning goroutine (typically locked to an OS thread).
//
// # Backends
//
// A [Multiplexer] drives exactly one OS facility, chosen once at construction,
// in priority order:
//   - Linux: epoll (edge triggered)
//   - Darwin: kqueue (EV_CLEAR)
//   - All unix: poll(2), level triggered
//   - All unix: select(2), limited to handles below 1024
//
// If the preferred backend fails to initialize, construction degrades to the
// next one, logging the degradation. Only exhausting every backend is an error
// ([ErrNoBackend]).
//
// # Registration
//
// [Multiplexer.Register], [Multiplexer.Unregister] and [Multiplexer.Modify]
// never touch the backend directly. They stage changes in the descriptor
// table, which is reconciled with the backend at the top of the next
// [Multiplexer.Wait]. Pair a mutation with [Multiplexer.Restart] to make it
// take effect during a wait that is already blocked.
//
// These mutators must be called from the owning goroutine, see
// [Multiplexer.Bind]. Calls from any other goroutine are logged and dropped.
//
// # Wakeup
//
// Every Multiplexer monitors its own [WakeupChannel]. [Multiplexer.Wakeup] may
// be called from any goroutine; repeated calls coalesce into a single OS-level
// signal. A Wait that observes nothing but its own wakeup channel loops
// instead of returning, so wakeups are never visible as readiness. Owners
// that queue work for themselves should install [WithPendingWork], so that a
// wakeup that accompanied queued work turns the next poll non-blocking.
//
// # Usage
//
//	mux, err := reactor.New()
//	if err != nil {
//	    return err
//	}
//	defer mux.Close()
//
//	id, err := mux.Register(reactor.Handle(fd), reactor.NotifyRead)
//	if err != nil {
//	    return err
//	}
//
//	for mux.Wait(-1) > 0 {
//	    for rec, ok := mux.FetchWake(); ok; rec, ok = mux.FetchWake() {
//	        // rec.Handle is ready with rec.Flags
//	    }
//	}
package reactor
