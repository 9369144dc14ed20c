// Package eventloop provides a per-thread dispatch loop on top of a
// [reactor.Multiplexer].
//
// # Architecture
//
// A [Loop] owns exactly one multiplexer, and runs on one goroutine, locked
// to its OS thread for the duration of [Loop.Run]. It merges two sources
// into a single delivery sequence:
//
//   - posted events, from [Loop.Post] (any goroutine), addressed to one
//     [Recipient] or broadcast to all of the loop's recipients
//   - readiness, correlated through the handle to recipient bindings made
//     by [Loop.Register]
//
// Each iteration delivers at most one posted event, then waits on the
// multiplexer: without blocking if an event was delivered, otherwise until
// readiness or a wakeup. Posting always raises the multiplexer's wakeup, so
// the loop never sleeps through queued work.
//
// # Thread Safety
//
//   - [Loop.Post], [Loop.Exit], [Loop.AddRecipient] and
//     [Loop.RemoveRecipient] are safe to call from any goroutine
//   - [Loop.Register], [Loop.Unregister] and [Loop.Modify] run directly on
//     the loop goroutine (or before Run); from any other goroutine they are
//     passed to the loop as control tasks, and wait for the result
//   - recipients are only ever called on the loop goroutine, and panics are
//     recovered and logged
//
// [LoopFor] and [Current] find the loop running on a goroutine.
//
// # Usage
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id := loop.AddRecipient(eventloop.RecipientFunc(func(n eventloop.Notification) bool {
//	    fmt.Println(n.Handle, n.Flags)
//	    return true
//	}))
//	if _, err := loop.Register(ctx, fd, reactor.NotifyRead, id); err != nil {
//	    log.Fatal(err)
//	}
//	code, err := loop.Run(ctx)
package eventloop
