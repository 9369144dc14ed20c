package eventloop

import (
	"runtime"

	"github.com/joeycumines/go-reactor/goroutineid"
)

// Thread is a goroutine locked to its own OS thread, typically running a
// Loop.
type Thread struct {
	done chan struct{}
	id   goroutineid.ID
}

// StartThread runs fn on a new goroutine, locked to an OS thread for its
// lifetime. It returns once the goroutine has started.
func StartThread(fn func()) *Thread {
	t := &Thread{done: make(chan struct{})}
	started := make(chan struct{})
	go func() {
		defer close(t.done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		t.id = goroutineid.Get()
		close(started)
		fn()
	}()
	<-started
	return t
}

// ID returns the identity of the thread.
func (t *Thread) ID() goroutineid.ID { return t.id }

// Join blocks until the thread's function returns.
func (t *Thread) Join() { <-t.done }

// Done is closed once the thread's function returns.
func (t *Thread) Done() <-chan struct{} { return t.done }

// CurrentThread identifies the calling goroutine.
func CurrentThread() goroutineid.ID { return goroutineid.Get() }
