package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-longpoll"
	"github.com/joeycumines/go-reactor/goroutineid"
	"github.com/joeycumines/go-reactor/reactor"
)

// Notification is delivered to recipients, either posted or synthesized from
// readiness. Posted notifications carry whatever the poster set; readiness
// notifications carry the handle, the observed flags and the delivery time.
type Notification struct {
	Time   time.Time
	Data   any
	Handle reactor.Handle
	Flags  reactor.NotifyFlags
}

// Recipient receives notifications on the goroutine running its loop.
type Recipient interface {
	// Event handles a notification, reporting whether it was handled.
	Event(n Notification) bool
	// HomeThread identifies the loop goroutine the recipient expects to run
	// on, or 0 for any.
	HomeThread() goroutineid.ID
}

// RecipientID identifies a recipient within one loop. The zero value is
// never assigned.
type RecipientID uint64

// RecipientFunc adapts a function to Recipient, with no home thread.
type RecipientFunc func(n Notification) bool

// Event calls f(n).
func (f RecipientFunc) Event(n Notification) bool { return f(n) }

// HomeThread returns 0.
func (f RecipientFunc) HomeThread() goroutineid.ID { return 0 }

// PostedEvent is an entry of a loop's post queue. A nil Recipient
// broadcasts to every recipient of the loop.
type PostedEvent struct {
	Recipient *RecipientID
	Payload   Notification
}

// ChannelRecipient forwards notifications to a buffered channel, for
// consumption outside the loop. Notifications are dropped (Event returns
// false) while the buffer is full.
type ChannelRecipient struct {
	ch      chan Notification
	home    goroutineid.ID
	dropped atomic.Uint64
	mu      sync.RWMutex
	closed  bool
}

// NewChannelRecipient creates a ChannelRecipient with the given buffer size.
func NewChannelRecipient(size int, home goroutineid.ID) *ChannelRecipient {
	return &ChannelRecipient{ch: make(chan Notification, size), home: home}
}

// Event implements Recipient.
func (x *ChannelRecipient) Event(n Notification) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return false
	}
	select {
	case x.ch <- n:
		return true
	default:
		x.dropped.Add(1)
		return false
	}
}

// HomeThread implements Recipient.
func (x *ChannelRecipient) HomeThread() goroutineid.ID { return x.home }

// C returns the receive side of the channel.
func (x *ChannelRecipient) C() <-chan Notification { return x.ch }

// Dropped returns the number of notifications dropped due to a full buffer.
func (x *ChannelRecipient) Dropped() uint64 { return x.dropped.Load() }

// Drain receives a batch of notifications, passing each to handler. See
// longpoll.Channel for the batching behavior, and cfg (which may be nil).
// Returns io.EOF once closed and empty.
func (x *ChannelRecipient) Drain(ctx context.Context, cfg *longpoll.ChannelConfig, handler func(n Notification) error) error {
	return longpoll.Channel(ctx, cfg, x.ch, handler)
}

// Close closes the channel. Later notifications are rejected.
func (x *ChannelRecipient) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return errors.New("eventloop: channel recipient already closed")
	}
	x.closed = true
	close(x.ch)
	return nil
}
