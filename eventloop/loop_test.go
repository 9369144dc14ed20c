//go:build linux || darwin

package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-reactor/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testSocketpair(t *testing.T) (reactor.Handle, reactor.Handle) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return reactor.Handle(fds[0]), reactor.Handle(fds[1])
}

func TestLoop_broadcastInRegistrationOrder(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var got []string
	record := func(name string) RecipientFunc {
		return func(n Notification) bool {
			got = append(got, name+":"+n.Data.(string))
			if n.Data == "stop" {
				Current().Exit(7)
			}
			return true
		}
	}
	_ = loop.AddRecipient(record("r1"))
	r2 := loop.AddRecipient(record("r2"))

	require.NoError(t, loop.Post(Notification{Data: "hello"}, nil))
	require.NoError(t, loop.Post(Notification{Data: "stop"}, &r2))

	r := waitResult(t, startLoop(t, loop))
	require.NoError(t, r.err)
	assert.Equal(t, 7, r.code)
	assert.Equal(t, []string{"r1:hello", "r2:hello", "r2:stop"}, got)
	assert.Equal(t, StateTerminated, loop.State())
}

func TestLoop_postedDrainedBeforeBlocking(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var delivered int
	id := loop.AddRecipient(RecipientFunc(func(n Notification) bool {
		delivered++
		if delivered == 3 {
			Current().Exit(0)
		}
		return true
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, loop.Post(Notification{}, &id))
	}

	start := time.Now()
	r := waitResult(t, startLoop(t, loop))
	require.NoError(t, r.err)
	assert.Equal(t, 3, delivered)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLoop_readiness(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	a, b := testSocketpair(t)

	var got Notification
	id := loop.AddRecipient(RecipientFunc(func(n Notification) bool {
		got = n
		var buf [16]byte
		_, _ = unix.Read(int(n.Handle), buf[:])
		Current().Exit(3)
		return true
	}))
	regID, err := loop.Register(context.Background(), a, reactor.NotifyRead, id)
	require.NoError(t, err)
	require.NotEqual(t, reactor.InvalidRegistration, regID)

	_, err = unix.Write(int(b), []byte("ping"))
	require.NoError(t, err)

	start := time.Now()
	r := waitResult(t, startLoop(t, loop))
	require.NoError(t, r.err)
	assert.Equal(t, 3, r.code)
	assert.Equal(t, a, got.Handle)
	assert.Equal(t, reactor.NotifyRead, got.Flags)
	assert.False(t, got.Time.Before(start))
}

func TestLoop_crossThreadRegistration(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	a, b := testSocketpair(t)

	ch := NewChannelRecipient(8, 0)
	id := loop.AddRecipient(ch)
	done := startLoop(t, loop)
	waitRunning(t, loop)

	ctx := context.Background()
	regID, err := loop.Register(ctx, a, reactor.NotifyRead, id)
	require.NoError(t, err)

	_, err = unix.Write(int(b), []byte("x"))
	require.NoError(t, err)
	select {
	case n := <-ch.C():
		assert.Equal(t, a, n.Handle)
		assert.Equal(t, reactor.NotifyRead, n.Flags)
	case <-time.After(5 * time.Second):
		t.Fatal("no readiness delivered")
	}

	require.NoError(t, loop.Modify(ctx, regID, reactor.NotifyWrite, true))
	require.NoError(t, loop.Unregister(ctx, regID))
	assert.ErrorIs(t, loop.Unregister(ctx, regID), ErrRejected)
	_, err = loop.Register(ctx, a, reactor.NotifyRead, RecipientID(999))
	assert.ErrorIs(t, err, ErrUnknownRecipient)

	require.NoError(t, loop.Close())
	r := waitResult(t, done)
	require.NoError(t, r.err)

	_, err = loop.Register(ctx, a, reactor.NotifyRead, id)
	assert.ErrorIs(t, err, ErrLoopTerminated)
}

func TestLoop_concurrentPost(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	const producers, perProducer = 8, 250
	var count int
	id := loop.AddRecipient(RecipientFunc(func(n Notification) bool {
		count++
		if count == producers*perProducer {
			Current().Exit(0)
		}
		return true
	}))
	done := startLoop(t, loop)
	waitRunning(t, loop)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, loop.Post(Notification{Data: j}, &id))
			}
		}()
	}
	wg.Wait()

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, producers*perProducer, count)
}

func TestLoop_noRecipientsTerminates(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	r := waitResult(t, startLoop(t, loop))
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.code)
}

func TestLoop_runErrors(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	loop.AddRecipient(RecipientFunc(func(Notification) bool { return true }))
	done := startLoop(t, loop)
	waitRunning(t, loop)

	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopAlreadyRunning)

	loop.Exit(2)
	r := waitResult(t, done)
	assert.Equal(t, 2, r.code)

	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopTerminated)
	assert.ErrorIs(t, loop.Post(Notification{}, nil), ErrLoopTerminated)
	assert.NoError(t, loop.Close())
}

func TestLoop_runWhileTerminating(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.mux.Close()
	loop.state.Store(StateTerminating)
	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopTerminated)
}

func TestLoop_reentrantRun(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	var runErr error
	id := loop.AddRecipient(RecipientFunc(func(Notification) bool {
		_, runErr = Current().Run(context.Background())
		Current().Exit(0)
		return true
	}))
	require.NoError(t, loop.Post(Notification{}, &id))
	waitResult(t, startLoop(t, loop))
	assert.ErrorIs(t, runErr, ErrReentrantRun)
}

func TestLoop_contextCancel(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	loop.AddRecipient(RecipientFunc(func(Notification) bool { return true }))

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan runResult, 1)
	go func() {
		code, err := loop.Run(ctx)
		ch <- runResult{code: code, err: err}
	}()
	waitRunning(t, loop)
	cancel()

	r := waitResult(t, ch)
	assert.ErrorIs(t, r.err, context.Canceled)
}

func TestLoop_recipientPanic(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	var calls atomic.Int32
	id := loop.AddRecipient(RecipientFunc(func(n Notification) bool {
		if calls.Add(1) == 1 {
			panic(errors.New("boom"))
		}
		Current().Exit(0)
		return true
	}))
	require.NoError(t, loop.Post(Notification{}, &id))
	require.NoError(t, loop.Post(Notification{}, &id))

	r := waitResult(t, startLoop(t, loop))
	require.NoError(t, r.err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoop_registry(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	var current, forThread *Loop
	id := loop.AddRecipient(RecipientFunc(func(Notification) bool {
		current = Current()
		forThread = LoopFor(CurrentThread())
		Current().Exit(0)
		return true
	}))
	require.NoError(t, loop.Post(Notification{}, &id))
	assert.Nil(t, Current())

	waitResult(t, startLoop(t, loop))
	assert.Same(t, loop, current)
	assert.Same(t, loop, forThread)
	assert.True(t, loop.Thread().Valid())
	assert.Nil(t, LoopFor(loop.Thread()))
}

func TestLoop_alwaysSource(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	var calls int
	id := loop.AddRecipient(RecipientFunc(func(n Notification) bool {
		assert.Equal(t, reactor.NotifyAlways, n.Flags)
		calls++
		if calls == 5 {
			Current().Exit(0)
		}
		return true
	}))
	_, err = loop.Register(context.Background(), -1, reactor.NotifyAlways, id)
	require.NoError(t, err)

	waitResult(t, startLoop(t, loop))
	assert.Equal(t, 5, calls)
}

func TestLoop_flushingTerminatesWhenIdle(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	loop.AddRecipient(RecipientFunc(func(Notification) bool { return true }))
	done := startLoop(t, loop)
	waitRunning(t, loop)

	loop.Multiplexer().SetFlushing(true)
	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.code)
}

func TestLoop_flushingKeepsRunningWithLiveSources(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	a, b := testSocketpair(t)

	ch := NewChannelRecipient(8, 0)
	id := loop.AddRecipient(ch)
	_, err = loop.Register(context.Background(), a, reactor.NotifyRead, id)
	require.NoError(t, err)
	done := startLoop(t, loop)
	waitRunning(t, loop)

	loop.Multiplexer().SetFlushing(true)
	_, err = unix.Write(int(b), []byte("ping"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	select {
	case <-loop.Done():
		t.Fatal("loop terminated while a socket was registered")
	case n := <-ch.C():
		t.Fatalf("unexpected delivery while flushing: %+v", n)
	default:
	}
	assert.True(t, loop.state.IsRunning())

	loop.Multiplexer().SetFlushing(false)
	select {
	case n := <-ch.C():
		assert.Equal(t, a, n.Handle)
		assert.Equal(t, reactor.NotifyRead, n.Flags)
	case <-time.After(5 * time.Second):
		t.Fatal("readiness not delivered after flushing was cleared")
	}

	loop.Multiplexer().SetFlushing(true)
	loop.Exit(5)
	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 5, r.code)
}

func TestLoop_postCapacity(t *testing.T) {
	loop, err := New(WithPostCapacity(1))
	require.NoError(t, err)
	defer loop.Close()
	require.NoError(t, loop.Post(Notification{}, nil))
	assert.ErrorIs(t, loop.Post(Notification{}, nil), ErrPostQueueFull)
}

func TestLoop_removeRecipient(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()
	id := loop.AddRecipient(RecipientFunc(func(Notification) bool { return true }))
	assert.Equal(t, 1, loop.Recipients())
	assert.True(t, loop.RemoveRecipient(id))
	assert.False(t, loop.RemoveRecipient(id))
	assert.Equal(t, 0, loop.Recipients())
}

func TestLoop_closeBeforeRun(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	require.NoError(t, loop.Close())
	assert.Equal(t, StateTerminated, loop.State())
	_, err = loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopTerminated)
	require.NoError(t, loop.Close())
}
