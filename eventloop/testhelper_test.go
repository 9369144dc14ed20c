package eventloop

import (
	"context"
	"testing"
	"time"
)

type runResult struct {
	err  error
	code int
}

// startLoop runs the loop on a new goroutine, failing the test if it is
// still running on cleanup.
func startLoop(t *testing.T, loop *Loop) <-chan runResult {
	t.Helper()
	ch := make(chan runResult, 1)
	go func() {
		code, err := loop.Run(context.Background())
		ch <- runResult{code: code, err: err}
	}()
	t.Cleanup(func() {
		select {
		case <-loop.Done():
		case <-time.After(5 * time.Second):
			t.Error("loop still running at cleanup")
			loop.Exit(-1)
		}
	})
	return ch
}

func waitResult(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to return")
		return runResult{}
	}
}

func waitRunning(t *testing.T, loop *Loop) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !loop.state.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("loop did not start")
		}
		time.Sleep(time.Millisecond)
	}
}
