//go:build linux || darwin

package reactor

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

// testSocketpair returns a connected, non-blocking pair of stream sockets,
// closed on test cleanup.
func testSocketpair(t *testing.T) (Handle, Handle) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal("unix.Socketpair failed:", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatal("unix.SetNonblock failed:", err)
		}
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return Handle(fds[0]), Handle(fds[1])
}

func testWrite(t *testing.T, h Handle, s string) {
	t.Helper()
	if _, err := unix.Write(int(h), []byte(s)); err != nil {
		t.Fatal("unix.Write failed:", err)
	}
}

// testFillSocket writes until the socket buffer is full.
func testFillSocket(t *testing.T, h Handle) {
	t.Helper()
	buf := make([]byte, 64*1024)
	for {
		_, err := unix.Write(int(h), buf)
		if errors.Is(err, unix.EAGAIN) {
			return
		}
		if err != nil {
			t.Fatal("unix.Write failed:", err)
		}
	}
}

// testReadable polls h without blocking.
func testReadable(t *testing.T, h Handle) bool {
	t.Helper()
	fds := []unix.PollFd{{Fd: int32(h), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		t.Fatal("unix.Poll failed:", err)
	}
	return n == 1 && fds[0].Revents&unix.POLLIN != 0
}

// testBackends lists the backends available on this platform.
func testBackends() []BackendKind {
	return defaultBackends()
}

// forEachBackend runs fn as a subtest against a multiplexer per backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, x *Multiplexer), opts ...Option) {
	t.Helper()
	for _, kind := range testBackends() {
		t.Run(kind.String(), func(t *testing.T) {
			x, err := New(append([]Option{WithBackends(kind)}, opts...)...)
			if err != nil {
				t.Fatalf("New(%s) failed: %v", kind, err)
			}
			t.Cleanup(func() { _ = x.Close() })
			if x.Backend() != kind {
				t.Fatalf("expected backend %s, got %s", kind, x.Backend())
			}
			fn(t, x)
		})
	}
}
