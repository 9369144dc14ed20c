//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

var notifyPayload = [1]byte{1}

// openNotifier creates a non-blocking, close-on-exec self-pipe, returning the
// read end and the write end.
func openNotifier() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

func notifyCount(b []byte) uint64 { return uint64(len(b)) }
