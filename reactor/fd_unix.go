//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// closeFD closes a file descriptor on Unix systems.
func closeFD(fd int) error {
	return unix.Close(fd)
}

// writeFD writes buf, retrying on EINTR. A full buffer (EAGAIN) means the
// reader has not caught up, which leaves it signalled, so it is not an error.
func writeFD(fd int, buf []byte) error {
	for {
		_, err := unix.Write(fd, buf)
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return err
		}
	}
}

// drainFD reads until the descriptor would block, retrying on EINTR. The
// count callback accumulates the value of each successful read.
func drainFD(fd int, buf []byte, count func(b []byte) uint64) (uint64, error) {
	var total uint64
	for {
		n, err := unix.Read(fd, buf)
		switch err {
		case nil:
			if n == 0 {
				return total, nil
			}
			total += count(buf[:n])
		case unix.EAGAIN:
			return total, nil
		case unix.EINTR:
			continue
		default:
			return total, err
		}
	}
}
