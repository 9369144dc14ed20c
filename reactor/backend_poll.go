//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// pollBackend drives poll(2). The pollfd slice is the active set, indexed by
// handle for O(1) modify and swap-delete.
type pollBackend struct {
	index map[Handle]int
	fds   []unix.PollFd
}

func newPollBackend(opts *options) (Backend, error) {
	return &pollBackend{
		index: make(map[Handle]int),
		fds:   make([]unix.PollFd, 0, opts.maxEvents),
	}, nil
}

func (b *pollBackend) Kind() BackendKind { return BackendPoll }

func (b *pollBackend) Add(h Handle, interest NotifyFlags) error {
	if h < 0 {
		return backendError(BackendPoll, "add", ErrInvalidHandle)
	}
	if _, ok := b.index[h]; ok {
		return backendError(BackendPoll, "add", ErrAlreadyRegistered)
	}
	b.index[h] = len(b.fds)
	b.fds = append(b.fds, unix.PollFd{Fd: int32(h), Events: eventsToPoll(interest)})
	return nil
}

func (b *pollBackend) Modify(h Handle, interest NotifyFlags) error {
	i, ok := b.index[h]
	if !ok {
		return backendError(BackendPoll, "modify", ErrNotRegistered)
	}
	b.fds[i].Events = eventsToPoll(interest)
	return nil
}

func (b *pollBackend) Remove(h Handle) error {
	i, ok := b.index[h]
	if !ok {
		return backendError(BackendPoll, "remove", ErrNotRegistered)
	}
	last := len(b.fds) - 1
	if i != last {
		b.fds[i] = b.fds[last]
		b.index[Handle(b.fds[i].Fd)] = i
	}
	b.fds = b.fds[:last]
	delete(b.index, h)
	return nil
}

func (b *pollBackend) Wait(timeoutMs int, out []Readiness) ([]Readiness, error) {
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.Poll(b.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, backendError(BackendPoll, "wait", err)
	}
	for i := 0; n > 0 && i < len(b.fds); i++ {
		fd := &b.fds[i]
		if fd.Revents == 0 {
			continue
		}
		n--
		if fd.Revents&unix.POLLNVAL != 0 {
			// a closed handle survived into the active set
			return out, backendError(BackendPoll, "wait", unix.EBADF)
		}
		out = append(out, Readiness{Handle: Handle(fd.Fd), Flags: pollToEvents(fd.Revents)})
		fd.Revents = 0
	}
	return out, nil
}

func (b *pollBackend) Close() error {
	b.fds = nil
	b.index = nil
	return nil
}

func eventsToPoll(interest NotifyFlags) int16 {
	var events int16
	if interest&NotifyRead != 0 {
		events |= unix.POLLIN
	}
	if interest&NotifyWrite != 0 {
		events |= unix.POLLOUT
	}
	return events
}

func pollToEvents(revents int16) NotifyFlags {
	var flags NotifyFlags
	if revents&unix.POLLIN != 0 {
		flags |= NotifyRead
	}
	if revents&unix.POLLOUT != 0 {
		flags |= NotifyWrite
	}
	if revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		flags |= NotifyClose
	}
	return flags
}
