//go:build linux

package reactor

import (
	"golang.org/x/sys/unix"
)

// epollBackend drives epoll(7). Registration is keyed directly by fd, so no
// per-handle state is kept here.
type epollBackend struct {
	events []unix.EpollEvent
	epfd   int
	edge   bool
}

func newEpollBackend(opts *options) (Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, backendError(BackendEpoll, "create", err)
	}
	return &epollBackend{
		epfd:   epfd,
		edge:   opts.edgeTriggered,
		events: make([]unix.EpollEvent, opts.maxEvents),
	}, nil
}

func (b *epollBackend) Kind() BackendKind { return BackendEpoll }

func (b *epollBackend) Add(h Handle, interest NotifyFlags) error {
	return b.ctl(unix.EPOLL_CTL_ADD, "add", h, interest)
}

func (b *epollBackend) Modify(h Handle, interest NotifyFlags) error {
	return b.ctl(unix.EPOLL_CTL_MOD, "modify", h, interest)
}

func (b *epollBackend) Remove(h Handle) error {
	// non-nil event for kernels before 2.6.9
	return b.ctl(unix.EPOLL_CTL_DEL, "remove", h, NotifyNone)
}

func (b *epollBackend) ctl(op int, name string, h Handle, interest NotifyFlags) error {
	if h < 0 {
		return backendError(BackendEpoll, name, ErrInvalidHandle)
	}
	ev := unix.EpollEvent{
		Events: b.eventsToEpoll(interest),
		Fd:     int32(h),
	}
	return backendError(BackendEpoll, name, unix.EpollCtl(b.epfd, op, int(h), &ev))
}

func (b *epollBackend) Wait(timeoutMs int, out []Readiness) ([]Readiness, error) {
	n, err := unix.EpollWait(b.epfd, b.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, backendError(BackendEpoll, "wait", err)
	}
	for i := 0; i < n; i++ {
		out = append(out, Readiness{
			Handle: Handle(b.events[i].Fd),
			Flags:  epollToEvents(b.events[i].Events),
		})
	}
	return out, nil
}

func (b *epollBackend) Close() error {
	return backendError(BackendEpoll, "close", unix.Close(b.epfd))
}

// eventsToEpoll converts interest to epoll event flags.
func (b *epollBackend) eventsToEpoll(interest NotifyFlags) uint32 {
	var events uint32
	if interest&NotifyRead != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&NotifyWrite != 0 {
		events |= unix.EPOLLOUT
	}
	if b.edge && events != 0 {
		events |= unix.EPOLLET
	}
	return events
}

// epollToEvents converts epoll event flags to raw readiness.
func epollToEvents(events uint32) NotifyFlags {
	var flags NotifyFlags
	if events&unix.EPOLLIN != 0 {
		flags |= NotifyRead
	}
	if events&unix.EPOLLOUT != 0 {
		flags |= NotifyWrite
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		flags |= NotifyClose
	}
	return flags
}
