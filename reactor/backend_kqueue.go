//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// kqueueBackend drives kqueue(2). Read and write interest are separate
// filters, so the armed interest per handle is tracked, to compute the
// filters to delete on Modify and Remove.
type kqueueBackend struct {
	armed    map[Handle]NotifyFlags
	eventBuf []unix.Kevent_t
	kq       int
	edge     bool
}

func newKqueueBackend(opts *options) (Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, backendError(BackendKqueue, "create", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:       kq,
		edge:     opts.edgeTriggered,
		armed:    make(map[Handle]NotifyFlags),
		eventBuf: make([]unix.Kevent_t, opts.maxEvents),
	}, nil
}

func (b *kqueueBackend) Kind() BackendKind { return BackendKqueue }

func (b *kqueueBackend) Add(h Handle, interest NotifyFlags) error {
	if h < 0 {
		return backendError(BackendKqueue, "add", ErrInvalidHandle)
	}
	if _, ok := b.armed[h]; ok {
		return backendError(BackendKqueue, "add", ErrAlreadyRegistered)
	}
	if err := b.apply(h, interest, b.addFlags()); err != nil {
		return backendError(BackendKqueue, "add", err)
	}
	b.armed[h] = interest
	return nil
}

func (b *kqueueBackend) Modify(h Handle, interest NotifyFlags) error {
	old, ok := b.armed[h]
	if !ok {
		return backendError(BackendKqueue, "modify", ErrNotRegistered)
	}
	if removed := old &^ interest; removed != 0 {
		_ = b.apply(h, removed, unix.EV_DELETE)
	}
	// re-adding existing filters re-arms them, which matters for EV_CLEAR
	if interest != 0 {
		if err := b.apply(h, interest, b.addFlags()); err != nil {
			return backendError(BackendKqueue, "modify", err)
		}
	}
	b.armed[h] = interest
	return nil
}

func (b *kqueueBackend) Remove(h Handle) error {
	old, ok := b.armed[h]
	if !ok {
		return backendError(BackendKqueue, "remove", ErrNotRegistered)
	}
	delete(b.armed, h)
	// closing an fd removes its filters, so ENOENT/EBADF are expected
	if err := b.apply(h, old, unix.EV_DELETE); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return backendError(BackendKqueue, "remove", err)
	}
	return nil
}

func (b *kqueueBackend) Wait(timeoutMs int, out []Readiness) ([]Readiness, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, backendError(BackendKqueue, "wait", err)
	}
	for i := 0; i < n; i++ {
		out = append(out, Readiness{
			Handle: Handle(b.eventBuf[i].Ident),
			Flags:  keventToEvents(&b.eventBuf[i]),
		})
	}
	return out, nil
}

func (b *kqueueBackend) Close() error {
	return backendError(BackendKqueue, "close", unix.Close(b.kq))
}

func (b *kqueueBackend) addFlags() uint16 {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if b.edge {
		flags |= unix.EV_CLEAR
	}
	return flags
}

func (b *kqueueBackend) apply(h Handle, interest NotifyFlags, flags uint16) error {
	kevents := eventsToKevents(h, interest, flags)
	if len(kevents) == 0 {
		return nil
	}
	_, err := unix.Kevent(b.kq, kevents, nil, nil)
	return err
}

// eventsToKevents converts interest to kqueue kevent structures.
func eventsToKevents(h Handle, interest NotifyFlags, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if interest&NotifyRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(h),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if interest&NotifyWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(h),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

// keventToEvents converts a kqueue event to raw readiness.
func keventToEvents(kev *unix.Kevent_t) NotifyFlags {
	var flags NotifyFlags
	switch kev.Filter {
	case unix.EVFILT_READ:
		flags |= NotifyRead
	case unix.EVFILT_WRITE:
		flags |= NotifyWrite
	}
	if kev.Flags&(unix.EV_ERROR|unix.EV_EOF) != 0 {
		flags |= NotifyClose
	}
	return flags
}
