//go:build linux || darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// MaxSelectHandle bounds the handles the select backend accepts.
const MaxSelectHandle = 1024

// selectBackend drives select(2). The descriptor sets are rebuilt from the
// interest list on every wait, since select overwrites them.
type selectBackend struct {
	index    map[Handle]int
	handles  []Handle
	interest []NotifyFlags
	rset     unix.FdSet
	wset     unix.FdSet
}

func newSelectBackend(*options) (Backend, error) {
	return &selectBackend{index: make(map[Handle]int)}, nil
}

func (b *selectBackend) Kind() BackendKind { return BackendSelect }

func (b *selectBackend) Add(h Handle, interest NotifyFlags) error {
	if h < 0 {
		return backendError(BackendSelect, "add", ErrInvalidHandle)
	}
	if h >= MaxSelectHandle {
		return backendError(BackendSelect, "add", ErrHandleOutOfRange)
	}
	if _, ok := b.index[h]; ok {
		return backendError(BackendSelect, "add", ErrAlreadyRegistered)
	}
	b.index[h] = len(b.handles)
	b.handles = append(b.handles, h)
	b.interest = append(b.interest, interest)
	return nil
}

func (b *selectBackend) Modify(h Handle, interest NotifyFlags) error {
	i, ok := b.index[h]
	if !ok {
		return backendError(BackendSelect, "modify", ErrNotRegistered)
	}
	b.interest[i] = interest
	return nil
}

func (b *selectBackend) Remove(h Handle) error {
	i, ok := b.index[h]
	if !ok {
		return backendError(BackendSelect, "remove", ErrNotRegistered)
	}
	last := len(b.handles) - 1
	if i != last {
		b.handles[i] = b.handles[last]
		b.interest[i] = b.interest[last]
		b.index[b.handles[i]] = i
	}
	b.handles = b.handles[:last]
	b.interest = b.interest[:last]
	delete(b.index, h)
	return nil
}

func (b *selectBackend) Wait(timeoutMs int, out []Readiness) ([]Readiness, error) {
	b.rset.Zero()
	b.wset.Zero()
	maxFd := -1
	for i, h := range b.handles {
		if b.interest[i]&NotifyRead != 0 {
			b.rset.Set(int(h))
		}
		if b.interest[i]&NotifyWrite != 0 {
			b.wset.Set(int(h))
		}
		if b.interest[i] != 0 && int(h) > maxFd {
			maxFd = int(h)
		}
	}

	var tv *unix.Timeval
	if timeoutMs >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMs) * 1e6)
		tv = &t
	}

	n, err := unix.Select(maxFd+1, &b.rset, &b.wset, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, backendError(BackendSelect, "wait", err)
	}
	for i := 0; n > 0 && i < len(b.handles); i++ {
		h := int(b.handles[i])
		var flags NotifyFlags
		if b.interest[i]&NotifyRead != 0 && b.rset.IsSet(h) {
			flags |= NotifyRead
			n--
		}
		if b.interest[i]&NotifyWrite != 0 && b.wset.IsSet(h) {
			flags |= NotifyWrite
			n--
		}
		if flags != 0 {
			out = append(out, Readiness{Handle: b.handles[i], Flags: flags})
		}
	}
	return out, nil
}

func (b *selectBackend) Close() error {
	b.handles = nil
	b.interest = nil
	b.index = nil
	return nil
}
