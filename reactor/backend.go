package reactor

import (
	"fmt"
	"strings"
)

// BackendKind identifies an OS readiness facility.
type BackendKind uint8

const (
	BackendNone BackendKind = iota
	// BackendEpoll is the Linux edge-triggered readiness queue.
	BackendEpoll
	// BackendKqueue is the BSD/Darwin readiness queue.
	BackendKqueue
	// BackendPoll is poll(2), portable and O(n) per wait.
	BackendPoll
	// BackendSelect is select(2), the last resort. Handles must be below
	// MaxSelectHandle.
	BackendSelect

	backendMax = BackendSelect
)

func (k BackendKind) String() string {
	switch k {
	case BackendNone:
		return "none"
	case BackendEpoll:
		return "epoll"
	case BackendKqueue:
		return "kqueue"
	case BackendPoll:
		return "poll"
	case BackendSelect:
		return "select"
	default:
		return fmt.Sprintf("BackendKind(%d)", uint8(k))
	}
}

// ParseBackendKind is the inverse of BackendKind.String.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "epoll":
		return BackendEpoll, nil
	case "kqueue":
		return BackendKqueue, nil
	case "poll":
		return BackendPoll, nil
	case "select":
		return BackendSelect, nil
	default:
		return BackendNone, fmt.Errorf("reactor: unknown backend %q", s)
	}
}

// Readiness is one raw readiness report from a backend. Flags only ever
// contain NotifyRead, NotifyWrite and NotifyClose.
type Readiness struct {
	Handle Handle
	Flags  NotifyFlags
}

// Backend is one OS readiness facility. Implementations are used by a single
// goroutine at a time, and are not safe for concurrent use.
//
// Interest passed to Add and Modify only ever contains NotifyRead and
// NotifyWrite.
type Backend interface {
	Kind() BackendKind
	Add(h Handle, interest NotifyFlags) error
	Modify(h Handle, interest NotifyFlags) error
	Remove(h Handle) error
	// Wait blocks for up to timeoutMs (negative blocks indefinitely) and
	// appends readiness to out. Interruption by a signal is not an error, it
	// returns no readiness.
	Wait(timeoutMs int, out []Readiness) ([]Readiness, error)
	Close() error
}

// backendFactory is replaced by tests.
var backendFactory = newBackend

func newBackend(kind BackendKind, opts *options) (Backend, error) {
	switch kind {
	case BackendEpoll:
		return newEpollBackend(opts)
	case BackendKqueue:
		return newKqueueBackend(opts)
	case BackendPoll:
		return newPollBackend(opts)
	case BackendSelect:
		return newSelectBackend(opts)
	default:
		return nil, ErrBackendUnsupported
	}
}
