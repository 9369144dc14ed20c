package reactor

import (
	"strconv"
	"strings"
)

// NotifyFlags describes why a source may wake the reactor.
type NotifyFlags uint32

const (
	// NotifyRead indicates the handle is readable.
	NotifyRead NotifyFlags = 1 << iota
	// NotifyWrite indicates the handle is writable.
	NotifyWrite
	// NotifyAccept indicates a listening socket has a pending connection.
	NotifyAccept
	// NotifyClose indicates hangup or an error condition on the handle.
	NotifyClose
	// NotifyTimer indicates a timer source fired.
	NotifyTimer
	// NotifySignal indicates a signal source received a signal.
	NotifySignal
	// NotifyMessage indicates a message source was notified.
	NotifyMessage
	// NotifyAlways marks an always-ready pseudo-source. Such sources are never
	// given to the backend, and force every wait to be non-blocking.
	NotifyAlways

	// NotifyNone is the empty set.
	NotifyNone NotifyFlags = 0

	// NotifySocket is the composite set of socket (I/O) flags.
	NotifySocket = NotifyRead | NotifyWrite | NotifyAccept | NotifyClose

	notifyAll = NotifySocket | NotifyTimer | NotifySignal | NotifyMessage | NotifyAlways
)

var notifyNames = [...]string{
	"Read",
	"Write",
	"Accept",
	"Close",
	"Timer",
	"Signal",
	"Message",
	"Always",
}

// String renders the set as names joined by "|", e.g. "Read|Write".
func (f NotifyFlags) String() string {
	if f == NotifyNone {
		return "None"
	}
	var b strings.Builder
	for i, name := range notifyNames {
		if f&(1<<i) == 0 {
			continue
		}
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		b.WriteString(name)
	}
	if rest := f &^ notifyAll; rest != 0 {
		if b.Len() != 0 {
			b.WriteByte('|')
		}
		b.WriteString("0x")
		b.WriteString(strconv.FormatUint(uint64(rest), 16))
	}
	return b.String()
}

// Any reports whether f shares at least one flag with other.
func (f NotifyFlags) Any(other NotifyFlags) bool { return f&other != 0 }

// Category derives the descriptor category implied by a set of requested
// flags. Always takes precedence, then Timer, Signal and Message; anything
// else is a socket.
func (f NotifyFlags) Category() Category {
	switch {
	case f&NotifyAlways != 0:
		return CategoryAlways
	case f&NotifyTimer != 0:
		return CategoryTimer
	case f&NotifySignal != 0:
		return CategorySignal
	case f&NotifyMessage != 0:
		return CategoryMessage
	default:
		return CategorySocket
	}
}

// interest reduces requested flags to the read/write interest understood by
// backends. Everything except Write is observed as readability.
func (f NotifyFlags) interest() NotifyFlags {
	var out NotifyFlags
	if f&(NotifyRead|NotifyAccept|NotifyClose|NotifyTimer|NotifySignal|NotifyMessage) != 0 {
		out |= NotifyRead
	}
	if f&NotifyWrite != 0 {
		out |= NotifyWrite
	}
	return out
}

// Category classifies a registered source.
type Category uint8

const (
	CategorySocket Category = iota
	CategoryTimer
	CategorySignal
	CategoryMessage
	CategoryAlways
)

func (c Category) String() string {
	switch c {
	case CategorySocket:
		return "Socket"
	case CategoryTimer:
		return "Timer"
	case CategorySignal:
		return "Signal"
	case CategoryMessage:
		return "Message"
	case CategoryAlways:
		return "Always"
	default:
		return "Category(" + strconv.Itoa(int(c)) + ")"
	}
}

// translate maps raw backend readiness (Read, Write, Close) onto the flags a
// descriptor of this category asked for. Close is always reported.
func (c Category) translate(requested, raw NotifyFlags) NotifyFlags {
	var out NotifyFlags
	switch c {
	case CategoryTimer:
		if raw.Any(NotifyRead | NotifyClose) {
			out |= NotifyTimer
		}
	case CategorySignal:
		if raw.Any(NotifyRead | NotifyClose) {
			out |= NotifySignal
		}
	case CategoryMessage:
		if raw.Any(NotifyRead | NotifyClose) {
			out |= NotifyMessage
		}
	case CategoryAlways:
		out |= NotifyAlways
		return out
	default:
		if raw&NotifyRead != 0 {
			out |= requested & (NotifyRead | NotifyAccept)
		}
		if raw&NotifyWrite != 0 {
			out |= requested & NotifyWrite
		}
	}
	if raw&NotifyClose != 0 {
		out |= NotifyClose
		if c == CategorySocket {
			// so the reader observes EOF or the pending error
			out |= requested & NotifyRead
		}
	}
	return out
}

// Handle is an opaque source identifier: a file descriptor for sockets,
// timers, signals and messages, or any caller chosen integer for always-ready
// sources.
type Handle int

// RegistrationID identifies one registration. It combines an arena slot with
// a generation, so IDs of unregistered descriptors never resolve again, even
// after the slot (or the numeric handle) is reused.
type RegistrationID uint64

// InvalidRegistration is never returned by a successful Register.
const InvalidRegistration RegistrationID = 0

func makeRegistrationID(gen uint32, slot uint32) RegistrationID {
	return RegistrationID(uint64(gen)<<32 | uint64(slot))
}

func (x RegistrationID) slot() uint32 { return uint32(x) }

func (x RegistrationID) generation() uint32 { return uint32(x >> 32) }

// WakeRecord reports one handle that became ready during the last Wait.
type WakeRecord struct {
	Handle Handle
	Flags  NotifyFlags
}

// Wait sentinels.
const (
	// WaitFlushing is returned by Wait while flushing, after Close, or when the
	// backend fails. See Multiplexer.Flushing and Multiplexer.Err.
	WaitFlushing = -1
	// WaitBusy is returned by Wait if another Wait is already in progress.
	WaitBusy = -2
)
