// Package goroutineid identifies the calling goroutine.
//
// The reactor and dispatch loop treat a goroutine locked to an OS thread as a
// "thread": each loop records the ID of the goroutine that runs it, and
// mutations that must happen on that thread compare against [Get].
package goroutineid

import (
	"runtime"
)

// ID identifies a goroutine. The zero value is never a valid goroutine ID, and
// is used to mean "unbound".
type ID uint64

// Get returns the ID of the calling goroutine.
//
// It parses the header of runtime.Stack, which has the stable form
// "goroutine N [...]".
func Get() ID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) ID {
	const prefix = len("goroutine ")
	if len(b) <= prefix {
		return 0
	}
	var id uint64
	for i := prefix; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return ID(id)
}

// Valid reports whether x refers to a goroutine.
func (x ID) Valid() bool { return x != 0 }
