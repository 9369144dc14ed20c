package eventloop

import (
	"sync"

	"github.com/joeycumines/go-reactor/goroutineid"
)

// loopRegistry maps running loops to the goroutines running them.
var loopRegistry = struct {
	loops map[goroutineid.ID]*Loop
	mu    sync.RWMutex
}{loops: make(map[goroutineid.ID]*Loop)}

func registerLoop(id goroutineid.ID, l *Loop) {
	loopRegistry.mu.Lock()
	defer loopRegistry.mu.Unlock()
	loopRegistry.loops[id] = l
}

func unregisterLoop(id goroutineid.ID, l *Loop) {
	loopRegistry.mu.Lock()
	defer loopRegistry.mu.Unlock()
	if loopRegistry.loops[id] == l {
		delete(loopRegistry.loops, id)
	}
}

// LoopFor returns the loop running on the given goroutine, or nil.
func LoopFor(id goroutineid.ID) *Loop {
	loopRegistry.mu.RLock()
	defer loopRegistry.mu.RUnlock()
	return loopRegistry.loops[id]
}

// Current returns the loop running on the calling goroutine, or nil. It is
// meant for recipients, which are always called on their loop's goroutine.
func Current() *Loop {
	return LoopFor(goroutineid.Get())
}
