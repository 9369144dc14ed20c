package reactor

import (
	"sync/atomic"
)

// Stats is a snapshot of Multiplexer activity counters.
type Stats struct {
	// Waits counts Wait calls that reached the backend loop.
	Waits uint64
	// Wakeups counts backend returns caused only by the wakeup channel.
	Wakeups uint64
	// Reconciles counts reconciliation passes.
	Reconciles uint64
	// Records counts WakeRecords produced.
	Records uint64
}

type counters struct {
	waits      atomic.Uint64
	wakeups    atomic.Uint64
	reconciles atomic.Uint64
	records    atomic.Uint64
}

// Stats returns a snapshot of the activity counters. Safe for concurrent use.
func (x *Multiplexer) Stats() Stats {
	return Stats{
		Waits:      x.stats.waits.Load(),
		Wakeups:    x.stats.wakeups.Load(),
		Reconciles: x.stats.reconciles.Load(),
		Records:    x.stats.records.Load(),
	}
}
