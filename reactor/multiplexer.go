package reactor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-reactor/goroutineid"
)

// Multiplexer drives one Backend on behalf of one owner goroutine.
//
// Register, Unregister, Modify, Wait and the record accessors belong to the
// owner, set by Bind or by the first Wait. Until then any goroutine may
// mutate the table, as long as calls are not concurrent. Restart,
// SetFlushing, Wakeup, Release, Flushing, Err and Stats are safe from any
// goroutine.
type Multiplexer struct {
	backend Backend
	wake    *WakeupChannel
	table   *descriptorTable
	misuse  *misuseLog
	logger  *Logger
	// records holds *WakeRecord from the last wait
	records     *queue.Queue
	pendingWork func() bool
	ready       []Readiness
	observed    []uint32

	err   error
	errMu sync.Mutex

	epoch   uint64
	stats   counters
	owner   atomic.Uint64
	waiting atomic.Int32

	flushing atomic.Bool
	closed   atomic.Bool
}

// New creates a Multiplexer, trying each configured backend in priority
// order. A backend that fails to initialize is logged and skipped; only
// exhausting every backend is an error, wrapping ErrNoBackend.
func New(opts ...Option) (*Multiplexer, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Multiplexer{
		table:       newDescriptorTable(),
		misuse:      newMisuseLog(cfg.logger, cfg.misuseRates),
		logger:      cfg.logger,
		records:     queue.New(),
		pendingWork: cfg.pendingWork,
		ready:       make([]Readiness, 0, cfg.maxEvents),
	}

	x.wake, err = newWakeupChannel(x.misuse)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBackend, err)
	}

	var errs []error
	for _, kind := range cfg.backends {
		b, err := backendFactory(kind, cfg)
		if err == nil {
			if err = b.Add(x.wake.Fd(), NotifyRead); err != nil {
				_ = b.Close()
			}
		}
		if err != nil {
			errs = append(errs, err)
			x.logger.Warning().
				Stringer("backend", kind).
				Err(err).
				Log("reactor: backend unavailable, degrading")
			continue
		}
		x.backend = b
		break
	}
	if x.backend == nil {
		_ = x.wake.Close()
		return nil, fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
	}

	x.logger.Debug().
		Stringer("backend", x.backend.Kind()).
		Int("max_events", cfg.maxEvents).
		Bool("edge_triggered", cfg.edgeTriggered).
		Log("reactor: multiplexer created")

	return x, nil
}

// Backend returns the kind of the chosen backend.
func (x *Multiplexer) Backend() BackendKind { return x.backend.Kind() }

// Bind makes the calling goroutine the owner. It fails (reported, false) if
// another goroutine already owns the multiplexer.
func (x *Multiplexer) Bind() bool {
	me := uint64(goroutineid.Get())
	if x.owner.CompareAndSwap(0, me) || x.owner.Load() == me {
		return true
	}
	x.misuse.build("bind").
		Uint64("owner", x.owner.Load()).
		Uint64("caller", me).
		Log("reactor: multiplexer already bound")
	return false
}

// Owner returns the owner goroutine, or 0 if unbound.
func (x *Multiplexer) Owner() goroutineid.ID { return goroutineid.ID(x.owner.Load()) }

func (x *Multiplexer) checkOwner(op string) bool {
	owner := x.owner.Load()
	if owner == 0 {
		return true
	}
	caller := uint64(goroutineid.Get())
	if caller == owner {
		return true
	}
	x.misuse.build(op).
		Uint64("owner", owner).
		Uint64("caller", caller).
		Err(ErrWrongThread).
		Log("reactor: mutation from foreign goroutine dropped")
	return false
}

// Register adds or updates the registration for h. Registering an identical
// live registration is a no-op returning the existing ID; different flags
// update it in place. The change takes effect from the next Wait.
//
// Handles of Always sources are never given to the backend, and may be any
// caller chosen integer.
func (x *Multiplexer) Register(h Handle, flags NotifyFlags) (RegistrationID, error) {
	if x.closed.Load() {
		return InvalidRegistration, ErrClosed
	}
	if !x.checkOwner("register") {
		return InvalidRegistration, ErrWrongThread
	}
	if h == x.wake.Fd() {
		return InvalidRegistration, ErrAlreadyRegistered
	}
	id, err := x.table.register(h, flags)
	if err != nil {
		return InvalidRegistration, err
	}
	x.logger.Trace().
		Int("handle", int(h)).
		Stringer("flags", flags).
		Uint64("id", uint64(id)).
		Log("reactor: register")
	return id, nil
}

// Unregister schedules removal of a registration. The descriptor is released
// by the next Wait. Unknown or stale IDs are reported, and return false.
func (x *Multiplexer) Unregister(id RegistrationID) bool {
	if x.closed.Load() || !x.checkOwner("unregister") {
		return false
	}
	if !x.table.unregister(id) {
		x.misuse.build("unregister").
			Uint64("id", uint64(id)).
			Err(ErrNotRegistered).
			Log("reactor: unregister of unknown registration")
		return false
	}
	return true
}

// Modify sets (enable) or clears flags of a socket registration. Other
// categories cannot be modified.
func (x *Multiplexer) Modify(id RegistrationID, flags NotifyFlags, enable bool) bool {
	if x.closed.Load() || !x.checkOwner("modify") {
		return false
	}
	if !x.table.modify(id, flags, enable) {
		x.misuse.build("modify").
			Uint64("id", uint64(id)).
			Stringer("flags", flags).
			Log("reactor: modify rejected")
		return false
	}
	return true
}

// CanWake reports whether the last Wait observed any of flags on id.
func (x *Multiplexer) CanWake(id RegistrationID, flags NotifyFlags) bool {
	_, d, ok := x.table.lookup(id)
	return ok && d.state != statePendingRemoval && d.observed&flags != 0
}

// CanExit reports whether no live sources remain, other than Always sources.
func (x *Multiplexer) CanExit() bool { return x.table.canExit() }

// Len returns the number of live descriptors, including those pending
// removal.
func (x *Multiplexer) Len() int { return x.table.live() }

// Wait blocks until a registered source is ready, the timeout (milliseconds,
// negative for none) elapses, or flushing is requested. It returns the number
// of WakeRecords queued, WaitFlushing, or WaitBusy if another Wait is in
// progress (or the caller is not the owner).
//
// Wakeups that find no ready source restart the wait, rather than returning.
func (x *Multiplexer) Wait(timeoutMs int) int {
	if x.waiting.Add(1) != 1 {
		x.waiting.Add(-1)
		x.misuse.build("wait").Log("reactor: concurrent wait rejected")
		return WaitBusy
	}
	defer x.waiting.Add(-1)

	me := uint64(goroutineid.Get())
	if !x.owner.CompareAndSwap(0, me) && x.owner.Load() != me {
		x.misuse.build("wait").
			Uint64("owner", x.owner.Load()).
			Uint64("caller", me).
			Err(ErrWrongThread).
			Log("reactor: wait from foreign goroutine rejected")
		return WaitBusy
	}

	x.clearRecords()
	if x.flushing.Load() || x.closed.Load() {
		return WaitFlushing
	}
	x.stats.waits.Add(1)

	var deadline time.Time
	if timeoutMs >= 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for {
		if _, err := x.wake.ReleaseAll(); err != nil {
			return x.fail(err)
		}
		if x.flushing.Load() {
			return WaitFlushing
		}
		if x.table.reconcile(x.backend, x.backendFailure) {
			x.stats.reconciles.Add(1)
		}

		timeout := remaining(deadline, timeoutMs)
		if timeout != 0 && (len(x.table.always) != 0 || len(x.table.failed) != 0 || (x.pendingWork != nil && x.pendingWork())) {
			timeout = 0
		}

		var err error
		x.ready, err = x.backend.Wait(timeout, x.ready[:0])
		if err != nil {
			return x.fail(err)
		}

		x.epoch++
		woken := false
		for _, r := range x.ready {
			if r.Handle == x.wake.Fd() {
				woken = true
				if err := x.wake.drain(); err != nil {
					return x.fail(err)
				}
				continue
			}
			slot, ok := x.table.handleSlot(r.Handle)
			if !ok {
				continue
			}
			d := &x.table.slots[slot]
			flags := d.category.translate(d.requested, r.Flags)
			if flags == NotifyNone {
				continue
			}
			x.push(slot, d, flags)
		}
		for _, slot := range x.table.failed {
			d := &x.table.slots[slot]
			d.failed = false
			x.push(slot, d, NotifyClose)
		}
		x.table.failed = x.table.failed[:0]
		for _, slot := range x.table.always {
			x.push(slot, &x.table.slots[slot], NotifyAlways)
		}

		if n := x.records.Length(); n != 0 || !woken {
			x.stats.records.Add(uint64(n))
			return n
		}
		x.stats.wakeups.Add(1)
		if timeoutMs >= 0 && remaining(deadline, timeoutMs) == 0 && !x.wakePending() {
			return 0
		}
	}
}

func (x *Multiplexer) wakePending() bool {
	return x.wake.Pending() != 0 || x.flushing.Load() || x.table.rebuild.Load() ||
		(x.pendingWork != nil && x.pendingWork())
}

// push queues a record for d, merging with any record it already has from
// this wait.
func (x *Multiplexer) push(slot uint32, d *descriptor, flags NotifyFlags) {
	if d.observed == NotifyNone {
		x.observed = append(x.observed, slot)
	}
	d.observed |= flags
	if d.recEpoch == x.epoch && d.rec != nil {
		d.rec.Flags |= flags
		return
	}
	d.recEpoch = x.epoch
	d.rec = &WakeRecord{Handle: d.handle, Flags: flags}
	x.records.Add(d.rec)
}

func (x *Multiplexer) clearRecords() {
	for x.records.Length() != 0 {
		x.records.Remove()
	}
	for _, slot := range x.observed {
		if int(slot) < len(x.table.slots) {
			x.table.slots[slot].observed = NotifyNone
		}
	}
	x.observed = x.observed[:0]
}

func (x *Multiplexer) backendFailure(op string, h Handle, err error) {
	x.logger.Err().
		Stringer("backend", x.backend.Kind()).
		Str("op", op).
		Int("handle", int(h)).
		Err(err).
		Log("reactor: backend rejected registration")
}

func (x *Multiplexer) fail(err error) int {
	x.errMu.Lock()
	x.err = err
	x.errMu.Unlock()
	x.logger.Err().
		Stringer("backend", x.backend.Kind()).
		Err(err).
		Log("reactor: wait failed")
	return WaitFlushing
}

// remaining converts the time left until deadline to a backend timeout,
// rounding up to whole milliseconds.
func remaining(deadline time.Time, timeoutMs int) int {
	if timeoutMs < 0 {
		return -1
	}
	d := time.Until(deadline)
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// FetchWake removes and returns the next record of the last Wait.
func (x *Multiplexer) FetchWake() (WakeRecord, bool) {
	if x.records.Length() == 0 {
		return WakeRecord{}, false
	}
	return *x.records.Remove().(*WakeRecord), true
}

// PeekWake returns the next record of the last Wait, without removing it.
func (x *Multiplexer) PeekWake() (WakeRecord, bool) {
	if x.records.Length() == 0 {
		return WakeRecord{}, false
	}
	return *x.records.Peek().(*WakeRecord), true
}

// Restart interrupts an in-progress Wait, which then applies any pending
// registration changes and blocks again.
func (x *Multiplexer) Restart() {
	if x.waiting.Load() != 0 {
		x.wake.Raise()
	}
}

// SetFlushing sets or clears the shutdown flag. While set, Wait returns
// WaitFlushing; an in-progress Wait is interrupted.
func (x *Multiplexer) SetFlushing(flushing bool) {
	x.flushing.Store(flushing)
	if flushing && x.waiting.Load() != 0 {
		x.wake.Raise()
	}
}

// Flushing reports whether Wait is currently refusing to block, due to
// SetFlushing or Close.
func (x *Multiplexer) Flushing() bool { return x.flushing.Load() || x.closed.Load() }

// Wakeup raises the wakeup channel. See WakeupChannel.Raise.
func (x *Multiplexer) Wakeup() bool { return x.wake.Raise() }

// Release retires one wakeup request. See WakeupChannel.Release.
func (x *Multiplexer) Release() bool { return x.wake.Release() }

// Err returns the error that caused the last failed Wait, if any.
func (x *Multiplexer) Err() error {
	x.errMu.Lock()
	defer x.errMu.Unlock()
	if x.err == nil && x.closed.Load() {
		return ErrClosed
	}
	return x.err
}

// Close releases the backend and the wakeup channel. Closing while a Wait is
// in progress sets flushing and fails with ErrWaitInProgress, so the caller
// can retry once the wait returns.
func (x *Multiplexer) Close() error {
	if x.waiting.Load() != 0 {
		x.SetFlushing(true)
		return ErrWaitInProgress
	}
	if x.closed.Swap(true) {
		return nil
	}
	x.clearRecords()
	x.table.close(x.backend)
	err := x.backend.Close()
	if err2 := x.wake.Close(); err == nil {
		err = err2
	}
	x.logger.Debug().Log("reactor: multiplexer closed")
	return err
}
