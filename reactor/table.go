package reactor

import (
	"sync/atomic"
)

type descState uint8

const (
	stateFree descState = iota
	stateInactive
	stateActive
	statePendingRemoval
)

type descriptor struct {
	// rec is the record queued for this descriptor by the current wait, valid
	// while recEpoch matches the multiplexer's epoch
	rec       *WakeRecord
	recEpoch  uint64
	handle    Handle
	requested NotifyFlags
	observed  NotifyFlags
	// armed is the interest last given to the backend
	armed    NotifyFlags
	gen      uint32
	category Category
	state    descState
	// inBackend is true while the backend holds a registration for handle
	inBackend bool
	// failed marks a descriptor the backend refused, reported once as Close
	failed bool
}

// descriptorTable is the arena of descriptors, partitioned into inactive,
// active and pending-removal sets. Not safe for concurrent use, except for
// the rebuild flag.
type descriptorTable struct {
	slots    []descriptor
	free     []uint32
	byHandle map[Handle]uint32
	// pendingByHandle indexes the pending-removal set
	pendingByHandle map[Handle]uint32
	inactive        []uint32
	pending         []uint32
	// always lists active Always descriptors, in activation order
	always []uint32
	// failed lists descriptors with an unreported backend failure
	failed  []uint32
	rebuild atomic.Bool
}

func newDescriptorTable() *descriptorTable {
	return &descriptorTable{
		byHandle:        make(map[Handle]uint32),
		pendingByHandle: make(map[Handle]uint32),
	}
}

// lookup resolves an ID to a live descriptor, rejecting stale generations.
func (t *descriptorTable) lookup(id RegistrationID) (uint32, *descriptor, bool) {
	slot := id.slot()
	if id == InvalidRegistration || int(slot) >= len(t.slots) {
		return 0, nil, false
	}
	d := &t.slots[slot]
	if d.state == stateFree || d.gen != id.generation() {
		return 0, nil, false
	}
	return slot, d, true
}

func (t *descriptorTable) id(slot uint32) RegistrationID {
	return makeRegistrationID(t.slots[slot].gen, slot)
}

func (t *descriptorTable) alloc() uint32 {
	if n := len(t.free); n != 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		return slot
	}
	t.slots = append(t.slots, descriptor{gen: 1})
	return uint32(len(t.slots) - 1)
}

func (t *descriptorTable) release(slot uint32) {
	d := &t.slots[slot]
	gen := d.gen + 1
	if gen == 0 {
		gen = 1
	}
	*d = descriptor{gen: gen}
	t.free = append(t.free, slot)
}

// register implements Multiplexer.Register, see there.
func (t *descriptorTable) register(h Handle, flags NotifyFlags) (RegistrationID, error) {
	if flags == NotifyNone || flags&^notifyAll != 0 {
		return InvalidRegistration, ErrInvalidFlags
	}
	category := flags.Category()
	if h < 0 && category != CategoryAlways {
		return InvalidRegistration, ErrInvalidHandle
	}

	if slot, ok := t.byHandle[h]; ok {
		d := &t.slots[slot]
		if d.requested == flags {
			return t.id(slot), nil
		}
		if d.state == stateActive {
			t.deactivate(slot)
		}
		d.requested = flags
		d.category = category
		t.rebuild.Store(true)
		return t.id(slot), nil
	}

	var inherit bool
	if old, ok := t.pendingByHandle[h]; ok {
		// the backend still holds the handle, so the new descriptor takes
		// over that registration and reconciles with a modify
		inherit = t.slots[old].inBackend
		t.pending = removeSlot(t.pending, old)
		delete(t.pendingByHandle, h)
		t.release(old)
	}

	slot := t.alloc()
	d := &t.slots[slot]
	d.handle = h
	d.requested = flags
	d.category = category
	d.state = stateInactive
	d.inBackend = inherit
	t.byHandle[h] = slot
	t.inactive = append(t.inactive, slot)
	t.rebuild.Store(true)
	return t.id(slot), nil
}

// unregister implements Multiplexer.Unregister, see there.
func (t *descriptorTable) unregister(id RegistrationID) bool {
	slot, d, ok := t.lookup(id)
	if !ok || d.state == statePendingRemoval {
		return false
	}
	switch d.state {
	case stateInactive:
		t.inactive = removeSlot(t.inactive, slot)
	case stateActive:
		if d.category == CategoryAlways {
			t.always = removeSlot(t.always, slot)
		}
	}
	if d.failed {
		d.failed = false
		t.failed = removeSlot(t.failed, slot)
	}
	delete(t.byHandle, d.handle)
	d.state = statePendingRemoval
	t.pendingByHandle[d.handle] = slot
	t.pending = append(t.pending, slot)
	t.rebuild.Store(true)
	return true
}

// modify implements Multiplexer.Modify, see there.
func (t *descriptorTable) modify(id RegistrationID, flags NotifyFlags, enable bool) bool {
	slot, d, ok := t.lookup(id)
	if !ok || d.state == statePendingRemoval || d.category != CategorySocket || flags&^NotifySocket != 0 {
		return false
	}
	requested := d.requested &^ flags
	if enable {
		requested = d.requested | flags
	}
	if requested == d.requested {
		return true
	}
	if d.state == stateActive {
		t.deactivate(slot)
	}
	d.requested = requested
	t.rebuild.Store(true)
	return true
}

// deactivate moves an active descriptor back to the inactive set.
func (t *descriptorTable) deactivate(slot uint32) {
	d := &t.slots[slot]
	if d.category == CategoryAlways {
		t.always = removeSlot(t.always, slot)
	}
	if d.failed {
		d.failed = false
		t.failed = removeSlot(t.failed, slot)
	}
	d.state = stateInactive
	t.inactive = append(t.inactive, slot)
}

// reconcile applies the pending changes to the backend, if the rebuild flag
// was set. Backend failures are passed to onError; a descriptor the backend
// refused stays active without a backend registration, and is queued for a
// single Close report.
func (t *descriptorTable) reconcile(b Backend, onError func(op string, h Handle, err error)) bool {
	if !t.rebuild.CompareAndSwap(true, false) {
		return false
	}

	for _, slot := range t.pending {
		d := &t.slots[slot]
		if d.inBackend {
			if err := b.Remove(d.handle); err != nil {
				onError("remove", d.handle, err)
			}
		}
		if t.pendingByHandle[d.handle] == slot {
			delete(t.pendingByHandle, d.handle)
		}
		t.release(slot)
	}
	t.pending = t.pending[:0]

	for _, slot := range t.inactive {
		d := &t.slots[slot]
		d.state = stateActive
		if d.category == CategoryAlways {
			if d.inBackend {
				if err := b.Remove(d.handle); err != nil {
					onError("remove", d.handle, err)
				}
				d.inBackend = false
				d.armed = NotifyNone
			}
			t.always = append(t.always, slot)
			continue
		}
		interest := d.requested.interest()
		var err error
		if d.inBackend {
			err = b.Modify(d.handle, interest)
			// closing the previous file drops its registration (epoll), so
			// a reused handle number must be added again
			if err != nil && b.Add(d.handle, interest) == nil {
				err = nil
			}
			if err != nil {
				onError("modify", d.handle, err)
			}
		} else {
			err = b.Add(d.handle, interest)
			if err != nil {
				onError("add", d.handle, err)
			}
		}
		if err != nil {
			d.inBackend = false
			d.armed = NotifyNone
			d.failed = true
			t.failed = append(t.failed, slot)
			continue
		}
		d.inBackend = true
		d.armed = interest
	}
	t.inactive = t.inactive[:0]
	return true
}

// live returns the number of live descriptors, in any set.
func (t *descriptorTable) live() int {
	return len(t.byHandle) + len(t.pending)
}

// canExit reports whether every live descriptor (ignoring pending removals)
// is an Always source.
func (t *descriptorTable) canExit() bool {
	for _, slot := range t.byHandle {
		if t.slots[slot].category != CategoryAlways {
			return false
		}
	}
	return true
}

// handleSlot returns the slot of the active descriptor for h.
func (t *descriptorTable) handleSlot(h Handle) (uint32, bool) {
	slot, ok := t.byHandle[h]
	if !ok || t.slots[slot].state != stateActive {
		return 0, false
	}
	return slot, true
}

// close removes every backend registration, and resets the table.
func (t *descriptorTable) close(b Backend) {
	for i := range t.slots {
		d := &t.slots[i]
		if d.state != stateFree && d.inBackend {
			_ = b.Remove(d.handle)
		}
	}
	t.slots = nil
	t.free = nil
	t.inactive = nil
	t.pending = nil
	t.always = nil
	t.failed = nil
	clear(t.byHandle)
	clear(t.pendingByHandle)
}

// removeSlot removes the first occurrence of slot, preserving order.
func removeSlot(s []uint32, slot uint32) []uint32 {
	for i, v := range s {
		if v == slot {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
