// Package epoch implements epoch-based deferred reclamation for the
// lock-free structures in this module.
//
// A Collector tracks a global epoch counter and a fixed set of pin
// slots. A goroutine pins the collector before dereferencing shared
// nodes and retires removed nodes instead of recycling them directly.
// A retired item is handed to its free function only once no pinned
// guard could still observe it, which is what keeps node reuse from
// reintroducing the ABA problem.
//
// A Collector is an explicit shared structure: the data structures that
// use it receive it at construction. There is no package-level
// singleton.
//
// Known limitation: a guard that is pinned indefinitely (for example by
// a goroutine blocked inside a critical section) stalls reclamation for
// the whole collector. The scheme cannot promise otherwise;
// MaxPinDuration exposes the age of the oldest outstanding pin so
// callers can detect a stuck pinner instead of relying on a liveness
// guarantee this package does not make.
package epoch

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

const (
	// idleEpoch marks a pin slot as unclaimed
	idleEpoch = ^uint64(0)

	defaultSlots = 128

	// advanceEvery throttles automatic epoch-advance attempts to one
	// per this many retires
	advanceEvery = 64
)

type pad [64]byte

// FreeFunc releases a retired item once it is unreachable.
type FreeFunc func(item any)

type retiredItem struct {
	epoch uint64
	item  any
	free  FreeFunc
}

// pinSlot holds the observed epoch of one pinned goroutine. The retired
// list is owned exclusively by whichever goroutine currently holds the
// slot; entries left behind at unpin are inherited by the next holder.
type pinSlot struct {
	_        pad
	epoch    atomix.Uint64 // pinned epoch, idleEpoch when free
	pinnedAt atomix.Int64  // unix nanos of the pin, 0 when free
	retired  []retiredItem
}

// Collector coordinates deferred reclamation across a set of lock-free
// structures. The zero value is not usable; use NewCollector.
type Collector struct {
	_       pad
	epoch   atomix.Uint64
	_       pad
	retires atomix.Uint64
	_       pad
	slots   []pinSlot
}

// Option configures a Collector
type Option func(*Collector)

// WithMaxGuards sets the number of pin slots. It bounds the number of
// goroutines that can hold a Guard at the same time; Pin spins once the
// limit is reached. Defaults to 128.
func WithMaxGuards(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.slots = make([]pinSlot, n)
		}
	}
}

// NewCollector creates a collector with the global epoch at zero and
// all pin slots idle.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		slots: make([]pinSlot, defaultSlots),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.slots {
		c.slots[i].epoch.StoreRelaxed(idleEpoch)
	}
	return c
}

// Epoch returns the current global epoch.
func (c *Collector) Epoch() uint64 {
	return c.epoch.LoadAcquire()
}

// Pin claims a pin slot and records the current global epoch in it.
// While the returned Guard is alive, nothing retired at or after that
// epoch is freed. Pin never blocks on a lock; it spins briefly when all
// slots are taken.
func (c *Collector) Pin() Guard {
	sw := spin.Wait{}
	for {
		e := c.epoch.LoadAcquire()
		for i := range c.slots {
			s := &c.slots[i]
			if s.epoch.LoadRelaxed() != idleEpoch {
				continue
			}
			if !s.epoch.CompareAndSwapAcqRel(idleEpoch, e) {
				continue
			}
			// The global epoch may have advanced between the load and
			// the claim; re-publish the newer value so this pin never
			// appears older than it is.
			if g := c.epoch.LoadAcquire(); g != e {
				s.epoch.StoreRelease(g)
			}
			s.pinnedAt.StoreRelaxed(time.Now().UnixNano())
			return Guard{collector: c, slot: s}
		}
		sw.Once()
	}
}

// TryAdvance attempts to advance the global epoch. The epoch moves only
// when every pinned slot has observed the current value, so a single
// stalled pinner holds it in place. Reports whether the epoch advanced.
func (c *Collector) TryAdvance() bool {
	e := c.epoch.LoadAcquire()
	for i := range c.slots {
		p := c.slots[i].epoch.LoadAcquire()
		if p != idleEpoch && p != e {
			return false
		}
	}
	return c.epoch.CompareAndSwapAcqRel(e, e+1)
}

// Reclaim tries to free deferred items sitting on currently idle slots.
// It is a maintenance helper for shutdown paths and diagnostics; the
// hot path reclaims incrementally through Retire and Unpin. Items still
// covered by a pinned guard stay deferred.
func (c *Collector) Reclaim() {
	c.TryAdvance()
	for i := range c.slots {
		s := &c.slots[i]
		e := c.epoch.LoadAcquire()
		if !s.epoch.CompareAndSwapAcqRel(idleEpoch, e) {
			continue
		}
		collect(s, c.minPinned(s))
		s.epoch.StoreRelease(idleEpoch)
	}
}

// MaxPinDuration reports the age of the oldest outstanding pin, or zero
// when nothing is pinned. A value that keeps growing means some
// goroutine is pinned and blocked, and reclamation is stalled with it.
func (c *Collector) MaxPinDuration() time.Duration {
	var oldest int64
	for i := range c.slots {
		s := &c.slots[i]
		if s.epoch.LoadAcquire() == idleEpoch {
			continue
		}
		at := s.pinnedAt.LoadRelaxed()
		if at != 0 && (oldest == 0 || at < oldest) {
			oldest = at
		}
	}
	if oldest == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - oldest)
}

// minPinned returns the minimum epoch observed by any pinned slot,
// excluding skip when non-nil. Capped at the current global epoch, so
// with no pins outstanding only items retired in earlier epochs are
// considered safe.
func (c *Collector) minPinned(skip *pinSlot) uint64 {
	min := c.epoch.LoadAcquire()
	for i := range c.slots {
		s := &c.slots[i]
		if s == skip {
			continue
		}
		if p := s.epoch.LoadAcquire(); p < min {
			min = p
		}
	}
	return min
}

// collect frees every entry on s.retired whose retirement epoch lies
// strictly below min. Only the current holder of s may call it.
func collect(s *pinSlot, min uint64) {
	if len(s.retired) == 0 {
		return
	}
	keep := s.retired[:0]
	for _, r := range s.retired {
		if r.epoch < min {
			r.free(r.item)
		} else {
			keep = append(keep, r)
		}
	}
	// clear the tail so freed items are not held alive
	for i := len(keep); i < len(s.retired); i++ {
		s.retired[i] = retiredItem{}
	}
	s.retired = keep
}

// Guard represents one pinned critical section. It is a value type;
// copying it is cheap but only one copy may call Unpin.
type Guard struct {
	collector *Collector
	slot      *pinSlot
}

// Retire hands item to the collector, tagged with the current global
// epoch. free runs once no guard pinned at or before that epoch
// remains. Must be called between Pin and Unpin.
func (g Guard) Retire(item any, free FreeFunc) {
	c := g.collector
	s := g.slot
	s.retired = append(s.retired, retiredItem{
		epoch: c.epoch.LoadAcquire(),
		item:  item,
		free:  free,
	})
	if c.retires.AddAcqRel(1)%advanceEvery == 0 {
		c.TryAdvance()
		collect(s, c.minPinned(nil))
	}
}

// Unpin ends the critical section: it attempts an epoch advance, frees
// whatever this slot's retired list no longer needs to defer, and
// releases the slot. The guard must not be used afterwards.
func (g Guard) Unpin() {
	c := g.collector
	s := g.slot
	c.TryAdvance()
	// This goroutine is done dereferencing, so its own pin no longer
	// bounds the minimum.
	collect(s, c.minPinned(s))
	s.pinnedAt.StoreRelaxed(0)
	s.epoch.StoreRelease(idleEpoch)
}
