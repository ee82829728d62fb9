package espool

import "sync/atomic"

// counters are the pool's hot-path statistics. Plain atomics, incremented
// without coordination; Stats() takes a snapshot.
type counters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	direct      atomic.Uint64
	triggers    atomic.Uint64
	passes      atomic.Uint64
	filled      atomic.Uint64
	srcFailures atomic.Uint64
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	FastPathHits   uint64 // fetches served from a pre-filled slot
	PoolMisses     uint64 // fast-path attempts that found the slot not Filled
	DirectFetches  uint64 // fetches routed straight to the synchronous path
	RefillTriggers uint64 // ScheduleRefill calls while enabled (incl. coalesced)
	RefillPasses   uint64 // passes actually run
	SlotsFilled    uint64 // slots transitioned Filling -> Filled
	SourceFailures uint64 // synchronous fetches that returned an error

	SlotStates [NumSlotStates]int // current slot count per state
}

// Stats returns a non-blocking snapshot. The per-state counts are read one
// slot at a time and may not be mutually consistent under load.
func (p *Pool) Stats() Stats {
	st := Stats{
		FastPathHits:   p.stats.hits.Load(),
		PoolMisses:     p.stats.misses.Load(),
		DirectFetches:  p.stats.direct.Load(),
		RefillTriggers: p.stats.triggers.Load(),
		RefillPasses:   p.stats.passes.Load(),
		SlotsFilled:    p.stats.filled.Load(),
		SourceFailures: p.stats.srcFailures.Load(),
	}
	for i := range p.slots {
		if s := p.slots[i].state.Load(); s < NumSlotStates {
			st.SlotStates[s]++
		}
	}
	return st
}

// SlotStates returns the current state of every slot, in slot order. Used
// by the diagnostic UI to render the pool strip.
func (p *Pool) SlotStates() []SlotState {
	out := make([]SlotState, len(p.slots))
	for i := range p.slots {
		out[i] = p.slots[i].state.Load()
	}
	return out
}
