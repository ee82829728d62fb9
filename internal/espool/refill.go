package espool

import "runtime"

// ScheduleRefill triggers a background refill pass. Triggers are coalesced:
// while a pass is queued or running, further triggers are no-ops, so two
// passes never walk the pool concurrently. A no-op while async collection
// is disabled.
func (p *Pool) ScheduleRefill() {
	if !p.enabled.Load() || !p.initialized.Load() {
		return
	}
	p.stats.triggers.Add(1)
	if !p.refillQueued.CompareAndSwap(false, true) {
		return
	}
	go p.refillPass()
}

// refillPass walks the pool once and fills every slot it can claim. Each
// fill requests the full oversampled seed amount. The pass yields between
// slots so a large pool cannot starve other goroutines, and aborts early if
// async collection is disabled underneath it.
func (p *Pool) refillPass() {
	defer p.refillQueued.Store(false)

	p.refillMu.Lock()
	defer p.refillMu.Unlock()

	debugf("refill pass started")
	p.stats.passes.Add(1)

	for i := range p.slots {
		if !p.enabled.Load() {
			break
		}
		s := &p.slots[i]
		if !s.state.CompareAndSwap(SlotEmpty, SlotFilling) {
			continue
		}

		if p.pace != nil {
			p.pace.Wait(1)
		}

		s.bits = p.fetchSync(s.data, p.seedBitsOSR)
		s.state.Store(SlotFilled)
		p.stats.filled.Add(1)
		debugf("refill: filled slot %d with %d bits of entropy", i, s.bits)

		runtime.Gosched()
	}

	debugf("refill pass completed")
}
