package espool

// Fetch returns entropy bytes and their assessed entropy bits.
//
// The fast path serves a pre-filled slot and is eligible only when async
// collection is enabled, the caller flagged the request as seed-oversampled
// and the request size matches what the refill task produces per slot.
// Everything else goes straight to the synchronous source. Degradation is
// always expressed as fewer bits, never as an error: callers must tolerate
// zero.
func (p *Pool) Fetch(requestedBits uint32, oversampled bool) ([]byte, uint32) {
	if !p.initialized.Load() {
		return nil, 0
	}
	if p.enabled.Load() && oversampled && requestedBits == p.seedBitsOSR {
		return p.fetchAsync(requestedBits)
	}
	p.stats.direct.Add(1)
	buf := make([]byte, requestedBits/8)
	return buf, p.fetchSync(buf, requestedBits)
}

// fetchAsync claims the next slot round-robin. A slot that is not Filled
// means the pool is exhausted: fall back synchronously and refill urgently.
func (p *Pool) fetchAsync(requestedBits uint32) ([]byte, uint32) {
	idx := p.cursor.Add(1) & p.mask
	s := &p.slots[idx]

	if !s.state.CompareAndSwap(SlotFilled, SlotReading) {
		debugf("slot %d exhausted, falling back to synchronous fetch", idx)
		p.stats.misses.Add(1)
		buf := make([]byte, requestedBits/8)
		bits := p.fetchSync(buf, requestedBits)
		p.ScheduleRefill()
		return buf, bits
	}

	out := make([]byte, len(s.data))
	copy(out, s.data)
	bits := s.bits

	zeroize(s.data)
	s.bits = 0
	s.state.Store(SlotEmpty)

	p.stats.hits.Add(1)
	debugf("used slot %d, %d bits of entropy", idx, bits)

	// Fire a refill roughly every quarter pool consumed. Pool length is a
	// power of two >= 4, so the divisor is exact and nonzero.
	if quarter := uint32(len(p.slots)) / 4; idx%quarter == 0 && idx != 0 {
		p.ScheduleRefill()
	}
	return out, bits
}

// fetchSync is the generator adapter: one serialized call into the noise
// source. A source failure is logged at debug level and credited zero bits;
// it never propagates as a hard error.
func (p *Pool) fetchSync(buf []byte, requestedBits uint32) uint32 {
	if p.src == nil {
		return 0
	}
	bits := p.EntropyLevel(requestedBits)

	p.srcMu.Lock()
	err := p.src.Read(buf[:requestedBits/8])
	p.srcMu.Unlock()

	if err != nil {
		p.stats.srcFailures.Add(1)
		debugf("jitter source failed: %v", err)
		return 0
	}
	debugf("obtained %d bits of entropy from jitter source", bits)
	return bits
}
