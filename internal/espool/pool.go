// Package espool implements the asynchronous entropy buffer pool for the
// jitter noise source.
//
// Sampling timing jitter is slow relative to the consumers that need seed
// material, so the pool keeps a fixed ring of pre-filled slots. Consumers
// claim slots with per-slot CAS transitions and never block; a miss falls
// back to a mutex-serialized synchronous fetch from the source. A
// single-flight background pass refills empty slots and yields between
// them.
//
// Slot lifecycle: Empty -> Filling -> Filled -> Reading -> Empty. Only a
// CAS from the exact expected prior state succeeds; any other observed
// state means "skip this slot" for that actor. Slot buffers are zeroized
// the moment their contents have been handed out, and again when async
// collection is disabled, so no entropy byte is ever served twice or left
// recoverable.
package espool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bukka/lrng/internal/config"
	"github.com/bukka/lrng/internal/jitter"
	"github.com/bukka/lrng/internal/limiter"
)

// SlotState is the lifecycle state of one pool slot.
type SlotState = uint32

const (
	SlotEmpty SlotState = iota
	SlotFilling
	SlotFilled
	SlotReading
)

// NumSlotStates is the number of distinct slot states.
const NumSlotStates = 4

// slot is one pre-filled entropy buffer. state is the only field touched by
// more than one goroutine at a time: data and bits are written only by the
// filler that owns the Filling transition and read only by the consumer
// that owns the Reading transition.
type slot struct {
	state atomic.Uint32
	bits  uint32
	data  []byte // len = one oversampled seed unit
}

// Pool is the jitter entropy source: slot ring, refill task, synchronous
// fallback and entropy accounting. All methods are safe for concurrent use.
type Pool struct {
	seedBitsOSR      uint32
	securityStrength uint32

	entropyRate atomic.Uint32
	initialized atomic.Bool
	enabled     atomic.Bool

	slots  []slot
	mask   uint32
	cursor atomic.Uint32 // consumer round-robin; next slot = Add(1) & mask

	src   jitter.Source
	srcMu sync.Mutex // the source is shared, not reentrant

	refillQueued atomic.Bool // single-flight guard for the refill pass
	refillMu     sync.Mutex  // serializes a pass against the disable wipe
	pace         *limiter.TokenBucket

	stats counters
}

// New constructs the pool. A nil src models a noise source that failed its
// health test at startup: the pool is still returned but stays permanently
// uninitialized, every estimate reports zero and Fetch yields no data.
//
// onFullySeeded, when non-nil, is invoked once if the source comes up with a
// nonzero entropy rate; the entropy source manager uses it to declare the
// source capable of delivering a full seed.
func New(cfg *config.Config, src jitter.Source, onFullySeeded func()) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		seedBitsOSR:      cfg.SeedBitsOSR(),
		securityStrength: uint32(cfg.Source.SecurityStrength),
	}

	rate := uint32(cfg.Source.EntropyRate)
	if rate > p.securityStrength {
		rate = p.securityStrength
	}

	// In compliance mode the jitter source is defined to carry full
	// entropy unless the operator overrode the default rate. A zero
	// default means the source is meant to be excluded and stays at zero.
	if cfg.Source.FIPS && config.DefaultEntropyRate > 0 &&
		cfg.Source.EntropyRate == config.DefaultEntropyRate {
		rate = p.securityStrength
	}
	p.entropyRate.Store(rate)

	if blocks := cfg.Pool.Blocks; blocks > 0 {
		p.slots = make([]slot, blocks)
		p.mask = uint32(blocks) - 1
		unit := int(p.seedBitsOSR / 8)
		for i := range p.slots {
			p.slots[i].data = make([]byte, unit)
		}
		p.enabled.Store(cfg.Pool.Async)
	}
	p.cursor.Store(^uint32(0)) // first claim lands on slot 0

	if cfg.Pool.RefillRate > 0 {
		p.pace = limiter.NewTokenBucket(float64(cfg.Pool.RefillRate), 1)
	}

	if src == nil {
		return p, nil
	}
	p.src = src
	p.initialized.Store(true)

	if p.entropyRate.Load() > 0 && onFullySeeded != nil {
		onFullySeeded()
	}
	p.ScheduleRefill()
	return p, nil
}

// Name identifies the source to the entropy source manager.
func (p *Pool) Name() string { return "JitterRNG" }

// Initialized reports whether the noise source came up.
func (p *Pool) Initialized() bool { return p.initialized.Load() }

// AsyncEnabled reports whether the asynchronous slot pool is active.
func (p *Pool) AsyncEnabled() bool { return p.enabled.Load() }

// Blocks returns the slot count (0 when async collection is not built).
func (p *Pool) Blocks() int { return len(p.slots) }

// SeedBitsOSR returns the oversampled request size the fast path serves.
func (p *Pool) SeedBitsOSR() uint32 { return p.seedBitsOSR }

// EntropyRate returns the current assessed rate in bits per
// security-strength bits of output.
func (p *Pool) EntropyRate() uint32 { return p.entropyRate.Load() }

// SetEntropyRate tunes the assessed rate at runtime, clamped to the
// security strength.
func (p *Pool) SetEntropyRate(rate uint32) {
	if rate > p.securityStrength {
		rate = p.securityStrength
	}
	p.entropyRate.Store(rate)
}

// EntropyLevel assesses how many bits of entropy a buffer of requestedBits
// output carries. Zero before the source is initialized. Pure.
func (p *Pool) EntropyLevel(requestedBits uint32) uint32 {
	if !p.initialized.Load() {
		return 0
	}
	return fastNoiseLevel(p.entropyRate.Load(), requestedBits, p.securityStrength)
}

// PoolSize is the capacity of the source: the assessment of one full
// security-strength request.
func (p *Pool) PoolSize() uint32 {
	return p.EntropyLevel(p.securityStrength)
}

func fastNoiseLevel(rate, requested, strength uint32) uint32 {
	if rate > strength {
		rate = strength
	}
	ent := uint32(uint64(requested) * uint64(rate) / uint64(strength))
	if ent > requested {
		ent = requested
	}
	return ent
}

// SetAsync enables or disables asynchronous collection. Enabling resets
// every slot to Empty and schedules an immediate refill pass. Disabling
// waits for an in-flight pass to finish, then zeroizes the whole slot
// array. A no-op when the pool was built without slots or the flag already
// has the requested value.
func (p *Pool) SetAsync(enable bool) {
	if len(p.slots) == 0 {
		return
	}
	if enable {
		if p.enabled.CompareAndSwap(false, true) {
			for i := range p.slots {
				p.slots[i].state.Store(SlotEmpty)
			}
			debugf("async collection enabled")
			p.ScheduleRefill()
		}
	} else {
		if p.enabled.CompareAndSwap(true, false) {
			p.Wipe()
			debugf("async collection disabled")
		}
	}
}

// Wipe zeroizes every slot buffer and resets all states to Empty. It waits
// for an in-flight refill pass so the wipe cannot race a concurrent slot
// write. Called on disable and at process teardown.
func (p *Pool) Wipe() {
	p.refillMu.Lock()
	defer p.refillMu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		zeroize(s.data)
		s.bits = 0
		s.state.Store(SlotEmpty)
	}
}

// State renders the source status for the entropy source manager.
func (p *Pool) State() string {
	return fmt.Sprintf(
		" Available entropy: %d\n Enabled: %t\n Jitter RNG async collection %t\n",
		p.PoolSize(), p.initialized.Load(), p.enabled.Load())
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
