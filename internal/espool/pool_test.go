package espool

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bukka/lrng/internal/config"
)

// patternSource fills every request with a uniform byte that increments per
// call, so each fill is distinguishable and a torn copy (bytes from two
// different fills) is detectable.
type patternSource struct {
	next  byte
	calls int
}

func (f *patternSource) Read(p []byte) error {
	f.calls++
	f.next++
	for i := range p {
		p[i] = f.next
	}
	return nil
}

type failingSource struct {
	calls int
}

func (f *failingSource) Read(p []byte) error {
	f.calls++
	return errors.New("health test failure")
}

// testConfig returns a small deterministic pool configuration: 8-byte seed
// unit, OSR 2, so the oversampled request is 128 bits / 16 bytes.
func testConfig(blocks int) *config.Config {
	cfg := config.Default()
	cfg.Pool.Blocks = blocks
	cfg.Pool.SeedBytes = 8
	cfg.Pool.OSR = 2
	cfg.Pool.Async = false // tests enable and refill by hand for determinism
	return cfg
}

// fillPool runs one synchronous refill pass with further scheduling
// suppressed, leaving the suppression in place so fetch-side triggers are
// counted but spawn nothing.
func fillPool(p *Pool) {
	p.refillQueued.Store(true)
	p.refillPass()
	p.refillQueued.Store(true)
}

func TestEntropyLevel(t *testing.T) {
	p, err := New(testConfig(0), &patternSource{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Default rate 16 against strength 256: 1/16th credited.
	if got := p.EntropyLevel(256); got != 16 {
		t.Errorf("EntropyLevel(256) = %d, want 16", got)
	}
	if got := p.EntropyLevel(128); got != 8 {
		t.Errorf("EntropyLevel(128) = %d, want 8", got)
	}
	if got := p.PoolSize(); got != 16 {
		t.Errorf("PoolSize() = %d, want 16", got)
	}

	// Monotonic non-decreasing and never above the request.
	prev := uint32(0)
	for req := uint32(0); req <= 256; req += 8 {
		got := p.EntropyLevel(req)
		if got > req {
			t.Errorf("EntropyLevel(%d) = %d exceeds request", req, got)
		}
		if got < prev {
			t.Errorf("EntropyLevel(%d) = %d below EntropyLevel(%d) = %d", req, got, req-8, prev)
		}
		prev = got
	}

	// Rate is clamped to the security strength.
	p.SetEntropyRate(4096)
	if got := p.EntropyRate(); got != 256 {
		t.Errorf("EntropyRate after oversized set = %d, want 256", got)
	}
	if got := p.EntropyLevel(256); got != 256 {
		t.Errorf("EntropyLevel(256) at full rate = %d, want 256", got)
	}
}

func TestUninitialized(t *testing.T) {
	p, err := New(testConfig(4), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	if p.Initialized() {
		t.Error("pool with nil source must not report initialized")
	}
	if got := p.EntropyLevel(256); got != 0 {
		t.Errorf("EntropyLevel = %d, want 0 before initialization", got)
	}
	if got := p.PoolSize(); got != 0 {
		t.Errorf("PoolSize = %d, want 0 before initialization", got)
	}
	data, bits := p.Fetch(p.SeedBitsOSR(), true)
	if data != nil || bits != 0 {
		t.Errorf("Fetch = (%v, %d), want (nil, 0) before initialization", data, bits)
	}

	// A stray schedule on an uninitialized pool must stay a no-op.
	p.enabled.Store(true)
	p.ScheduleRefill()
	if got := p.Stats().RefillTriggers; got != 0 {
		t.Errorf("RefillTriggers = %d, want 0 on uninitialized pool", got)
	}
}

func TestFIPSPromotion(t *testing.T) {
	cfg := testConfig(0)
	cfg.Source.FIPS = true
	p, err := New(cfg, &patternSource{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.EntropyRate(); got != 256 {
		t.Errorf("FIPS rate = %d, want full strength 256", got)
	}

	// An explicit operator override survives compliance mode.
	cfg = testConfig(0)
	cfg.Source.FIPS = true
	cfg.Source.EntropyRate = 32
	p, err = New(cfg, &patternSource{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.EntropyRate(); got != 32 {
		t.Errorf("overridden FIPS rate = %d, want 32", got)
	}
}

func TestOnFullySeeded(t *testing.T) {
	seeded := 0
	if _, err := New(testConfig(0), &patternSource{}, func() { seeded++ }); err != nil {
		t.Fatal(err)
	}
	if seeded != 1 {
		t.Errorf("seeded callback fired %d times, want 1", seeded)
	}

	// Zero rate means the source is meant to be excluded from seeding.
	cfg := testConfig(0)
	cfg.Source.EntropyRate = 0
	seeded = 0
	if _, err := New(cfg, &patternSource{}, func() { seeded++ }); err != nil {
		t.Fatal(err)
	}
	if seeded != 0 {
		t.Error("seeded callback fired for a zero-rate source")
	}

	// Uninitialized source never declares itself seeded.
	seeded = 0
	if _, err := New(testConfig(0), nil, func() { seeded++ }); err != nil {
		t.Fatal(err)
	}
	if seeded != 0 {
		t.Error("seeded callback fired for an uninitialized source")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := testConfig(12) // not a power of two
	if _, err := New(cfg, &patternSource{}, nil); err == nil {
		t.Error("expected error for non-power-of-two pool size")
	}
	cfg = testConfig(2) // below minimum
	if _, err := New(cfg, &patternSource{}, nil); err == nil {
		t.Error("expected error for pool size below 4")
	}
}

func TestScenarioFullPoolDrain(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)

	if got := p.Stats().SlotStates[SlotFilled]; got != 4 {
		t.Fatalf("filled slots = %d, want 4", got)
	}
	syncCalls := src.calls

	wantBits := p.EntropyLevel(p.SeedBitsOSR())
	seen := make(map[byte]bool)
	for i := 0; i < 4; i++ {
		data, bits := p.Fetch(p.SeedBitsOSR(), true)
		if bits != wantBits {
			t.Errorf("fetch %d: bits = %d, want %d", i, bits, wantBits)
		}
		if len(data) != int(p.SeedBitsOSR()/8) {
			t.Errorf("fetch %d: len = %d, want %d", i, len(data), p.SeedBitsOSR()/8)
		}
		if seen[data[0]] {
			t.Errorf("fetch %d: slot value %d served twice", i, data[0])
		}
		seen[data[0]] = true
	}

	if src.calls != syncCalls {
		t.Errorf("source called %d extra times, all fetches should hit the pool", src.calls-syncCalls)
	}

	st := p.Stats()
	if st.FastPathHits != 4 {
		t.Errorf("FastPathHits = %d, want 4", st.FastPathHits)
	}
	if st.SlotStates[SlotEmpty] != 4 {
		t.Errorf("empty slots after drain = %d, want 4", st.SlotStates[SlotEmpty])
	}
	// With 4 slots the quarter divisor is 1: slots 1, 2 and 3 each trigger
	// a refill, slot 0 does not.
	if st.RefillTriggers != 3 {
		t.Errorf("RefillTriggers = %d, want 3", st.RefillTriggers)
	}

	// Drained slots hold no residue.
	for i := range p.slots {
		if !bytes.Equal(p.slots[i].data, make([]byte, len(p.slots[i].data))) {
			t.Errorf("slot %d holds residual bytes after drain", i)
		}
		if p.slots[i].bits != 0 {
			t.Errorf("slot %d holds residual bits after drain", i)
		}
	}
}

func TestScenarioExhaustedPool(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	p.refillQueued.Store(true) // suppress the spawned pass

	data, bits := p.Fetch(p.SeedBitsOSR(), true)
	if want := p.EntropyLevel(p.SeedBitsOSR()); bits != want {
		t.Errorf("fallback bits = %d, want %d", bits, want)
	}
	if len(data) != int(p.SeedBitsOSR()/8) {
		t.Errorf("fallback data len = %d, want %d", len(data), p.SeedBitsOSR()/8)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1 (synchronous fallback)", src.calls)
	}

	st := p.Stats()
	if st.PoolMisses != 1 {
		t.Errorf("PoolMisses = %d, want 1", st.PoolMisses)
	}
	if st.RefillTriggers != 1 {
		t.Errorf("RefillTriggers = %d, want 1 (urgent refill)", st.RefillTriggers)
	}
}

func TestScenarioDirectFetch(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)
	before := p.SlotStates()

	// Not flagged as seed-oversampled: pool untouched.
	if _, bits := p.Fetch(64, false); bits != p.EntropyLevel(64) {
		t.Errorf("direct fetch bits = %d, want %d", bits, p.EntropyLevel(64))
	}
	// Flagged, but the size does not match the per-slot amount: still direct.
	if _, bits := p.Fetch(64, true); bits != p.EntropyLevel(64) {
		t.Errorf("mismatched oversampled fetch bits = %d, want %d", bits, p.EntropyLevel(64))
	}

	after := p.SlotStates()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("slot %d state changed by direct fetch: %d -> %d", i, before[i], after[i])
		}
	}
	if st := p.Stats(); st.DirectFetches != 2 || st.FastPathHits != 0 {
		t.Errorf("DirectFetches = %d, FastPathHits = %d, want 2 and 0", st.DirectFetches, st.FastPathHits)
	}
}

func TestScenarioDisableEnable(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)

	p.SetAsync(false)
	if p.AsyncEnabled() {
		t.Fatal("pool still enabled after disable")
	}
	for i := range p.slots {
		if !bytes.Equal(p.slots[i].data, make([]byte, len(p.slots[i].data))) {
			t.Errorf("slot %d not zeroized on disable", i)
		}
	}

	// Disabled pool routes everything synchronously.
	syncCalls := src.calls
	if _, bits := p.Fetch(p.SeedBitsOSR(), true); bits == 0 {
		t.Error("disabled pool should still serve via the synchronous path")
	}
	if src.calls != syncCalls+1 {
		t.Errorf("source calls = %d, want %d", src.calls, syncCalls+1)
	}

	p.refillQueued.Store(true) // keep the re-enable pass suppressed
	p.SetAsync(true)
	if !p.AsyncEnabled() {
		t.Fatal("pool not enabled after enable")
	}
	st := p.Stats()
	if st.SlotStates[SlotEmpty] != 4 {
		t.Errorf("empty slots after enable = %d, want 4", st.SlotStates[SlotEmpty])
	}
	if st.RefillTriggers == 0 {
		t.Error("enable did not schedule a refill")
	}

	// Both transitions are idempotent.
	trig := st.RefillTriggers
	p.SetAsync(true)
	if p.Stats().RefillTriggers != trig {
		t.Error("redundant enable scheduled another refill")
	}
}

func TestRoundTrip(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)

	// Slot 0 was filled first: uniform byte 1. It must come back
	// byte-identical on the matching read.
	data, _ := p.Fetch(p.SeedBitsOSR(), true)
	want := bytes.Repeat([]byte{1}, int(p.SeedBitsOSR()/8))
	if !bytes.Equal(data, want) {
		t.Errorf("round trip mismatch: got %v, want %v", data, want)
	}
}

func TestTransientFailure(t *testing.T) {
	src := &failingSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)

	// Failed fills still complete the slot cycle, credited zero bits.
	st := p.Stats()
	if st.SlotStates[SlotFilled] != 4 {
		t.Errorf("filled slots = %d, want 4 (failure is not a hard error)", st.SlotStates[SlotFilled])
	}
	if st.SourceFailures != 4 {
		t.Errorf("SourceFailures = %d, want 4", st.SourceFailures)
	}

	data, bits := p.Fetch(p.SeedBitsOSR(), true)
	if bits != 0 {
		t.Errorf("bits = %d, want 0 after source failure", bits)
	}
	if data == nil {
		t.Error("data must still be returned, callers tolerate zero bits")
	}

	// Synchronous path degrades the same way.
	if _, bits := p.Fetch(64, false); bits != 0 {
		t.Errorf("sync bits = %d, want 0 after source failure", bits)
	}
}

func TestQuarterTrigger(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(8), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)
	fillPool(p)

	// Pool of 8: quarter divisor 2, so slots 2, 4 and 6 trigger.
	for i := 0; i < 8; i++ {
		p.Fetch(p.SeedBitsOSR(), true)
	}
	if got := p.Stats().RefillTriggers; got != 3 {
		t.Errorf("RefillTriggers = %d, want 3", got)
	}
}

func TestCursorWraps(t *testing.T) {
	src := &patternSource{}
	p, err := New(testConfig(4), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	p.enabled.Store(true)

	// Two full cycles: refill between them, every fetch must hit.
	for cycle := 0; cycle < 2; cycle++ {
		fillPool(p)
		for i := 0; i < 4; i++ {
			if _, bits := p.Fetch(p.SeedBitsOSR(), true); bits == 0 {
				t.Fatalf("cycle %d fetch %d missed", cycle, i)
			}
		}
	}
	if st := p.Stats(); st.FastPathHits != 8 || st.PoolMisses != 0 {
		t.Errorf("hits = %d misses = %d, want 8 and 0", st.FastPathHits, st.PoolMisses)
	}
}

func TestStateString(t *testing.T) {
	p, err := New(testConfig(4), &patternSource{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := p.State()
	want := " Available entropy: 16\n Enabled: true\n Jitter RNG async collection false\n"
	if got != want {
		t.Errorf("State() = %q, want %q", got, want)
	}
	if p.Name() != "JitterRNG" {
		t.Errorf("Name() = %q", p.Name())
	}
}
