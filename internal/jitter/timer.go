package jitter

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sys/unix"
)

const (
	// samplesPerBlock deltas are conditioned into one 32-byte output block.
	// 64 deltas at a conservative fraction of a bit of jitter each still
	// overfills 256 bits only together with the pool's own underestimation,
	// so the accounting lives in the pool, not here.
	samplesPerBlock = 64

	// calibrationSamples taken during construction to judge the clock.
	calibrationSamples = 1024

	// minDistinctDeltas distinct measurements required before the clock is
	// considered jittery enough to use.
	minDistinctDeltas = 16

	scratchSize = 4096
)

// TimerSource harvests execution-timing jitter: the delta between two
// monotonic clock reads around a short memory walk varies with cache and
// scheduler state. Raw deltas are conditioned through BLAKE2b-256 before any
// byte is handed out, so output quality does not depend on the shape of the
// delta distribution.
//
// Not safe for concurrent use; wrap with NewLocked to share.
type TimerSource struct {
	mem    []byte // scratch walked between clock reads to provoke cache noise
	memIdx int
	ctr    uint64 // monotonically increasing, folded into every block
}

// NewTimerSource measures the clock and returns a source, or ErrNoJitter
// when the hardware shows too little timing variation (coarse clocks,
// some virtualized environments). The calibration budget bounds how long
// construction may spend measuring; 0 means a default of 100ms.
func NewTimerSource(calibration time.Duration) (*TimerSource, error) {
	if calibration <= 0 {
		calibration = 100 * time.Millisecond
	}

	s := &TimerSource{mem: make([]byte, scratchSize)}

	seen := make(map[uint64]struct{}, calibrationSamples)
	deadline := time.Now().Add(calibration)
	for i := 0; i < calibrationSamples; i++ {
		seen[s.delta()] = struct{}{}
		if len(seen) >= minDistinctDeltas {
			return s, nil
		}
		if i%128 == 0 && time.Now().After(deadline) {
			break
		}
	}
	if len(seen) >= minDistinctDeltas {
		return s, nil
	}
	return nil, ErrNoJitter
}

// delta returns one timing measurement in nanoseconds.
func (s *TimerSource) delta() uint64 {
	var t0, t1 unix.Timespec
	unix.ClockGettime(unix.CLOCK_MONOTONIC, &t0)

	// Pointer-chase through the scratch buffer; the access pattern depends
	// on prior contents so the walk does not optimize away.
	idx := s.memIdx
	for i := 0; i < 16; i++ {
		idx = (idx*31 + int(s.mem[idx]) + 7) & (scratchSize - 1)
		s.mem[idx]++
	}
	s.memIdx = idx

	unix.ClockGettime(unix.CLOCK_MONOTONIC, &t1)
	return uint64(t1.Nano() - t0.Nano())
}

// Read fills p with conditioned jitter bytes.
func (s *TimerSource) Read(p []byte) error {
	var sample [8]byte
	for len(p) > 0 {
		h, err := blake2b.New256(nil)
		if err != nil {
			return err
		}
		for i := 0; i < samplesPerBlock; i++ {
			binary.LittleEndian.PutUint64(sample[:], s.delta())
			h.Write(sample[:])
		}
		s.ctr++
		binary.LittleEndian.PutUint64(sample[:], s.ctr)
		h.Write(sample[:])

		n := copy(p, h.Sum(nil))
		p = p[n:]
	}
	return nil
}
