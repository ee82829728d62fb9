// Package jitter provides the noise sources feeding the entropy pool.
//
// A Source produces raw entropy bytes and may fail transiently; callers
// treat a failure as "zero entropy", never as fatal. The only concrete
// source here harvests CPU/scheduler timing jitter, the same class of noise
// haveged and the jitterentropy library rely on.
package jitter

import (
	"errors"
	"sync"
)

// ErrNoJitter is returned by NewTimerSource when the clock shows no
// measurable jitter on this hardware. A source that cannot be constructed
// leaves its consumer permanently uninitialized.
var ErrNoJitter = errors.New("jitter: timer resolution too coarse, no usable jitter")

// Source produces entropy bytes. Read fills p entirely or returns an error.
// Implementations are not required to be safe for concurrent use; wrap with
// NewLocked when sharing a source across goroutines.
type Source interface {
	Read(p []byte) error
}

// Locked serializes Read calls to a shared underlying source with a mutex.
type Locked struct {
	mu  sync.Mutex
	src Source
}

// NewLocked returns a Source safe for concurrent use. If src is already a
// *Locked it is returned as-is.
func NewLocked(src Source) Source {
	if src == nil {
		return nil
	}
	if l, ok := src.(*Locked); ok {
		return l
	}
	return &Locked{src: src}
}

func (l *Locked) Read(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Read(p)
}
