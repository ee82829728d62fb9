package ui

import "time"

// PoolStats is the periodic snapshot the diag tool feeds to the UI.
type PoolStats struct {
	Hits     uint64
	Misses   uint64
	Direct   uint64
	Passes   uint64
	Filled   uint64
	Failures uint64

	States      []uint32 // per-slot state, pool slot order
	Available   uint32   // current pool capacity in bits
	Enabled     bool     // async collection flag
	Initialized bool

	Elapsed   time.Duration
	FetchRate float64 // consumer fetches per second
}

// Slot state values, mirrored from the pool so the UI carries no dependency
// on the pool package.
const (
	StateEmpty uint32 = iota
	StateFilling
	StateFilled
	StateReading
)

// Mode selects the UI output mode.
type Mode int

const (
	ModeTUI    Mode = iota // full bubbletea interactive
	ModeText               // periodic status lines
	ModeSilent             // no terminal output
)
