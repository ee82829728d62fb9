package espool

import "log"

// Debug enables slot-level diagnostics on the standard logger. Off by
// default; the hot path only pays for the flag check.
var Debug bool

func debugf(format string, args ...any) {
	if Debug {
		log.Printf("espool: "+format, args...)
	}
}
