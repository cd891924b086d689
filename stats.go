package okv

import (
	"fmt"
	"sync/atomic"
)

// Stats is a snapshot of a Store's operation counters.
type Stats struct {
	Gets           uint64
	Misses         uint64
	Sets           uint64
	Deletes        uint64
	Clears         uint64
	Scans          uint64
	ScannedEntries uint64
	DecodeErrors   uint64
	BackendErrors  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("gets = %d (misses = %d), sets = %d, deletes = %d, clears = %d, scans = %d, scanned = %d, decode_errors = %d, backend_errors = %d",
		s.Gets, s.Misses, s.Sets, s.Deletes, s.Clears, s.Scans, s.ScannedEntries, s.DecodeErrors, s.BackendErrors)
}

type counters struct {
	gets           atomic.Uint64
	misses         atomic.Uint64
	sets           atomic.Uint64
	deletes        atomic.Uint64
	clears         atomic.Uint64
	scans          atomic.Uint64
	scannedEntries atomic.Uint64
	decodeErrors   atomic.Uint64
	backendErrors  atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Gets:           c.gets.Load(),
		Misses:         c.misses.Load(),
		Sets:           c.sets.Load(),
		Deletes:        c.deletes.Load(),
		Clears:         c.clears.Load(),
		Scans:          c.scans.Load(),
		ScannedEntries: c.scannedEntries.Load(),
		DecodeErrors:   c.decodeErrors.Load(),
		BackendErrors:  c.backendErrors.Load(),
	}
}
