package chunk

import "sync/atomic"

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits          int64
	Misses        int64
	Loads         int64
	Evictions     int64
	Discarded     int64
	Failures      int64
	Invalidations int64
	Size          int64
	InFlight      int64
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits          atomic.Int64
	misses        atomic.Int64
	loads         atomic.Int64
	evictions     atomic.Int64
	discarded     atomic.Int64
	failures      atomic.Int64
	invalidations atomic.Int64
	size          atomic.Int64
	inflight      atomic.Int64
}

// Stats returns current counters. Safe to call from any goroutine.
func (s *Store) Stats() Stats {
	c := &s.counter
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loads.Load(),
		Evictions:     c.evictions.Load(),
		Discarded:     c.discarded.Load(),
		Failures:      c.failures.Load(),
		Invalidations: c.invalidations.Load(),
		Size:          c.size.Load(),
		InFlight:      c.inflight.Load(),
	}
}
