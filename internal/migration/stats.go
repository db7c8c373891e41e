package migration

import "sync/atomic"

// Stats accumulates consistency samples. One instance per service, injected
// into its verifier, so tests can read counters without a global registry.
type Stats struct {
	total      atomic.Int64
	matched    atomic.Int64
	mismatched atomic.Int64
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats { return &Stats{} }

// Record adds one sample and returns the new total.
func (s *Stats) Record(matched bool) int64 {
	if matched {
		s.matched.Add(1)
	} else {
		s.mismatched.Add(1)
	}
	return s.total.Add(1)
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Total      int64   `json:"total"`
	Matched    int64   `json:"matched"`
	Mismatched int64   `json:"mismatched"`
	MatchRate  float64 `json:"match_rate"`
}

// Snapshot reads the counters. Counters advance independently, so a snapshot
// taken mid-record may be off by one sample; that is fine for diagnostics.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Total:      s.total.Load(),
		Matched:    s.matched.Load(),
		Mismatched: s.mismatched.Load(),
	}
	if snap.Total > 0 {
		snap.MatchRate = float64(snap.Matched) / float64(snap.Total)
	}
	return snap
}
