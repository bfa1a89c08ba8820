package xdpstats

import "time"

// Datarec mirrors the value stored by the kernel program for each
// action. For per-CPU maps there is one Datarec per possible CPU.
type Datarec struct {
	RxPackets uint64
	RxBytes   uint64
}

// Record is the accumulated packet and byte count for one action,
// summed across CPUs when the map is per-CPU.
type Record struct {
	Packets uint64
	Bytes   uint64
}

// Add accumulates d into r.
func (r *Record) Add(d Datarec) {
	r.Packets += d.RxPackets
	r.Bytes += d.RxBytes
}

// Snapshot holds one Record per action, taken at a single instant.
// Timestamp is read from a monotonic clock immediately before the
// first lookup.
type Snapshot struct {
	Timestamp time.Time
	Records   [ActionMax]Record
}

// Period returns the elapsed time in seconds between prev and s. A
// zero or negative interval yields 0.
func (s Snapshot) Period(prev Snapshot) float64 {
	d := s.Timestamp.Sub(prev.Timestamp)
	if d <= 0 {
		return 0
	}
	return d.Seconds()
}
