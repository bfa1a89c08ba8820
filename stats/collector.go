// Package stats reads the pinned XDP stats map and reports per-action
// packet and bit rates.
package stats

import (
	"fmt"
	"log/slog"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
	"github.com/frobware/go-xdpstats/logging"
)

// Collector reads Records from a stats map.
type Collector struct {
	ncpu   int
	percpu []xdpstats.Datarec
	clock  interpreter.Clock
	logger *slog.Logger
}

// NewCollector creates a Collector. ncpu is the number of possible
// CPUs, used to size per-CPU lookups.
func NewCollector(ncpu int, clock interpreter.Clock, logger *slog.Logger) *Collector {
	if ncpu < 1 {
		ncpu = 1
	}
	if clock == nil {
		clock = interpreter.SystemClock{}
	}
	return &Collector{
		ncpu:   ncpu,
		percpu: make([]xdpstats.Datarec, ncpu),
		clock:  clock,
		logger: logging.For(logger, logging.ComponentCollector),
	}
}

// ReadOutcome reads the counters for action into rec. For a per-CPU
// map the per-CPU values are summed. If the lookup fails, rec keeps
// its previous values and a warning is logged; only an unsupported
// map type is returned as an error.
func (c *Collector) ReadOutcome(m interpreter.Map, action xdpstats.Action, kind kernel.MapType, rec *xdpstats.Record) error {
	key := uint32(action)

	switch kind {
	case kernel.MapTypeArray:
		var d xdpstats.Datarec
		if err := m.Lookup(key, &d); err != nil {
			c.logger.Warn("map lookup failed", "key", key, "action", action, "error", err)
			return nil
		}
		*rec = xdpstats.Record{Packets: d.RxPackets, Bytes: d.RxBytes}

	case kernel.MapTypePerCPUArray:
		if err := m.LookupPerCPU(key, c.percpu); err != nil {
			c.logger.Warn("per-CPU map lookup failed", "key", key, "action", action, "error", err)
			return nil
		}
		var sum xdpstats.Record
		for _, d := range c.percpu {
			sum.Add(d)
		}
		*rec = sum

	default:
		return fmt.Errorf("unsupported map type %q", kind)
	}
	return nil
}

// CollectAll reads every action into a new Snapshot. Records start
// from prev, when given, so a failed lookup carries the previous
// value forward. The timestamp is taken before the first lookup.
func (c *Collector) CollectAll(m interpreter.Map, kind kernel.MapType, prev *xdpstats.Snapshot) (xdpstats.Snapshot, error) {
	var snap xdpstats.Snapshot
	if prev != nil {
		snap.Records = prev.Records
	}
	snap.Timestamp = c.clock.Now()

	for _, action := range xdpstats.Actions() {
		if err := c.ReadOutcome(m, action, kind, &snap.Records[action]); err != nil {
			return snap, err
		}
	}
	return snap, nil
}
