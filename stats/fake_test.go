package stats_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
)

func testLogger() *slog.Logger {
	if os.Getenv("XDPSTATS_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMap holds per-CPU counters for each key. Lookup on a
// non per-CPU map returns the first CPU's value.
type fakeMap struct {
	mu         sync.Mutex
	info       kernel.MapInfo
	values     map[uint32][]xdpstats.Datarec
	failLookup map[uint32]bool
	closes     int
}

func newFakeMap(id uint32, kind kernel.MapType, ncpu int) *fakeMap {
	m := &fakeMap{
		info: kernel.MapInfo{
			ID:         id,
			Name:       "xdp_stats_map",
			Type:       kind,
			KeySize:    xdpstats.StatsMapShape.KeySize,
			ValueSize:  xdpstats.StatsMapShape.ValueSize,
			MaxEntries: xdpstats.StatsMapShape.MaxEntries,
		},
		values:     make(map[uint32][]xdpstats.Datarec),
		failLookup: make(map[uint32]bool),
	}
	for _, a := range xdpstats.Actions() {
		m.values[uint32(a)] = make([]xdpstats.Datarec, ncpu)
	}
	return m
}

// set stores packets and bytes for action on cpu.
func (m *fakeMap) set(action xdpstats.Action, cpu int, packets, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[uint32(action)][cpu] = xdpstats.Datarec{RxPackets: packets, RxBytes: bytes}
}

func (m *fakeMap) Info() (kernel.MapInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, nil
}

func (m *fakeMap) Pin(string) error { return errors.New("not supported") }

func (m *fakeMap) Lookup(key uint32, out *xdpstats.Datarec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup[key] {
		return fmt.Errorf("lookup key %d: injected failure", key)
	}
	vals, ok := m.values[key]
	if !ok {
		return fmt.Errorf("lookup key %d: no such key", key)
	}
	*out = vals[0]
	return nil
}

func (m *fakeMap) LookupPerCPU(key uint32, out []xdpstats.Datarec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup[key] {
		return fmt.Errorf("lookup key %d: injected failure", key)
	}
	vals, ok := m.values[key]
	if !ok {
		return fmt.Errorf("lookup key %d: no such key", key)
	}
	copy(out, vals)
	return nil
}

func (m *fakeMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// fakeOpener serves one pinned map. Setting failNext makes that many
// following opens fail as if the pin were missing.
type fakeOpener struct {
	mu       sync.Mutex
	current  *fakeMap
	failNext int
	opens    int
}

func (o *fakeOpener) OpenPinnedMap(path string) (interpreter.Map, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.failNext > 0 {
		o.failNext--
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	if o.current == nil {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return o.current, nil
}

func (o *fakeOpener) replace(m *fakeMap) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = m
}

func (o *fakeOpener) failFor(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failNext = n
}

// fakeClock advances only when slept on. After each sleep onSleep is
// called with the number of sleeps so far; once stopAfter sleeps have
// happened the context is cancelled.
type fakeClock struct {
	now       time.Time
	sleeps    []time.Duration
	onSleep   func(n int)
	stopAfter int
	cancel    context.CancelFunc
}

var _ interpreter.Clock = (*fakeClock)(nil)

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	if c.stopAfter > 0 && len(c.sleeps) >= c.stopAfter {
		c.cancel()
		return ctx.Err()
	}
	return nil
}
