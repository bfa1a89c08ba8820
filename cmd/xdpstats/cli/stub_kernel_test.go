package cli_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
)

var errNotSupported = errors.New("not supported by stub kernel")

// stubKernel serves pinned maps from real files under a temp
// directory; every path that exists opens as a map with info.
type stubKernel struct {
	mu       sync.Mutex
	info     kernel.MapInfo
	detached []string
}

func newStubKernel() *stubKernel {
	return &stubKernel{info: kernel.MapInfo{
		ID:         42,
		Name:       "xdp_stats_map",
		Type:       kernel.MapTypePerCPUArray,
		KeySize:    xdpstats.StatsMapShape.KeySize,
		ValueSize:  xdpstats.StatsMapShape.ValueSize,
		MaxEntries: xdpstats.StatsMapShape.MaxEntries,
	}}
}

type stubMap struct{ info kernel.MapInfo }

func (m *stubMap) Info() (kernel.MapInfo, error)                 { return m.info, nil }
func (m *stubMap) Pin(string) error                              { return errNotSupported }
func (m *stubMap) Lookup(uint32, *xdpstats.Datarec) error        { return nil }
func (m *stubMap) LookupPerCPU(uint32, []xdpstats.Datarec) error { return nil }
func (m *stubMap) Close() error                                  { return nil }

func (k *stubKernel) OpenPinnedMap(path string) (interpreter.Map, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open pinned map %s: %w", path, err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return &stubMap{info: k.info}, nil
}

func (k *stubKernel) RemovePin(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (k *stubKernel) OpenObject(objectPath, programName string) (interpreter.Object, error) {
	return nil, &xdpstats.LoadError{ObjectPath: objectPath, ProgramName: programName, Err: errNotSupported}
}

func (k *stubKernel) AttachXDP(context.Context, interpreter.Object, interpreter.AttachOptions) (interpreter.Program, error) {
	return nil, errNotSupported
}

func (k *stubKernel) DetachXDP(_ context.Context, opts interpreter.DetachOptions) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.detached = append(k.detached, opts.Device)
	return nil
}

func (k *stubKernel) PossibleCPUs() (int, error) { return 2, nil }
