package ebpf

import (
	"fmt"
	"os"

	"github.com/cilium/ebpf"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
)

// mapHandle wraps an *ebpf.Map.
type mapHandle struct {
	m *ebpf.Map
}

var _ interpreter.Map = (*mapHandle)(nil)

func (h *mapHandle) Info() (kernel.MapInfo, error) {
	info, err := h.m.Info()
	if err != nil {
		return kernel.MapInfo{}, fmt.Errorf("get map info: %w", err)
	}
	return infoToMapInfo(info), nil
}

func (h *mapHandle) Pin(path string) error {
	if err := h.m.Pin(path); err != nil {
		return fmt.Errorf("pin map to %s: %w", path, err)
	}
	return nil
}

func (h *mapHandle) Lookup(key uint32, out *xdpstats.Datarec) error {
	return h.m.Lookup(&key, out)
}

func (h *mapHandle) LookupPerCPU(key uint32, out []xdpstats.Datarec) error {
	var values []xdpstats.Datarec
	if err := h.m.Lookup(&key, &values); err != nil {
		return err
	}
	if len(values) != len(out) {
		return fmt.Errorf("lookup key %d: got %d per-CPU values, expected %d", key, len(values), len(out))
	}
	copy(out, values)
	return nil
}

func (h *mapHandle) Close() error {
	return h.m.Close()
}

// OpenPinnedMap opens the map pinned at path.
func (k *kernelAdapter) OpenPinnedMap(path string) (interpreter.Map, error) {
	m, err := ebpf.LoadPinnedMap(path, nil)
	if err != nil {
		return nil, fmt.Errorf("load pinned map %s: %w", path, err)
	}
	return &mapHandle{m: m}, nil
}

// RemovePin removes a pin or empty directory from bpffs.
// Returns nil if the path does not exist.
func (k *kernelAdapter) RemovePin(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove pin %s: %w", path, err)
	}
	return nil
}
