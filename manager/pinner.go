package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/bpffs"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
	"github.com/frobware/go-xdpstats/logging"
)

// PinStore is the subset of kernel operations the Pinner needs.
type PinStore interface {
	interpreter.MapOpener
	interpreter.PinRemover
}

// Pinner publishes and discovers the stats map under a PinLayout.
type Pinner struct {
	layout     bpffs.PinLayout
	pins       PinStore
	checkMount MountChecker
	logger     *slog.Logger
}

// PinnerOption configures a Pinner.
type PinnerOption func(*Pinner)

// WithMountChecker replaces the bpffs check run before pinning. A nil
// checker disables the check.
func WithMountChecker(fn MountChecker) PinnerOption {
	return func(p *Pinner) {
		p.checkMount = fn
	}
}

// NewPinner creates a Pinner.
func NewPinner(layout bpffs.PinLayout, pins PinStore, logger *slog.Logger, opts ...PinnerOption) *Pinner {
	p := &Pinner{
		layout:     layout,
		pins:       pins,
		checkMount: EnsureBPFFS,
		logger:     componentLogger(logger, logging.ComponentPinner),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Layout returns the pin layout.
func (p *Pinner) Layout() bpffs.PinLayout { return p.layout }

// EnsureCleanPinLocation returns the Pin Path for dev. If a map is
// already pinned there, every entry named in mapNames is unpinned
// first so that a fresh pin can take its place.
func (p *Pinner) EnsureCleanPinLocation(dev string, mapNames []string) (string, error) {
	path := p.layout.MapPath(dev)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", &xdpstats.PinIOError{Op: "stat", Path: path, Err: err}
	}

	p.logger.Debug("unpinning previous maps", "device", dev, "path", path)
	for _, name := range mapNames {
		pin := p.layout.MapPathFor(dev, name)
		if err := p.pins.RemovePin(pin); err != nil {
			return "", &xdpstats.PinIOError{Op: "unpin", Path: pin, Err: err}
		}
	}
	return path, nil
}

// Pin publishes every map owned by prog under dev's pin directory,
// replacing any stale pins.
func (p *Pinner) Pin(prog interpreter.Program, dev string) error {
	if p.checkMount != nil {
		if err := p.checkMount(p.layout.Base()); err != nil {
			return &xdpstats.PinIOError{Op: "check bpffs", Path: p.layout.Base(), Err: err}
		}
	}

	maps := prog.Maps()
	names := make([]string, 0, len(maps))
	for name := range maps {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := p.EnsureCleanPinLocation(dev, names); err != nil {
		return err
	}

	dir := p.layout.PinDir(dev)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &xdpstats.PinIOError{Op: "mkdir", Path: dir, Err: err}
	}

	for _, name := range names {
		path := p.layout.MapPathFor(dev, name)
		if err := maps[name].Pin(path); err != nil {
			return &xdpstats.PinIOError{Op: "pin", Path: path, Err: err}
		}
		p.logger.Debug("pinned map", "name", name, "path", path)
	}

	p.logger.Info("pinned maps", "device", dev, "dir", dir, "count", len(names))
	return nil
}

// TryReuse looks for the stats map pinned for dev and, if it has the
// shape obj declares, makes obj load against it.
//
// A nil map with a nil error means no reuse: nothing is pinned, the
// pin could not be opened, or the pinned map is stale. A *PinIOError
// reports a filesystem failure and may be treated as no reuse. A
// *ReuseError means obj does not declare the stats map.
func (p *Pinner) TryReuse(obj interpreter.Object, dev string) (interpreter.Map, error) {
	name := p.layout.MapName()
	path := p.layout.MapPath(dev)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &xdpstats.PinIOError{Op: "stat", Path: path, Err: err}
	}

	m, err := p.pins.OpenPinnedMap(path)
	if err != nil {
		// The pin can disappear between stat and open while another
		// loader is replacing it.
		p.logger.Warn("pinned map not openable, creating a new one", "path", path, "error", err)
		return nil, nil
	}

	want, ok := obj.MapSpec(name)
	if !ok {
		m.Close()
		return nil, &xdpstats.ReuseError{MapName: name}
	}

	got, err := m.Info()
	if err != nil {
		m.Close()
		p.logger.Warn("cannot read pinned map info, creating a new one", "path", path, "error", err)
		return nil, nil
	}
	if !sameShape(want, got) {
		m.Close()
		p.logger.Warn("pinned map is stale, creating a new one",
			"path", path,
			"pinned_type", got.Type, "pinned_value_size", got.ValueSize, "pinned_max_entries", got.MaxEntries,
			"declared_type", want.Type, "declared_value_size", want.ValueSize, "declared_max_entries", want.MaxEntries)
		return nil, nil
	}

	if err := obj.ReplaceMap(name, m); err != nil {
		m.Close()
		return nil, &xdpstats.ReuseError{MapName: name, Err: err}
	}

	p.logger.Info("reusing pinned map", "path", path, "id", got.ID)
	return m, nil
}

func sameShape(a, b kernel.MapInfo) bool {
	return a.Type == b.Type &&
		a.KeySize == b.KeySize &&
		a.ValueSize == b.ValueSize &&
		a.MaxEntries == b.MaxEntries
}

// UnpinAll removes every pin under dev's pin directory and then the
// directory itself. Returns the number of pins removed. Unpinning a
// device with nothing pinned is a no-op.
func (p *Pinner) UnpinAll(dev string) (int, error) {
	dir := p.layout.PinDir(dev)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, &xdpstats.PinIOError{Op: "read dir", Path: dir, Err: err}
	}

	count := 0
	for _, entry := range entries {
		path := p.layout.MapPathFor(dev, entry.Name())
		if err := p.pins.RemovePin(path); err != nil {
			return count, &xdpstats.PinIOError{Op: "unpin", Path: path, Err: err}
		}
		count++
	}

	if err := p.pins.RemovePin(dir); err != nil {
		return count, &xdpstats.PinIOError{Op: "remove dir", Path: dir, Err: err}
	}

	p.logger.Info("unpinned device", "device", dev, "removed", count)
	return count, nil
}

// PinnedDevice describes one device's pins.
type PinnedDevice struct {
	Device     string            `json:"device"`
	Map        *kernel.PinnedMap `json:"map,omitempty"`
	LinkPinned bool              `json:"link_pinned"`
	// Error is set when the pinned map could not be inspected.
	Error string `json:"error,omitempty"`
}

// List reports the pinned stats map of every device under the base
// directory.
func (p *Pinner) List(ctx context.Context) ([]PinnedDevice, error) {
	var out []PinnedDevice
	scanner := p.layout.Scanner().WithOnMalformed(func(path string, err error) {
		p.logger.Debug("skipping unreadable pin directory", "path", path, "error", err)
	})

	for dir, err := range scanner.Devices(ctx) {
		if err != nil {
			return out, fmt.Errorf("scan %s: %w", p.layout.Base(), err)
		}
		pd := PinnedDevice{Device: dir.Device, LinkPinned: dir.LinkPin != ""}
		if dir.MapPin != "" {
			info, err := p.Inspect(dir.MapPin)
			if err != nil {
				pd.Error = err.Error()
			} else {
				pd.Map = &kernel.PinnedMap{MapInfo: info, PinnedPath: dir.MapPin}
			}
		}
		out = append(out, pd)
	}
	return out, nil
}

// Inspect opens the map pinned at path and returns its description.
func (p *Pinner) Inspect(path string) (kernel.MapInfo, error) {
	m, err := p.pins.OpenPinnedMap(path)
	if err != nil {
		return kernel.MapInfo{}, err
	}
	defer m.Close()
	return m.Info()
}
