package bpffs

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
)

// LinkPinName is the file name of a pinned XDP link inside a device
// directory.
const LinkPinName = "xdp_link"

// DeviceDir is one per-device pin directory: {base}/{device}.
type DeviceDir struct {
	Device string
	Path   string
	// MapPin is the path of the stats map pin, empty if absent.
	MapPin string
	// LinkPin is the path of the pinned XDP link, empty if absent.
	LinkPin string
	// Other counts pinned maps besides the stats map.
	Other int
}

// Scanner provides read-only access to the per-device pin layout
// under a base directory.
type Scanner struct {
	base        string
	mapName     string
	onMalformed func(path string, err error)
}

// NewScanner creates a Scanner for pins under base whose stats map
// is named mapName.
func NewScanner(base, mapName string) *Scanner {
	return &Scanner{base: base, mapName: mapName}
}

// WithOnMalformed sets a callback for entries that cannot be
// inspected. Returns the Scanner for chaining.
func (s *Scanner) WithOnMalformed(f func(path string, err error)) *Scanner {
	s.onMalformed = f
	return s
}

func (s *Scanner) reportMalformed(path string, err error) {
	if s.onMalformed != nil {
		s.onMalformed(path, err)
	}
}

// Devices returns an iterator over device directories. Errors are
// yielded only for failures that prevent enumeration; unreadable
// device directories are skipped and reported via OnMalformed.
func (s *Scanner) Devices(ctx context.Context) iter.Seq2[DeviceDir, error] {
	return func(yield func(DeviceDir, error) bool) {
		entries, err := os.ReadDir(s.base)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			yield(DeviceDir{}, fmt.Errorf("read dir %s: %w", s.base, err))
			return
		}

		for _, entry := range entries {
			if ctx.Err() != nil {
				yield(DeviceDir{}, ctx.Err())
				return
			}
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(s.base, entry.Name())
			pins, err := os.ReadDir(dir)
			if err != nil {
				s.reportMalformed(dir, err)
				continue
			}

			dev := DeviceDir{Device: entry.Name(), Path: dir}
			for _, pin := range pins {
				if pin.IsDir() {
					continue
				}
				switch pin.Name() {
				case s.mapName:
					dev.MapPin = filepath.Join(dir, pin.Name())
				case LinkPinName:
					dev.LinkPin = filepath.Join(dir, pin.Name())
				default:
					dev.Other++
				}
			}
			// Directories holding something other than our pins
			// belong to another tool.
			if dev.MapPin == "" && dev.LinkPin == "" {
				continue
			}
			if !yield(dev, nil) {
				return
			}
		}
	}
}

// PathExists reports whether path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
