// Package interpreter defines the boundary between xdpstats logic and
// the kernel. Implementations in interpreter/ebpf perform the actual
// I/O; tests substitute fakes.
package interpreter

import (
	"context"
	"errors"
	"time"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/kernel"
)

// ErrDeviceNotFound is wrapped by AttachXDP and DetachXDP when the
// network device does not exist in the target namespace.
var ErrDeviceNotFound = errors.New("device not found")

// Map is an open handle on a kernel map. Closing the handle does not
// destroy the map while a program or pin still references it.
type Map interface {
	// Info returns the kernel's description of the map, including
	// its generation ID.
	Info() (kernel.MapInfo, error)
	// Pin publishes the map at path on bpffs.
	Pin(path string) error
	// Lookup reads the value for key from a non per-CPU map.
	Lookup(key uint32, out *xdpstats.Datarec) error
	// LookupPerCPU reads one value per possible CPU for key. out
	// must have one element per possible CPU.
	LookupPerCPU(key uint32, out []xdpstats.Datarec) error
	Close() error
}

// Object is a parsed BPF object file with one selected program,
// not yet loaded into the kernel.
type Object interface {
	// Path returns the object file path.
	Path() string
	// ProgramName returns the selected entry point.
	ProgramName() string
	// MapNames returns the names of the maps the object declares,
	// excluding internal data sections.
	MapNames() []string
	// MapSpec returns the declared shape of the named map.
	MapSpec(name string) (kernel.MapInfo, bool)
	// ReplaceMap makes the program use m instead of creating the
	// named map when it is loaded. The object takes ownership of m.
	ReplaceMap(name string, m Map) error
	Close() error
}

// Program is a loaded program attached to a device. Closing it
// releases userspace handles only; the attachment persists.
type Program interface {
	ID() uint32
	Name() string
	// Maps returns the program's maps keyed by name. The handles
	// remain owned by the Program.
	Maps() map[string]Map
	Close() error
}

// AttachOptions describes where and how to attach a program.
type AttachOptions struct {
	Device string
	Mode   xdpstats.AttachMode
	// Force replaces a program already attached to the device.
	Force bool
	// Netns is a network namespace path; empty means the current
	// namespace.
	Netns string
	// LinkPinPath, when set, attaches through a bpf_link pinned at
	// this path instead of a netlink attachment.
	LinkPinPath string
}

// DetachOptions describes which attachment to remove.
type DetachOptions struct {
	Device      string
	Mode        xdpstats.AttachMode
	Netns       string
	LinkPinPath string
}

// MapOpener opens pinned maps.
type MapOpener interface {
	OpenPinnedMap(path string) (Map, error)
}

// PinRemover removes pins from bpffs.
type PinRemover interface {
	// RemovePin removes a pin or empty directory. Returns nil if
	// the path does not exist.
	RemovePin(path string) error
}

// Kernel combines the kernel operations xdpstats needs.
type Kernel interface {
	MapOpener
	PinRemover
	// OpenObject parses objectPath and selects programName. An
	// empty programName selects the first XDP program.
	OpenObject(objectPath, programName string) (Object, error)
	// AttachXDP loads obj and attaches it. Load failures are
	// returned as *xdpstats.LoadError.
	AttachXDP(ctx context.Context, obj Object, opts AttachOptions) (Program, error)
	// DetachXDP removes the XDP program from a device. Detaching
	// a device with no program is not an error; a missing device
	// returns an error wrapping ErrDeviceNotFound.
	DetachXDP(ctx context.Context, opts DetachOptions) error
	// PossibleCPUs returns the number of per-CPU map replicas.
	PossibleCPUs() (int, error)
}

// Clock abstracts time for the stats reporter.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err()
	// in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
