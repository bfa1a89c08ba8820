package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/logging"
)

// State is a step in the attach sequence.
type State int

const (
	StateCreated State = iota
	StateTableReused
	StateAttached
	StateTablePinned
	StateCreateFailed
	StateAttachFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateTableReused:
		return "table-reused"
	case StateAttached:
		return "attached"
	case StateTablePinned:
		return "table-pinned"
	case StateCreateFailed:
		return "create-failed"
	case StateAttachFailed:
		return "attach-failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LoadRequest describes a program to load and attach.
type LoadRequest struct {
	ObjectPath  string
	ProgramName string
	Device      string
	Mode        xdpstats.AttachMode
	Force       bool
	Netns       string
	// PinLink attaches through a bpf_link pinned in the device's pin
	// directory instead of a netlink attachment.
	PinLink bool
}

// Attachment is the outcome of a successful LoadAndAttach.
type Attachment struct {
	Program interpreter.Program
	// States lists the states passed through, in order.
	States []State
	Reused bool
	Pinned bool
	// PinErr is set when the program is attached but the stats map
	// could not be pinned.
	PinErr      error
	MapPath     string
	LinkPinPath string
}

// State returns the final state.
func (a *Attachment) State() State {
	return a.States[len(a.States)-1]
}

// UnloadRequest describes a device to detach and unpin.
type UnloadRequest struct {
	Device string
	Mode   xdpstats.AttachMode
	Netns  string
}

// Loader attaches XDP programs and manages their pinned stats map.
type Loader struct {
	kernel interpreter.Kernel
	pinner *Pinner
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(kernel interpreter.Kernel, pinner *Pinner, logger *slog.Logger) *Loader {
	return &Loader{
		kernel: kernel,
		pinner: pinner,
		logger: componentLogger(logger, logging.ComponentLoader),
	}
}

// LoadAndAttach opens the object, reuses a pinned stats map when one
// is present, attaches the program and, unless the map was reused,
// pins the program's maps.
//
// The returned error is one of *xdpstats.OptionError, LoadError,
// ReuseError, PinIOError (link pin directory only) or AttachError. A
// failure to pin the stats map after attaching is not an error; it is
// reported in Attachment.PinErr.
func (l *Loader) LoadAndAttach(ctx context.Context, req LoadRequest) (*Attachment, error) {
	if err := xdpstats.ValidateDeviceName(req.Device); err != nil {
		return nil, err
	}
	logger := l.logger.With("device", req.Device)
	layout := l.pinner.Layout()

	obj, err := l.kernel.OpenObject(req.ObjectPath, req.ProgramName)
	if err != nil {
		logger.Debug("attach sequence", "state", StateCreateFailed)
		return nil, asLoadError(err, req)
	}
	defer obj.Close()

	att := &Attachment{
		States:  []State{StateCreated},
		MapPath: layout.MapPath(req.Device),
	}

	reused, err := l.pinner.TryReuse(obj, req.Device)
	if err != nil {
		var reuseErr *xdpstats.ReuseError
		if errors.As(err, &reuseErr) {
			return nil, err
		}
		logger.Warn("cannot check for a pinned map, continuing without reuse", "error", err)
	}
	if reused != nil {
		att.Reused = true
		att.States = append(att.States, StateTableReused)
	}

	opts := interpreter.AttachOptions{
		Device: req.Device,
		Mode:   req.Mode,
		Force:  req.Force,
		Netns:  req.Netns,
	}
	if req.PinLink {
		dir := layout.PinDir(req.Device)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, &xdpstats.PinIOError{Op: "mkdir", Path: dir, Err: err}
		}
		opts.LinkPinPath = layout.LinkPath(req.Device)
		att.LinkPinPath = opts.LinkPinPath
	}

	prog, err := l.kernel.AttachXDP(ctx, obj, opts)
	if err != nil {
		var loadErr *xdpstats.LoadError
		if errors.As(err, &loadErr) {
			logger.Debug("attach sequence", "state", StateCreateFailed)
			return nil, err
		}
		logger.Debug("attach sequence", "state", StateAttachFailed)
		return nil, &xdpstats.AttachError{Device: req.Device, Mode: req.Mode, Err: err}
	}
	att.Program = prog
	att.States = append(att.States, StateAttached)

	if att.Reused {
		logger.Info("attached with reused stats map", "program", prog.Name(), "id", prog.ID(), "path", att.MapPath)
		return att, nil
	}

	if err := l.pinner.Pin(prog, req.Device); err != nil {
		att.PinErr = err
		logger.Warn("program attached but stats map not pinned", "error", err)
		return att, nil
	}
	att.Pinned = true
	att.States = append(att.States, StateTablePinned)

	logger.Info("attached and pinned", "program", prog.Name(), "id", prog.ID(), "path", att.MapPath)
	return att, nil
}

func asLoadError(err error, req LoadRequest) error {
	var loadErr *xdpstats.LoadError
	if errors.As(err, &loadErr) {
		return err
	}
	return &xdpstats.LoadError{ObjectPath: req.ObjectPath, ProgramName: req.ProgramName, Err: err}
}

// Unload detaches the XDP program from the device and then removes
// the device's pins. Both steps are no-ops when there is nothing to
// remove, so Unload may be repeated.
func (l *Loader) Unload(ctx context.Context, req UnloadRequest) error {
	if err := xdpstats.ValidateDeviceName(req.Device); err != nil {
		return err
	}
	layout := l.pinner.Layout()

	err := l.kernel.DetachXDP(ctx, interpreter.DetachOptions{
		Device:      req.Device,
		Mode:        req.Mode,
		Netns:       req.Netns,
		LinkPinPath: layout.LinkPath(req.Device),
	})
	switch {
	case errors.Is(err, interpreter.ErrDeviceNotFound):
		// Nothing can be attached to a device that is gone; its pins
		// are stale.
		l.logger.Info("device not found, removing stale pins", "device", req.Device)
	case err != nil:
		return &xdpstats.AttachError{Device: req.Device, Mode: req.Mode, Err: err}
	}

	n, err := l.pinner.UnpinAll(req.Device)
	if err != nil {
		return err
	}
	l.logger.Info("unloaded", "device", req.Device, "pins_removed", n)
	return nil
}
