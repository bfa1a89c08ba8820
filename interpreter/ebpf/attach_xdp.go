package ebpf

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/netns"
)

// program is a loaded collection whose XDP program is attached.
type program struct {
	id   uint32
	name string
	coll *ebpf.Collection
	maps map[string]interpreter.Map
	lnk  link.Link
}

var _ interpreter.Program = (*program)(nil)

func (p *program) ID() uint32                       { return p.id }
func (p *program) Name() string                     { return p.name }
func (p *program) Maps() map[string]interpreter.Map { return p.maps }

// Close releases userspace handles. A netlink attachment, or a link
// that has been pinned, keeps the program in the kernel.
func (p *program) Close() error {
	if p.lnk != nil {
		p.lnk.Close()
	}
	p.coll.Close()
	return nil
}

// AttachXDP loads obj and attaches its program to opts.Device.
//
// Without a link pin path the program is attached through netlink so
// that it stays attached after this process exits. Unless opts.Force
// is set, an existing program on the device makes the attach fail.
func (k *kernelAdapter) AttachXDP(ctx context.Context, obj interpreter.Object, opts interpreter.AttachOptions) (interpreter.Program, error) {
	o, ok := obj.(*object)
	if !ok {
		return nil, fmt.Errorf("unsupported object type %T", obj)
	}

	coll, err := ebpf.NewCollectionWithOptions(o.spec, ebpf.CollectionOptions{
		MapReplacements: o.replacements,
	})
	if err != nil {
		return nil, &xdpstats.LoadError{ObjectPath: o.path, ProgramName: o.programName, Err: err}
	}
	// The collection now holds its own references to replaced maps.
	o.Close()

	prog := coll.Programs[o.programName]
	if prog == nil {
		coll.Close()
		return nil, &xdpstats.LoadError{ObjectPath: o.path, ProgramName: o.programName, Err: errors.New("program missing from loaded collection")}
	}

	p := &program{
		name: o.programName,
		coll: coll,
		maps: make(map[string]interpreter.Map, len(coll.Maps)),
	}
	for name, m := range coll.Maps {
		if !isInternalMap(name) {
			p.maps[name] = &mapHandle{m: m}
		}
	}
	if info, err := prog.Info(); err == nil {
		if id, ok := info.ID(); ok {
			p.id = uint32(id)
		}
	}

	err = netns.Run(opts.Netns, func() error {
		dev, err := linkByName(opts.Device)
		if err != nil {
			return err
		}
		if opts.LinkPinPath != "" {
			p.lnk, err = k.attachLink(prog, dev, opts)
			return err
		}
		return k.attachNetlink(prog, dev, opts)
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	k.logger.Info("attached XDP program",
		"program", p.name,
		"id", p.id,
		"device", opts.Device,
		"mode", opts.Mode,
		"link_pin", opts.LinkPinPath)
	return p, nil
}

func (k *kernelAdapter) attachNetlink(prog *ebpf.Program, dev netlink.Link, opts interpreter.AttachOptions) error {
	flags := netlinkFlags(opts.Mode)
	if !opts.Force {
		flags |= unix.XDP_FLAGS_UPDATE_IF_NOEXIST
	} else if err := k.detachNetlinkOtherMode(dev, flags); err != nil {
		return err
	}

	if err := netlink.LinkSetXdpFdWithFlags(dev, prog.FD(), flags); err != nil {
		if errors.Is(err, unix.EBUSY) || errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("device %s already has an XDP program (use --force to replace): %w", opts.Device, err)
		}
		return fmt.Errorf("netlink attach to %s: %w", opts.Device, err)
	}
	return nil
}

// detachNetlinkOtherMode removes a program attached in a mode other
// than the one requested; the kernel refuses to replace across modes.
func (k *kernelAdapter) detachNetlinkOtherMode(dev netlink.Link, flags int) error {
	xdp := dev.Attrs().Xdp
	if xdp == nil || !xdp.Attached {
		return nil
	}
	existing := attachedModeFlags(xdp.AttachMode)
	if existing == 0 || existing == flags&^unix.XDP_FLAGS_UPDATE_IF_NOEXIST {
		return nil
	}
	k.logger.Debug("detaching program attached in another mode",
		"device", dev.Attrs().Name, "prog_id", xdp.ProgId, "attach_mode", xdp.AttachMode)
	if err := netlink.LinkSetXdpFdWithFlags(dev, -1, existing); err != nil {
		return fmt.Errorf("detach existing program from %s: %w", dev.Attrs().Name, err)
	}
	return nil
}

func (k *kernelAdapter) attachLink(prog *ebpf.Program, dev netlink.Link, opts interpreter.AttachOptions) (link.Link, error) {
	if opts.Force {
		if xdp := dev.Attrs().Xdp; xdp != nil && xdp.Attached {
			if err := netlink.LinkSetXdpFdWithFlags(dev, -1, attachedModeFlags(xdp.AttachMode)); err != nil {
				k.logger.Debug("netlink detach before link attach failed", "device", opts.Device, "error", err)
			}
		}
		if err := k.RemovePin(opts.LinkPinPath); err != nil {
			return nil, err
		}
	}

	lnk, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: dev.Attrs().Index,
		Flags:     linkFlags(opts.Mode),
	})
	if err != nil {
		return nil, fmt.Errorf("attach XDP link to %s: %w", opts.Device, err)
	}
	if err := lnk.Pin(opts.LinkPinPath); err != nil {
		lnk.Close()
		return nil, fmt.Errorf("pin XDP link to %s: %w", opts.LinkPinPath, err)
	}
	return lnk, nil
}

// DetachXDP removes the XDP program from a device. A pinned link is
// released by removing its pin; a netlink attachment is cleared by
// setting fd -1. Neither being present is not an error.
func (k *kernelAdapter) DetachXDP(ctx context.Context, opts interpreter.DetachOptions) error {
	if opts.LinkPinPath != "" {
		if _, err := os.Stat(opts.LinkPinPath); err == nil {
			if err := k.RemovePin(opts.LinkPinPath); err != nil {
				return err
			}
			k.logger.Info("removed XDP link pin", "path", opts.LinkPinPath)
		}
	}

	return netns.Run(opts.Netns, func() error {
		dev, err := linkByName(opts.Device)
		if err != nil {
			return err
		}
		xdp := dev.Attrs().Xdp
		if xdp == nil || !xdp.Attached {
			k.logger.Debug("no XDP program attached", "device", opts.Device)
			return nil
		}

		flags := attachedModeFlags(xdp.AttachMode)
		if flags == 0 {
			flags = netlinkFlags(opts.Mode)
		}
		if err := netlink.LinkSetXdpFdWithFlags(dev, -1, flags); err != nil {
			return fmt.Errorf("detach XDP program %d from %s: %w", xdp.ProgId, opts.Device, err)
		}
		k.logger.Info("detached XDP program", "device", opts.Device, "prog_id", xdp.ProgId)
		return nil
	})
}

// linkByName resolves device in the current namespace. A missing
// link wraps interpreter.ErrDeviceNotFound.
func linkByName(device string) (netlink.Link, error) {
	dev, err := netlink.LinkByName(device)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("lookup device %s: %w: %w", device, interpreter.ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("lookup device %s: %w", device, err)
	}
	return dev, nil
}
