package cli

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf/rlimit"

	"github.com/frobware/go-xdpstats/manager"
)

// LoadCmd loads an XDP program and attaches it to a device.
type LoadCmd struct {
	DeviceFlags
	ModeFlag

	Filename string `name:"filename" help:"BPF object file. Defaults to the configured object."`
	Progname string `name:"progname" help:"Program to attach. Defaults to the first XDP program in the object."`
	Force    bool   `name:"force" short:"F" help:"Replace a program already attached to the device."`
	PinLink  bool   `name:"pin-link" help:"Attach through a bpf_link pinned next to the stats map."`
}

// Run executes the load command.
func (c *LoadCmd) Run(cli *CLI, ctx context.Context) error {
	if err := c.CheckDevice(); err != nil {
		return err
	}

	rt, err := cli.newRuntime()
	if err != nil {
		return err
	}

	mode, err := c.Resolve(rt.cfg.Program.Mode)
	if err != nil {
		return err
	}
	req := manager.LoadRequest{
		ObjectPath:  rt.cfg.Program.Object,
		ProgramName: rt.cfg.Program.Name,
		Device:      c.Dev,
		Mode:        mode,
		Force:       c.Force,
		Netns:       c.Netns,
		PinLink:     c.PinLink,
	}
	if c.Filename != "" {
		req.ObjectPath = c.Filename
	}
	if c.Progname != "" {
		req.ProgramName = c.Progname
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("remove memlock rlimit: %w", err)
	}

	loader := manager.NewLoader(rt.kernel, rt.pinner, rt.logger)
	att, err := loader.LoadAndAttach(ctx, req)
	if err != nil {
		return err
	}
	defer att.Program.Close()

	if err := cli.PrintOutf("Attached %s (id %d) to %s in %s mode\n", att.Program.Name(), att.Program.ID(), c.Dev, mode); err != nil {
		return err
	}
	switch {
	case att.Reused:
		err = cli.PrintOutf(" - reused pinned map %s\n", att.MapPath)
	case att.Pinned:
		err = cli.PrintOutf(" - pinned maps in %s\n", rt.layout.PinDir(c.Dev))
	case att.PinErr != nil:
		err = cli.PrintOutf(" - maps not pinned: %v\n", att.PinErr)
	}
	if err != nil {
		return err
	}
	if att.LinkPinPath != "" {
		return cli.PrintOutf(" - link pinned at %s\n", att.LinkPinPath)
	}
	return nil
}
