package cli

import (
	"context"

	"github.com/frobware/go-xdpstats/manager"
)

// UnloadCmd detaches the XDP program from a device and removes its
// pins.
type UnloadCmd struct {
	DeviceFlags
	ModeFlag
}

// Run executes the unload command.
func (c *UnloadCmd) Run(cli *CLI, ctx context.Context) error {
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

	loader := manager.NewLoader(rt.kernel, rt.pinner, rt.logger)
	if err := loader.Unload(ctx, manager.UnloadRequest{
		Device: c.Dev,
		Mode:   mode,
		Netns:  c.Netns,
	}); err != nil {
		return err
	}

	return cli.PrintOutf("Unloaded XDP program from %s\n", c.Dev)
}
