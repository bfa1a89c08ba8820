package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/frobware/go-xdpstats/manager"
)

// ListCmd lists devices with pins under the base directory.
type ListCmd struct {
	OutputFlags

	Dev string `name:"dev" short:"d" help:"Only show this device."`
}

// Run executes the list command.
func (c *ListCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.newRuntime()
	if err != nil {
		return err
	}

	devices, err := rt.pinner.List(ctx)
	if err != nil {
		return err
	}
	if c.Dev != "" {
		devices = filterDevice(devices, c.Dev)
	}

	out, err := FormatDevices(devices, &c.OutputFlags)
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}

func filterDevice(devices []manager.PinnedDevice, dev string) []manager.PinnedDevice {
	var out []manager.PinnedDevice
	for _, d := range devices {
		if d.Device == dev {
			out = append(out, d)
		}
	}
	return out
}

// FormatDevices renders devices in the requested format.
func FormatDevices(devices []manager.PinnedDevice, flags *OutputFlags) (string, error) {
	if flags.Format() == OutputFormatJSON {
		if devices == nil {
			devices = []manager.PinnedDevice{}
		}
		output, err := json.MarshalIndent(devices, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(output) + "\n", nil
	}

	if len(devices) == 0 {
		return "No pinned devices found\n", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %-8s %-14s %-6s %-6s %-4s %-4s %s\n",
		"DEVICE", "MAP ID", "TYPE", "KEY", "VALUE", "MAX", "LINK", "PATH")
	for _, d := range devices {
		link := "no"
		if d.LinkPinned {
			link = "yes"
		}
		if d.Map == nil {
			detail := "(no map pin)"
			if d.Error != "" {
				detail = "error: " + d.Error
			}
			fmt.Fprintf(&b, "%-16s %-8s %-14s %-6s %-6s %-4s %-4s %s\n",
				d.Device, "-", "-", "-", "-", "-", link, detail)
			continue
		}
		m := d.Map
		fmt.Fprintf(&b, "%-16s %-8d %-14s %-6d %-6d %-4d %-4s %s\n",
			d.Device, m.ID, m.Type, m.KeySize, m.ValueSize, m.MaxEntries, link, m.PinnedPath)
	}
	return b.String(), nil
}
