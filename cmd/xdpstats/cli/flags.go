package cli

import (
	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/netns"
)

// DeviceFlags selects a network device, optionally in another network
// namespace.
type DeviceFlags struct {
	Dev   string `name:"dev" short:"d" required:"" help:"Network device to operate on."`
	Netns string `name:"netns" help:"Network namespace path holding the device."`
}

// CheckDevice checks the device name and namespace before anything
// touches the kernel.
func (f *DeviceFlags) CheckDevice() error {
	if err := xdpstats.ValidateDeviceName(f.Dev); err != nil {
		return err
	}
	if err := netns.Validate(f.Netns); err != nil {
		return &xdpstats.OptionError{Option: "netns", Reason: err.Error()}
	}
	return nil
}

// ModeFlag selects the XDP attach mode. Empty uses the configured mode.
type ModeFlag struct {
	Mode string `name:"mode" help:"Attach mode: native, skb, hw or auto."`
}

// Resolve returns the requested mode, falling back to def.
func (f *ModeFlag) Resolve(def xdpstats.AttachMode) (xdpstats.AttachMode, error) {
	if f.Mode == "" {
		return def, nil
	}
	return xdpstats.ParseAttachMode(f.Mode)
}

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
)

// OutputFlags provides output formatting flags.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: table or json." default:"table" enum:"table,json"`
}

// Format returns the selected format.
func (f *OutputFlags) Format() OutputFormat {
	if f.Output == "json" {
		return OutputFormatJSON
	}
	return OutputFormatTable
}
