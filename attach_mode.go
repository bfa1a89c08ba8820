package xdpstats

import (
	"fmt"
	"strings"
)

// AttachMode selects where the XDP program runs.
type AttachMode uint8

const (
	// AttachModeNative runs the program in the driver.
	AttachModeNative AttachMode = iota
	// AttachModeSKB runs the program in the generic (skb) path.
	AttachModeSKB
	// AttachModeHW offloads the program to the NIC.
	AttachModeHW
	// AttachModeAuto lets the kernel pick native or generic.
	AttachModeAuto
)

// String returns the CLI name of the mode.
func (m AttachMode) String() string {
	switch m {
	case AttachModeNative:
		return "native"
	case AttachModeSKB:
		return "skb"
	case AttachModeHW:
		return "hw"
	case AttachModeAuto:
		return "auto"
	default:
		return fmt.Sprintf("AttachMode(%d)", uint8(m))
	}
}

// ParseAttachMode parses a mode name. "generic" is accepted as an
// alias for skb, "driver" for native and "offload" for hw.
func ParseAttachMode(s string) (AttachMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", "driver", "":
		return AttachModeNative, nil
	case "skb", "generic":
		return AttachModeSKB, nil
	case "hw", "offload":
		return AttachModeHW, nil
	case "auto":
		return AttachModeAuto, nil
	default:
		return AttachModeNative, &OptionError{Option: "mode", Reason: fmt.Sprintf("unknown attach mode %q", s)}
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m AttachMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so modes can be
// read from the config file.
func (m *AttachMode) UnmarshalText(text []byte) error {
	parsed, err := ParseAttachMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// maxDeviceNameLen is IFNAMSIZ minus the trailing NUL.
const maxDeviceNameLen = 15

// ValidateDeviceName checks that name can be used both as an interface
// name and as a single pin directory component.
func ValidateDeviceName(name string) error {
	switch {
	case name == "":
		return &OptionError{Option: "dev", Reason: "device name is required"}
	case len(name) > maxDeviceNameLen:
		return &OptionError{Option: "dev", Reason: fmt.Sprintf("device name %q longer than %d bytes", name, maxDeviceNameLen)}
	case name == "." || name == "..", strings.ContainsAny(name, "/ \t\n"):
		return &OptionError{Option: "dev", Reason: fmt.Sprintf("invalid device name %q", name)}
	}
	return nil
}
