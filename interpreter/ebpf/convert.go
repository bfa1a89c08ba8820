package ebpf

import (
	"strings"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/kernel"
)

func toMapType(t ebpf.MapType) kernel.MapType {
	switch t {
	case ebpf.Array:
		return kernel.MapTypeArray
	case ebpf.PerCPUArray:
		return kernel.MapTypePerCPUArray
	default:
		return kernel.MapType(strings.ToLower(t.String()))
	}
}

func infoToMapInfo(info *ebpf.MapInfo) kernel.MapInfo {
	mi := kernel.MapInfo{
		Name:       info.Name,
		Type:       toMapType(info.Type),
		KeySize:    info.KeySize,
		ValueSize:  info.ValueSize,
		MaxEntries: info.MaxEntries,
	}
	if id, ok := info.ID(); ok {
		mi.ID = uint32(id)
	}
	return mi
}

func specToMapInfo(spec *ebpf.MapSpec) kernel.MapInfo {
	return kernel.MapInfo{
		Name:       spec.Name,
		Type:       toMapType(spec.Type),
		KeySize:    spec.KeySize,
		ValueSize:  spec.ValueSize,
		MaxEntries: spec.MaxEntries,
	}
}

// netlinkFlags returns the IFLA_XDP flags for mode. Auto leaves the
// choice to the kernel.
func netlinkFlags(mode xdpstats.AttachMode) int {
	switch mode {
	case xdpstats.AttachModeSKB:
		return unix.XDP_FLAGS_SKB_MODE
	case xdpstats.AttachModeHW:
		return unix.XDP_FLAGS_HW_MODE
	case xdpstats.AttachModeNative:
		return unix.XDP_FLAGS_DRV_MODE
	default:
		return 0
	}
}

func linkFlags(mode xdpstats.AttachMode) link.XDPAttachFlags {
	switch mode {
	case xdpstats.AttachModeSKB:
		return link.XDPGenericMode
	case xdpstats.AttachModeHW:
		return link.XDPOffloadMode
	case xdpstats.AttachModeNative:
		return link.XDPDriverMode
	default:
		return 0
	}
}

// attachedModeFlags maps the mode netlink reports for an attached
// program back to the flags needed to detach it.
func attachedModeFlags(attachMode uint32) int {
	switch attachMode {
	case nl.XDP_ATTACHED_SKB:
		return unix.XDP_FLAGS_SKB_MODE
	case nl.XDP_ATTACHED_DRV:
		return unix.XDP_FLAGS_DRV_MODE
	case nl.XDP_ATTACHED_HW:
		return unix.XDP_FLAGS_HW_MODE
	default:
		return 0
	}
}
