// Package kernel holds plain-data views of kernel BPF objects.
package kernel

// MapType names the kind of a BPF map as reported by the kernel.
type MapType string

const (
	// MapTypeArray is BPF_MAP_TYPE_ARRAY: one value per key.
	MapTypeArray MapType = "array"
	// MapTypePerCPUArray is BPF_MAP_TYPE_PERCPU_ARRAY: one value per
	// key per possible CPU.
	MapTypePerCPUArray MapType = "percpu_array"
)

// PerCPU reports whether lookups return one value per possible CPU.
func (t MapType) PerCPU() bool {
	return t == MapTypePerCPUArray
}

// MapInfo describes a BPF map. ID is assigned by the kernel when the
// map is created and changes whenever the map is recreated, so it
// serves as the map's generation identifier.
type MapInfo struct {
	ID         uint32  `json:"id"`
	Name       string  `json:"name"`
	Type       MapType `json:"type"`
	KeySize    uint32  `json:"key_size"`
	ValueSize  uint32  `json:"value_size"`
	MaxEntries uint32  `json:"max_entries"`
}

// PinnedMap is a map found on bpffs.
type PinnedMap struct {
	MapInfo
	PinnedPath string `json:"pinned_path"`
}
