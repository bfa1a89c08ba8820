package xdpstats

import (
	"unsafe"

	"github.com/frobware/go-xdpstats/kernel"
)

// Field names reported by ShapeMismatchError.
const (
	FieldKeySize    = "key_size"
	FieldValueSize  = "value_size"
	FieldMaxEntries = "max_entries"
)

// MapShape is the fixed layout a reader expects from the stats map.
type MapShape struct {
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
}

// StatsMapShape is the layout of xdp_stats_map: a u32 action key,
// a Datarec value and one entry per action.
var StatsMapShape = MapShape{
	KeySize:    uint32(unsafe.Sizeof(uint32(0))),
	ValueSize:  uint32(unsafe.Sizeof(Datarec{})),
	MaxEntries: ActionMax,
}

// Check verifies that info matches the shape exactly. Size mismatches
// are reported before entry-count mismatches.
func (s MapShape) Check(info kernel.MapInfo) error {
	if info.KeySize != s.KeySize {
		return &ShapeMismatchError{Field: FieldKeySize, Want: s.KeySize, Got: info.KeySize}
	}
	if info.ValueSize != s.ValueSize {
		return &ShapeMismatchError{Field: FieldValueSize, Want: s.ValueSize, Got: info.ValueSize}
	}
	if info.MaxEntries != s.MaxEntries {
		return &ShapeMismatchError{Field: FieldMaxEntries, Want: s.MaxEntries, Got: info.MaxEntries}
	}
	return nil
}
