package bpffs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PinLayout derives pin paths for a base directory and stats map name.
//
// The layout is:
//
//	{base}/                - bpffs root (e.g. /sys/fs/bpf)
//	{base}/{dev}/          - per-device pin directory
//	{base}/{dev}/{map}     - stats map pin (the Pin Path)
//	{base}/{dev}/xdp_link  - pinned XDP link, when requested
//
// PinLayout is immutable after construction. Use NewPinLayout to
// create.
type PinLayout struct {
	base    string
	mapName string
}

// NewPinLayout creates a PinLayout rooted at base. Returns an error if
// base is not absolute or mapName is not a single path component.
func NewPinLayout(base, mapName string) (PinLayout, error) {
	if base == "" {
		return PinLayout{}, fmt.Errorf("pin base directory cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return PinLayout{}, fmt.Errorf("pin base directory must be absolute, got %q", base)
	}
	if mapName == "" || mapName == "." || mapName == ".." || strings.Contains(mapName, "/") {
		return PinLayout{}, fmt.Errorf("invalid map name %q", mapName)
	}
	return PinLayout{base: filepath.Clean(base), mapName: mapName}, nil
}

// Base returns the pin root.
func (l PinLayout) Base() string { return l.base }

// MapName returns the stats map name.
func (l PinLayout) MapName() string { return l.mapName }

// PinDir returns the per-device pin directory.
func (l PinLayout) PinDir(dev string) string {
	return filepath.Join(l.base, dev)
}

// MapPath returns the Pin Path of the stats map for dev.
func (l PinLayout) MapPath(dev string) string {
	return filepath.Join(l.base, dev, l.mapName)
}

// MapPathFor returns the pin path of an arbitrary map for dev.
func (l PinLayout) MapPathFor(dev, mapName string) string {
	return filepath.Join(l.base, dev, mapName)
}

// LinkPath returns the pin path of the XDP link for dev.
func (l PinLayout) LinkPath(dev string) string {
	return filepath.Join(l.base, dev, LinkPinName)
}

// Scanner returns a Scanner over this layout.
func (l PinLayout) Scanner() *Scanner {
	return NewScanner(l.base, l.mapName)
}
