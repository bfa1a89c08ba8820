package ebpf

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cilium/ebpf"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
)

// object is a CollectionSpec trimmed to one XDP program, plus the
// pinned maps that will replace declared maps at load time.
type object struct {
	path         string
	programName  string
	spec         *ebpf.CollectionSpec
	replacements map[string]*ebpf.Map
}

var _ interpreter.Object = (*object)(nil)

// OpenObject parses objectPath and selects programName. An empty
// programName selects the first XDP program in name order.
func (k *kernelAdapter) OpenObject(objectPath, programName string) (interpreter.Object, error) {
	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, &xdpstats.LoadError{ObjectPath: objectPath, ProgramName: programName, Err: err}
	}

	name, err := selectProgram(spec, programName)
	if err != nil {
		return nil, &xdpstats.LoadError{ObjectPath: objectPath, ProgramName: programName, Err: err}
	}

	// Only the selected program is loaded; other programs in the
	// object may target hooks this tool does not handle.
	for other := range spec.Programs {
		if other != name {
			delete(spec.Programs, other)
		}
	}

	// Pinning is done explicitly under the per-device directory, so
	// any LIBBPF_PIN_BY_NAME annotation must not take effect.
	for _, ms := range spec.Maps {
		ms.Pinning = ebpf.PinNone
	}

	k.logger.Debug("opened object", "path", objectPath, "program", name, "maps", len(spec.Maps))

	return &object{
		path:         objectPath,
		programName:  name,
		spec:         spec,
		replacements: make(map[string]*ebpf.Map),
	}, nil
}

func selectProgram(spec *ebpf.CollectionSpec, name string) (string, error) {
	if name != "" {
		ps, ok := spec.Programs[name]
		if !ok {
			return "", fmt.Errorf("program %q not found in object", name)
		}
		if ps.Type != ebpf.XDP {
			return "", fmt.Errorf("program %q is %s, not XDP", name, ps.Type)
		}
		return name, nil
	}

	var names []string
	for n, ps := range spec.Programs {
		if ps.Type == ebpf.XDP {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", errors.New("object contains no XDP program")
	}
	sort.Strings(names)
	return names[0], nil
}

func (o *object) Path() string        { return o.path }
func (o *object) ProgramName() string { return o.programName }

func (o *object) MapNames() []string {
	names := make([]string, 0, len(o.spec.Maps))
	for name := range o.spec.Maps {
		if isInternalMap(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *object) MapSpec(name string) (kernel.MapInfo, bool) {
	ms, ok := o.spec.Maps[name]
	if !ok || isInternalMap(name) {
		return kernel.MapInfo{}, false
	}
	return specToMapInfo(ms), true
}

// ReplaceMap arranges for the program to reuse m. The underlying
// file descriptor is handed to the collection at load time.
func (o *object) ReplaceMap(name string, m interpreter.Map) error {
	if _, ok := o.spec.Maps[name]; !ok || isInternalMap(name) {
		return fmt.Errorf("map %q not declared by program %q", name, o.programName)
	}
	h, ok := m.(*mapHandle)
	if !ok {
		return fmt.Errorf("map %q: unsupported handle type %T", name, m)
	}
	if prev := o.replacements[name]; prev != nil {
		prev.Close()
	}
	o.replacements[name] = h.m
	return nil
}

func (o *object) Close() error {
	for name, m := range o.replacements {
		m.Close()
		delete(o.replacements, name)
	}
	return nil
}

// isInternalMap reports whether name is a compiler-generated data
// section such as .rodata or .bss.
func isInternalMap(name string) bool {
	return strings.HasPrefix(name, ".")
}
