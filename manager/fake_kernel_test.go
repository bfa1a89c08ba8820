package manager_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
)

// kernelOp records an operation performed on the fake kernel.
type kernelOp struct {
	Op   string // "open-object", "attach", "detach", "pin", "unpin", "open-pinned"
	Name string // device, map path or object path
	ID   uint32
}

// fakeMapState is the kernel side of a map; handles share it.
type fakeMapState struct {
	info   kernel.MapInfo
	values map[uint32]xdpstats.Datarec
}

// fakeMap is a userspace handle on a fakeMapState.
type fakeMap struct {
	k      *fakeKernel
	state  *fakeMapState
	closed bool
}

func (m *fakeMap) Info() (kernel.MapInfo, error) {
	if m.closed {
		return kernel.MapInfo{}, errors.New("map handle closed")
	}
	return m.state.info, nil
}

func (m *fakeMap) Pin(path string) error {
	return m.k.pin(path, m.state)
}

func (m *fakeMap) Lookup(key uint32, out *xdpstats.Datarec) error {
	*out = m.state.values[key]
	return nil
}

func (m *fakeMap) LookupPerCPU(key uint32, out []xdpstats.Datarec) error {
	for i := range out {
		out[i] = m.state.values[key]
	}
	return nil
}

func (m *fakeMap) Close() error {
	m.closed = true
	return nil
}

// fakeObject is a parsed object with declared maps.
type fakeObject struct {
	path         string
	program      string
	maps         map[string]kernel.MapInfo
	replacements map[string]*fakeMap
	closed       bool
}

func (o *fakeObject) Path() string        { return o.path }
func (o *fakeObject) ProgramName() string { return o.program }

func (o *fakeObject) MapNames() []string {
	var names []string
	for name := range o.maps {
		names = append(names, name)
	}
	return names
}

func (o *fakeObject) MapSpec(name string) (kernel.MapInfo, bool) {
	info, ok := o.maps[name]
	return info, ok
}

func (o *fakeObject) ReplaceMap(name string, m interpreter.Map) error {
	if _, ok := o.maps[name]; !ok {
		return fmt.Errorf("map %q not declared", name)
	}
	fm, ok := m.(*fakeMap)
	if !ok {
		return fmt.Errorf("unsupported handle %T", m)
	}
	o.replacements[name] = fm
	return nil
}

func (o *fakeObject) Close() error {
	o.closed = true
	return nil
}

// fakeProgram is an attached program.
type fakeProgram struct {
	id   uint32
	name string
	maps map[string]interpreter.Map
}

func (p *fakeProgram) ID() uint32                       { return p.id }
func (p *fakeProgram) Name() string                     { return p.name }
func (p *fakeProgram) Maps() map[string]interpreter.Map { return p.maps }
func (p *fakeProgram) Close() error                     { return nil }

// fakeObjectSpec describes an object file known to the fake kernel.
type fakeObjectSpec struct {
	programs []string
	maps     map[string]kernel.MapInfo
}

// fakeKernel implements interpreter.Kernel for testing. Pins are
// real files under a temporary directory so the Pinner's filesystem
// checks behave as they would on bpffs.
type fakeKernel struct {
	mu       sync.Mutex
	nextID   uint32
	objects  map[string]fakeObjectSpec
	pinned   map[string]*fakeMapState
	attached map[string]uint32
	ops      []kernelOp

	// Error injection.
	failOpenPinned map[string]error
	failPin        error
	failAttach     error
	failLoad       error
	failDetach     error
	missingDevices map[string]bool
}

var _ interpreter.Kernel = (*fakeKernel)(nil)

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		nextID:         100,
		objects:        make(map[string]fakeObjectSpec),
		pinned:         make(map[string]*fakeMapState),
		attached:       make(map[string]uint32),
		failOpenPinned: make(map[string]error),
	}
}

// statsMapInfo is the declared shape of xdp_stats_map.
func statsMapInfo() kernel.MapInfo {
	return kernel.MapInfo{
		Name:       "xdp_stats_map",
		Type:       kernel.MapTypePerCPUArray,
		KeySize:    xdpstats.StatsMapShape.KeySize,
		ValueSize:  xdpstats.StatsMapShape.ValueSize,
		MaxEntries: xdpstats.StatsMapShape.MaxEntries,
	}
}

// addObject registers an object file declaring program and maps.
func (f *fakeKernel) addObject(path, program string, maps ...kernel.MapInfo) {
	spec := fakeObjectSpec{programs: []string{program}, maps: make(map[string]kernel.MapInfo)}
	for _, m := range maps {
		spec.maps[m.Name] = m
	}
	f.objects[path] = spec
}

func (f *fakeKernel) allocID() uint32 {
	f.nextID++
	return f.nextID
}

func (f *fakeKernel) recordOp(op, name string, id uint32) {
	f.ops = append(f.ops, kernelOp{Op: op, Name: name, ID: id})
}

// Operations returns recorded operations of the given kind.
func (f *fakeKernel) Operations(op string) []kernelOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []kernelOp
	for _, o := range f.ops {
		if o.Op == op {
			out = append(out, o)
		}
	}
	return out
}

// pinExternal pins a new map at path as if another process had.
func (f *fakeKernel) pinExternal(path string, info kernel.MapInfo) uint32 {
	f.mu.Lock()
	info.ID = f.allocID()
	f.mu.Unlock()
	state := &fakeMapState{info: info, values: make(map[uint32]xdpstats.Datarec)}
	if err := f.pin(path, state); err != nil {
		panic(err)
	}
	return info.ID
}

// pinnedID returns the ID of the map pinned at path.
func (f *fakeKernel) pinnedID(path string) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.pinned[path]
	if !ok {
		return 0, false
	}
	return s.info.ID, true
}

func (f *fakeKernel) pin(path string, state *fakeMapState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPin != nil {
		return f.failPin
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("pin %s: %w", path, unix.EEXIST)
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		return err
	}
	f.pinned[path] = state
	f.recordOp("pin", path, state.info.ID)
	return nil
}

func (f *fakeKernel) OpenPinnedMap(path string) (interpreter.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordOp("open-pinned", path, 0)
	if err := f.failOpenPinned[path]; err != nil {
		return nil, err
	}
	state, ok := f.pinned[path]
	if !ok {
		return nil, fmt.Errorf("load pinned map %s: %w", path, os.ErrNotExist)
	}
	return &fakeMap{k: f, state: state}, nil
}

func (f *fakeKernel) RemovePin(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	delete(f.pinned, path)
	f.recordOp("unpin", path, 0)
	return nil
}

func (f *fakeKernel) OpenObject(objectPath, programName string) (interpreter.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordOp("open-object", objectPath, 0)

	spec, ok := f.objects[objectPath]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", objectPath, os.ErrNotExist)
	}
	name := spec.programs[0]
	if programName != "" {
		if programName != name {
			return nil, &xdpstats.LoadError{ObjectPath: objectPath, ProgramName: programName, Err: errors.New("program not found")}
		}
	}
	return &fakeObject{
		path:         objectPath,
		program:      name,
		maps:         spec.maps,
		replacements: make(map[string]*fakeMap),
	}, nil
}

func (f *fakeKernel) AttachXDP(ctx context.Context, obj interpreter.Object, opts interpreter.AttachOptions) (interpreter.Program, error) {
	o := obj.(*fakeObject)

	f.mu.Lock()
	if f.failLoad != nil {
		f.mu.Unlock()
		return nil, &xdpstats.LoadError{ObjectPath: o.path, ProgramName: o.program, Err: f.failLoad}
	}
	if f.failAttach != nil {
		f.mu.Unlock()
		return nil, f.failAttach
	}
	if _, busy := f.attached[opts.Device]; busy && !opts.Force {
		f.mu.Unlock()
		return nil, fmt.Errorf("device %s already has an XDP program: %w", opts.Device, unix.EBUSY)
	}

	prog := &fakeProgram{id: f.allocID(), name: o.program, maps: make(map[string]interpreter.Map)}
	for name, info := range o.maps {
		if repl, ok := o.replacements[name]; ok {
			prog.maps[name] = &fakeMap{k: f, state: repl.state}
			continue
		}
		info.ID = f.allocID()
		prog.maps[name] = &fakeMap{k: f, state: &fakeMapState{info: info, values: make(map[uint32]xdpstats.Datarec)}}
	}
	f.attached[opts.Device] = prog.id
	f.recordOp("attach", opts.Device, prog.id)
	f.mu.Unlock()

	if opts.LinkPinPath != "" {
		if err := os.WriteFile(opts.LinkPinPath, nil, 0o600); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

func (f *fakeKernel) DetachXDP(ctx context.Context, opts interpreter.DetachOptions) error {
	if opts.LinkPinPath != "" {
		if err := f.RemovePin(opts.LinkPinPath); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingDevices[opts.Device] {
		return fmt.Errorf("lookup device %s: %w", opts.Device, interpreter.ErrDeviceNotFound)
	}
	if f.failDetach != nil {
		return f.failDetach
	}
	if id, ok := f.attached[opts.Device]; ok {
		delete(f.attached, opts.Device)
		f.recordOp("detach", opts.Device, id)
	}
	return nil
}

func (f *fakeKernel) PossibleCPUs() (int, error) {
	return 2, nil
}
