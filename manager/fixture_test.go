package manager_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-xdpstats/bpffs"
	"github.com/frobware/go-xdpstats/manager"
)

const (
	testObject  = "xdp_prog_kern.o"
	testProgram = "xdp_stats1_func"
	testDevice  = "vethA"
)

// testLogger returns a logger for tests. By default it discards all
// output. Set XDPSTATS_TEST_VERBOSE=1 to enable logging.
func testLogger() *slog.Logger {
	if os.Getenv("XDPSTATS_TEST_VERBOSE") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testFixture wires a Pinner and Loader to a fake kernel rooted at a
// temporary pin base.
type testFixture struct {
	Kernel *fakeKernel
	Layout bpffs.PinLayout
	Pinner *manager.Pinner
	Loader *manager.Loader
	t      *testing.T
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	layout, err := bpffs.NewPinLayout(t.TempDir(), "xdp_stats_map")
	require.NoError(t, err)

	k := newFakeKernel()
	k.addObject(testObject, testProgram, statsMapInfo())

	pinner := manager.NewPinner(layout, k, testLogger(), manager.WithMountChecker(nil))
	return &testFixture{
		Kernel: k,
		Layout: layout,
		Pinner: pinner,
		Loader: manager.NewLoader(k, pinner, testLogger()),
		t:      t,
	}
}

func (f *testFixture) request(dev string) manager.LoadRequest {
	return manager.LoadRequest{
		ObjectPath:  testObject,
		ProgramName: testProgram,
		Device:      dev,
	}
}

// mkDeviceDir creates the pin directory for dev.
func (f *testFixture) mkDeviceDir(dev string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(f.Layout.PinDir(dev), 0o700))
}

// assertNoPinDir verifies dev's pin directory is gone.
func (f *testFixture) assertNoPinDir(dev string) {
	f.t.Helper()
	_, err := os.Stat(f.Layout.PinDir(dev))
	require.True(f.t, os.IsNotExist(err), "expected %s to be removed", f.Layout.PinDir(dev))
}

func (f *testFixture) pinFiles(dev string) []string {
	f.t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.Layout.PinDir(dev), "*"))
	require.NoError(f.t, err)
	return matches
}
