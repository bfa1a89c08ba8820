package cli_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-xdpstats/cmd/xdpstats/cli"
)

// fullWriter accepts room bytes and fails every write after that with
// err, keeping what it accepted.
type fullWriter struct {
	room int
	err  error
	got  bytes.Buffer
}

func (w *fullWriter) Write(p []byte) (int, error) {
	if len(p) <= w.room {
		w.room -= len(p)
		return w.got.Write(p)
	}
	n := w.room
	w.room = 0
	w.got.Write(p[:n])
	return n, w.err
}

// shortWriter drops the last byte of every write without an error.
type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return len(p) - 1, nil
}

func TestMain_UnloadReportsFullStdout(t *testing.T) {
	f := newCLIFixture(t)
	f.pin(t, "veth0", "xdp_stats_map")

	out := &fullWriter{err: syscall.ENOSPC}
	assert.Equal(t, cli.ExitFailure, f.runTo(out, "unload", "--dev", "veth0"))
	assert.Contains(t, f.stderr.String(), syscall.ENOSPC.Error())

	// The unload itself completed before the confirmation was lost.
	assert.Equal(t, []string{"veth0"}, f.kernel.detached)
	_, err := os.Stat(filepath.Join(f.base, "veth0"))
	assert.True(t, os.IsNotExist(err))
}

func TestMain_ListJSONBrokenPipeMidReport(t *testing.T) {
	f := newCLIFixture(t)
	f.pin(t, "vethA", "xdp_stats_map")

	out := &fullWriter{room: 16, err: syscall.EPIPE}
	assert.Equal(t, cli.ExitFailure, f.runTo(out, "list", "-o", "json"))
	assert.Contains(t, f.stderr.String(), syscall.EPIPE.Error())
	assert.Equal(t, 16, out.got.Len())
	assert.False(t, json.Valid(out.got.Bytes()))
}

func TestMain_StatsStopsWhenHeaderCannotBeWritten(t *testing.T) {
	f := newCLIFixture(t)
	f.pin(t, "veth0", "xdp_stats_map")

	out := &fullWriter{err: syscall.EPIPE}
	assert.Equal(t, cli.ExitFailure, f.runTo(out, "stats", "--dev", "veth0", "--interval", "10ms"))
	assert.Contains(t, f.stderr.String(), syscall.EPIPE.Error())
	assert.Zero(t, out.got.Len())
}

func TestMain_ListShortWrite(t *testing.T) {
	f := newCLIFixture(t)
	assert.Equal(t, cli.ExitFailure, f.runTo(shortWriter{}, "list"))
	assert.Contains(t, f.stderr.String(), io.ErrShortWrite.Error())
}

func TestPrintOutf_FailsMidReport(t *testing.T) {
	out := &fullWriter{room: len("Collecting stats from BPF map "), err: syscall.ENOSPC}
	c := &cli.CLI{Out: out}

	require.NoError(t, c.PrintOutf("Collecting stats from BPF map "))
	err := c.PrintOutf("%s\n", "/sys/fs/bpf/veth0/xdp_stats_map")
	require.ErrorIs(t, err, syscall.ENOSPC)
	assert.Equal(t, "Collecting stats from BPF map ", out.got.String())
}

func TestWriteOut_ShortWriteIsAnError(t *testing.T) {
	c := &cli.CLI{Out: shortWriter{}}
	require.ErrorIs(t, c.WriteOut([]byte("veth0\n")), io.ErrShortWrite)
	require.NoError(t, c.WriteOut(nil))
}
