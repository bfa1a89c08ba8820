// Package manager owns the loader side of xdpstats: pinning the stats
// map under a per-device directory, reusing a map pinned by an
// earlier run, and attaching or detaching the XDP program.
//
// # Reuse before attach
//
// A Loader first looks for a map already pinned at the device's Pin
// Path. If one is found with the declared shape, the program is
// loaded against that map and nothing is pinned afterwards, so a
// running stats reporter keeps its counters. Otherwise the program
// creates a fresh map, which is pinned after a successful attach:
//
//	OpenObject -> TryReuse -> AttachXDP -> Pin (only if not reused)
//
// Every filesystem step tolerates a missing path, because another
// process may be pinning or unpinning the same device concurrently.
package manager

import (
	"log/slog"

	"github.com/frobware/go-xdpstats/bpffs"
	"github.com/frobware/go-xdpstats/logging"
)

// MountChecker verifies that the pin base directory is usable,
// mounting bpffs if needed.
type MountChecker func(base string) error

// EnsureBPFFS is the default MountChecker. It accepts a base already
// on bpffs and otherwise tries to mount one there.
func EnsureBPFFS(base string) error {
	if err := bpffs.Check(base); err == nil {
		return nil
	}
	if err := bpffs.EnsureMounted(bpffs.DefaultMountInfoPath, bpffs.Root(base)); err != nil {
		return err
	}
	return bpffs.Check(base)
}

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(logging.ComponentKey, component)
}
