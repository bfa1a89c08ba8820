// Package netns runs functions inside another network namespace so a
// device that lives there can be attached to or detached from.
package netns

import (
	"fmt"
	"runtime"

	vnetns "github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// Validate checks that path names a network namespace file, such as
// /var/run/netns/<name> or /proc/<pid>/ns/net. An empty path is valid
// and means the current namespace.
func Validate(path string) error {
	if path == "" {
		return nil
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fmt.Errorf("netns %s: %w", path, err)
	}
	if uint64(st.Type) != uint64(unix.NSFS_MAGIC) && uint64(st.Type) != uint64(unix.PROC_SUPER_MAGIC) {
		return fmt.Errorf("netns %s: not a namespace file", path)
	}
	return nil
}

// Run executes fn in the network namespace at path. An empty path runs
// fn in the current namespace. The calling thread is returned to its
// original namespace after fn, even if fn panics.
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := vnetns.Get()
	if err != nil {
		return fmt.Errorf("open current netns: %w", err)
	}
	defer origin.Close()

	target, err := vnetns.GetFromPath(path)
	if err != nil {
		return fmt.Errorf("open target netns %s: %w", path, err)
	}
	defer target.Close()

	if err := vnetns.Set(target); err != nil {
		return fmt.Errorf("setns %s: %w", path, err)
	}
	defer func() {
		// Nothing useful to do on failure; the locked thread is
		// discarded when the goroutine exits.
		_ = vnetns.Set(origin)
	}()

	return fn()
}
