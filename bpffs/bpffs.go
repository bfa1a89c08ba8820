// Package bpffs checks and mounts the BPF filesystem that holds the
// per-device pin directories.
package bpffs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// DefaultMountInfoPath is the path to the mountinfo file.
	DefaultMountInfoPath = "/proc/self/mountinfo"

	// DefaultRoot is the conventional bpffs mount point.
	DefaultRoot Root = "/sys/fs/bpf"

	// Some runtimes produce very long mountinfo lines.
	maxMountInfoLineLen = 1024 * 1024
)

// ErrNotBPFFS is returned by Check when the pin location lives on a
// filesystem other than bpffs.
var ErrNotBPFFS = errors.New("not on a bpf filesystem")

// Root is a bpffs mount point path.
type Root string

// String returns the path as a string.
func (r Root) String() string { return string(r) }

// IsMounted reports whether a bpffs is mounted at mountPoint by
// parsing mountInfoPath (normally /proc/self/mountinfo).
//
// Each mountinfo line has the form documented in proc(5):
//
//	mount_id parent_id major:minor root mount_point options [optional...] - fstype source super_options
//
// Optional fields such as "shared:N" may appear before the " - "
// separator, so the separator is located by string search rather
// than by field position.
func IsMounted(mountInfoPath string, mountPoint Root) (bool, error) {
	f, err := os.Open(mountInfoPath)
	if err != nil {
		return false, fmt.Errorf("opening mountinfo: %w", err)
	}
	defer f.Close()

	want := filepath.Clean(mountPoint.String())

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMountInfoLineLen)
	for scanner.Scan() {
		mnt, fsType, ok := parseMountInfoLine(scanner.Text())
		if ok && fsType == "bpf" && mnt == want {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("reading mountinfo: %w", err)
	}
	return false, nil
}

func parseMountInfoLine(line string) (mountPoint, fsType string, ok bool) {
	sep := strings.Index(line, " - ")
	if sep == -1 {
		return "", "", false
	}
	prefix := strings.Fields(line[:sep])
	if len(prefix) < 5 {
		return "", "", false
	}
	suffix := strings.Fields(line[sep+3:])
	if len(suffix) < 1 {
		return "", "", false
	}
	return prefix[4], suffix[0], true
}

// Mount mounts a bpffs at mountPoint, creating the directory if needed.
func Mount(mountPoint Root) error {
	path := mountPoint.String()
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if !fi.IsDir() {
			return fmt.Errorf("mount point %s exists but is not a directory", path)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating mount point directory: %w", err)
		}
	default:
		return fmt.Errorf("stat mount point: %w", err)
	}

	if err := unix.Mount("bpffs", path, "bpf", 0, ""); err != nil {
		return fmt.Errorf("mount bpffs at %s: %w", path, err)
	}
	return nil
}

// EnsureMounted mounts a bpffs at mountPoint unless mountInfoPath
// already lists one there.
//
// Equivalent to:
//
//	findmnt --types bpf <mountPoint> || mount -t bpf bpffs <mountPoint>
func EnsureMounted(mountInfoPath string, mountPoint Root) error {
	mounted, err := IsMounted(mountInfoPath, mountPoint)
	if err != nil {
		return err
	}
	if mounted {
		return nil
	}
	return Mount(mountPoint)
}

// Check verifies that path, or its nearest existing ancestor, lives
// on bpffs. Pin directories are created on demand, so the full path
// need not exist yet.
func Check(path string) error {
	dir, err := nearestExisting(path)
	if err != nil {
		return err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", dir, err)
	}
	if uint64(st.Type) != uint64(unix.BPF_FS_MAGIC) {
		return fmt.Errorf("%s: %w (fs magic %#x)", dir, ErrNotBPFFS, st.Type)
	}
	return nil
}

func nearestExisting(path string) (string, error) {
	p := filepath.Clean(path)
	for {
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		p = parent
	}
}
