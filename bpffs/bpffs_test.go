package bpffs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-xdpstats/bpffs"
)

func TestIsMounted(t *testing.T) {
	tests := []struct {
		name       string
		mountinfo  string
		mountPoint bpffs.Root
		want       bool
	}{
		{
			name: "no bpf mount",
			mountinfo: `15 20 0:3 / /proc rw,relatime - proc /proc rw
16 20 0:15 / /sys rw,relatime - sysfs /sys rw
20 1 8:4 / / rw,noatime - ext4 /dev/sda4 rw
`,
			mountPoint: bpffs.DefaultRoot,
			want:       false,
		},
		{
			name: "bpf mount without propagation fields",
			mountinfo: `16 20 0:15 / /sys rw,relatime - sysfs /sys rw
48 16 0:39 / /sys/fs/bpf rw,nosuid,nodev,noexec,relatime - bpf bpf rw,mode=700
`,
			mountPoint: bpffs.DefaultRoot,
			want:       true,
		},
		{
			name: "bpf mount with shared propagation",
			mountinfo: `28 31 0:26 / /sys rw,nosuid shared:6 - sysfs sysfs rw
39 28 0:38 / /sys/fs/bpf rw,nosuid,nodev,noexec,relatime shared:11 - bpf bpf rw,gid=983,mode=770
`,
			mountPoint: bpffs.DefaultRoot,
			want:       true,
		},
		{
			name: "bpf mounted elsewhere",
			mountinfo: `39 28 0:38 / /run/xdp/fs rw,relatime - bpf bpf rw
`,
			mountPoint: bpffs.DefaultRoot,
			want:       false,
		},
		{
			name: "tmpfs at the bpf path",
			mountinfo: `39 28 0:38 / /sys/fs/bpf rw,relatime - tmpfs tmpfs rw
`,
			mountPoint: bpffs.DefaultRoot,
			want:       false,
		},
		{
			name: "trailing slash in requested path",
			mountinfo: `48 16 0:39 / /sys/fs/bpf rw - bpf bpf rw
`,
			mountPoint: "/sys/fs/bpf/",
			want:       true,
		},
		{
			name:       "malformed lines are ignored",
			mountinfo:  "garbage\n1 2 3 - \n",
			mountPoint: bpffs.DefaultRoot,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mountinfo")
			require.NoError(t, os.WriteFile(path, []byte(tt.mountinfo), 0o644))

			got, err := bpffs.IsMounted(path, tt.mountPoint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsMounted_MissingFile(t *testing.T) {
	_, err := bpffs.IsMounted(filepath.Join(t.TempDir(), "absent"), bpffs.DefaultRoot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening mountinfo")
}

func TestCheck_NotBPFFS(t *testing.T) {
	// t.TempDir is never on bpffs.
	err := bpffs.Check(filepath.Join(t.TempDir(), "vethA", "xdp_stats_map"))
	assert.ErrorIs(t, err, bpffs.ErrNotBPFFS)
}
