// Package ebpf implements interpreter.Kernel using cilium/ebpf for
// objects and maps, and netlink for device attachment.
package ebpf

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/cilium/ebpf"

	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/logging"
)

// kernelAdapter implements interpreter.Kernel.
type kernelAdapter struct {
	logger *slog.Logger

	cpusOnce sync.Once
	cpus     int
	cpusErr  error
}

// Option configures a kernelAdapter.
type Option func(*kernelAdapter)

// WithLogger sets the logger for kernel operations.
func WithLogger(logger *slog.Logger) Option {
	return func(k *kernelAdapter) {
		k.logger = logging.For(logger, logging.ComponentKernel)
	}
}

// New creates a kernel adapter.
func New(opts ...Option) interpreter.Kernel {
	k := &kernelAdapter{
		logger: logging.For(slog.Default(), logging.ComponentKernel),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// PossibleCPUs returns the number of possible CPUs. The value is
// queried once per adapter.
func (k *kernelAdapter) PossibleCPUs() (int, error) {
	k.cpusOnce.Do(func() {
		k.cpus, k.cpusErr = ebpf.PossibleCPU()
		if k.cpusErr != nil {
			k.cpusErr = fmt.Errorf("query possible CPUs: %w", k.cpusErr)
		}
	})
	return k.cpus, k.cpusErr
}
