package cli

import (
	"log/slog"

	"github.com/frobware/go-xdpstats/bpffs"
	"github.com/frobware/go-xdpstats/config"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/interpreter/ebpf"
	"github.com/frobware/go-xdpstats/manager"
)

// runtime holds what a command needs to talk to the kernel.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	layout bpffs.PinLayout
	kernel interpreter.Kernel
	pinner *manager.Pinner
}

// newRuntime loads configuration, builds the logger and creates the
// kernel adapter and pinner.
func (c *CLI) newRuntime() (*runtime, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := c.Logger(cfg)
	if err != nil {
		return nil, err
	}

	layout, err := cfg.Pin.Layout()
	if err != nil {
		return nil, err
	}

	var kernel interpreter.Kernel
	if c.NewKernel != nil {
		kernel = c.NewKernel(logger)
	} else {
		kernel = ebpf.New(ebpf.WithLogger(logger))
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		layout: layout,
		kernel: kernel,
		pinner: manager.NewPinner(layout, kernel, logger),
	}, nil
}
