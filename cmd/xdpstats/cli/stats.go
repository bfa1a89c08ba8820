package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/stats"
)

// StatsCmd reports rates from a device's pinned stats map until
// interrupted.
type StatsCmd struct {
	Dev      string        `name:"dev" short:"d" required:"" help:"Network device whose stats map to read."`
	Interval *time.Duration `name:"interval" help:"Time between reports; must be positive. Defaults to the configured interval."`
}

// Run executes the stats command.
func (c *StatsCmd) Run(cli *CLI, ctx context.Context) error {
	if err := xdpstats.ValidateDeviceName(c.Dev); err != nil {
		return err
	}
	if c.Interval != nil && *c.Interval <= 0 {
		return &xdpstats.OptionError{Option: "interval", Reason: fmt.Sprintf("must be positive, got %s", *c.Interval)}
	}

	rt, err := cli.newRuntime()
	if err != nil {
		return err
	}

	ncpu, err := rt.kernel.PossibleCPUs()
	if err != nil {
		return fmt.Errorf("possible CPUs: %w", err)
	}

	interval := rt.cfg.Stats.Interval
	if c.Interval != nil {
		interval = *c.Interval
	}
	retry := rt.cfg.Stats.Retry

	clock := interpreter.SystemClock{}
	reporter := stats.NewReporter(stats.ReporterConfig{
		Path:     rt.layout.MapPath(c.Dev),
		Shape:    xdpstats.StatsMapShape,
		Interval: interval,
		Settle:   rt.cfg.Stats.Settle,
		Retry: stats.RetryPolicy{
			Initial:     retry.Initial,
			Max:         retry.Max,
			Multiplier:  retry.Multiplier,
			MaxAttempts: retry.MaxAttempts,
		},
	}, rt.kernel, stats.NewCollector(ncpu, clock, rt.logger), clock, cli.out(), rt.logger)

	if err := cli.PrintOutf("Collecting stats from BPF map %s\n", rt.layout.MapPath(c.Dev)); err != nil {
		return err
	}
	return reporter.Run(ctx)
}
