package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/frobware/go-xdpstats"
	"github.com/frobware/go-xdpstats/interpreter"
	"github.com/frobware/go-xdpstats/kernel"
	"github.com/frobware/go-xdpstats/logging"
)

// DefaultInterval is the default time between reports.
const DefaultInterval = 2 * time.Second

// DefaultSettle is the pause between a baseline snapshot and the
// first comparison.
const DefaultSettle = 250 * time.Millisecond

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	// Path is the Pin Path of the stats map.
	Path     string
	Shape    xdpstats.MapShape
	Interval time.Duration
	Settle   time.Duration
	Retry    RetryPolicy
}

// Reporter polls a pinned stats map and writes a rate table each
// interval. It reopens the pin every cycle so that a map recreated by
// another loader is picked up without a restart.
type Reporter struct {
	cfg       ReporterConfig
	opener    interpreter.MapOpener
	collector *Collector
	clock     interpreter.Clock
	out       io.Writer
	format    *Formatter
	logger    *slog.Logger

	transient int
	reloads   int
	reports   int
}

// NewReporter creates a Reporter writing to out.
func NewReporter(cfg ReporterConfig, opener interpreter.MapOpener, collector *Collector, clock interpreter.Clock, out io.Writer, logger *slog.Logger) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Retry.Initial <= 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Retry.Max <= 0 {
		cfg.Retry.Max = max(DefaultRetryPolicy.Max, cfg.Retry.Initial)
	}
	if clock == nil {
		clock = interpreter.SystemClock{}
	}
	return &Reporter{
		cfg:       cfg,
		opener:    opener,
		collector: collector,
		clock:     clock,
		out:       out,
		format:    NewFormatter(),
		logger:    logging.For(logger, logging.ComponentReporter),
	}
}

// TransientErrors returns how many reopen attempts have failed.
func (r *Reporter) TransientErrors() int { return r.transient }

// Reloads returns how many times the map was found recreated.
func (r *Reporter) Reloads() int { return r.reloads }

// Reports returns how many tables have been written.
func (r *Reporter) Reports() int { return r.reports }

// Run polls until ctx is cancelled, then returns nil.
//
// The map must be openable and correctly shaped at startup; otherwise
// Run returns the open error or a *xdpstats.ShapeMismatchError. After
// startup, failures to reopen the map are retried per the RetryPolicy
// and only surface once its attempts are exhausted.
func (r *Reporter) Run(ctx context.Context) error {
	m, info, err := r.open()
	if err != nil {
		return err
	}
	defer func() {
		if m != nil {
			m.Close()
		}
	}()

	r.logger.Debug("opened stats map",
		"path", r.cfg.Path,
		"type", info.Type,
		"id", info.ID,
		"name", info.Name,
		"key_size", info.KeySize,
		"value_size", info.ValueSize,
		"max_entries", info.MaxEntries)

	generation := info.ID
	kind := info.Type

	prev, err := r.collector.CollectAll(m, kind, nil)
	if err != nil {
		return err
	}
	if r.sleep(ctx, r.cfg.Settle) {
		return nil
	}

	for {
		m.Close()
		m = nil

		m, info, err = r.reopen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if info.ID != generation {
			r.reloads++
			r.logger.Warn("stats map was recreated, resetting baseline",
				"path", r.cfg.Path, "old_id", generation, "new_id", info.ID)
			generation = info.ID
			kind = info.Type

			prev, err = r.collector.CollectAll(m, kind, nil)
			if err != nil {
				return err
			}
			if r.sleep(ctx, r.cfg.Settle) {
				return nil
			}
			continue
		}

		cur, err := r.collector.CollectAll(m, kind, &prev)
		if err != nil {
			return err
		}
		if cur.Period(prev) > 0 {
			r.format.Report(r.out, prev, cur)
			r.reports++
		}
		prev = cur

		if r.sleep(ctx, r.cfg.Interval) {
			return nil
		}
	}
}

// open opens the pin and checks its shape.
func (r *Reporter) open() (interpreter.Map, kernel.MapInfo, error) {
	m, err := r.opener.OpenPinnedMap(r.cfg.Path)
	if err != nil {
		return nil, kernel.MapInfo{}, fmt.Errorf("open stats map: %w", err)
	}
	info, err := m.Info()
	if err != nil {
		m.Close()
		return nil, kernel.MapInfo{}, fmt.Errorf("stats map info: %w", err)
	}
	if err := r.cfg.Shape.Check(info); err != nil {
		m.Close()
		return nil, info, err
	}
	return m, info, nil
}

// reopen retries open with backoff. A wrong shape is retried as well,
// since another loader may be midway through replacing the map.
func (r *Reporter) reopen(ctx context.Context) (interpreter.Map, kernel.MapInfo, error) {
	for attempt := 1; ; attempt++ {
		m, info, err := r.open()
		if err == nil {
			return m, info, nil
		}

		r.transient++
		terr := &xdpstats.TransientOpenError{Path: r.cfg.Path, Attempt: attempt, Err: err}
		r.logger.Warn("stats map not available, retrying", "error", terr)

		delay, ok := r.cfg.Retry.Next(attempt)
		if !ok {
			return nil, kernel.MapInfo{}, fmt.Errorf("giving up after %d attempts: %w", attempt, terr)
		}
		if err := r.clock.Sleep(ctx, delay); err != nil {
			return nil, kernel.MapInfo{}, err
		}
	}
}

// sleep reports whether ctx was cancelled.
func (r *Reporter) sleep(ctx context.Context, d time.Duration) bool {
	err := r.clock.Sleep(ctx, d)
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
