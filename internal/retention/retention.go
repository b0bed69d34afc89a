// Package retention schedules the sweep that drops reservations which ended
// before the current local day.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger removes stale reservations and reports how many were deleted.
type Purger interface {
	PurgeStale(ctx context.Context) (int, error)
}

// Runner triggers Purger on a cron schedule evaluated in a fixed location.
type Runner struct {
	purger   Purger
	schedule cron.Schedule
	spec     string
	location *time.Location
	timeout  time.Duration
	logger   *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithTimeout bounds a single sweep.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for sweep outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner validates spec, a standard five field cron expression or descriptor.
func NewRunner(purger Purger, spec string, location *time.Location, opts ...Option) (*Runner, error) {
	if purger == nil {
		return nil, errors.New("retention: purger is required")
	}
	spec = strings.TrimSpace(spec)
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("retention: invalid schedule %q: %w", spec, err)
	}
	if location == nil {
		location = time.Local
	}

	r := &Runner{
		purger:   purger,
		schedule: schedule,
		spec:     spec,
		location: location,
		timeout:  time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "retention", "schedule", spec)
	return r, nil
}

// Next reports when the sweep fires after t.
func (r *Runner) Next(t time.Time) time.Time {
	return r.schedule.Next(t.In(r.location))
}

// RunOnce performs one sweep.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	removed, err := r.purger.PurgeStale(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
		return 0, err
	}
	r.logger.InfoContext(ctx, "retention sweep completed",
		"removed", removed,
		"duration", time.Since(started),
	)
	return removed, nil
}

// Run sweeps once at startup and then on every scheduled tick until ctx is
// cancelled. It waits for an in-flight sweep before returning.
func (r *Runner) Run(ctx context.Context) error {
	logger := cronLogger{logger: r.logger}
	scheduler := cron.New(
		cron.WithLocation(r.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	scheduler.Schedule(r.schedule, cron.FuncJob(func() {
		_, _ = r.RunOnce(ctx)
	}))

	_, _ = r.RunOnce(ctx)

	scheduler.Start()
	r.logger.InfoContext(ctx, "retention scheduler started", "next_run", r.Next(time.Now()))

	<-ctx.Done()
	<-scheduler.Stop().Done()
	r.logger.Info("retention scheduler stopped")
	return nil
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
