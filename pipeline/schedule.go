package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronLoggerAdapter routes cron's logging onto slog.
type cronLoggerAdapter struct {
	logger *slog.Logger
}

func (c *cronLoggerAdapter) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c *cronLoggerAdapter) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// StartSchedule triggers Run with cfg on a standard five-field cron spec
// (descriptors such as "@hourly" are accepted too). Triggers that fire while
// a run is in progress are rejected like any other overlapping request.
func (o *Orchestrator) StartSchedule(spec string, cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}

	o.schedMu.Lock()
	defer o.schedMu.Unlock()
	if o.cron != nil {
		return ErrAlreadyScheduled
	}

	logger := o.logger.With("schedule", spec)
	c := cron.New(cron.WithLogger(&cronLoggerAdapter{logger: logger}))
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := o.Run(context.Background(), cfg); err != nil && !errors.Is(err, ErrRunInProgress) {
			logger.Warn("scheduled run failed", "err", err)
		}
	}))
	c.Start()
	o.cron = c

	logger.Info("pipeline scheduled", "next", schedule.Next(time.Now()))
	return nil
}

// StopSchedule prevents future triggers. The returned context is done once
// any in-flight scheduled run has finished; that run is never canceled.
// Without an active schedule the context is already done.
func (o *Orchestrator) StopSchedule() context.Context {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()
	if o.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	ctx := o.cron.Stop()
	o.cron = nil
	o.logger.Info("pipeline schedule stopped")
	return ctx
}

// Scheduled reports whether a schedule is active.
func (o *Orchestrator) Scheduled() bool {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()
	return o.cron != nil
}

// NextRun returns the next scheduled trigger, or the zero time without a schedule.
func (o *Orchestrator) NextRun() time.Time {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()
	if o.cron == nil {
		return time.Time{}
	}
	entries := o.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
