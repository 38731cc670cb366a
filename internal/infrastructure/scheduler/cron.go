package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"HotlistTracker/internal/ports"
)

// CronScheduler triggers jobs on a standard five-field cron spec or a descriptor
// such as "@every 2m". A trigger that fires while the previous run is still in
// progress is skipped.
type CronScheduler struct {
	spec       string
	location   *time.Location
	runOnStart bool
	logger     *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running atomic.Bool
	wg      sync.WaitGroup
	skipped atomic.Int64
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location, runOnStart bool, logger *zap.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		spec:       spec,
		location:   loc,
		runOnStart: runOnStart,
		logger:     logger.With(zap.String("component", "scheduler")),
	}
}

// Start registers job and begins ticking. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	schedule, err := cron.ParseStandard(c.spec)
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", c.spec, err)
	}

	c.cron = cron.NewWithLocation(c.location)
	c.cron.Schedule(schedule, cron.FuncJob(func() {
		c.trigger(ctx, job, time.Now().In(c.location))
	}))
	c.cron.Start()

	c.logger.Info("scheduler started",
		zap.String("spec", c.spec),
		zap.Time("next", schedule.Next(time.Now().In(c.location))),
	)

	if c.runOnStart {
		go c.trigger(ctx, job, time.Now().In(c.location))
	}
	return nil
}

func (c *CronScheduler) trigger(ctx context.Context, job func(time.Time), at time.Time) {
	if ctx.Err() != nil {
		return
	}
	if !c.running.CompareAndSwap(false, true) {
		c.skipped.Add(1)
		c.logger.Warn("previous run still in progress, trigger skipped", zap.Time("at", at))
		return
	}
	c.wg.Add(1)
	defer func() {
		c.running.Store(false)
		c.wg.Done()
	}()

	job(at)
}

// Stop halts the cron loop and waits for an in-flight job until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.cron == nil {
		c.mu.Unlock()
		return nil
	}
	c.cron.Stop()
	c.cron = nil
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}

// Skipped counts triggers dropped because a run was in progress.
func (c *CronScheduler) Skipped() int64 {
	return c.skipped.Load()
}
