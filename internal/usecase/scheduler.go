package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"HotlistTracker/internal/ports"
)

// Scheduler wires the cron-like driver with the collector use case.
type Scheduler struct {
	driver    ports.Scheduler
	collector *Collector
	logger    *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring passes.
func NewScheduler(driver ports.Scheduler, collector *Collector, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{driver: driver, collector: collector, logger: logger.With(zap.String("component", "scheduler"))}
}

// Start registers the collection pass with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.collector == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.collector.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduled pass failed", zap.Time("trigger", trigger), zap.Error(err))
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
