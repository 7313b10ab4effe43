// Package scheduler runs a recurring unit of work on a fixed interval.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vacradar/vacradar/internal/utils"
)

// Scheduler invokes a job sequentially on an interval, so at most one
// execution is in flight at a time.
type Scheduler struct {
	job      func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
}

// New creates a scheduler for the given job.
func New(job func(ctx context.Context) error, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		logger:   logger,
	}
}

// Run executes the job once immediately, then on every interval until the
// context is cancelled. Job errors are logged, never fatal: the next tick
// retries.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", zap.Duration("interval", s.interval))

	for {
		if err := s.job(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
		}

		if err := utils.WaitFor(ctx, s.interval); err != nil {
			s.logger.Info("shutting down scheduler")
			return nil
		}
	}
}
