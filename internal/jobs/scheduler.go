package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Pruner deletes login events older than a retention window
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron      *cron.Cron
	pruner    Pruner
	retention time.Duration
	logger    *zap.Logger
}

// NewScheduler creates a new job scheduler
func NewScheduler(pruner Pruner, retention time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		pruner:    pruner,
		retention: retention,
		logger:    logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start(pruneSchedule string) error {
	if _, err := s.cron.AddFunc(pruneSchedule, s.pruneLoginEvents); err != nil {
		return fmt.Errorf("invalid audit prune schedule %q: %w", pruneSchedule, err)
	}

	s.cron.Start()
	s.logger.Info("Job scheduler started", zap.String("audit_prune_schedule", pruneSchedule))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Job scheduler stopped")
}

// pruneLoginEvents removes audit rows past the retention window
func (s *Scheduler) pruneLoginEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.logger.Info("Running audit cleanup job...")
	if _, err := s.pruner.Prune(ctx, s.retention); err != nil {
		s.logger.Error("Audit cleanup job failed", zap.Error(err))
	}
}
