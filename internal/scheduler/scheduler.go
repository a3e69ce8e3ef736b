package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer retries remote syncs that failed earlier.
type Syncer interface {
	RetryPending(ctx context.Context) bool
	Pending() bool
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	syncer   Syncer
	schedule string
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. schedule is a standard
// five-field cron expression.
func NewScheduler(schedule string, syncer Syncer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Skip a run while the previous retry is still uploading.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Scheduler{
		cron:     c,
		syncer:   syncer,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("sync_retry", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.retrySync); err != nil {
		return fmt.Errorf("schedule sync retry %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) retrySync() {
	if !s.syncer.Pending() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if s.syncer.RetryPending(ctx) {
		s.logger.Info("pending changes synced")
	} else {
		s.logger.Warn("pending changes still not synced")
	}
}
