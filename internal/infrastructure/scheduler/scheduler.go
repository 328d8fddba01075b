package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/BizNestAI/bizzy-sub000/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DragExpirer cancels drag gestures that have been idle too long.
type DragExpirer interface {
	ExpireDrags() []string
}

// Purger removes expired session snapshots.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	drags   DragExpirer
	purger  Purger
	logger  *logger.Logger
	timeout time.Duration
}

// NewScheduler builds a scheduler that reaps drags on reaperSpec and, when
// purger is non-nil, purges expired snapshots hourly.
func NewScheduler(drags DragExpirer, purger Purger, reaperSpec string, logger *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		drags:   drags,
		purger:  purger,
		logger:  logger,
		timeout: 30 * time.Second,
	}

	if _, err := s.cron.AddFunc(reaperSpec, s.reapDrags); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", reaperSpec, err)
	}
	if purger != nil {
		if _, err := s.cron.AddFunc("@hourly", s.purgeSnapshots); err != nil {
			return nil, fmt.Errorf("failed to schedule snapshot purge: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Calendar scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Calendar scheduler stopped")
}

func (s *Scheduler) reapDrags() {
	expired := s.drags.ExpireDrags()
	if len(expired) == 0 {
		return
	}
	s.logger.Info("Expired idle drag gestures",
		zap.Int("count", len(expired)),
		zap.Strings("gesture_ids", expired),
	)
}

func (s *Scheduler) purgeSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	startTime := time.Now()
	count, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to purge expired session snapshots", zap.Error(err))
		return
	}
	s.logger.Info("Purged expired session snapshots",
		zap.Int64("count", count),
		zap.Duration("duration", time.Since(startTime)),
	)
}
