package service

import (
	"context"
	"time"

	"meshgate/internal/constants"

	"github.com/sirupsen/logrus"
)

// UsageResetter is the scheduler's view of the usage tracker.
type UsageResetter interface {
	ResetIfNewDay(ctx context.Context) bool
}

// Scheduler periodically drives the daily counter reset. The check is
// cheap and idempotent, so the tick interval only bounds how late after
// UTC midnight the reset lands.
type Scheduler struct {
	usage       UsageResetter
	intervalMin int
	logger      *logrus.Logger
	stopCh      chan struct{}
}

func NewScheduler(usage UsageResetter, intervalMin int, logger *logrus.Logger) *Scheduler {
	if intervalMin <= 0 {
		intervalMin = constants.DefaultResetCheckIntervalMin
	}
	return &Scheduler{
		usage:       usage,
		intervalMin: intervalMin,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalMin) * time.Minute)
	defer ticker.Stop()

	s.logger.Info("Starting daily reset scheduler")

	s.runReset(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runReset(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runReset(ctx context.Context) {
	if s.usage.ResetIfNewDay(ctx) {
		s.logger.Info("Applied scheduled daily counter reset")
	}
}
