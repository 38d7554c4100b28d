package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Backfiller runs a report backfill
type Backfiller interface {
	Backfill(ctx context.Context, kind service.BackfillKind) ([]service.BackfillResult, error)
}

// BackfillScheduler runs the report backfill on a cron schedule
type BackfillScheduler struct {
	sched      *cron.Cron
	backfiller Backfiller
	timeout    time.Duration
	logger     *zap.Logger
}

// NewBackfillScheduler creates a scheduler firing spec in loc
func NewBackfillScheduler(spec string, loc *time.Location, backfiller Backfiller) (*BackfillScheduler, error) {
	s := &BackfillScheduler{
		sched:      cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		backfiller: backfiller,
		timeout:    30 * time.Minute,
		logger:     util.Component("scheduler"),
	}

	if _, err := s.sched.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid backfill schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce runs one backfill of every report
func (s *BackfillScheduler) RunOnce() {
	defer func() {
		if err := recover(); err != nil {
			s.logger.Error("Backfill panicked", zap.Any("panic", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	results, err := s.backfiller.Backfill(ctx, service.BackfillAll)
	if errors.Is(err, service.ErrBackfillRunning) {
		s.logger.Info("Backfill skipped, another run holds the lock")
		return
	}
	if err != nil {
		s.logger.Error("Scheduled backfill failed", zap.Error(err))
		return
	}
	for _, r := range results {
		s.logger.Info("Scheduled backfill done",
			zap.String("report", r.Report),
			zap.Int64("created", r.Created),
			zap.Int64("updated", r.Updated))
	}
}

// Start starts the cron loop in its own goroutine
func (s *BackfillScheduler) Start() {
	s.sched.Start()
	s.logger.Info("Backfill scheduler started")
}

// Stop stops scheduling and waits for a running backfill to finish or ctx to expire
func (s *BackfillScheduler) Stop(ctx context.Context) {
	done := s.sched.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Backfill still running at shutdown")
	}
}
