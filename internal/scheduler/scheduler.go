package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Backfiller is implemented by the schedule service.
type Backfiller interface {
	BackfillMissing(ctx context.Context, limit int) (int, error)
}

// Scheduler runs the periodic jobs of the service.
type Scheduler struct {
	cron    *cron.Cron
	log     *zap.Logger
	timeout time.Duration
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		// a run that outlasts its interval is not started twice
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, log: logger, timeout: 2 * time.Minute}
}

// RegisterBackfill runs b.BackfillMissing(batch) on spec (standard 5-field
// cron or @every descriptors).
func (s *Scheduler) RegisterBackfill(spec string, b Backfiller, batch int) error {
	_, err := s.cron.AddFunc(spec, s.backfillJob(b, batch))
	if err != nil {
		s.log.Error("failed to register backfill job", zap.String("spec", spec), zap.Error(err))
		return err
	}
	s.log.Info("backfill job registered", zap.String("spec", spec), zap.Int("batch", batch))
	return nil
}

func (s *Scheduler) backfillJob(b Backfiller, batch int) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		n, err := b.BackfillMissing(ctx, batch)
		if err != nil {
			s.log.Warn("backfill finished with errors", zap.Int("scheduled", n), zap.Error(err))
			return
		}
		if n > 0 {
			s.log.Info("backfill finished", zap.Int("scheduled", n), zap.Duration("took", time.Since(start)))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cron scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("cron scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("cron scheduler stop timed out")
	}
}

func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }
