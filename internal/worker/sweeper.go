package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CodePurger deletes expired verification codes.
type CodePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CodeSweeper periodically removes expired verification codes. Issuance
// purges on its own, so the sweeper only keeps the table small.
type CodeSweeper struct {
	cron    *cron.Cron
	purger  CodePurger
	logger  *zap.Logger
	timeout time.Duration
}

// NewCodeSweeper schedules the purge. schedule accepts the standard five
// field cron syntax and descriptors such as "@every 10m".
func NewCodeSweeper(schedule string, purger CodePurger, logger *zap.Logger) (*CodeSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CodeSweeper{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		purger:  purger,
		logger:  logger,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *CodeSweeper) Start() {
	s.cron.Start()
	s.logger.Info("code sweeper started")
}

// Stop halts the schedule and waits for a running purge or ctx, whichever is first.
func (s *CodeSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce purges immediately.
func (s *CodeSweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("code sweep failed", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired codes swept", zap.Int64("count", n))
	}
	return n, nil
}
