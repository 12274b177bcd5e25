package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/pkg/jobs"
)

// JobTypeSessionSweep identifies the expired-session sweep job.
const JobTypeSessionSweep = "session_sweep"

type sessionSweeperTarget interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweeper periodically clears refresh tokens that expired in storage so
// abandoned sessions do not linger in com_user.
type SessionSweeper struct {
	target   sessionSweeperTarget
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger
}

// NewSessionSweeper wires a single-worker queue to target.
func NewSessionSweeper(target sessionSweeperTarget, interval time.Duration, logger *zap.Logger) *SessionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionSweeper{target: target, interval: interval, logger: logger}
	s.queue = jobs.NewQueue("session-sweeper", s.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start runs one sweep immediately and then one per interval. A non-positive
// interval disables the sweeper.
func (s *SessionSweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("session sweeper disabled")
		return nil
	}
	s.queue.Start(ctx)
	if err := s.queue.TryEnqueue(jobs.Job{Type: JobTypeSessionSweep}); err != nil {
		return err
	}
	return s.queue.Schedule(s.interval, JobTypeSessionSweep)
}

// Stop halts scheduling and waits for an in-flight sweep.
func (s *SessionSweeper) Stop() {
	s.queue.Stop()
}

// Handle processes one sweep job.
func (s *SessionSweeper) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeSessionSweep {
		return fmt.Errorf("unexpected job type %q", job.Type)
	}
	n, err := s.target.SweepExpiredSessions(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("session sweep finished", zap.String("job_id", job.ID), zap.Int64("cleared", n))
	return nil
}
