package poller

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"refiling/internal/filing/models"
)

// SubmissionPoller is the slice of the filing service the sweeper drives.
type SubmissionPoller interface {
	DuePolls(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error)
	Poll(ctx context.Context, submission *models.Submission) error
}

const (
	sweepLockKey = "refiling:poll-sweep"
	sweepLockTTL = 4 * time.Minute
)

// Sweeper periodically scans for submissions whose next_poll_at has elapsed
// and polls the drop box for their response artifacts. It is entirely
// decoupled from the submit path: the submit path never blocks on responses.
type Sweeper struct {
	poller      SubmissionPoller
	locker      Locker
	logger      *slog.Logger
	interval    time.Duration
	batchLimit  int
	concurrency int
	now         func() time.Time
	observe     func(seconds float64)
}

type SweeperOption func(*Sweeper)

func WithInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = interval }
}

func WithBatchLimit(limit int) SweeperOption {
	return func(s *Sweeper) { s.batchLimit = limit }
}

func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// WithSweepObserver records the wall time of each completed sweep pass,
// typically into a histogram.
func WithSweepObserver(observe func(seconds float64)) SweeperOption {
	return func(s *Sweeper) { s.observe = observe }
}

func NewSweeper(poller SubmissionPoller, locker Locker, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		poller:      poller,
		locker:      locker,
		logger:      logger,
		interval:    time.Minute,
		batchLimit:  100,
		concurrency: 4,
		now:         time.Now,
	}
	if s.locker == nil {
		s.locker = NoopLocker{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on a ticker until the context is cancelled. Sweep failures are
// logged and retried on the next tick; they never stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "poll sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass. Concurrent invocations (in-process or across
// processes) are safe: the advisory lock skips redundant passes, and the
// ledger's status guards make any overlap a silent no-op.
func (s *Sweeper) Sweep(ctx context.Context) error {
	held, release, err := s.locker.Acquire(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		return err
	}
	if !held {
		s.logger.DebugContext(ctx, "poll sweep lock held elsewhere, skipping")
		return nil
	}
	defer release()

	if s.observe != nil {
		started := time.Now()
		defer func() { s.observe(time.Since(started).Seconds()) }()
	}

	now := s.now()
	due, err := s.poller.DuePolls(ctx, now, s.batchLimit)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.InfoContext(ctx, "poll sweep starting", "due", len(due))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, submission := range due {
		group.Go(func() error {
			if err := s.poller.Poll(groupCtx, submission); err != nil {
				// One failed poll must not abort the rest of the sweep.
				s.logger.WarnContext(groupCtx, "poll failed",
					"submission_id", submission.ID.String(),
					"error", err,
				)
			}
			return nil
		})
	}
	return group.Wait()
}
