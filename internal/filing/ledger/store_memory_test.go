package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refiling/internal/filing/models"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
)

// =============================================================================
// In-Memory Ledger Store Test Suite
// =============================================================================
// The memory store must mirror the Postgres semantics exactly: one non-terminal
// submission per transaction, and compare-and-swap updates with a single
// winner under concurrency.

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func (s *MemoryStoreSuite) newSubmission(status models.Status) *models.Submission {
	now := time.Now()
	return &models.Submission{
		ID:            domain.NewSubmissionID(),
		TransactionID: domain.NewTransactionID(),
		Status:        status,
		Environment:   models.EnvSandbox,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// =============================================================================
// Create Tests (Idempotency Guard)
// =============================================================================

func (s *MemoryStoreSuite) TestCreate() {
	ctx := context.Background()

	s.Run("second non-terminal submission for a transaction conflicts", func() {
		first := s.newSubmission(models.StatusQueued)
		s.Require().NoError(s.store.Create(ctx, first))

		second := s.newSubmission(models.StatusQueued)
		second.TransactionID = first.TransactionID
		err := s.store.Create(ctx, second)
		s.Require().Error(err)
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("terminal submission does not block a new one", func() {
		done := s.newSubmission(models.StatusRejected)
		s.Require().NoError(s.store.Create(ctx, done))

		next := s.newSubmission(models.StatusQueued)
		next.TransactionID = done.TransactionID
		s.NoError(s.store.Create(ctx, next))
	})

	s.Run("stored submission is isolated from caller mutation", func() {
		submission := s.newSubmission(models.StatusQueued)
		s.Require().NoError(s.store.Create(ctx, submission))

		submission.Status = models.StatusAccepted
		stored, err := s.store.Get(ctx, submission.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusQueued, stored.Status)
	})
}

// =============================================================================
// Guarded Update Tests
// =============================================================================

func (s *MemoryStoreSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("matching expected status persists the candidate", func() {
		submission := s.newSubmission(models.StatusQueued)
		s.Require().NoError(s.store.Create(ctx, submission))

		candidate := submission.Clone()
		candidate.Status = models.StatusSubmitted
		ok, err := s.store.Update(ctx, candidate, models.StatusQueued)
		s.Require().NoError(err)
		s.True(ok)

		stored, err := s.store.Get(ctx, submission.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, stored.Status)
	})

	s.Run("stale expected status is rejected without error", func() {
		submission := s.newSubmission(models.StatusSubmitted)
		s.Require().NoError(s.store.Create(ctx, submission))

		candidate := submission.Clone()
		candidate.Status = models.StatusAccepted
		ok, err := s.store.Update(ctx, candidate, models.StatusQueued)
		s.Require().NoError(err)
		s.False(ok, "guard mismatch is a lost race, not an error")

		stored, err := s.store.Get(ctx, submission.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSubmitted, stored.Status)
	})

	s.Run("events are appended only on successful update", func() {
		submission := s.newSubmission(models.StatusQueued)
		s.Require().NoError(s.store.Create(ctx, submission))

		candidate := submission.Clone()
		candidate.Status = models.StatusSubmitted
		ok, err := s.store.Update(ctx, candidate, models.StatusQueued,
			models.OutboxEvent{Topic: models.TopicSubmissionSubmitted})
		s.Require().NoError(err)
		s.Require().True(ok)

		// Losing writer must not append.
		again := submission.Clone()
		again.Status = models.StatusNeedsReview
		ok, err = s.store.Update(ctx, again, models.StatusQueued,
			models.OutboxEvent{Topic: models.TopicSubmissionNeedsReview})
		s.Require().NoError(err)
		s.Require().False(ok)

		events := s.store.Events()
		s.Require().Len(events, 1)
		s.Equal(models.TopicSubmissionSubmitted, events[0].Topic)
	})

	s.Run("concurrent transitions have exactly one winner", func() {
		submission := s.newSubmission(models.StatusSubmitted)
		s.Require().NoError(s.store.Create(ctx, submission))

		const goroutines = 50
		var wg sync.WaitGroup
		var winners atomic.Int32

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				candidate := submission.Clone()
				if n%2 == 0 {
					candidate.Status = models.StatusAccepted
				} else {
					candidate.Status = models.StatusRejected
				}
				ok, err := s.store.Update(ctx, candidate, models.StatusSubmitted)
				if err == nil && ok {
					winners.Add(1)
				}
			}(i)
		}
		wg.Wait()

		s.Equal(int32(1), winners.Load(), "exactly one transition may win")

		stored, err := s.store.Get(ctx, submission.ID)
		s.Require().NoError(err)
		s.True(stored.Status == models.StatusAccepted || stored.Status == models.StatusRejected)
	})
}

// =============================================================================
// Query Tests
// =============================================================================

func (s *MemoryStoreSuite) TestGetByTransaction() {
	ctx := context.Background()

	old := s.newSubmission(models.StatusRejected)
	old.CreatedAt = time.Now().Add(-time.Hour)
	s.Require().NoError(s.store.Create(ctx, old))

	recent := s.newSubmission(models.StatusQueued)
	recent.TransactionID = old.TransactionID
	s.Require().NoError(s.store.Create(ctx, recent))

	found, err := s.store.GetByTransaction(ctx, old.TransactionID)
	s.Require().NoError(err)
	s.Equal(recent.ID, found.ID, "latest submission wins")

	_, err = s.store.GetByTransaction(ctx, domain.NewTransactionID())
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func (s *MemoryStoreSuite) TestList() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		submission := s.newSubmission(models.StatusQueued)
		submission.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		s.Require().NoError(s.store.Create(ctx, submission))
	}
	rejected := s.newSubmission(models.StatusRejected)
	s.Require().NoError(s.store.Create(ctx, rejected))

	all, err := s.store.List(ctx, Filter{})
	s.Require().NoError(err)
	s.Len(all, 4)

	queued, err := s.store.List(ctx, Filter{Status: models.StatusQueued})
	s.Require().NoError(err)
	s.Len(queued, 3)

	paged, err := s.store.List(ctx, Filter{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Len(paged, 2)
}

func (s *MemoryStoreSuite) TestDueForPoll() {
	ctx := context.Background()
	now := time.Now()

	due := s.newSubmission(models.StatusSubmitted)
	past := now.Add(-time.Minute)
	due.NextPollAt = &past
	s.Require().NoError(s.store.Create(ctx, due))

	notYet := s.newSubmission(models.StatusSubmitted)
	future := now.Add(time.Hour)
	notYet.NextPollAt = &future
	s.Require().NoError(s.store.Create(ctx, notYet))

	unscheduled := s.newSubmission(models.StatusQueued)
	s.Require().NoError(s.store.Create(ctx, unscheduled))

	terminal := s.newSubmission(models.StatusAccepted)
	terminal.NextPollAt = &past
	s.Require().NoError(s.store.Create(ctx, terminal))

	found, err := s.store.DueForPoll(ctx, now, 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(due.ID, found[0].ID)
}
