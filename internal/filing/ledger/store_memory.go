package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"refiling/internal/filing/models"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
)

// InMemoryStore holds submissions in a map. Used in tests and when no
// Postgres URL is configured. The mutex makes Update a true compare-and-swap,
// so concurrent sweeps see the same single-winner semantics as Postgres.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions map[domain.SubmissionID]*models.Submission
	events      []models.OutboxEvent
	nextEventID int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{submissions: make(map[domain.SubmissionID]*models.Submission)}
}

func (s *InMemoryStore) Create(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.submissions {
		if existing.TransactionID == submission.TransactionID && !existing.Status.IsTerminal() {
			return dErrors.New(dErrors.CodeConflict, "transaction already has a non-terminal submission")
		}
	}
	s.submissions[submission.ID] = submission.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	submission, ok := s.submissions[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "submission not found: "+id.String())
	}
	return submission.Clone(), nil
}

func (s *InMemoryStore) GetByTransaction(_ context.Context, txnID domain.TransactionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Submission
	for _, submission := range s.submissions {
		if submission.TransactionID != txnID {
			continue
		}
		if latest == nil || submission.CreatedAt.After(latest.CreatedAt) {
			latest = submission
		}
	}
	if latest == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no submission for transaction "+txnID.String())
	}
	return latest.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Submission
	for _, submission := range s.submissions {
		if filter.Status != "" && submission.Status != filter.Status {
			continue
		}
		all = append(all, submission.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (s *InMemoryStore) DueForPoll(_ context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.Submission
	for _, submission := range s.submissions {
		if !submission.Status.InFlight() {
			continue
		}
		if submission.NextPollAt == nil || submission.NextPollAt.After(now) {
			continue
		}
		due = append(due, submission.Clone())
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextPollAt.Before(*due[j].NextPollAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *InMemoryStore) Update(_ context.Context, submission *models.Submission, expected models.Status, events ...models.OutboxEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.submissions[submission.ID]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "submission not found: "+submission.ID.String())
	}
	if stored.Status != expected {
		// A concurrent writer won; the caller's read is stale.
		return false, nil
	}

	s.submissions[submission.ID] = submission.Clone()
	for _, event := range events {
		s.nextEventID++
		event.ID = s.nextEventID
		s.events = append(s.events, event)
	}
	return true, nil
}

// Events returns appended outbox events, for assertions in tests.
func (s *InMemoryStore) Events() []models.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OutboxEvent(nil), s.events...)
}
