package ledger

import (
	"context"
	"time"

	"refiling/internal/filing/models"
	"refiling/pkg/domain"
)

// Filter narrows List results for the operator interface.
type Filter struct {
	Status models.Status
	Limit  int
	Offset int
}

// Store persists submissions. Stores are pure I/O: transition legality lives
// on the Status type and is enforced by the service.
//
// Update is the concurrency primitive of the whole subsystem: it persists the
// candidate row only while the stored status still equals expected. A false
// return means a concurrent writer already transitioned the row and the
// caller's work must be discarded, not retried blindly.
type Store interface {
	// Create inserts a new submission. It fails with CodeConflict when the
	// transaction already has a non-terminal submission.
	Create(ctx context.Context, s *models.Submission) error
	Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	// GetByTransaction returns the most recent submission for a transaction.
	GetByTransaction(ctx context.Context, txnID domain.TransactionID) (*models.Submission, error)
	List(ctx context.Context, filter Filter) ([]*models.Submission, error)
	// DueForPoll returns submissions in {queued, submitted} whose next_poll_at
	// has elapsed.
	DueForPoll(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error)
	// Update persists s if the stored status equals expected, appending any
	// outbox events atomically with the row change where the backend allows.
	Update(ctx context.Context, s *models.Submission, expected models.Status, events ...models.OutboxEvent) (bool, error)
}
