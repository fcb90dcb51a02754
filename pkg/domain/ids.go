package domain

import (
	"github.com/google/uuid"

	dErrors "refiling/pkg/domain-errors"
)

// SubmissionID identifies one filing submission in the ledger.
//
// Usage: construct via ParseSubmissionID at trust boundaries; direct casting
// bypasses validation.
type SubmissionID uuid.UUID

func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.New())
}

func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SubmissionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid submission id")
	}
	return SubmissionID(u), nil
}

func (id SubmissionID) String() string {
	return uuid.UUID(id).String()
}

func (id SubmissionID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// Suffix returns the first segment of the underlying UUID. It is embedded in
// generated filenames so same-second retries still produce unique names.
func (id SubmissionID) Suffix() string {
	return id.String()[:8]
}

// TransactionID identifies the external transaction record a submission files
// for. The transaction itself is owned by the wizard side of the application.
type TransactionID uuid.UUID

func NewTransactionID() TransactionID {
	return TransactionID(uuid.New())
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TransactionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid transaction id")
	}
	return TransactionID(u), nil
}

func (id TransactionID) String() string {
	return uuid.UUID(id).String()
}

func (id TransactionID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}
