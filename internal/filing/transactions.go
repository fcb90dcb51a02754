package filing

import (
	"context"
	"sync"
	"time"

	"refiling/internal/filing/models"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
)

// InMemoryTransactionSource holds transaction records in memory. It stands in
// for the wizard's transaction store in tests and single-process deployments.
type InMemoryTransactionSource struct {
	mu           sync.RWMutex
	transactions map[domain.TransactionID]*models.TransactionRecord
}

func NewInMemoryTransactionSource() *InMemoryTransactionSource {
	return &InMemoryTransactionSource{
		transactions: make(map[domain.TransactionID]*models.TransactionRecord),
	}
}

// Put stores or replaces a transaction record.
func (s *InMemoryTransactionSource) Put(txn *models.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[txn.ID] = txn
}

func (s *InMemoryTransactionSource) GetTransaction(_ context.Context, id domain.TransactionID) (*models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *InMemoryTransactionSource) RecordOutcome(_ context.Context, id domain.TransactionID, confirmationID string, filedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	txn.ConfirmationID = confirmationID
	txn.FiledAt = &filedAt
	return nil
}
