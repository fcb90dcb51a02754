package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"refiling/internal/artifact"
	"refiling/internal/filing/models"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
)

// PostgresStore persists submissions in PostgreSQL. The status guard is a
// conditional UPDATE, so concurrent sweeps racing on the same row produce
// exactly one winner; outbox events ride in the same transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const submissionColumns = `
	id, transaction_id, status, environment,
	confirmation_id, rejection_code, rejection_message, review_reason,
	attempts, transport, filename,
	next_poll_at, poll_attempts, last_polled_at, submitted_at, ack_received_at,
	artifacts, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, submission *models.Submission) error {
	artifacts, err := marshalArtifacts(submission.Artifacts)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.db.ExecContext(ctx, query,
		submission.ID.String(), submission.TransactionID.String(),
		string(submission.Status), string(submission.Environment),
		submission.ConfirmationID, submission.RejectionCode, submission.RejectionMessage, submission.ReviewReason,
		submission.Attempts, submission.Transport, submission.Filename,
		submission.NextPollAt, submission.PollAttempts, submission.LastPolledAt,
		submission.SubmittedAt, submission.AckReceivedAt,
		artifacts, submission.CreatedAt, submission.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique violation on the one-in-flight partial index.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return dErrors.New(dErrors.CodeConflict, "transaction already has a non-terminal submission")
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	submission, err := scanSubmission(s.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dErrors.New(dErrors.CodeNotFound, "submission not found: "+id.String())
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return submission, nil
}

func (s *PostgresStore) GetByTransaction(ctx context.Context, txnID domain.TransactionID) (*models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	submission, err := scanSubmission(s.db.QueryRowContext(ctx, query, txnID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dErrors.New(dErrors.CodeNotFound, "no submission for transaction "+txnID.String())
		}
		return nil, fmt.Errorf("get submission by transaction: %w", err)
	}
	return submission, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func (s *PostgresStore) DueForPoll(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status IN ('queued', 'submitted')
		  AND next_poll_at IS NOT NULL
		  AND next_poll_at <= $1
		ORDER BY next_poll_at
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*models.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due submission: %w", err)
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, submission *models.Submission, expected models.Status, events ...models.OutboxEvent) (bool, error) {
	artifacts, err := marshalArtifacts(submission.Artifacts)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update submission: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE submissions SET
			status = $1,
			confirmation_id = $2,
			rejection_code = $3,
			rejection_message = $4,
			review_reason = $5,
			attempts = $6,
			transport = $7,
			filename = $8,
			next_poll_at = $9,
			poll_attempts = $10,
			last_polled_at = $11,
			submitted_at = $12,
			ack_received_at = $13,
			artifacts = $14,
			updated_at = $15
		WHERE id = $16 AND status = $17
	`
	result, err := tx.ExecContext(ctx, query,
		string(submission.Status),
		submission.ConfirmationID, submission.RejectionCode, submission.RejectionMessage, submission.ReviewReason,
		submission.Attempts, submission.Transport, submission.Filename,
		submission.NextPollAt, submission.PollAttempts, submission.LastPolledAt,
		submission.SubmittedAt, submission.AckReceivedAt,
		artifacts, submission.UpdatedAt,
		submission.ID.String(), string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("update submission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update submission rows affected: %w", err)
	}
	if affected == 0 {
		// A concurrent writer transitioned the row first; silent no-op.
		return false, nil
	}

	for _, event := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbox (topic, payload, created_at) VALUES ($1, $2, $3)`,
			event.Topic, event.Payload, event.CreatedAt,
		); err != nil {
			return false, fmt.Errorf("append outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update submission: %w", err)
	}
	return true, nil
}

type submissionRow interface {
	Scan(dest ...any) error
}

func scanSubmission(row submissionRow) (*models.Submission, error) {
	var (
		submission                models.Submission
		idText, txnText           string
		status, environment       string
		nextPollAt, lastPolledAt  sql.NullTime
		submittedAt, ackReceived  sql.NullTime
		artifacts                 []byte
	)
	if err := row.Scan(
		&idText, &txnText, &status, &environment,
		&submission.ConfirmationID, &submission.RejectionCode, &submission.RejectionMessage, &submission.ReviewReason,
		&submission.Attempts, &submission.Transport, &submission.Filename,
		&nextPollAt, &submission.PollAttempts, &lastPolledAt, &submittedAt, &ackReceived,
		&artifacts, &submission.CreatedAt, &submission.UpdatedAt,
	); err != nil {
		return nil, err
	}

	id, err := domain.ParseSubmissionID(idText)
	if err != nil {
		return nil, err
	}
	txnID, err := domain.ParseTransactionID(txnText)
	if err != nil {
		return nil, err
	}
	submission.ID = id
	submission.TransactionID = txnID
	submission.Status = models.Status(status)
	submission.Environment = models.Environment(environment)
	submission.NextPollAt = nullableTime(nextPollAt)
	submission.LastPolledAt = nullableTime(lastPolledAt)
	submission.SubmittedAt = nullableTime(submittedAt)
	submission.AckReceivedAt = nullableTime(ackReceived)

	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &submission.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	return &submission, nil
}

func marshalArtifacts(refs map[artifact.Kind]artifact.Ref) ([]byte, error) {
	if refs == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return encoded, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	copied := t.Time
	return &copied
}
