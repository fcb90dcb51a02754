package artifact

import (
	"context"
	"database/sql"
	"fmt"

	dErrors "refiling/pkg/domain-errors"
)

// PostgresStore persists artifacts in the artifacts table. Pure I/O; sealing
// and integrity checks live on the Artifact type.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, a *Artifact) error {
	query := `
		INSERT INTO artifacts (hash, kind, filename, size, compressed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		a.Hash, string(a.Kind), a.Filename, a.Size, a.Compressed, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, hash string) (*Artifact, error) {
	query := `
		SELECT hash, kind, filename, size, compressed, created_at
		FROM artifacts
		WHERE hash = $1
	`
	var a Artifact
	var kind string
	err := s.db.QueryRowContext(ctx, query, hash).
		Scan(&a.Hash, &kind, &a.Filename, &a.Size, &a.Compressed, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found: "+hash)
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	a.Kind = Kind(kind)
	return &a, nil
}
