//go:build integration

package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refiling/internal/artifact"
	dErrors "refiling/pkg/domain-errors"
	"refiling/pkg/testutil/containers"
)

type PostgresArtifactSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *artifact.PostgresStore
}

func TestPostgresArtifactSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresArtifactSuite))
}

func (s *PostgresArtifactSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = artifact.NewPostgres(s.postgres.DB)
}

func (s *PostgresArtifactSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "artifacts")
	s.Require().NoError(err)
}

func (s *PostgresArtifactSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	payload := []byte("<ReportBatch>round trip content</ReportBatch>")

	sealed, err := artifact.Seal(artifact.KindDocument, "RRETR.x.xml", payload, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Put(ctx, sealed))

	stored, err := s.store.Get(ctx, sealed.Hash)
	s.Require().NoError(err)
	s.Equal(sealed.Kind, stored.Kind)
	s.Equal(sealed.Filename, stored.Filename)

	got, err := stored.Payload()
	s.Require().NoError(err)
	s.Equal(payload, got)
}

func (s *PostgresArtifactSuite) TestPutIsIdempotentByHash() {
	ctx := context.Background()
	sealed, err := artifact.Seal(artifact.KindAck, "a.xml", []byte("<ack/>"), time.Now().UTC())
	s.Require().NoError(err)

	s.Require().NoError(s.store.Put(ctx, sealed))
	s.Require().NoError(s.store.Put(ctx, sealed), "duplicate hash must be a silent no-op")

	var count int
	err = s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresArtifactSuite) TestGetMissingHash() {
	_, err := s.store.Get(context.Background(), "deadbeef")
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}
