package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "refiling/pkg/domain-errors"
)

func TestParseSubmissionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubmissionID("")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubmissionID("not-a-uuid")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSubmissionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SubmissionID(valid), id)
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewSubmissionID()
		parsed, err := ParseSubmissionID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestParseTransactionID(t *testing.T) {
	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTransactionID("12345")
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewTransactionID()
		parsed, err := ParseTransactionID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestSubmissionIDSuffix(t *testing.T) {
	id, err := ParseSubmissionID("550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)

	// The suffix feeds generated filenames, so it must be short, stable, and
	// free of separators.
	assert.Equal(t, "550e8400", id.Suffix())
	assert.Len(t, id.Suffix(), 8)
}

func TestIsZero(t *testing.T) {
	assert.True(t, SubmissionID{}.IsZero())
	assert.True(t, TransactionID{}.IsZero())
	assert.False(t, NewSubmissionID().IsZero())
	assert.False(t, NewTransactionID().IsZero())
}
