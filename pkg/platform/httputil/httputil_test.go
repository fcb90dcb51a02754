package httputil_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "refiling/pkg/domain-errors"
	"refiling/pkg/platform/httputil"
	"refiling/pkg/testutil"
)

func errorHandler(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, err)
	})
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodGet, "/", "")
		rr := testutil.DoRequest(errorHandler(dErrors.New(dErrors.CodeInternal, "db failed")), req)

		testutil.AssertErrorResponse(t, rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
		body := testutil.UnmarshalResponse[map[string]string](t, rr)
		_, ok := (*body)["error_description"]
		assert.False(t, ok, "internal error details must not leak to clients")
	})

	t.Run("invalid input includes description", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodGet, "/", "")
		rr := testutil.DoRequest(errorHandler(dErrors.New(dErrors.CodeInvalidInput, "bad filter")), req)

		testutil.AssertErrorResponse(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
		body := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, "bad filter", (*body)["error_description"])
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodGet, "/", "")
		rr := testutil.DoRequest(errorHandler(dErrors.New(dErrors.CodeConflict, "already in flight")), req)

		testutil.AssertErrorResponse(t, rr, http.StatusConflict, string(dErrors.CodeConflict))
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodGet, "/", "")
		rr := testutil.DoRequest(errorHandler(dErrors.New(dErrors.CodeNotFound, "no such submission")), req)

		testutil.AssertErrorResponse(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func TestDecode(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}

	t.Run("decodes a well-formed body", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/", payload{Reason: "operator retry"})

		got, err := httputil.Decode[payload](req)
		require.NoError(t, err)
		assert.Equal(t, "operator retry", got.Reason)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/", `{"reason":"x","extra":true}`)

		_, err := httputil.Decode[payload](req)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/", `{"reason":`)

		_, err := httputil.Decode[payload](req)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})
}
