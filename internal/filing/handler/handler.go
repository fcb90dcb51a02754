// Package handler exposes the filing subsystem to operators over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"refiling/internal/artifact"
	"refiling/internal/filing/ledger"
	"refiling/internal/filing/models"
	"refiling/internal/platform/middleware"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
	"refiling/pkg/platform/httputil"
)

// Service defines the filing operations the operator interface needs.
type Service interface {
	Submit(ctx context.Context, txnID domain.TransactionID) (*models.Submission, error)
	Retry(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	ForcePoll(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error)
	List(ctx context.Context, filter ledger.Filter) ([]*models.Submission, error)
	Artifact(ctx context.Context, id domain.SubmissionID, kind artifact.Kind) ([]byte, artifact.Ref, error)
}

// Handler wires filing endpoints to the filing service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a filing handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterReads mounts the read-only operator endpoints.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/submissions", h.HandleList)
	r.Get("/submissions/{id}", h.HandleGet)
	r.Get("/submissions/{id}/artifacts/{kind}", h.HandleArtifact)
}

// RegisterMutations mounts the state-changing operator endpoints.
func (h *Handler) RegisterMutations(r chi.Router) {
	r.Post("/submissions/{id}/poll", h.HandleForcePoll)
	r.Post("/submissions/{id}/retry", h.HandleRetry)
	r.Post("/transactions/{id}/submit", h.HandleSubmit)
}

// HandleList handles GET /operator/submissions.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := ledger.Filter{Limit: 50}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown status filter"))
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be 1-500"))
			return
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "offset must be non-negative"))
			return
		}
		filter.Offset = offset
	}

	submissions, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list submissions failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubmissions(submissions))
}

// HandleGet handles GET /operator/submissions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}

	submission, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSubmission(submission))
}

// HandleArtifact handles GET /operator/submissions/{id}/artifacts/{kind}. The
// payload is served decompressed exactly as it crossed the wire.
func (h *Handler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}
	kind, err := artifact.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown artifact kind"))
		return
	}

	payload, ref, err := h.service.Artifact(ctx, id, kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ref.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to write artifact response",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
}

// HandleForcePoll handles POST /operator/submissions/{id}/poll.
func (h *Handler) HandleForcePoll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}

	submission, err := h.service.ForcePoll(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "force poll failed",
			"request_id", middleware.GetRequestID(ctx),
			"submission_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "force poll executed",
		"request_id", middleware.GetRequestID(ctx),
		"submission_id", id.String(),
		"operator_id", middleware.GetOperatorID(ctx),
		"status", submission.Status.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(submission))
}

// retryRequest is the optional body of a retry call; the reason lands in the
// audit log next to the operator id.
type retryRequest struct {
	Reason string `json:"reason"`
}

// HandleRetry handles POST /operator/submissions/{id}/retry.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.submissionID(w, r)
	if !ok {
		return
	}

	var reason string
	if r.ContentLength != 0 {
		body, err := httputil.Decode[retryRequest](r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		reason = body.Reason
	}

	submission, err := h.service.Retry(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "retry rejected",
			"request_id", middleware.GetRequestID(ctx),
			"submission_id", id.String(),
			"operator_id", middleware.GetOperatorID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submission retried",
		"request_id", middleware.GetRequestID(ctx),
		"submission_id", id.String(),
		"operator_id", middleware.GetOperatorID(ctx),
		"reason", reason,
		"attempts", submission.Attempts,
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(submission))
}

// HandleSubmit handles POST /operator/transactions/{id}/submit. Idempotent:
// repeat calls for an in-flight or accepted transaction return the existing
// submission with 200 instead of creating another.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txnID, err := domain.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid transaction id"))
		return
	}

	submission, err := h.service.Submit(ctx, txnID)
	if err != nil {
		h.logger.ErrorContext(ctx, "submit failed",
			"request_id", middleware.GetRequestID(ctx),
			"transaction_id", txnID.String(),
			"error", err,
		)
		// Only the error envelope is returned. A needs_review row may still
		// exist (preflight escalation); the list and detail endpoints show it.
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "submit accepted",
		"request_id", middleware.GetRequestID(ctx),
		"transaction_id", txnID.String(),
		"submission_id", submission.ID.String(),
		"operator_id", middleware.GetOperatorID(ctx),
		"status", submission.Status.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSubmission(submission))
}

func (h *Handler) submissionID(w http.ResponseWriter, r *http.Request) (domain.SubmissionID, bool) {
	id, err := domain.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid submission id"))
		return domain.SubmissionID{}, false
	}
	return id, true
}
