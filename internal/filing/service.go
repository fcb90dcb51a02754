// Package filing orchestrates the submission lifecycle: build and preflight
// the batch document, upload it over the transport, and reconcile the two
// delayed response artifacts into a definitive outcome.
package filing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"refiling/internal/artifact"
	"refiling/internal/filing/document"
	"refiling/internal/filing/ledger"
	"refiling/internal/filing/metrics"
	"refiling/internal/filing/models"
	"refiling/internal/filing/poller"
	"refiling/internal/filing/response"
	"refiling/internal/filing/transport"
	"refiling/pkg/domain"
	dErrors "refiling/pkg/domain-errors"
)

// TransactionSource is the external collaborator owning transaction and party
// data. The filing subsystem reads through it and copies terminal outcome
// fields back; it never writes anything else.
type TransactionSource interface {
	GetTransaction(ctx context.Context, id domain.TransactionID) (*models.TransactionRecord, error)
	RecordOutcome(ctx context.Context, id domain.TransactionID, confirmationID string, filedAt time.Time) error
}

// Service owns the submit path and the poll path. The submit path returns
// immediately after upload; response reconciliation happens in poll sweeps.
type Service struct {
	ledger       ledger.Store
	artifacts    artifact.Store
	transport    transport.Client
	builder      *document.Builder
	transactions TransactionSource

	environment  models.Environment
	orgName      string
	retryCeiling int

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRetryCeiling(ceiling int) Option {
	return func(s *Service) { s.retryCeiling = ceiling }
}

func New(
	ledgerStore ledger.Store,
	artifactStore artifact.Store,
	client transport.Client,
	builder *document.Builder,
	transactions TransactionSource,
	environment models.Environment,
	orgName string,
	opts ...Option,
) (*Service, error) {
	if ledgerStore == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if artifactStore == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("transport client is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("document builder is required")
	}
	if transactions == nil {
		return nil, fmt.Errorf("transaction source is required")
	}

	svc := &Service{
		ledger:       ledgerStore,
		artifacts:    artifactStore,
		transport:    client,
		builder:      builder,
		transactions: transactions,
		environment:  environment,
		orgName:      orgName,
		retryCeiling: 5,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit files a transaction. The idempotency guard is the single most
// important property here: an in-flight or accepted submission is returned
// unchanged — no rebuild, no re-upload.
func (s *Service) Submit(ctx context.Context, txnID domain.TransactionID) (*models.Submission, error) {
	existing, err := s.ledger.GetByTransaction(ctx, txnID)
	if err != nil && dErrors.CodeOf(err) != dErrors.CodeNotFound {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == models.StatusQueued:
			// A queued row means a previous dispatch never made it onto the
			// wire (e.g. transport failure). Resume it rather than duplicate.
			return s.dispatch(ctx, existing)
		case existing.Status == models.StatusSubmitted:
			return existing, nil
		case existing.Status == models.StatusAccepted:
			return existing, nil
		default:
			// rejected or needs_review: an operator must retry explicitly.
			return existing, dErrors.New(dErrors.CodeConflict,
				"submission is "+existing.Status.String()+"; explicit retry required")
		}
	}

	now := s.now()
	submission := &models.Submission{
		ID:            domain.NewSubmissionID(),
		TransactionID: txnID,
		Status:        models.StatusQueued,
		Environment:   s.environment,
		Attempts:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.ledger.Create(ctx, submission); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeConflict {
			// Lost a create race; the winner's row is the answer.
			return s.ledger.GetByTransaction(ctx, txnID)
		}
		return nil, err
	}
	s.observe(models.StatusQueued)

	return s.dispatch(ctx, submission)
}

// Retry re-enters queued from rejected or needs_review. Human-initiated only,
// bounded by the retry ceiling, and idempotency-guarded like any transition.
func (s *Service) Retry(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	submission, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := submission.Status
	if from != models.StatusRejected && from != models.StatusNeedsReview {
		return submission, dErrors.New(dErrors.CodeConflict,
			"only rejected or needs_review submissions can be retried")
	}
	if submission.Attempts >= s.retryCeiling {
		return submission, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("retry ceiling reached (%d attempts)", submission.Attempts))
	}

	ok, err := s.transition(ctx, submission, from, models.StatusQueued, func(c *models.Submission) {
		c.Attempts++
		c.ConfirmationID = ""
		c.RejectionCode = ""
		c.RejectionMessage = ""
		c.ReviewReason = ""
		c.Filename = ""
		c.Artifacts = nil
		c.SubmittedAt = nil
		c.AckReceivedAt = nil
		c.NextPollAt = nil
		c.PollAttempts = 0
		c.LastPolledAt = nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent retry won; return the current row untouched.
		return s.ledger.Get(ctx, id)
	}

	return s.dispatch(ctx, submission)
}

// dispatch runs build → preflight → persist artifact → upload for a queued
// submission. A preflight failure blocks transmission entirely and escalates;
// a transport failure leaves the row queued for a later explicit attempt.
func (s *Service) dispatch(ctx context.Context, submission *models.Submission) (*models.Submission, error) {
	txn, err := s.transactions.GetTransaction(ctx, submission.TransactionID)
	if err != nil {
		return submission, fmt.Errorf("load transaction: %w", err)
	}

	payload, summary, err := s.builder.Build(txn)
	if err != nil {
		var preflight *document.PreflightError
		if errors.As(err, &preflight) {
			if s.metrics != nil {
				s.metrics.PreflightFailures.Inc()
			}
			_, terr := s.transition(ctx, submission, models.StatusQueued, models.StatusNeedsReview,
				func(c *models.Submission) {
					c.ReviewReason = preflight.Error()
				},
				s.event(models.TopicSubmissionNeedsReview, submission),
			)
			if terr != nil {
				return submission, terr
			}
			return submission, err
		}
		return submission, err
	}
	for _, warning := range summary.Warnings {
		s.logger.WarnContext(ctx, "document build warning",
			"submission_id", submission.ID.String(),
			"warning", warning,
		)
	}

	now := s.now()
	filename := transport.BuildFilename(now, s.orgName, submission.ID.Suffix())

	sealed, err := artifact.Seal(artifact.KindDocument, filename, payload, now)
	if err != nil {
		return submission, fmt.Errorf("seal document artifact: %w", err)
	}
	if err := s.artifacts.Put(ctx, sealed); err != nil {
		return submission, fmt.Errorf("store document artifact: %w", err)
	}

	if err := s.transport.Upload(ctx, filename, payload); err != nil {
		if s.metrics != nil {
			s.metrics.TransportErrors.Inc()
		}
		s.logger.ErrorContext(ctx, "upload failed, submission stays queued",
			"submission_id", submission.ID.String(),
			"filename", filename,
			"error", err,
		)
		// Record the artifact handle but do not advance the status.
		_, uerr := s.transition(ctx, submission, models.StatusQueued, models.StatusQueued,
			func(c *models.Submission) {
				c.SetArtifactRef(artifact.KindDocument, sealed.Ref())
			})
		if uerr != nil {
			return submission, uerr
		}
		return submission, err
	}

	uploadedAt := s.now()
	nextPoll := poller.NextPollAt(0, uploadedAt)
	ok, err := s.transition(ctx, submission, models.StatusQueued, models.StatusSubmitted,
		func(c *models.Submission) {
			c.Transport = s.transport.Name()
			c.Filename = filename
			c.SubmittedAt = &uploadedAt
			c.NextPollAt = &nextPoll
			c.SetArtifactRef(artifact.KindDocument, sealed.Ref())
		},
		s.event(models.TopicSubmissionSubmitted, submission),
	)
	if err != nil {
		return submission, err
	}
	if !ok {
		s.logger.WarnContext(ctx, "lost queued->submitted transition after upload",
			"submission_id", submission.ID.String(),
		)
		return s.ledger.Get(ctx, submission.ID)
	}

	s.logger.InfoContext(ctx, "batch uploaded",
		"submission_id", submission.ID.String(),
		"filename", filename,
		"activities", summary.ActivityCount,
	)
	return submission, nil
}

// DuePolls returns submissions whose poll schedule has elapsed.
func (s *Service) DuePolls(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	return s.ledger.DueForPoll(ctx, now, limit)
}

// Poll asks the drop box for either response artifact and reconciles what it
// finds into the state machine. Safe to call concurrently for the same
// submission: every transition is guarded by the stored status, and artifact
// handles are deduplicated before processing.
func (s *Service) Poll(ctx context.Context, submission *models.Submission) error {
	if submission.Status != models.StatusSubmitted || submission.Filename == "" {
		return nil
	}
	if s.metrics != nil {
		s.metrics.PollsTotal.Inc()
	}
	now := s.now()

	names, err := s.transport.List(ctx, submission.Filename)
	if err != nil {
		// The escalation clock keeps running while the drop box is
		// unreachable: a persistent outage must still surface the submission
		// to an operator once the window has passed.
		if reason := poller.EscalationReason(submission, now); reason != "" {
			return s.escalate(ctx, submission, reason)
		}
		// Connection trouble still advances the schedule so a flapping drop
		// box does not get hammered every sweep.
		if serr := s.advanceSchedule(ctx, submission, now); serr != nil {
			return serr
		}
		return err
	}

	ackName, confirmationName := matchResponses(names)

	if submission.AckReceivedAt == nil {
		if ackName != "" {
			return s.processAck(ctx, submission, ackName, now)
		}
	} else if confirmationName != "" {
		return s.processConfirmation(ctx, submission, confirmationName, now)
	}

	if reason := poller.EscalationReason(submission, now); reason != "" {
		return s.escalate(ctx, submission, reason)
	}

	return s.advanceSchedule(ctx, submission, now)
}

// escalate parks an overdue submission in needs_review with the reason the
// schedule produced.
func (s *Service) escalate(ctx context.Context, submission *models.Submission, reason string) error {
	_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusNeedsReview,
		func(c *models.Submission) {
			c.ReviewReason = reason
		},
		s.event(models.TopicSubmissionNeedsReview, submission),
	)
	return err
}

// ForcePoll runs an out-of-schedule poll for the operator interface.
func (s *Service) ForcePoll(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	submission, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Poll(ctx, submission); err != nil {
		return nil, err
	}
	return s.ledger.Get(ctx, id)
}

func (s *Service) processAck(ctx context.Context, submission *models.Submission, filename string, now time.Time) error {
	raw, err := s.transport.Download(ctx, filename)
	if err != nil {
		return err
	}
	sealed, err := artifact.Seal(artifact.KindAck, filename, raw, now)
	if err != nil {
		return fmt.Errorf("seal ack artifact: %w", err)
	}
	if ref, ok := submission.ArtifactRef(artifact.KindAck); ok && ref.Hash != sealed.Hash {
		// Another sweep already recorded a different ack; leave it alone.
		s.logger.WarnContext(ctx, "ack artifact already recorded with different hash",
			"submission_id", submission.ID.String())
		return nil
	}
	if err := s.artifacts.Put(ctx, sealed); err != nil {
		return fmt.Errorf("store ack artifact: %w", err)
	}

	result := response.ParseAck(raw)
	switch result.Status {
	case response.AckRejected:
		code, message := firstItem(result.Errors)
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusRejected,
			func(c *models.Submission) {
				c.RejectionCode = code
				c.RejectionMessage = message
				c.AckReceivedAt = &now
				c.SetArtifactRef(artifact.KindAck, sealed.Ref())
			},
			s.event(models.TopicSubmissionRejected, submission),
		)
		return err

	case response.AckAcceptedWithWarnings:
		// Never silently accepted: warnings require human review.
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusNeedsReview,
			func(c *models.Submission) {
				c.ReviewReason = "batch accepted with warnings: " + summarizeItems(result.Errors)
				c.AckReceivedAt = &now
				c.SetArtifactRef(artifact.KindAck, sealed.Ref())
			},
			s.event(models.TopicSubmissionNeedsReview, submission),
		)
		return err

	case response.AckAccepted:
		// Stay submitted until the confirmation artifact arrives.
		nextPoll := poller.NextPollAt(submission.PollAttempts+1, now)
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusSubmitted,
			func(c *models.Submission) {
				c.AckReceivedAt = &now
				c.PollAttempts++
				c.LastPolledAt = &now
				c.NextPollAt = &nextPoll
				c.SetArtifactRef(artifact.KindAck, sealed.Ref())
			})
		return err

	default:
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusNeedsReview,
			func(c *models.Submission) {
				c.ReviewReason = "unparseable acknowledgement artifact: " + result.Raw
				c.AckReceivedAt = &now
				c.SetArtifactRef(artifact.KindAck, sealed.Ref())
			},
			s.event(models.TopicSubmissionNeedsReview, submission),
		)
		return err
	}
}

func (s *Service) processConfirmation(ctx context.Context, submission *models.Submission, filename string, now time.Time) error {
	raw, err := s.transport.Download(ctx, filename)
	if err != nil {
		return err
	}
	sealed, err := artifact.Seal(artifact.KindConfirmation, filename, raw, now)
	if err != nil {
		return fmt.Errorf("seal confirmation artifact: %w", err)
	}
	if ref, ok := submission.ArtifactRef(artifact.KindConfirmation); ok && ref.Hash != sealed.Hash {
		s.logger.WarnContext(ctx, "confirmation artifact already recorded with different hash",
			"submission_id", submission.ID.String())
		return nil
	}
	if err := s.artifacts.Put(ctx, sealed); err != nil {
		return fmt.Errorf("store confirmation artifact: %w", err)
	}

	result := response.ParseConfirmation(raw)
	if !result.Parsed {
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusNeedsReview,
			func(c *models.Submission) {
				c.ReviewReason = "unparseable confirmation artifact: " + result.Raw
				c.SetArtifactRef(artifact.KindConfirmation, sealed.Ref())
			},
			s.event(models.TopicSubmissionNeedsReview, submission),
		)
		return err
	}
	if len(result.Confirmations) == 0 {
		_, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusNeedsReview,
			func(c *models.Submission) {
				c.ReviewReason = "confirmation artifact carries no confirmation id: " + summarizeItems(result.Errors)
				c.SetArtifactRef(artifact.KindConfirmation, sealed.Ref())
			},
			s.event(models.TopicSubmissionNeedsReview, submission),
		)
		return err
	}

	confirmationID := result.Confirmations[0].ConfirmationID
	ok, err := s.transition(ctx, submission, models.StatusSubmitted, models.StatusAccepted,
		func(c *models.Submission) {
			c.ConfirmationID = confirmationID
			c.SetArtifactRef(artifact.KindConfirmation, sealed.Ref())
		},
		s.event(models.TopicSubmissionAccepted, submission),
	)
	if err != nil || !ok {
		return err
	}

	// Copy the terminal outcome back to the owning collaborator. Failure here
	// is logged, not fatal: the ledger row is the source of truth.
	if err := s.transactions.RecordOutcome(ctx, submission.TransactionID, confirmationID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to record outcome on transaction",
			"submission_id", submission.ID.String(),
			"transaction_id", submission.TransactionID.String(),
			"error", err,
		)
	}
	return nil
}

// advanceSchedule bumps the poll bookkeeping without changing status.
func (s *Service) advanceSchedule(ctx context.Context, submission *models.Submission, now time.Time) error {
	nextPoll := poller.NextPollAt(submission.PollAttempts+1, now)
	_, err := s.transition(ctx, submission, submission.Status, submission.Status,
		func(c *models.Submission) {
			c.PollAttempts++
			c.LastPolledAt = &now
			c.NextPollAt = &nextPoll
		})
	return err
}

// Get returns one submission.
func (s *Service) Get(ctx context.Context, id domain.SubmissionID) (*models.Submission, error) {
	return s.ledger.Get(ctx, id)
}

// List returns submissions for the operator interface.
func (s *Service) List(ctx context.Context, filter ledger.Filter) ([]*models.Submission, error) {
	return s.ledger.List(ctx, filter)
}

// Artifact returns the decompressed payload of a stored artifact.
func (s *Service) Artifact(ctx context.Context, id domain.SubmissionID, kind artifact.Kind) ([]byte, artifact.Ref, error) {
	submission, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, artifact.Ref{}, err
	}
	ref, ok := submission.ArtifactRef(kind)
	if !ok {
		return nil, artifact.Ref{}, dErrors.New(dErrors.CodeNotFound,
			"submission has no "+kind.String()+" artifact")
	}
	stored, err := s.artifacts.Get(ctx, ref.Hash)
	if err != nil {
		return nil, artifact.Ref{}, err
	}
	payload, err := stored.Payload()
	if err != nil {
		return nil, artifact.Ref{}, err
	}
	return payload, ref, nil
}

// transition applies a guarded read-modify-write. On success the caller's
// submission is replaced with the persisted candidate. A false return means a
// concurrent writer won and nothing was changed.
func (s *Service) transition(ctx context.Context, submission *models.Submission, from, to models.Status, mutate func(*models.Submission), events ...models.OutboxEvent) (bool, error) {
	if from != to && !from.CanTransitionTo(to) {
		return false, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("illegal transition %s -> %s", from, to))
	}

	candidate := submission.Clone()
	candidate.Status = to
	candidate.UpdatedAt = s.now()
	if mutate != nil {
		mutate(candidate)
	}

	// Rebuild event payloads against the candidate so they carry the
	// post-transition state.
	for i := range events {
		events[i] = s.event(events[i].Topic, candidate)
	}

	ok, err := s.ledger.Update(ctx, candidate, from, events...)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	*submission = *candidate
	if from != to {
		s.observe(to)
		s.logger.InfoContext(ctx, "submission transitioned",
			"submission_id", submission.ID.String(),
			"from", from.String(),
			"to", to.String(),
		)
	}
	return true, nil
}

func (s *Service) observe(status models.Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(status.String())
	}
}

func (s *Service) event(topic string, submission *models.Submission) models.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{
		"submission_id":   submission.ID.String(),
		"transaction_id":  submission.TransactionID.String(),
		"status":          submission.Status.String(),
		"confirmation_id": submission.ConfirmationID,
		"rejection_code":  submission.RejectionCode,
		"review_reason":   submission.ReviewReason,
	})
	return models.OutboxEvent{Topic: topic, Payload: payload, CreatedAt: s.now()}
}

// matchResponses splits listed filenames into the ack and confirmation
// artifacts by suffix.
func matchResponses(names []string) (ack, confirmation string) {
	for _, name := range names {
		switch {
		case hasSuffix(name, transport.AckSuffix):
			ack = name
		case hasSuffix(name, transport.ConfirmationSuffix):
			confirmation = name
		}
	}
	return ack, confirmation
}

func hasSuffix(name, suffix string) bool {
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}

func firstItem(items []response.Item) (code, message string) {
	if len(items) == 0 {
		return "", ""
	}
	return items[0].Code, items[0].Message
}

func summarizeItems(items []response.Item) string {
	if len(items) == 0 {
		return "no detail provided"
	}
	summary := items[0].Code + " " + items[0].Message
	if len(items) > 1 {
		summary += fmt.Sprintf(" (+%d more)", len(items)-1)
	}
	return summary
}
