package models

import (
	"time"

	"refiling/internal/artifact"
	"refiling/pkg/domain"
)

// Status is the submission lifecycle state. Transitions are one-directional
// except for the explicit, operator-initiated retry edge back into queued.
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusQueued      Status = "queued"
	StatusSubmitted   Status = "submitted"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

var validStatuses = map[Status]bool{
	StatusNotStarted:  true,
	StatusQueued:      true,
	StatusSubmitted:   true,
	StatusAccepted:    true,
	StatusRejected:    true,
	StatusNeedsReview: true,
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status ends the lifecycle. Terminal rows are
// permanent audit records; accepted is final, rejected and needs_review can
// only leave via an explicit retry.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusNeedsReview
}

// InFlight reports whether a submission occupies the per-transaction
// idempotency slot: new submit requests must return the existing row.
func (s Status) InFlight() bool {
	return s == StatusQueued || s == StatusSubmitted
}

// CanTransitionTo enumerates the legal edges of the state machine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusNotStarted:
		return next == StatusQueued
	case StatusQueued:
		return next == StatusSubmitted || next == StatusNeedsReview
	case StatusSubmitted:
		return next == StatusAccepted || next == StatusRejected || next == StatusNeedsReview
	case StatusRejected, StatusNeedsReview:
		// Operator-initiated retry only; guarded by the attempts ceiling.
		return next == StatusQueued
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Environment records which regulator endpoint a submission targeted.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Submission is the ledger entity: the single source of truth for a
// transaction's filing lifecycle. At most one non-terminal submission exists
// per transaction at any time.
type Submission struct {
	ID            domain.SubmissionID
	TransactionID domain.TransactionID
	Status        Status
	Environment   Environment

	// Set only on transition into accepted.
	ConfirmationID string
	// Set only on transition into rejected.
	RejectionCode    string
	RejectionMessage string
	// Set whenever the submission is escalated for human review.
	ReviewReason string

	Attempts int

	// Operational metadata.
	Transport     string
	Filename      string
	NextPollAt    *time.Time
	PollAttempts  int
	LastPolledAt  *time.Time
	SubmittedAt   *time.Time
	AckReceivedAt *time.Time

	// Artifact handles by kind; bytes live in the artifact store.
	Artifacts map[artifact.Kind]artifact.Ref

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArtifactRef returns the stored handle for a kind, if any.
func (s *Submission) ArtifactRef(kind artifact.Kind) (artifact.Ref, bool) {
	if s.Artifacts == nil {
		return artifact.Ref{}, false
	}
	ref, ok := s.Artifacts[kind]
	return ref, ok
}

// SetArtifactRef records an artifact handle. Returns false if the kind was
// already recorded with a different hash, which means another sweep got there
// first with different bytes and the caller must not overwrite it.
func (s *Submission) SetArtifactRef(kind artifact.Kind, ref artifact.Ref) bool {
	if s.Artifacts == nil {
		s.Artifacts = make(map[artifact.Kind]artifact.Ref)
	}
	if existing, ok := s.Artifacts[kind]; ok {
		return existing.Hash == ref.Hash
	}
	s.Artifacts[kind] = ref
	return true
}

// Clone returns a deep copy so callers can mutate candidates without
// touching the stored row.
func (s *Submission) Clone() *Submission {
	copied := *s
	if s.Artifacts != nil {
		copied.Artifacts = make(map[artifact.Kind]artifact.Ref, len(s.Artifacts))
		for k, v := range s.Artifacts {
			copied.Artifacts[k] = v
		}
	}
	copied.NextPollAt = cloneTime(s.NextPollAt)
	copied.LastPolledAt = cloneTime(s.LastPolledAt)
	copied.SubmittedAt = cloneTime(s.SubmittedAt)
	copied.AckReceivedAt = cloneTime(s.AckReceivedAt)
	return &copied
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
