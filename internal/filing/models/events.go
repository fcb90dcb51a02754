package models

import "time"

// Outbox topics published on submission lifecycle transitions. The
// notification collaborator drains the outbox; this subsystem only appends.
const (
	TopicSubmissionSubmitted   = "submission.submitted"
	TopicSubmissionAccepted    = "submission.accepted"
	TopicSubmissionRejected    = "submission.rejected"
	TopicSubmissionNeedsReview = "submission.needs_review"
)

// OutboxEvent is a transactional outbox entry appended in the same database
// transaction as the status change it announces.
type OutboxEvent struct {
	ID        int64
	Topic     string
	Payload   []byte
	CreatedAt time.Time
}
