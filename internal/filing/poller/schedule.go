package poller

import (
	"fmt"
	"time"

	"refiling/internal/filing/models"
)

// Backoff ladder after upload: 15 min, 1 h, 3 h, 6 h, then every 12 h.
var backoffLadder = []time.Duration{
	15 * time.Minute,
	1 * time.Hour,
	3 * time.Hour,
	6 * time.Hour,
}

const steadyInterval = 12 * time.Hour

// Escalation windows. Timeouts here are business-level (hours/days), distinct
// from the transport's connection-level timeouts (seconds).
const (
	// AckWindow is the maximum wait for the first response artifact.
	AckWindow = 24 * time.Hour
	// ConfirmationWindow is the maximum wait for the second artifact after
	// the batch was accepted. Approximates 5 business days as wall-clock.
	ConfirmationWindow = 120 * time.Hour
)

// NextPollAt returns when to poll next given how many polls have already
// happened.
func NextPollAt(pollAttempts int, now time.Time) time.Time {
	if pollAttempts < len(backoffLadder) {
		return now.Add(backoffLadder[pollAttempts])
	}
	return now.Add(steadyInterval)
}

// EscalationReason reports whether a submission has exceeded an escalation
// window. A non-empty reason forces needs_review independent of poll count.
func EscalationReason(s *models.Submission, now time.Time) string {
	if s.Status != models.StatusSubmitted || s.SubmittedAt == nil {
		return ""
	}
	if s.AckReceivedAt == nil {
		if now.Sub(*s.SubmittedAt) > AckWindow {
			return fmt.Sprintf("no acknowledgement within %s of upload", AckWindow)
		}
		return ""
	}
	if now.Sub(*s.AckReceivedAt) > ConfirmationWindow {
		return fmt.Sprintf("no confirmation within %s of acceptance", ConfirmationWindow)
	}
	return ""
}
