package handler

import (
	"time"

	"refiling/internal/filing/models"
)

// SubmissionResponse is the operator-facing view of one submission.
type SubmissionResponse struct {
	ID               string                     `json:"id"`
	TransactionID    string                     `json:"transaction_id"`
	Status           string                     `json:"status"`
	Environment      string                     `json:"environment"`
	Attempts         int                        `json:"attempts"`
	Transport        string                     `json:"transport,omitempty"`
	Filename         string                     `json:"filename,omitempty"`
	ConfirmationID   string                     `json:"confirmation_id,omitempty"`
	RejectionCode    string                     `json:"rejection_code,omitempty"`
	RejectionMessage string                     `json:"rejection_message,omitempty"`
	ReviewReason     string                     `json:"review_reason,omitempty"`
	PollAttempts     int                        `json:"poll_attempts"`
	NextPollAt       *time.Time                 `json:"next_poll_at,omitempty"`
	LastPolledAt     *time.Time                 `json:"last_polled_at,omitempty"`
	SubmittedAt      *time.Time                 `json:"submitted_at,omitempty"`
	AckReceivedAt    *time.Time                 `json:"ack_received_at,omitempty"`
	Artifacts        map[string]ArtifactSummary `json:"artifacts,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// ArtifactSummary is the metadata handle of one stored artifact. The payload
// itself is fetched through the artifacts endpoint.
type ArtifactSummary struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// ListResponse wraps the list endpoint payload.
type ListResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Count       int                   `json:"count"`
}

// FromSubmission converts a domain submission to its HTTP representation.
func FromSubmission(s *models.Submission) *SubmissionResponse {
	resp := &SubmissionResponse{
		ID:               s.ID.String(),
		TransactionID:    s.TransactionID.String(),
		Status:           s.Status.String(),
		Environment:      string(s.Environment),
		Attempts:         s.Attempts,
		Transport:        s.Transport,
		Filename:         s.Filename,
		ConfirmationID:   s.ConfirmationID,
		RejectionCode:    s.RejectionCode,
		RejectionMessage: s.RejectionMessage,
		ReviewReason:     s.ReviewReason,
		PollAttempts:     s.PollAttempts,
		NextPollAt:       s.NextPollAt,
		LastPolledAt:     s.LastPolledAt,
		SubmittedAt:      s.SubmittedAt,
		AckReceivedAt:    s.AckReceivedAt,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if len(s.Artifacts) > 0 {
		resp.Artifacts = make(map[string]ArtifactSummary, len(s.Artifacts))
		for kind, ref := range s.Artifacts {
			resp.Artifacts[kind.String()] = ArtifactSummary{
				Hash:     ref.Hash,
				Filename: ref.Filename,
				Size:     ref.Size,
			}
		}
	}
	return resp
}

// FromSubmissions converts a list of submissions.
func FromSubmissions(submissions []*models.Submission) *ListResponse {
	out := make([]*SubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, FromSubmission(s))
	}
	return &ListResponse{Submissions: out, Count: len(out)}
}
