package models

import "time"

// SubmissionStatus is the state of a participant's attempt.
type SubmissionStatus string

const (
	StatusInProgress   SubmissionStatus = "IN_PROGRESS"
	StatusCompleted    SubmissionStatus = "COMPLETED"
	StatusDisqualified SubmissionStatus = "DISQUALIFIED"
)

// Terminal reports whether the attempt is closed for writes.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDisqualified
}

// Submission is one participant's timed attempt. Answers are keyed by
// 1-based question number.
type Submission struct {
	ID               string           `json:"id"`
	CompetitionID    string           `json:"competition_id"`
	ParticipantID    string           `json:"participant_id"`
	StartedAt        time.Time        `json:"started_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	Answers          map[int]string   `json:"answers,omitempty"`
	RawScore         int              `json:"raw_score"`
	TimeTaken        time.Duration    `json:"-"`
	Status           SubmissionStatus `json:"status"`
	DisqualifyReason string           `json:"disqualify_reason,omitempty"`
	Version          int64            `json:"version"`
}

// Deadline is the participant-local end of the attempt window, without grace.
func (s Submission) Deadline(limit time.Duration) time.Time {
	return s.StartedAt.Add(limit)
}

// Clone returns a copy that shares no mutable state with s.
func (s Submission) Clone() Submission {
	out := s
	if s.SubmittedAt != nil {
		at := *s.SubmittedAt
		out.SubmittedAt = &at
	}
	if s.Answers != nil {
		out.Answers = make(map[int]string, len(s.Answers))
		for q, a := range s.Answers {
			out.Answers[q] = a
		}
	}
	return out
}
