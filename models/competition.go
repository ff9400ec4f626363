package models

import "time"

// Competition is one timed olympiad round.
type Competition struct {
	ID                 string        `json:"id"`
	Subject            string        `json:"subject"`
	StartAt            time.Time     `json:"start_at"`
	EndAt              time.Time     `json:"end_at"`
	TimeLimit          time.Duration `json:"-"`
	Price              int64         `json:"price"`
	QuestionCount      int           `json:"question_count"`
	PassThreshold      int           `json:"pass_threshold"`
	AnswerKey          []string      `json:"-"`
	Phase              Phase         `json:"phase"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ResultsPublishedAt *time.Time    `json:"results_published_at,omitempty"`
	ArchivedAt         *time.Time    `json:"archived_at,omitempty"`
}

// Schedule is the editable time window of a competition.
type Schedule struct {
	StartAt   time.Time
	EndAt     time.Time
	TimeLimit time.Duration
}

// Schedule returns the competition's current schedule.
func (c Competition) Schedule() Schedule {
	return Schedule{StartAt: c.StartAt, EndAt: c.EndAt, TimeLimit: c.TimeLimit}
}

// Free reports whether registration needs no payment.
func (c Competition) Free() bool {
	return c.Price == 0
}
