package models

import "time"

// Registration enrolls one participant in one competition.
type Registration struct {
	CompetitionID string    `json:"competition_id"`
	ParticipantID string    `json:"participant_id"`
	RegisteredAt  time.Time `json:"registered_at"`
	Eligible      bool      `json:"eligible"`
}
