// Package collab holds the collaborators the engine reads from but does not
// own: payments and participant profiles.
package collab

//go:generate mockgen -destination=mock_collab/mock_collab.go -package=mock_collab olympiad-engine/collab Payments,Profiles

import "context"

// Payments reports completed payments. The engine never initiates a charge.
type Payments interface {
	HasPaid(ctx context.Context, competitionID, participantID string) (bool, error)
	// PaidParticipants returns the set of participants with a completed
	// payment for the competition.
	PaidParticipants(ctx context.Context, competitionID string) (map[string]bool, error)
}

// Profiles supplies participant regions for the stats breakdown.
type Profiles interface {
	// Regions maps each known participant id to its region. Unknown ids are
	// left out.
	Regions(ctx context.Context, participantIDs []string) (map[string]string, error)
}
