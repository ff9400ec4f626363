// Package store defines persistence for competitions, registrations and
// submissions. Writes of versioned records are compare-and-swap on Version.
package store

import (
	"context"
	"errors"

	"olympiad-engine/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when an expected version does not match.
	ErrConflict = errors.New("store: version conflict")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the persistence contract used by the engine.
type Store interface {
	CreateCompetition(ctx context.Context, c models.Competition) error
	GetCompetition(ctx context.Context, id string) (models.Competition, error)
	// ListCompetitions returns competitions in the given phases, or all of
	// them when no phase is given, ordered by start time.
	ListCompetitions(ctx context.Context, phases ...models.Phase) ([]models.Competition, error)
	// UpdateCompetition writes c if the stored version equals expectedVersion.
	// The stored version becomes c.Version.
	UpdateCompetition(ctx context.Context, c models.Competition, expectedVersion int64) error
	// DeleteCompetition removes a competition that has no registrations.
	DeleteCompetition(ctx context.Context, id string) error

	CreateRegistration(ctx context.Context, r models.Registration) error
	GetRegistration(ctx context.Context, competitionID, participantID string) (models.Registration, error)
	SetEligible(ctx context.Context, competitionID, participantID string, eligible bool) error
	ListRegistrations(ctx context.Context, competitionID string) ([]models.Registration, error)

	CreateSubmission(ctx context.Context, s models.Submission) error
	GetSubmission(ctx context.Context, id string) (models.Submission, error)
	GetSubmissionByParticipant(ctx context.Context, competitionID, participantID string) (models.Submission, error)
	UpdateSubmission(ctx context.Context, s models.Submission, expectedVersion int64) error
	ListSubmissions(ctx context.Context, competitionID string) ([]models.Submission, error)

	// ApplyTransition writes the competition and every submission in
	// finalized as one atomic unit. Nothing is written when any version
	// check fails.
	ApplyTransition(ctx context.Context, c models.Competition, expectedVersion int64, finalized []models.Submission) error
}
