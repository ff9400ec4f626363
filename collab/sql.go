package collab

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

// PaymentPaid is the payments.status value of a settled payment.
const PaymentPaid = "paid"

// SQLPayments reads the payments table.
type SQLPayments struct {
	db *sql.DB
}

// NewSQLPayments returns a Payments backed by db.
func NewSQLPayments(db *sql.DB) *SQLPayments {
	return &SQLPayments{db: db}
}

// HasPaid reports whether a settled payment exists for the pair.
func (p *SQLPayments) HasPaid(ctx context.Context, competitionID, participantID string) (bool, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE competition_id = ? AND participant_id = ? AND status = ?`,
		competitionID, participantID, PaymentPaid,
	).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "collab: check payment")
	}
	return n > 0, nil
}

// PaidParticipants returns every participant with a settled payment.
func (p *SQLPayments) PaidParticipants(ctx context.Context, competitionID string) (map[string]bool, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT DISTINCT participant_id FROM payments WHERE competition_id = ? AND status = ?`,
		competitionID, PaymentPaid,
	)
	if err != nil {
		return nil, errors.Wrap(err, "collab: list payments")
	}
	defer rows.Close()

	paid := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "collab: scan payment")
		}
		paid[id] = true
	}
	return paid, errors.Wrap(rows.Err(), "collab: list payments")
}

// RegionBatch is how many participant ids one region query binds. It stays
// well under the bind-parameter limits of SQLite and MySQL.
const RegionBatch = 1000

// SQLProfiles reads the participant_profiles table.
type SQLProfiles struct {
	db    *sql.DB
	batch int
}

// NewSQLProfiles returns a Profiles backed by db.
func NewSQLProfiles(db *sql.DB) *SQLProfiles {
	return &SQLProfiles{db: db, batch: RegionBatch}
}

// Regions looks up regions for the given participants, RegionBatch ids
// per query.
func (p *SQLProfiles) Regions(ctx context.Context, participantIDs []string) (map[string]string, error) {
	regions := make(map[string]string, len(participantIDs))
	batch := p.batch
	if batch <= 0 {
		batch = RegionBatch
	}
	for start := 0; start < len(participantIDs); start += batch {
		end := min(start+batch, len(participantIDs))
		if err := p.regionBatch(ctx, participantIDs[start:end], regions); err != nil {
			return nil, err
		}
	}
	return regions, nil
}

func (p *SQLProfiles) regionBatch(ctx context.Context, participantIDs []string, into map[string]string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(participantIDs)), ",")
	args := make([]any, len(participantIDs))
	for i, id := range participantIDs {
		args[i] = id
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT participant_id, region FROM participant_profiles WHERE participant_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return errors.Wrap(err, "collab: list regions")
	}
	defer rows.Close()

	for rows.Next() {
		var id, region string
		if err := rows.Scan(&id, &region); err != nil {
			return errors.Wrap(err, "collab: scan region")
		}
		into[id] = region
	}
	return errors.Wrap(rows.Err(), "collab: list regions")
}

// Free answers every payment check with true. It backs deployments that
// only run free competitions.
type Free struct{}

func (Free) HasPaid(context.Context, string, string) (bool, error) { return true, nil }

func (Free) PaidParticipants(context.Context, string) (map[string]bool, error) {
	return map[string]bool{}, nil
}

// NoProfiles knows no regions; every participant falls into the unknown group.
type NoProfiles struct{}

func (NoProfiles) Regions(context.Context, []string) (map[string]string, error) {
	return map[string]string{}, nil
}
