package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"olympiad-engine/apperrors"
	"olympiad-engine/lifecycle"
	"olympiad-engine/models"
	"olympiad-engine/store"
)

// CreateCompetition stores a new competition in DRAFT. ID is generated
// when empty.
func (e *Engine) CreateCompetition(ctx context.Context, c models.Competition) (models.Competition, error) {
	if err := lifecycle.ValidateCompetition(c); err != nil {
		return models.Competition{}, err
	}
	now := e.clock.Now()
	if c.ID == "" {
		c.ID = e.newID()
	}
	c.Phase = models.PhaseDraft
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	c.ResultsPublishedAt = nil
	c.ArchivedAt = nil

	if err := e.store.CreateCompetition(ctx, c); err != nil {
		return models.Competition{}, storeError(err, "create competition", map[string]string{
			apperrors.KeyCompetitionID: c.ID,
		})
	}
	e.log.WithFields(logrus.Fields{
		"competition_id": c.ID,
		"subject":        c.Subject,
	}).Info("competition created")
	return c, nil
}

// GetCompetition returns the competition after applying due clock transitions.
func (e *Engine) GetCompetition(ctx context.Context, id string) (models.Competition, error) {
	if err := e.syncClock(ctx, id); err != nil {
		return models.Competition{}, err
	}
	return e.loadCompetition(ctx, id)
}

// ListCompetitions returns the competitions in the given phases, or all
// of them, leaving out archived records.
func (e *Engine) ListCompetitions(ctx context.Context, phases ...models.Phase) ([]models.Competition, error) {
	for _, p := range phases {
		if !p.Valid() {
			return nil, apperrors.New(apperrors.CodeInvalidInput, "unknown phase "+string(p))
		}
	}
	all, err := e.store.ListCompetitions(ctx)
	if err != nil {
		return nil, storeError(err, "list competitions", nil)
	}

	want := make(map[models.Phase]bool, len(phases))
	for _, p := range phases {
		want[p] = true
	}
	now := e.clock.Now()
	out := make([]models.Competition, 0, len(all))
	for _, c := range all {
		if _, due := lifecycle.Due(c, now, e.archiveAfter); due {
			if c, err = e.GetCompetition(ctx, c.ID); err != nil {
				return nil, err
			}
		}
		if c.ArchivedAt != nil {
			continue
		}
		if len(want) > 0 && !want[c.Phase] {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// UpdateSchedule edits the time window of a DRAFT or UPCOMING competition.
// An UPCOMING competition must keep a start time in the future.
func (e *Engine) UpdateSchedule(ctx context.Context, id string, s models.Schedule) (models.Competition, error) {
	if err := lifecycle.ValidateSchedule(s); err != nil {
		return models.Competition{}, err
	}
	if err := e.syncClock(ctx, id); err != nil {
		return models.Competition{}, err
	}
	defer e.writeLock(id)()

	c, err := e.loadCompetition(ctx, id)
	if err != nil {
		return models.Competition{}, err
	}
	now := e.clock.Now()
	switch c.Phase {
	case models.PhaseDraft:
	case models.PhaseUpcoming:
		if !s.StartAt.After(now) {
			return models.Competition{}, apperrors.WithMetadata(apperrors.CodeInvalidInput,
				"start_at must be in the future", competitionMeta(c))
		}
	default:
		return models.Competition{}, phaseClosed(c, "", "change the schedule")
	}

	next := c
	next.StartAt = s.StartAt
	next.EndAt = s.EndAt
	next.TimeLimit = s.TimeLimit
	next.Version = c.Version + 1
	next.UpdatedAt = now
	if err := e.store.UpdateCompetition(ctx, next, c.Version); err != nil {
		return models.Competition{}, storeError(err, "update schedule", competitionMeta(c))
	}
	return next, nil
}

// RemoveCompetition deletes a competition nobody registered for. Anything
// with registrations is kept for audit and only marked archived. Only
// DRAFT, CANCELED and COMPLETED competitions can be removed. It reports
// whether the record was deleted.
func (e *Engine) RemoveCompetition(ctx context.Context, id string) (models.Competition, bool, error) {
	if err := e.syncClock(ctx, id); err != nil {
		return models.Competition{}, false, err
	}
	defer e.writeLock(id)()

	c, err := e.loadCompetition(ctx, id)
	if err != nil {
		return models.Competition{}, false, err
	}
	switch c.Phase {
	case models.PhaseDraft, models.PhaseCanceled, models.PhaseCompleted:
	default:
		return models.Competition{}, false, phaseClosed(c, "", "remove the competition")
	}

	regs, err := e.store.ListRegistrations(ctx, id)
	if err != nil {
		return models.Competition{}, false, storeError(err, "list registrations", competitionMeta(c))
	}
	if len(regs) == 0 {
		err := e.store.DeleteCompetition(ctx, id)
		if err == nil {
			e.boards.invalidate(id)
			e.log.WithField("competition_id", id).Info("competition deleted")
			return c, true, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return models.Competition{}, false, storeError(err, "delete competition", competitionMeta(c))
		}
	}

	if c.ArchivedAt != nil {
		return c, false, nil
	}
	now := e.clock.Now()
	next := c
	next.ArchivedAt = &now
	next.Version = c.Version + 1
	next.UpdatedAt = now
	if err := e.store.UpdateCompetition(ctx, next, c.Version); err != nil {
		return models.Competition{}, false, storeError(err, "archive competition", competitionMeta(c))
	}
	e.log.WithField("competition_id", id).Info("competition archived")
	return next, false, nil
}
