package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"olympiad-engine/lifecycle"
	"olympiad-engine/models"
	"olympiad-engine/notify"
	"olympiad-engine/scoring"
)

// Publish moves a DRAFT competition to UPCOMING.
func (e *Engine) Publish(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerPublish)
}

// ForceStart opens an UPCOMING competition before its start time.
func (e *Engine) ForceStart(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerForceStart)
}

// Pause stops answer intake. Attempt windows keep running while paused.
func (e *Engine) Pause(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerPause)
}

func (e *Engine) Resume(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerResume)
}

// PublishResults exposes the leaderboard. It fails while any submission
// is still in progress.
func (e *Engine) PublishResults(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerPublishResults)
}

func (e *Engine) Archive(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerArchive)
}

// Cancel ends a competition without results. It does not wait for
// attempts in flight.
func (e *Engine) Cancel(ctx context.Context, id string) (models.Competition, error) {
	return e.transition(ctx, id, lifecycle.TriggerCancel)
}

func (e *Engine) transition(ctx context.Context, id string, t lifecycle.Trigger) (models.Competition, error) {
	ctx, span := e.tracer.Start(ctx, "engine.transition", trace.WithAttributes(
		attribute.String("competition_id", id),
		attribute.String("trigger", string(t)),
	))
	defer span.End()

	if err := e.syncClock(ctx, id); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.Competition{}, err
	}
	c, events, err := e.applyTransition(ctx, id, t)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return c, err
	}
	e.emit(ctx, events)
	return c, nil
}

// applyTransition validates and persists one transition under the
// competition's write lock. Leaving ONGOING for CHECKING finalizes every
// attempt still in progress in the same write.
func (e *Engine) applyTransition(ctx context.Context, id string, t lifecycle.Trigger) (models.Competition, []notify.Event, error) {
	defer e.writeLock(id)()

	c, err := e.loadCompetition(ctx, id)
	if err != nil {
		return models.Competition{}, nil, err
	}
	to, ok := lifecycle.Target(t)
	if ok && t.Admin() && c.Phase == to {
		return c, nil, nil
	}

	now := e.clock.Now()
	env := lifecycle.Env{Now: now, ArchiveAfter: e.archiveAfter}

	var subs []models.Submission
	if t == lifecycle.TriggerPublishResults || t == lifecycle.TriggerClockEnd {
		subs, err = e.store.ListSubmissions(ctx, id)
		if err != nil {
			return c, nil, storeError(err, "list submissions", competitionMeta(c))
		}
	}
	if t == lifecycle.TriggerPublishResults {
		for _, s := range subs {
			if s.Status == models.StatusInProgress {
				env.Pending++
			}
		}
	}
	if err := lifecycle.Check(c, t, env); err != nil {
		return c, nil, err
	}

	var finalized []models.Submission
	if t == lifecycle.TriggerClockEnd {
		for i, s := range subs {
			if s.Status == models.StatusInProgress {
				subs[i] = e.finalize(c, s, now)
				finalized = append(finalized, subs[i])
			}
		}
	}

	next := c
	next.Phase = to
	next.Version = c.Version + 1
	next.UpdatedAt = now
	if to == models.PhasePublished {
		at := now
		next.ResultsPublishedAt = &at
	}
	if err := e.store.ApplyTransition(ctx, next, c.Version, finalized); err != nil {
		return c, nil, storeError(err, "apply transition", competitionMeta(c))
	}
	if len(finalized) > 0 || to == models.PhaseCanceled {
		e.boards.invalidate(id)
	}

	entry := e.log.WithFields(logrus.Fields{
		"competition_id": id,
		"from":           c.Phase,
		"to":             to,
		"trigger":        t,
	})
	if len(finalized) > 0 {
		entry = entry.WithField("swept", len(finalized))
	}
	entry.Info("competition phase changed")

	events := []notify.Event{{
		Kind:          notify.KindPhaseChanged,
		CompetitionID: id,
		Subject:       c.Subject,
		From:          c.Phase,
		To:            to,
		Trigger:       string(t),
		At:            now,
	}}
	if to == models.PhasePublished {
		events = append(events, notify.Event{
			Kind:          notify.KindResultsPublished,
			CompetitionID: id,
			Subject:       c.Subject,
			To:            to,
			At:            now,
			Leaderboard:   scoring.Rank(c.QuestionCount, c.PassThreshold, subs),
		})
	}
	return next, events, nil
}

// syncClock applies every clock-driven transition that is due for the
// competition. It must not be called while holding the competition lock.
func (e *Engine) syncClock(ctx context.Context, id string) error {
	for range models.Phases {
		c, err := e.loadCompetition(ctx, id)
		if err != nil {
			return err
		}
		t, due := lifecycle.Due(c, e.clock.Now(), e.archiveAfter)
		if !due {
			return nil
		}
		_, events, err := e.applyTransition(ctx, id, t)
		if err != nil {
			// Another caller may have applied it first.
			if c2, err2 := e.loadCompetition(ctx, id); err2 == nil && c2.Phase != c.Phase {
				continue
			}
			return err
		}
		e.emit(ctx, events)
	}
	return nil
}

// Tick applies due clock transitions across all live competitions and
// finalizes attempts whose window and grace have elapsed.
func (e *Engine) Tick(ctx context.Context) error {
	live, err := e.store.ListCompetitions(ctx,
		models.PhaseUpcoming, models.PhaseOngoing, models.PhasePaused, models.PhasePublished)
	if err != nil {
		return storeError(err, "list competitions", nil)
	}

	var errs []error
	now := e.clock.Now()
	for _, c := range live {
		if _, due := lifecycle.Due(c, now, e.archiveAfter); due {
			if err := e.syncClock(ctx, c.ID); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := e.expireAttempts(ctx, c.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
