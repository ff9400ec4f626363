package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"olympiad-engine/apperrors"
	"olympiad-engine/lifecycle"
	"olympiad-engine/models"
	"olympiad-engine/scoring"
	"olympiad-engine/store"
)

func requireParticipant(participantID string) error {
	if strings.TrimSpace(participantID) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "participant id is required")
	}
	return nil
}

func phaseClosed(c models.Competition, participantID, action string) error {
	return apperrors.WithMetadata(apperrors.CodePhaseClosed,
		fmt.Sprintf("cannot %s while competition is %s", action, c.Phase),
		participantMeta(c, participantID))
}

// Register enrolls a participant. Paid competitions consult the payment
// collaborator before any lock is taken; the answer becomes the
// registration's eligible flag.
func (e *Engine) Register(ctx context.Context, competitionID, participantID string) (models.Registration, error) {
	if err := requireParticipant(participantID); err != nil {
		return models.Registration{}, err
	}
	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Registration{}, err
	}
	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return models.Registration{}, err
	}
	eligible := c.Free()
	if !eligible {
		eligible, err = e.payments.HasPaid(ctx, competitionID, participantID)
		if err != nil {
			return models.Registration{}, apperrors.WrapWithMetadata(apperrors.CodeUnknown,
				"payment lookup failed", participantMeta(c, participantID), err)
		}
	}

	defer e.readLock(competitionID)()

	c, err = e.loadCompetition(ctx, competitionID)
	if err != nil {
		return models.Registration{}, err
	}
	if c.Phase != models.PhaseUpcoming && c.Phase != models.PhaseOngoing {
		return models.Registration{}, phaseClosed(c, participantID, "register")
	}

	reg := models.Registration{
		CompetitionID: competitionID,
		ParticipantID: participantID,
		RegisteredAt:  e.clock.Now(),
		Eligible:      eligible,
	}
	if err := e.store.CreateRegistration(ctx, reg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Registration{}, apperrors.WithMetadata(apperrors.CodeConflict,
				"participant is already registered", participantMeta(c, participantID))
		}
		return models.Registration{}, storeError(err, "create registration", participantMeta(c, participantID))
	}
	return reg, nil
}

// SetEligibility records an approval or a confirmed payment.
func (e *Engine) SetEligibility(ctx context.Context, competitionID, participantID string, eligible bool) (models.Registration, error) {
	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Registration{}, err
	}
	defer e.readLock(competitionID)()

	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return models.Registration{}, err
	}
	if c.Phase.Terminal() {
		return models.Registration{}, phaseClosed(c, participantID, "change eligibility")
	}
	if err := e.store.SetEligible(ctx, competitionID, participantID, eligible); err != nil {
		return models.Registration{}, storeError(err, "set eligibility", participantMeta(c, participantID))
	}
	reg, err := e.store.GetRegistration(ctx, competitionID, participantID)
	if err != nil {
		return models.Registration{}, storeError(err, "load registration", participantMeta(c, participantID))
	}
	return reg, nil
}

// StartAttempt opens the participant's timed window at the current time.
func (e *Engine) StartAttempt(ctx context.Context, competitionID, participantID string) (models.Submission, error) {
	if err := requireParticipant(participantID); err != nil {
		return models.Submission{}, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.start_attempt", trace.WithAttributes(
		attribute.String("competition_id", competitionID),
	))
	defer span.End()

	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Submission{}, err
	}
	unlock := e.lockParticipant(competitionID, participantID)
	defer unlock()

	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return models.Submission{}, err
	}
	meta := participantMeta(c, participantID)

	reg, err := e.store.GetRegistration(ctx, competitionID, participantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeNotEligible, "participant is not registered", meta)
	case err != nil:
		return models.Submission{}, storeError(err, "load registration", meta)
	case !reg.Eligible:
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeNotEligible, "registration is not eligible", meta)
	}

	_, err = e.store.GetSubmissionByParticipant(ctx, competitionID, participantID)
	switch {
	case err == nil:
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeNotEligible, "attempt already started", meta)
	case !errors.Is(err, store.ErrNotFound):
		return models.Submission{}, storeError(err, "load submission", meta)
	}

	if !e.acceptsWork(c, e.clock.Now()) {
		return models.Submission{}, phaseClosed(c, participantID, "start an attempt")
	}

	sub := models.Submission{
		ID:            e.newID(),
		CompetitionID: competitionID,
		ParticipantID: participantID,
		StartedAt:     e.clock.Now(),
		Answers:       map[int]string{},
		Status:        models.StatusInProgress,
		Version:       1,
	}
	if err := e.store.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.Submission{}, apperrors.WithMetadata(apperrors.CodeNotEligible, "attempt already started", meta)
		}
		return models.Submission{}, storeError(err, "create submission", meta)
	}
	return sub, nil
}

// RecordAnswer stores or overwrites one answer. Once the participant's
// window plus the grace period has passed, the attempt is finalized with
// what it already holds and the answer is rejected.
func (e *Engine) RecordAnswer(ctx context.Context, competitionID, participantID string, question int, answer string) (models.Submission, error) {
	if err := requireParticipant(participantID); err != nil {
		return models.Submission{}, err
	}
	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Submission{}, err
	}
	unlock := e.lockParticipant(competitionID, participantID)
	defer unlock()

	c, sub, err := e.loadAttempt(ctx, competitionID, participantID)
	if err != nil {
		return models.Submission{}, err
	}
	meta := participantMeta(c, participantID)
	meta[apperrors.KeySubmissionID] = sub.ID
	now := e.clock.Now()

	if c.Phase == models.PhasePaused {
		return models.Submission{}, phaseClosed(c, participantID, "record answers")
	}
	if sub.Status.Terminal() {
		meta[apperrors.KeyStatus] = string(sub.Status)
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeAttemptExpired, "time's up: attempt already submitted", meta)
	}
	if e.expired(c, sub, now) {
		if c.Phase == models.PhaseOngoing {
			if _, err := e.saveFinalized(ctx, c, sub, now); err != nil {
				return models.Submission{}, err
			}
		}
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeAttemptExpired, "time's up: attempt window has closed", meta)
	}
	if !e.acceptsWork(c, now) {
		return models.Submission{}, phaseClosed(c, participantID, "record answers")
	}
	if question < 1 || question > c.QuestionCount {
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeInvalidInput,
			fmt.Sprintf("question must be between 1 and %d", c.QuestionCount), meta)
	}

	next := sub.Clone()
	if next.Answers == nil {
		next.Answers = map[int]string{}
	}
	next.Answers[question] = answer
	next.Version = sub.Version + 1
	if err := e.store.UpdateSubmission(ctx, next, sub.Version); err != nil {
		return models.Submission{}, storeError(err, "record answer", meta)
	}
	return next, nil
}

// FinalizeSubmission submits the participant's attempt. Finalizing an
// attempt that is already terminal returns it unchanged.
func (e *Engine) FinalizeSubmission(ctx context.Context, competitionID, participantID string) (models.Submission, error) {
	if err := requireParticipant(participantID); err != nil {
		return models.Submission{}, err
	}
	ctx, span := e.tracer.Start(ctx, "engine.finalize_submission", trace.WithAttributes(
		attribute.String("competition_id", competitionID),
	))
	defer span.End()

	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Submission{}, err
	}
	unlock := e.lockParticipant(competitionID, participantID)
	defer unlock()

	c, sub, err := e.loadAttempt(ctx, competitionID, participantID)
	if err != nil {
		return models.Submission{}, err
	}
	if sub.Status.Terminal() {
		return sub, nil
	}
	switch c.Phase {
	case models.PhaseOngoing, models.PhasePaused, models.PhaseCanceled:
	default:
		return models.Submission{}, phaseClosed(c, participantID, "submit")
	}
	return e.saveFinalized(ctx, c, sub, e.clock.Now())
}

// Disqualify excludes a completed submission from ranking. There is no way
// back.
func (e *Engine) Disqualify(ctx context.Context, submissionID, reason string) (models.Submission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeInvalidReason,
			"a reason is required to disqualify", map[string]string{apperrors.KeySubmissionID: submissionID})
	}
	found, err := e.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return models.Submission{}, storeError(err, "load submission", map[string]string{
			apperrors.KeySubmissionID: submissionID,
		})
	}
	if err := e.syncClock(ctx, found.CompetitionID); err != nil {
		return models.Submission{}, err
	}
	unlock := e.lockParticipant(found.CompetitionID, found.ParticipantID)
	defer unlock()

	c, sub, err := e.loadAttempt(ctx, found.CompetitionID, found.ParticipantID)
	if err != nil {
		return models.Submission{}, err
	}
	meta := participantMeta(c, sub.ParticipantID)
	meta[apperrors.KeySubmissionID] = sub.ID
	meta[apperrors.KeyStatus] = string(sub.Status)

	switch c.Phase {
	case models.PhaseOngoing, models.PhasePaused, models.PhaseChecking, models.PhasePublished:
	default:
		return models.Submission{}, phaseClosed(c, sub.ParticipantID, "disqualify")
	}
	if sub.Status != models.StatusCompleted {
		return models.Submission{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
			fmt.Sprintf("only completed submissions can be disqualified, this one is %s", sub.Status), meta)
	}

	next := sub.Clone()
	next.Status = models.StatusDisqualified
	next.DisqualifyReason = reason
	next.Version = sub.Version + 1
	if err := e.store.UpdateSubmission(ctx, next, sub.Version); err != nil {
		return models.Submission{}, storeError(err, "disqualify", meta)
	}
	e.boards.invalidate(c.ID)
	e.log.WithFields(logrus.Fields{
		"competition_id": c.ID,
		"submission_id":  sub.ID,
		"participant_id": sub.ParticipantID,
		"reason":         reason,
	}).Info("submission disqualified")
	return next, nil
}

func (e *Engine) loadAttempt(ctx context.Context, competitionID, participantID string) (models.Competition, models.Submission, error) {
	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return models.Competition{}, models.Submission{}, err
	}
	sub, err := e.store.GetSubmissionByParticipant(ctx, competitionID, participantID)
	if err != nil {
		return c, models.Submission{}, storeError(err, "load attempt", participantMeta(c, participantID))
	}
	return c, sub, nil
}

// acceptsWork reports whether c takes attempts and answers at now. The
// stored phase can still read ONGOING after end_at when the closing
// transition has not been applied yet.
func (e *Engine) acceptsWork(c models.Competition, now time.Time) bool {
	if c.Phase != models.PhaseOngoing {
		return false
	}
	t, due := lifecycle.Due(c, now, e.archiveAfter)
	return !due || t != lifecycle.TriggerClockEnd
}

func (e *Engine) expired(c models.Competition, s models.Submission, now time.Time) bool {
	return now.After(s.Deadline(c.TimeLimit).Add(e.grace))
}

// finalize returns s as COMPLETED at at. The stamp never passes end_at
// or the attempt's deadline plus grace, so a late sweep or tick records
// only time the participant could actually have used.
func (e *Engine) finalize(c models.Competition, s models.Submission, at time.Time) models.Submission {
	out := s.Clone()
	if cutoff := s.Deadline(c.TimeLimit).Add(e.grace); at.After(cutoff) {
		at = cutoff
	}
	if at.After(c.EndAt) {
		at = c.EndAt
	}
	if at.Before(s.StartedAt) {
		at = s.StartedAt
	}
	out.SubmittedAt = &at
	out.TimeTaken = at.Sub(s.StartedAt)
	out.RawScore = scoring.RawScore(c.AnswerKey, s.Answers)
	out.Status = models.StatusCompleted
	out.Version = s.Version + 1
	return out
}

// saveFinalized must be called with the participant locked.
func (e *Engine) saveFinalized(ctx context.Context, c models.Competition, s models.Submission, now time.Time) (models.Submission, error) {
	done := e.finalize(c, s, now)
	if err := e.store.UpdateSubmission(ctx, done, s.Version); err != nil {
		meta := participantMeta(c, s.ParticipantID)
		meta[apperrors.KeySubmissionID] = s.ID
		return models.Submission{}, storeError(err, "finalize submission", meta)
	}
	e.boards.invalidate(c.ID)
	return done, nil
}

// expireAttempts finalizes in-progress attempts whose window and grace
// have passed.
func (e *Engine) expireAttempts(ctx context.Context, competitionID string) error {
	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return err
	}
	if c.Phase != models.PhaseOngoing && c.Phase != models.PhasePaused {
		return nil
	}
	subs, err := e.store.ListSubmissions(ctx, competitionID)
	if err != nil {
		return storeError(err, "list submissions", competitionMeta(c))
	}

	var errs []error
	expired := 0
	for _, s := range subs {
		if s.Status != models.StatusInProgress || !e.expired(c, s, e.clock.Now()) {
			continue
		}
		ok, err := e.expireAttempt(ctx, competitionID, s.ParticipantID)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		e.log.WithFields(logrus.Fields{
			"competition_id": competitionID,
			"expired":        expired,
		}).Info("expired attempts finalized")
	}
	return errors.Join(errs...)
}

func (e *Engine) expireAttempt(ctx context.Context, competitionID, participantID string) (bool, error) {
	unlock := e.lockParticipant(competitionID, participantID)
	defer unlock()

	c, sub, err := e.loadAttempt(ctx, competitionID, participantID)
	if err != nil {
		return false, err
	}
	now := e.clock.Now()
	if sub.Status != models.StatusInProgress || !e.expired(c, sub, now) {
		return false, nil
	}
	if c.Phase != models.PhaseOngoing && c.Phase != models.PhasePaused {
		return false, nil
	}
	if _, err := e.saveFinalized(ctx, c, sub, now); err != nil {
		return false, err
	}
	return true, nil
}
