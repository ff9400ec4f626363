// Package lifecycle is the transition table of the competition phase
// machine and the preconditions guarding each transition. It decides; the
// engine applies.
package lifecycle

import (
	"fmt"
	"strconv"
	"time"

	"olympiad-engine/apperrors"
	"olympiad-engine/models"
)

// Trigger is what asks for a transition.
type Trigger string

const (
	TriggerPublish        Trigger = "publish"
	TriggerClockStart     Trigger = "clock_start"
	TriggerForceStart     Trigger = "force_start"
	TriggerPause          Trigger = "pause"
	TriggerResume         Trigger = "resume"
	TriggerClockEnd       Trigger = "clock_end"
	TriggerPublishResults Trigger = "publish_results"
	TriggerArchive        Trigger = "archive"
	TriggerHousekeeping   Trigger = "housekeeping"
	TriggerCancel         Trigger = "cancel"
)

// Admin reports whether the trigger is an administrator action.
func (t Trigger) Admin() bool {
	switch t {
	case TriggerClockStart, TriggerClockEnd, TriggerHousekeeping:
		return false
	default:
		return true
	}
}

type rule struct {
	from    models.Phase
	to      models.Phase
	trigger Trigger
}

var rules = []rule{
	{models.PhaseDraft, models.PhaseUpcoming, TriggerPublish},
	{models.PhaseUpcoming, models.PhaseOngoing, TriggerClockStart},
	{models.PhaseUpcoming, models.PhaseOngoing, TriggerForceStart},
	{models.PhaseOngoing, models.PhasePaused, TriggerPause},
	{models.PhasePaused, models.PhaseOngoing, TriggerResume},
	{models.PhaseOngoing, models.PhaseChecking, TriggerClockEnd},
	{models.PhaseChecking, models.PhasePublished, TriggerPublishResults},
	{models.PhasePublished, models.PhaseCompleted, TriggerArchive},
	{models.PhasePublished, models.PhaseCompleted, TriggerHousekeeping},
	{models.PhaseDraft, models.PhaseCanceled, TriggerCancel},
	{models.PhaseUpcoming, models.PhaseCanceled, TriggerCancel},
	{models.PhaseOngoing, models.PhaseCanceled, TriggerCancel},
	{models.PhasePaused, models.PhaseCanceled, TriggerCancel},
	{models.PhaseChecking, models.PhaseCanceled, TriggerCancel},
}

// Target returns the phase a trigger moves a competition to.
func Target(t Trigger) (models.Phase, bool) {
	for _, r := range rules {
		if r.trigger == t {
			return r.to, true
		}
	}
	return "", false
}

// Allowed reports whether from → to appears in the transition table.
func Allowed(from, to models.Phase) bool {
	for _, r := range rules {
		if r.from == from && r.to == to {
			return true
		}
	}
	return false
}

func allowedBy(from models.Phase, t Trigger) bool {
	for _, r := range rules {
		if r.from == from && r.trigger == t {
			return true
		}
	}
	return false
}

// Env is the state outside the record that preconditions look at.
type Env struct {
	Now          time.Time
	ArchiveAfter time.Duration
	// Pending is the number of IN_PROGRESS submissions remaining after any
	// sweep the transition itself performs.
	Pending int
}

// InvalidTransition builds the error for an illegal phase change.
func InvalidTransition(c models.Competition, to models.Phase) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
		fmt.Sprintf("cannot move competition from %s to %s", c.Phase, to),
		map[string]string{
			apperrors.KeyCompetitionID:  c.ID,
			apperrors.KeyPhase:          string(c.Phase),
			apperrors.KeyRequestedPhase: string(to),
		})
}

// Check validates that trigger may move c out of its current phase now.
func Check(c models.Competition, t Trigger, env Env) error {
	to, ok := Target(t)
	if !ok {
		return apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown trigger %q", t))
	}
	if !allowedBy(c.Phase, t) {
		return InvalidTransition(c, to)
	}

	meta := map[string]string{
		apperrors.KeyCompetitionID:  c.ID,
		apperrors.KeyPhase:          string(c.Phase),
		apperrors.KeyRequestedPhase: string(to),
	}
	switch t {
	case TriggerPublish:
		if err := ValidateSchedule(c.Schedule()); err != nil {
			return err
		}
		if !c.StartAt.After(env.Now) {
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"cannot publish: start time is not in the future", meta)
		}
	case TriggerClockStart:
		if env.Now.Before(c.StartAt) {
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"cannot start: start time not reached", meta)
		}
	case TriggerClockEnd:
		if env.Now.Before(c.EndAt) {
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"cannot close: end time not reached", meta)
		}
	case TriggerPublishResults:
		if env.Pending > 0 {
			meta[apperrors.KeyPending] = strconv.Itoa(env.Pending)
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				fmt.Sprintf("cannot publish: %d submissions still in progress", env.Pending), meta)
		}
	case TriggerHousekeeping:
		if !HousekeepingDue(c, env.Now, env.ArchiveAfter) {
			return apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"cannot archive: retention period not over", meta)
		}
	}
	return nil
}

// HousekeepingDue reports whether published results have been up for
// archiveAfter. A non-positive archiveAfter disables housekeeping.
func HousekeepingDue(c models.Competition, now time.Time, archiveAfter time.Duration) bool {
	if c.Phase != models.PhasePublished || c.ResultsPublishedAt == nil || archiveAfter <= 0 {
		return false
	}
	return !now.Before(c.ResultsPublishedAt.Add(archiveAfter))
}

// Due returns the clock-driven trigger that applies to c at now, if any.
func Due(c models.Competition, now time.Time, archiveAfter time.Duration) (Trigger, bool) {
	switch c.Phase {
	case models.PhaseUpcoming:
		if !now.Before(c.StartAt) {
			return TriggerClockStart, true
		}
	case models.PhaseOngoing:
		if !now.Before(c.EndAt) {
			return TriggerClockEnd, true
		}
	case models.PhasePublished:
		if HousekeepingDue(c, now, archiveAfter) {
			return TriggerHousekeeping, true
		}
	}
	return "", false
}
