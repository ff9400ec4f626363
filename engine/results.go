package engine

import (
	"context"

	"olympiad-engine/apperrors"
	"olympiad-engine/models"
	"olympiad-engine/scoring"
)

// Leaderboard returns the ranking if caller may see it in the current phase.
func (e *Engine) Leaderboard(ctx context.Context, caller models.Caller, competitionID string) ([]models.LeaderboardEntry, error) {
	if err := e.syncClock(ctx, competitionID); err != nil {
		return nil, err
	}
	defer e.readLock(competitionID)()

	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := e.gate.Leaderboard(caller, c.Phase); err != nil {
		return nil, withCompetition(err, c)
	}
	return e.board(ctx, c)
}

// board returns the cached leaderboard or computes it. Callers hold the
// competition lock.
func (e *Engine) board(ctx context.Context, c models.Competition) ([]models.LeaderboardEntry, error) {
	cached, gen, ok := e.boards.get(c.ID)
	if ok {
		return append([]models.LeaderboardEntry(nil), cached...), nil
	}
	subs, err := e.store.ListSubmissions(ctx, c.ID)
	if err != nil {
		return nil, storeError(err, "list submissions", competitionMeta(c))
	}
	board := scoring.Rank(c.QuestionCount, c.PassThreshold, subs)
	e.boards.put(c.ID, gen, board)
	return append([]models.LeaderboardEntry(nil), board...), nil
}

// Stats aggregates registrations and results. Administrators only.
func (e *Engine) Stats(ctx context.Context, caller models.Caller, competitionID string) (models.Stats, error) {
	if err := e.gate.Stats(caller); err != nil {
		return models.Stats{}, err
	}
	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.Stats{}, err
	}

	c, regs, subs, err := e.snapshot(ctx, competitionID)
	if err != nil {
		return models.Stats{}, err
	}

	// Collaborators are called after the lock is released.
	paid, err := e.payments.PaidParticipants(ctx, competitionID)
	if err != nil {
		return models.Stats{}, apperrors.WrapWithMetadata(apperrors.CodeUnknown,
			"payment lookup failed", competitionMeta(c), err)
	}
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.ParticipantID)
	}
	regions, err := e.profiles.Regions(ctx, ids)
	if err != nil {
		return models.Stats{}, apperrors.WrapWithMetadata(apperrors.CodeUnknown,
			"profile lookup failed", competitionMeta(c), err)
	}

	return scoring.Summarize(scoring.Input{
		QuestionCount: c.QuestionCount,
		PassThreshold: c.PassThreshold,
		Registrations: regs,
		Submissions:   subs,
		Paid:          paid,
		Regions:       regions,
	}), nil
}

func (e *Engine) snapshot(ctx context.Context, competitionID string) (models.Competition, []models.Registration, []models.Submission, error) {
	defer e.readLock(competitionID)()

	c, err := e.loadCompetition(ctx, competitionID)
	if err != nil {
		return c, nil, nil, err
	}
	regs, err := e.store.ListRegistrations(ctx, competitionID)
	if err != nil {
		return c, nil, nil, storeError(err, "list registrations", competitionMeta(c))
	}
	subs, err := e.store.ListSubmissions(ctx, competitionID)
	if err != nil {
		return c, nil, nil, storeError(err, "list submissions", competitionMeta(c))
	}
	return c, regs, subs, nil
}

// Result returns one participant's submission as caller may see it. An
// empty participantID means the caller's own.
func (e *Engine) Result(ctx context.Context, caller models.Caller, competitionID, participantID string) (models.OwnResult, error) {
	if caller.Role == models.RoleAnonymous {
		return models.OwnResult{}, apperrors.WithMetadata(apperrors.CodeForbidden,
			"sign in to see your result", map[string]string{apperrors.KeyCompetitionID: competitionID})
	}
	if participantID == "" {
		participantID = caller.ParticipantID
	}
	if !caller.IsAdmin() && participantID != caller.ParticipantID {
		return models.OwnResult{}, apperrors.WithMetadata(apperrors.CodeForbidden,
			"result belongs to another participant", map[string]string{apperrors.KeyCompetitionID: competitionID})
	}
	if err := requireParticipant(participantID); err != nil {
		return models.OwnResult{}, err
	}
	if err := e.syncClock(ctx, competitionID); err != nil {
		return models.OwnResult{}, err
	}
	defer e.readLock(competitionID)()

	c, sub, err := e.loadAttempt(ctx, competitionID, participantID)
	if err != nil {
		return models.OwnResult{}, err
	}
	var board []models.LeaderboardEntry
	if e.gate.Leaderboard(caller, c.Phase) == nil {
		if board, err = e.board(ctx, c); err != nil {
			return models.OwnResult{}, err
		}
	}
	res, err := e.gate.OwnResult(caller, c, sub, board)
	if err != nil {
		return models.OwnResult{}, withCompetition(err, c)
	}
	return res, nil
}

// Submissions lists every submission of a competition, answers included.
// Administrators only.
func (e *Engine) Submissions(ctx context.Context, caller models.Caller, competitionID string) ([]models.Submission, error) {
	if err := e.gate.Submissions(caller); err != nil {
		return nil, err
	}
	if err := e.syncClock(ctx, competitionID); err != nil {
		return nil, err
	}
	_, _, subs, err := e.snapshot(ctx, competitionID)
	return subs, err
}

// withCompetition adds competition context to a gate denial.
func withCompetition(err error, c models.Competition) error {
	appErr, ok := err.(*apperrors.Error)
	if !ok {
		return err
	}
	meta := competitionMeta(c)
	for k, v := range appErr.Metadata {
		meta[k] = v
	}
	return apperrors.WrapWithMetadata(appErr.Code, appErr.Message, meta, appErr.Cause)
}
