// Package visibility decides what a caller may read about a competition in
// its current phase. Nothing here touches storage.
package visibility

import (
	"olympiad-engine/apperrors"
	"olympiad-engine/models"
	"olympiad-engine/scoring"
)

// Gate filters engine reads by caller role and phase.
type Gate struct{}

func forbidden(message string, phase models.Phase) error {
	return apperrors.WithMetadata(apperrors.CodeForbidden, message, map[string]string{
		apperrors.KeyPhase: string(phase),
	})
}

// Leaderboard checks whether caller may see the full ranking. Admins see it
// once submissions are closed; everyone else once results are published.
// A canceled competition has no leaderboard.
func (Gate) Leaderboard(caller models.Caller, phase models.Phase) error {
	if caller.IsAdmin() && phase.ResultsReady() {
		return nil
	}
	if phase.Published() {
		return nil
	}
	return forbidden("leaderboard is not available in this phase", phase)
}

// Stats checks whether caller may see aggregate statistics.
func (Gate) Stats(caller models.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "statistics are available to administrators only")
}

// Submissions checks whether caller may list raw submissions.
func (Gate) Submissions(caller models.Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "submissions are available to administrators only")
}

// OwnResult shapes what caller sees of sub. Participants may only read
// their own submission. Percentage, pass flag, rank and the full board are
// added once results are published; admins get them as soon as submissions
// are closed.
func (g Gate) OwnResult(caller models.Caller, c models.Competition, sub models.Submission, board []models.LeaderboardEntry) (models.OwnResult, error) {
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleParticipant:
		if caller.ParticipantID == "" || caller.ParticipantID != sub.ParticipantID {
			return models.OwnResult{}, apperrors.WithMetadata(apperrors.CodeForbidden,
				"result belongs to another participant", map[string]string{
					apperrors.KeyCompetitionID: c.ID,
					apperrors.KeySubmissionID:  sub.ID,
				})
		}
	default:
		return models.OwnResult{}, forbidden("sign in to see your result", c.Phase)
	}

	result := models.OwnResult{Submission: sub.Clone()}
	if g.Leaderboard(caller, c.Phase) != nil {
		return result, nil
	}

	if sub.Status == models.StatusCompleted {
		pct := scoring.Percentage(sub.RawScore, c.QuestionCount)
		passed := scoring.Passed(pct, c.PassThreshold)
		result.Percentage = &pct
		result.Passed = &passed
	}
	for _, entry := range board {
		if entry.ParticipantID == sub.ParticipantID {
			rank := entry.Rank
			result.Rank = &rank
			break
		}
	}
	result.Leaderboard = append([]models.LeaderboardEntry(nil), board...)
	return result, nil
}
