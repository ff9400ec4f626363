package lifecycle

import (
	"strings"

	"olympiad-engine/apperrors"
	"olympiad-engine/models"
)

func invalid(message string) error {
	return apperrors.New(apperrors.CodeInvalidInput, message)
}

// ValidateSchedule checks the window and per-attempt limit.
func ValidateSchedule(s models.Schedule) error {
	if s.StartAt.IsZero() || s.EndAt.IsZero() {
		return invalid("start_at and end_at are required")
	}
	if s.EndAt.Before(s.StartAt) {
		return invalid("end_at must not be before start_at")
	}
	if s.TimeLimit <= 0 {
		return invalid("time_limit must be positive")
	}
	return nil
}

// ValidateCompetition checks a competition's configuration before it is created.
func ValidateCompetition(c models.Competition) error {
	if strings.TrimSpace(c.Subject) == "" {
		return invalid("subject is required")
	}
	if err := ValidateSchedule(c.Schedule()); err != nil {
		return err
	}
	if c.QuestionCount <= 0 {
		return invalid("question_count must be positive")
	}
	if len(c.AnswerKey) != c.QuestionCount {
		return invalid("answer_key must have one answer per question")
	}
	if c.PassThreshold < 0 || c.PassThreshold > 100 {
		return invalid("pass_threshold must be between 0 and 100")
	}
	if c.Price < 0 {
		return invalid("price must not be negative")
	}
	return nil
}
