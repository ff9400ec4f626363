package lifecycle

import (
	"errors"
	"testing"
	"time"

	"olympiad-engine/apperrors"
	"olympiad-engine/models"
)

var now = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

func draft() models.Competition {
	return models.Competition{
		ID:            "olymp-1",
		Subject:       "Physics",
		StartAt:       now.Add(time.Hour),
		EndAt:         now.Add(3 * time.Hour),
		TimeLimit:     time.Hour,
		QuestionCount: 2,
		PassThreshold: 50,
		AnswerKey:     []string{"a", "b"},
		Phase:         models.PhaseDraft,
	}
}

func TestAllowedTable(t *testing.T) {
	legal := map[[2]models.Phase]bool{
		{models.PhaseDraft, models.PhaseUpcoming}:      true,
		{models.PhaseUpcoming, models.PhaseOngoing}:    true,
		{models.PhaseOngoing, models.PhasePaused}:      true,
		{models.PhasePaused, models.PhaseOngoing}:      true,
		{models.PhaseOngoing, models.PhaseChecking}:    true,
		{models.PhaseChecking, models.PhasePublished}:  true,
		{models.PhasePublished, models.PhaseCompleted}: true,
		{models.PhaseDraft, models.PhaseCanceled}:      true,
		{models.PhaseUpcoming, models.PhaseCanceled}:   true,
		{models.PhaseOngoing, models.PhaseCanceled}:    true,
		{models.PhasePaused, models.PhaseCanceled}:     true,
		{models.PhaseChecking, models.PhaseCanceled}:   true,
	}
	for _, from := range models.Phases {
		for _, to := range models.Phases {
			want := legal[[2]models.Phase{from, to}]
			if got := Allowed(from, to); got != want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCheckRejectsIllegalTransition(t *testing.T) {
	c := draft()
	c.Phase = models.PhasePublished

	err := Check(c, TriggerForceStart, Env{Now: now})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperrors.Error, got %T", err)
	}
	if appErr.Metadata[apperrors.KeyPhase] != "PUBLISHED" || appErr.Metadata[apperrors.KeyRequestedPhase] != "ONGOING" {
		t.Fatalf("metadata does not name phases: %v", appErr.Metadata)
	}
}

func TestCheckForceStartNeverBypassesOrdering(t *testing.T) {
	for _, phase := range []models.Phase{models.PhaseDraft, models.PhaseCanceled, models.PhaseCompleted, models.PhaseChecking} {
		c := draft()
		c.Phase = phase
		if err := Check(c, TriggerForceStart, Env{Now: now}); !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Errorf("force start from %s: expected invalid transition, got %v", phase, err)
		}
	}

	c := draft()
	c.Phase = models.PhaseUpcoming
	if err := Check(c, TriggerForceStart, Env{Now: now}); err != nil {
		t.Fatalf("force start before start_at should be allowed: %v", err)
	}
}

func TestCheckPublishPreconditions(t *testing.T) {
	c := draft()
	if err := Check(c, TriggerPublish, Env{Now: now}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	past := draft()
	past.StartAt = now.Add(-time.Minute)
	if err := Check(past, TriggerPublish, Env{Now: now}); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected start-in-past rejection, got %v", err)
	}

	inverted := draft()
	inverted.EndAt = inverted.StartAt.Add(-time.Minute)
	if err := Check(inverted, TriggerPublish, Env{Now: now}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid schedule, got %v", err)
	}
}

func TestCheckClockTriggers(t *testing.T) {
	c := draft()
	c.Phase = models.PhaseUpcoming
	if err := Check(c, TriggerClockStart, Env{Now: now}); err == nil {
		t.Fatal("clock start before start_at must fail")
	}
	if err := Check(c, TriggerClockStart, Env{Now: c.StartAt}); err != nil {
		t.Fatalf("clock start at start_at: %v", err)
	}

	c.Phase = models.PhaseOngoing
	if err := Check(c, TriggerClockEnd, Env{Now: c.EndAt.Add(-time.Second)}); err == nil {
		t.Fatal("clock end before end_at must fail")
	}
	if err := Check(c, TriggerClockEnd, Env{Now: c.EndAt}); err != nil {
		t.Fatalf("clock end at end_at: %v", err)
	}
}

func TestCheckPublishResultsNeedsNoPending(t *testing.T) {
	c := draft()
	c.Phase = models.PhaseChecking

	err := Check(c, TriggerPublishResults, Env{Now: now, Pending: 4})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if err.Error() != "cannot publish: 4 submissions still in progress" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err := Check(c, TriggerPublishResults, Env{Now: now}); err != nil {
		t.Fatalf("publish results: %v", err)
	}
}

func TestDue(t *testing.T) {
	published := now.Add(-48 * time.Hour)
	tests := []struct {
		name   string
		phase  models.Phase
		at     time.Time
		want   Trigger
		wantOK bool
	}{
		{"upcoming before start", models.PhaseUpcoming, now, "", false},
		{"upcoming at start", models.PhaseUpcoming, now.Add(time.Hour), TriggerClockStart, true},
		{"ongoing before end", models.PhaseOngoing, now.Add(2 * time.Hour), "", false},
		{"ongoing at end", models.PhaseOngoing, now.Add(3 * time.Hour), TriggerClockEnd, true},
		{"paused after end", models.PhasePaused, now.Add(4 * time.Hour), "", false},
		{"published retention over", models.PhasePublished, now, TriggerHousekeeping, true},
		{"draft", models.PhaseDraft, now.Add(10 * time.Hour), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := draft()
			c.Phase = tt.phase
			c.ResultsPublishedAt = &published
			got, ok := Due(c, tt.at, 24*time.Hour)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("Due = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValidateCompetition(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Competition)
	}{
		{"empty subject", func(c *models.Competition) { c.Subject = " " }},
		{"end before start", func(c *models.Competition) { c.EndAt = c.StartAt.Add(-time.Second) }},
		{"zero time limit", func(c *models.Competition) { c.TimeLimit = 0 }},
		{"no questions", func(c *models.Competition) { c.QuestionCount = 0; c.AnswerKey = nil }},
		{"short answer key", func(c *models.Competition) { c.AnswerKey = []string{"a"} }},
		{"threshold over 100", func(c *models.Competition) { c.PassThreshold = 101 }},
		{"negative price", func(c *models.Competition) { c.Price = -1 }},
	}
	if err := ValidateCompetition(draft()); err != nil {
		t.Fatalf("valid competition rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := draft()
			tt.mutate(&c)
			if err := ValidateCompetition(c); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	same := draft()
	same.EndAt = same.StartAt
	if err := ValidateCompetition(same); err != nil {
		t.Fatalf("end_at equal to start_at is allowed: %v", err)
	}
}
