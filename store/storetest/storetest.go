// Package storetest is a conformance suite run against every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"olympiad-engine/models"
	"olympiad-engine/store"
)

var base = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CompetitionRoundTrip", func(t *testing.T) { testCompetitionRoundTrip(t, newStore(t)) })
	t.Run("CompetitionVersionConflict", func(t *testing.T) { testCompetitionVersionConflict(t, newStore(t)) })
	t.Run("ListCompetitionsByPhase", func(t *testing.T) { testListCompetitionsByPhase(t, newStore(t)) })
	t.Run("DeleteCompetition", func(t *testing.T) { testDeleteCompetition(t, newStore(t)) })
	t.Run("Registrations", func(t *testing.T) { testRegistrations(t, newStore(t)) })
	t.Run("SubmissionRoundTrip", func(t *testing.T) { testSubmissionRoundTrip(t, newStore(t)) })
	t.Run("SubmissionUniquePair", func(t *testing.T) { testSubmissionUniquePair(t, newStore(t)) })
	t.Run("ApplyTransitionAtomic", func(t *testing.T) { testApplyTransitionAtomic(t, newStore(t)) })
}

func competition(id string, phase models.Phase) models.Competition {
	return models.Competition{
		ID:            id,
		Subject:       "Mathematics",
		StartAt:       base,
		EndAt:         base.Add(2 * time.Hour),
		TimeLimit:     45 * time.Minute,
		Price:         1500,
		QuestionCount: 3,
		PassThreshold: 60,
		AnswerKey:     []string{"a", "b", "c"},
		Phase:         phase,
		Version:       1,
		CreatedAt:     base.Add(-24 * time.Hour),
		UpdatedAt:     base.Add(-24 * time.Hour),
	}
}

func mustCreate(t *testing.T, s store.Store, c models.Competition) {
	t.Helper()
	if err := s.CreateCompetition(context.Background(), c); err != nil {
		t.Fatalf("create competition %s: %v", c.ID, err)
	}
}

func mustRegister(t *testing.T, s store.Store, competitionID, participantID string) {
	t.Helper()
	err := s.CreateRegistration(context.Background(), models.Registration{
		CompetitionID: competitionID,
		ParticipantID: participantID,
		RegisteredAt:  base.Add(-time.Hour),
		Eligible:      true,
	})
	if err != nil {
		t.Fatalf("register %s: %v", participantID, err)
	}
}

func testCompetitionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := competition("c1", models.PhaseDraft)
	mustCreate(t, s, want)

	if err := s.CreateCompetition(ctx, want); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetCompetition(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != want.Subject || !got.StartAt.Equal(want.StartAt) || !got.EndAt.Equal(want.EndAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.TimeLimit != want.TimeLimit || got.QuestionCount != 3 || got.PassThreshold != 60 || got.Price != 1500 {
		t.Fatalf("config mismatch: %+v", got)
	}
	if len(got.AnswerKey) != 3 || got.AnswerKey[2] != "c" {
		t.Fatalf("answer key mismatch: %v", got.AnswerKey)
	}
	if got.ResultsPublishedAt != nil || got.ArchivedAt != nil {
		t.Fatalf("expected nil optional times, got %+v", got)
	}

	if _, err := s.GetCompetition(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCompetitionVersionConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := competition("c1", models.PhaseDraft)
	mustCreate(t, s, c)

	next := c
	next.Phase = models.PhaseUpcoming
	next.Version = 2
	if err := s.UpdateCompetition(ctx, next, 1); err != nil {
		t.Fatalf("update: %v", err)
	}

	stale := c
	stale.Phase = models.PhaseCanceled
	stale.Version = 2
	if err := s.UpdateCompetition(ctx, stale, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	missing := competition("nope", models.PhaseDraft)
	if err := s.UpdateCompetition(ctx, missing, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := s.GetCompetition(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != models.PhaseUpcoming || got.Version != 2 {
		t.Fatalf("expected UPCOMING v2, got %s v%d", got.Phase, got.Version)
	}
}

func testListCompetitionsByPhase(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := competition("a", models.PhaseUpcoming)
	b := competition("b", models.PhaseOngoing)
	b.StartAt = base.Add(-time.Hour)
	c := competition("c", models.PhaseDraft)
	mustCreate(t, s, a)
	mustCreate(t, s, b)
	mustCreate(t, s, c)

	got, err := s.ListCompetitions(ctx, models.PhaseUpcoming, models.PhaseOngoing)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected [b a], got %v", ids(got))
	}

	all, err := s.ListCompetitions(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 competitions, got %d", len(all))
	}
}

func ids(cs []models.Competition) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func testDeleteCompetition(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, competition("empty", models.PhaseDraft))
	mustCreate(t, s, competition("busy", models.PhaseUpcoming))
	mustRegister(t, s, "busy", "p1")

	if err := s.DeleteCompetition(ctx, "empty"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCompetition(ctx, "empty"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted competition to be gone, got %v", err)
	}
	if err := s.DeleteCompetition(ctx, "busy"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for competition with registrations, got %v", err)
	}
	if err := s.DeleteCompetition(ctx, "empty"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testRegistrations(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, competition("c1", models.PhaseUpcoming))

	err := s.CreateRegistration(ctx, models.Registration{
		CompetitionID: "c1", ParticipantID: "p2", RegisteredAt: base, Eligible: false,
	})
	if err != nil {
		t.Fatalf("register p2: %v", err)
	}
	mustRegister(t, s, "c1", "p1")

	dup := models.Registration{CompetitionID: "c1", ParticipantID: "p1", RegisteredAt: base}
	if err := s.CreateRegistration(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	orphan := models.Registration{CompetitionID: "missing", ParticipantID: "p1", RegisteredAt: base}
	if err := s.CreateRegistration(ctx, orphan); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown competition, got %v", err)
	}

	if err := s.SetEligible(ctx, "c1", "p2", true); err != nil {
		t.Fatalf("set eligible: %v", err)
	}
	if err := s.SetEligible(ctx, "c1", "p2", true); err != nil {
		t.Fatalf("set eligible again: %v", err)
	}
	r, err := s.GetRegistration(ctx, "c1", "p2")
	if err != nil {
		t.Fatalf("get registration: %v", err)
	}
	if !r.Eligible || !r.RegisteredAt.Equal(base) {
		t.Fatalf("unexpected registration %+v", r)
	}
	if err := s.SetEligible(ctx, "c1", "ghost", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListRegistrations(ctx, "c1")
	if err != nil {
		t.Fatalf("list registrations: %v", err)
	}
	if len(list) != 2 || list[0].ParticipantID != "p1" || list[1].ParticipantID != "p2" {
		t.Fatalf("unexpected registrations %+v", list)
	}
}

func inProgress(id, competitionID, participantID string) models.Submission {
	return models.Submission{
		ID:            id,
		CompetitionID: competitionID,
		ParticipantID: participantID,
		StartedAt:     base.Add(5 * time.Minute),
		Status:        models.StatusInProgress,
		Version:       1,
	}
}

func testSubmissionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, competition("c1", models.PhaseOngoing))
	mustRegister(t, s, "c1", "p1")

	sub := inProgress("s1", "c1", "p1")
	if err := s.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("create submission: %v", err)
	}

	done := sub.Clone()
	submitted := base.Add(30 * time.Minute)
	done.SubmittedAt = &submitted
	done.Answers = map[int]string{1: "a", 3: "x"}
	done.RawScore = 1
	done.TimeTaken = 25 * time.Minute
	done.Status = models.StatusCompleted
	done.Version = 2
	if err := s.UpdateSubmission(ctx, done, 1); err != nil {
		t.Fatalf("update submission: %v", err)
	}
	if err := s.UpdateSubmission(ctx, done, 1); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}

	got, err := s.GetSubmission(ctx, "s1")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.Status != models.StatusCompleted || got.RawScore != 1 || got.TimeTaken != 25*time.Minute {
		t.Fatalf("unexpected submission %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("submitted_at mismatch: %v", got.SubmittedAt)
	}
	if got.Answers[1] != "a" || got.Answers[3] != "x" || len(got.Answers) != 2 {
		t.Fatalf("answers mismatch: %v", got.Answers)
	}

	byPair, err := s.GetSubmissionByParticipant(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("get by participant: %v", err)
	}
	if byPair.ID != "s1" {
		t.Fatalf("expected s1, got %s", byPair.ID)
	}
	if _, err := s.GetSubmissionByParticipant(ctx, "c1", "p9"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testSubmissionUniquePair(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, competition("c1", models.PhaseOngoing))
	mustRegister(t, s, "c1", "p1")

	if err := s.CreateSubmission(ctx, inProgress("s1", "c1", "p1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateSubmission(ctx, inProgress("s2", "c1", "p1")); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func testApplyTransitionAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := competition("c1", models.PhaseOngoing)
	mustCreate(t, s, c)
	mustRegister(t, s, "c1", "p1")
	mustRegister(t, s, "c1", "p2")
	s1 := inProgress("s1", "c1", "p1")
	s2 := inProgress("s2", "c1", "p2")
	for _, sub := range []models.Submission{s1, s2} {
		if err := s.CreateSubmission(ctx, sub); err != nil {
			t.Fatalf("create %s: %v", sub.ID, err)
		}
	}

	finalize := func(sub models.Submission) models.Submission {
		out := sub.Clone()
		at := base.Add(2 * time.Hour)
		out.SubmittedAt = &at
		out.Status = models.StatusCompleted
		out.Version = sub.Version + 1
		return out
	}

	// s2 moves on behind our back, so the sweep write must fail as a whole.
	bumped := s2.Clone()
	bumped.Answers = map[int]string{1: "a"}
	bumped.Version = 2
	if err := s.UpdateSubmission(ctx, bumped, 1); err != nil {
		t.Fatalf("bump s2: %v", err)
	}

	next := c
	next.Phase = models.PhaseChecking
	next.Version = 2
	err := s.ApplyTransition(ctx, next, 1, []models.Submission{finalize(s1), finalize(s2)})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := s.GetCompetition(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != models.PhaseOngoing || got.Version != 1 {
		t.Fatalf("failed transition leaked: %s v%d", got.Phase, got.Version)
	}
	stillOpen, err := s.GetSubmission(ctx, "s1")
	if err != nil {
		t.Fatalf("get s1: %v", err)
	}
	if stillOpen.Status != models.StatusInProgress {
		t.Fatalf("failed transition finalized s1")
	}

	if err := s.ApplyTransition(ctx, next, 1, []models.Submission{finalize(s1), finalize(bumped)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	subs, err := s.ListSubmissions(ctx, "c1")
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	for _, sub := range subs {
		if sub.Status != models.StatusCompleted {
			t.Fatalf("submission %s still %s", sub.ID, sub.Status)
		}
	}
	got, err = s.GetCompetition(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != models.PhaseChecking {
		t.Fatalf("expected CHECKING, got %s", got.Phase)
	}
}
