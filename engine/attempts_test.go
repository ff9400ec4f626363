package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"olympiad-engine/apperrors"
	"olympiad-engine/collab/mock_collab"
	"olympiad-engine/models"
	"olympiad-engine/store"
)

func TestRegisterPaidCompetitionAsksPaymentsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mock_collab.NewMockPayments(ctrl)
	f := newFixture(t, Deps{Payments: payments})

	c := f.draft(500)
	if _, err := f.engine.Publish(f.ctx, c.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	payments.EXPECT().HasPaid(gomock.Any(), c.ID, "alice").Return(true, nil)
	payments.EXPECT().HasPaid(gomock.Any(), c.ID, "bob").Return(false, nil)

	alice, err := f.engine.Register(f.ctx, c.ID, "alice")
	if err != nil || !alice.Eligible {
		t.Fatalf("alice = %+v, %v", alice, err)
	}
	bob, err := f.engine.Register(f.ctx, c.ID, "bob")
	if err != nil || bob.Eligible {
		t.Fatalf("bob = %+v, %v", bob, err)
	}
}

func TestRegisterPaymentFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mock_collab.NewMockPayments(ctrl)
	f := newFixture(t, Deps{Payments: payments})
	c := f.draft(500)
	if _, err := f.engine.Publish(f.ctx, c.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	payments.EXPECT().HasPaid(gomock.Any(), c.ID, "alice").Return(false, errors.New("gateway timeout"))
	_, err := f.engine.Register(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodeUnknown)
	if _, err := f.store.GetRegistration(f.ctx, c.ID, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("registration stored despite payment failure")
	}
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.draft(0)

	_, err := f.engine.Register(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodePhaseClosed)

	if _, err := f.engine.Publish(f.ctx, c.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	reg, err := f.engine.Register(f.ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !reg.Eligible || !reg.RegisteredAt.Equal(t0) {
		t.Fatalf("registration = %+v", reg)
	}

	_, err = f.engine.Register(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.engine.Register(f.ctx, c.ID, " ")
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.engine.Register(f.ctx, "missing", "alice")
	assertCode(t, err, apperrors.CodeNotFound)

	f.clock.Set(c.EndAt)
	_, err = f.engine.Register(f.ctx, c.ID, "bob")
	assertCode(t, err, apperrors.CodePhaseClosed)
}

func TestStartAttemptEligibility(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mock_collab.NewMockPayments(ctrl)
	f := newFixture(t, Deps{Payments: payments})

	c := f.draft(500)
	if _, err := f.engine.Publish(f.ctx, c.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	payments.EXPECT().HasPaid(gomock.Any(), c.ID, "alice").Return(false, nil)
	if _, err := f.engine.Register(f.ctx, c.ID, "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := f.engine.StartAttempt(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodeNotEligible)
	_, err = f.engine.StartAttempt(f.ctx, c.ID, "stranger")
	assertCode(t, err, apperrors.CodeNotEligible)

	if _, err := f.engine.SetEligibility(f.ctx, c.ID, "alice", true); err != nil {
		t.Fatalf("set eligibility: %v", err)
	}
	_, err = f.engine.StartAttempt(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodePhaseClosed)

	f.clock.Set(c.StartAt.Add(10 * time.Minute))
	sub, err := f.engine.StartAttempt(f.ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if sub.Status != models.StatusInProgress || !sub.StartedAt.Equal(c.StartAt.Add(10*time.Minute)) {
		t.Fatalf("submission = %+v", sub)
	}

	_, err = f.engine.StartAttempt(f.ctx, c.ID, "alice")
	assertCode(t, err, apperrors.CodeNotEligible)

	_, err = f.engine.SetEligibility(f.ctx, c.ID, "nobody", true)
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestRecordAnswer(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()

	_, err := f.engine.RecordAnswer(f.ctx, c.ID, "alice", 1, "A")
	assertCode(t, err, apperrors.CodeNotFound)

	f.enter(c, "alice")
	sub, err := f.engine.RecordAnswer(f.ctx, c.ID, "alice", 3, "x")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	sub, err = f.engine.RecordAnswer(f.ctx, c.ID, "alice", 3, "C")
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if sub.Answers[3] != "C" || len(sub.Answers) != 1 {
		t.Fatalf("answers = %v", sub.Answers)
	}

	for _, q := range []int{0, -1, c.QuestionCount + 1} {
		_, err := f.engine.RecordAnswer(f.ctx, c.ID, "alice", q, "A")
		assertCode(t, err, apperrors.CodeInvalidInput)
	}
}

func TestAttemptWindowIsPerParticipant(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()

	f.enter(c, "early")
	f.clock.Advance(20 * time.Minute)
	f.enter(c, "late")

	// early's 30 minutes are up, the grace period is not.
	f.clock.Advance(10*time.Minute + grace)
	if _, err := f.engine.RecordAnswer(f.ctx, c.ID, "early", 1, "A"); err != nil {
		t.Fatalf("answer inside grace: %v", err)
	}

	f.clock.Advance(time.Second)
	_, err := f.engine.RecordAnswer(f.ctx, c.ID, "early", 2, "B")
	assertCode(t, err, apperrors.CodeAttemptExpired)
	if _, err := f.engine.RecordAnswer(f.ctx, c.ID, "late", 1, "A"); err != nil {
		t.Fatalf("late starter is still inside their window: %v", err)
	}

	early, _ := f.store.GetSubmissionByParticipant(f.ctx, c.ID, "early")
	if early.Status != models.StatusCompleted {
		t.Fatalf("expired attempt not finalized: %s", early.Status)
	}
	if early.TimeTaken != c.TimeLimit+grace {
		t.Fatalf("time taken = %s, want %s", early.TimeTaken, c.TimeLimit+grace)
	}
	if early.RawScore != 1 || early.Answers[2] != "" {
		t.Fatalf("late answer stored: %+v", early)
	}
}

func TestTickExpiresAttempts(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	f.enter(c, "alice")
	f.answer(c, "alice", 4)

	f.clock.Advance(c.TimeLimit + grace + time.Second)
	if err := f.engine.Tick(f.ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sub, _ := f.store.GetSubmissionByParticipant(f.ctx, c.ID, "alice")
	if sub.Status != models.StatusCompleted || sub.RawScore != 4 {
		t.Fatalf("submission = %+v", sub)
	}
	if f.phase(c.ID) != models.PhaseOngoing {
		t.Fatal("competition closed early")
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	f.enter(c, "alice")
	f.answer(c, "alice", 6)
	f.clock.Advance(12 * time.Minute)

	first, err := f.engine.FinalizeSubmission(f.ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if first.Status != models.StatusCompleted || first.RawScore != 6 || first.TimeTaken != 12*time.Minute {
		t.Fatalf("first = %+v", first)
	}

	f.clock.Advance(time.Minute)
	second, err := f.engine.FinalizeSubmission(f.ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if second.RawScore != first.RawScore || !second.SubmittedAt.Equal(*first.SubmittedAt) || second.Version != first.Version {
		t.Fatalf("second finalize changed the record: %+v vs %+v", second, first)
	}

	_, err = f.engine.RecordAnswer(f.ctx, c.ID, "alice", 1, "A")
	assertCode(t, err, apperrors.CodeAttemptExpired)
}

// Scenario C: the end of the competition sweeps attempts in progress.
func TestEndOfCompetitionSweep(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	f.clock.Set(c.EndAt.Add(-10 * time.Minute))
	f.enter(c, "alice")
	f.answer(c, "alice", 3)

	f.clock.Set(c.EndAt)
	closed, err := f.engine.GetCompetition(f.ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if closed.Phase != models.PhaseChecking {
		t.Fatalf("phase = %s", closed.Phase)
	}

	sub, _ := f.store.GetSubmissionByParticipant(f.ctx, c.ID, "alice")
	if sub.Status != models.StatusCompleted || sub.RawScore != 3 || sub.TimeTaken != 10*time.Minute {
		t.Fatalf("swept submission = %+v", sub)
	}

	_, err = f.engine.RecordAnswer(f.ctx, c.ID, "alice", 4, "D")
	assertCode(t, err, apperrors.CodeAttemptExpired)
}

func TestDisqualifyRules(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	running := f.enter(c, "alice")

	_, err := f.engine.Disqualify(f.ctx, running.ID, "  ")
	assertCode(t, err, apperrors.CodeInvalidReason)

	_, err = f.engine.Disqualify(f.ctx, running.ID, "proxy detected")
	assertCode(t, err, apperrors.CodeInvalidTransition)

	_, err = f.engine.Disqualify(f.ctx, "missing", "proxy detected")
	assertCode(t, err, apperrors.CodeNotFound)

	if _, err := f.engine.FinalizeSubmission(f.ctx, c.ID, "alice"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	dq, err := f.engine.Disqualify(f.ctx, running.ID, " proxy detected ")
	if err != nil {
		t.Fatalf("disqualify: %v", err)
	}
	if dq.Status != models.StatusDisqualified || dq.DisqualifyReason != "proxy detected" {
		t.Fatalf("disqualified = %+v", dq)
	}

	_, err = f.engine.Disqualify(f.ctx, running.ID, "again")
	assertCode(t, err, apperrors.CodeInvalidTransition)
	_, err = f.engine.FinalizeSubmission(f.ctx, c.ID, "alice")
	if err != nil {
		t.Fatalf("finalize of disqualified submission should be a no-op: %v", err)
	}
}

// Many participants submit right at the deadline while the sweep runs.
// Every attempt must end up finalized exactly once.
func TestFinalizeRacesSweep(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	f.clock.Set(c.EndAt.Add(-time.Minute))

	const n = 40
	for i := 0; i < n; i++ {
		pid := fmt.Sprintf("p%02d", i)
		f.enter(c, pid)
		if _, err := f.engine.RecordAnswer(f.ctx, c.ID, pid, 1, "A"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, n+1)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		pid := fmt.Sprintf("p%02d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sub, err := f.engine.FinalizeSubmission(f.ctx, c.ID, pid)
			if err != nil {
				errs <- err
				return
			}
			if sub.Status != models.StatusCompleted {
				errs <- fmt.Errorf("%s: status %s", pid, sub.Status)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		f.clock.Set(c.EndAt)
		if err := f.engine.Tick(f.ctx); err != nil {
			errs <- err
		}
	}()
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent finalize: %v", err)
	}

	if f.phase(c.ID) != models.PhaseChecking {
		t.Fatalf("phase = %s", f.phase(c.ID))
	}
	subs, _ := f.store.ListSubmissions(f.ctx, c.ID)
	if len(subs) != n {
		t.Fatalf("submissions = %d", len(subs))
	}
	for _, s := range subs {
		// started at v1, one answer made v2, one finalization makes v3
		if s.Status != models.StatusCompleted || s.Version != 3 || s.RawScore != 1 {
			t.Errorf("%s: %s v%d score %d", s.ParticipantID, s.Status, s.Version, s.RawScore)
		}
		if s.SubmittedAt.Before(s.StartedAt) || s.TimeTaken > c.TimeLimit+grace {
			t.Errorf("%s: invariant broken: %+v", s.ParticipantID, s)
		}
	}
}

// A sweep that runs late stamps end_at, so ranking does not depend on
// when the closing transition happens to be applied.
func TestLateSweepStampsEndOfCompetition(t *testing.T) {
	for _, lag := range []time.Duration{0, time.Minute, 2 * time.Hour} {
		t.Run(lag.String(), func(t *testing.T) {
			f := newFixture(t, Deps{})
			c := f.ongoing()

			f.clock.Set(c.EndAt.Add(-20 * time.Minute))
			f.enter(c, "amy")
			f.answer(c, "amy", 8)
			f.clock.Set(c.EndAt.Add(-10 * time.Minute))
			f.enter(c, "bob")
			f.answer(c, "bob", 8)

			f.clock.Set(c.EndAt.Add(lag))
			board, err := f.engine.Leaderboard(f.ctx, admin, c.ID)
			if err != nil {
				t.Fatalf("leaderboard: %v", err)
			}
			if len(board) != 2 {
				t.Fatalf("board = %+v", board)
			}
			if board[0].ParticipantID != "bob" || board[0].Rank != 1 || board[0].TimeTaken != 10*time.Minute {
				t.Errorf("first = %+v", board[0])
			}
			if board[1].ParticipantID != "amy" || board[1].Rank != 2 || board[1].TimeTaken != 20*time.Minute {
				t.Errorf("second = %+v", board[1])
			}

			subs, _ := f.store.ListSubmissions(f.ctx, c.ID)
			for _, s := range subs {
				if !s.SubmittedAt.Equal(c.EndAt) {
					t.Errorf("%s submitted at %s, want %s", s.ParticipantID, s.SubmittedAt, c.EndAt)
				}
			}
		})
	}
}

func TestLateTickStampsAttemptDeadline(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.ongoing()
	started := f.enter(c, "alice")

	f.clock.Advance(c.TimeLimit + 40*time.Minute)
	if err := f.engine.Tick(f.ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	sub, _ := f.store.GetSubmissionByParticipant(f.ctx, c.ID, "alice")
	want := started.StartedAt.Add(c.TimeLimit + grace)
	if sub.Status != models.StatusCompleted || !sub.SubmittedAt.Equal(want) {
		t.Fatalf("submission = %+v, want submitted at %s", sub, want)
	}
}

func TestAcceptsWorkStopsAtEnd(t *testing.T) {
	f := newFixture(t, Deps{})
	c := models.Competition{
		Phase:   models.PhaseOngoing,
		StartAt: t0,
		EndAt:   t0.Add(time.Hour),
	}
	tests := []struct {
		name  string
		phase models.Phase
		now   time.Time
		want  bool
	}{
		{"running", models.PhaseOngoing, t0.Add(59 * time.Minute), true},
		{"end reached, not yet closed", models.PhaseOngoing, t0.Add(time.Hour), false},
		{"long past end", models.PhaseOngoing, t0.Add(5 * time.Hour), false},
		{"paused", models.PhasePaused, t0.Add(time.Minute), false},
		{"checking", models.PhaseChecking, t0.Add(2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := c
			in.Phase = tt.phase
			if got := f.engine.acceptsWork(in, tt.now); got != tt.want {
				t.Fatalf("acceptsWork = %v, want %v", got, tt.want)
			}
		})
	}
}
