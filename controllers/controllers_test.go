package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"

	"olympiad-engine/clock"
	"olympiad-engine/config"
	"olympiad-engine/engine"
	"olympiad-engine/models"
	"olympiad-engine/store"
	"olympiad-engine/utils"
)

var (
	secret = []byte("controller-secret")
	t0     = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
)

type server struct {
	t      *testing.T
	router *mux.Router
	clock  *clock.FakeClock
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	fc := clock.Fake(t0)
	e := engine.New(engine.Deps{
		Store: store.NewMemory(),
		Clock: fc,
		Log:   logger,
	}, config.Engine{GraceWindow: 5 * time.Second, ArchiveAfter: 24 * time.Hour})

	router := mux.NewRouter()
	Routes(router, e, secret)
	return &server{t: t, router: router, clock: fc}
}

func (s *server) token(userID, role string) string {
	s.t.Helper()
	tok, err := utils.GenerateToken(userID, role, secret, time.Hour)
	if err != nil {
		s.t.Fatalf("token: %v", err)
	}
	return tok
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(into); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, want, rec.Body.String())
	}
}

type competitionBody struct {
	ID               string       `json:"id"`
	Phase            models.Phase `json:"phase"`
	TimeLimitSeconds float64      `json:"time_limit_seconds"`
}

func TestCompetitionFlowOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := s.token("1", "superadmin")
	student := s.token("42", "student")

	rec := s.do(http.MethodPost, "/competitions", admin, map[string]interface{}{
		"subject":            "Physics",
		"start_at":           t0.Add(time.Hour),
		"end_at":             t0.Add(3 * time.Hour),
		"time_limit_seconds": 1800,
		"question_count":     2,
		"pass_threshold":     50,
		"answer_key":         []string{"a", "b"},
	})
	expectStatus(t, rec, http.StatusCreated)
	var comp competitionBody
	decode(t, rec, &comp)
	if comp.Phase != models.PhaseDraft || comp.TimeLimitSeconds != 1800 {
		t.Fatalf("created = %+v", comp)
	}
	base := "/competitions/" + comp.ID

	expectStatus(t, s.do(http.MethodPost, base+"/publish", student, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodPost, base+"/publish", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(http.MethodPost, base+"/publish", admin, nil), http.StatusOK)

	expectStatus(t, s.do(http.MethodPost, base+"/register", student, nil), http.StatusCreated)
	expectStatus(t, s.do(http.MethodPost, base+"/register", student, nil), http.StatusConflict)
	expectStatus(t, s.do(http.MethodPost, base+"/register", "", nil), http.StatusUnauthorized)

	rec = s.do(http.MethodPost, base+"/attempt", student, nil)
	expectStatus(t, rec, http.StatusConflict)
	var apiErr models.Error
	decode(t, rec, &apiErr)
	if apiErr.Code != "PHASE_CLOSED" || apiErr.Metadata["competition_id"] != comp.ID {
		t.Fatalf("error body = %+v", apiErr)
	}

	expectStatus(t, s.do(http.MethodPost, base+"/force-start", admin, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodPost, base+"/attempt", student, nil), http.StatusCreated)
	expectStatus(t, s.do(http.MethodPut, base+"/attempt/answers", student, map[string]interface{}{"question": 1, "answer": "A"}), http.StatusOK)
	expectStatus(t, s.do(http.MethodPut, base+"/attempt/answers", student, map[string]interface{}{"question": 9, "answer": "A"}), http.StatusBadRequest)

	rec = s.do(http.MethodPost, base+"/attempt/finalize", student, nil)
	expectStatus(t, rec, http.StatusOK)
	var sub struct {
		ID       string                  `json:"id"`
		Status   models.SubmissionStatus `json:"status"`
		RawScore int                     `json:"raw_score"`
	}
	decode(t, rec, &sub)
	if sub.Status != models.StatusCompleted || sub.RawScore != 1 {
		t.Fatalf("finalized = %+v", sub)
	}

	expectStatus(t, s.do(http.MethodGet, base+"/leaderboard", student, nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodGet, base+"/stats", student, nil), http.StatusForbidden)

	s.clock.Set(t0.Add(3 * time.Hour))
	rec = s.do(http.MethodGet, base, "", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &comp)
	if comp.Phase != models.PhaseChecking {
		t.Fatalf("phase = %s", comp.Phase)
	}

	expectStatus(t, s.do(http.MethodGet, base+"/leaderboard", admin, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodGet, base+"/leaderboard", "", nil), http.StatusForbidden)
	expectStatus(t, s.do(http.MethodPost, base+"/publish-results", admin, nil), http.StatusOK)

	rec = s.do(http.MethodGet, base+"/leaderboard", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var board []struct {
		Rank             int     `json:"rank"`
		ParticipantID    string  `json:"participant_id"`
		Percentage       int     `json:"percentage"`
		Passed           bool    `json:"passed"`
		TimeTakenSeconds float64 `json:"time_taken_seconds"`
	}
	decode(t, rec, &board)
	if len(board) != 1 || board[0].ParticipantID != "42" || board[0].Percentage != 50 || !board[0].Passed {
		t.Fatalf("board = %+v", board)
	}

	rec = s.do(http.MethodGet, base+"/result", student, nil)
	expectStatus(t, rec, http.StatusOK)
	var own struct {
		Rank *int `json:"rank"`
	}
	decode(t, rec, &own)
	if own.Rank == nil || *own.Rank != 1 {
		t.Fatalf("own rank = %v", own.Rank)
	}

	expectStatus(t, s.do(http.MethodPost, "/submissions/"+sub.ID+"/disqualify", admin, map[string]string{"reason": ""}), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodPost, "/submissions/"+sub.ID+"/disqualify", admin, map[string]string{"reason": "proxy detected"}), http.StatusOK)

	rec = s.do(http.MethodGet, base+"/stats", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var stats models.Stats
	decode(t, rec, &stats)
	if stats.TotalDisqualified != 1 || stats.TotalSubmissions != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	expectStatus(t, s.do(http.MethodGet, base+"/submissions", admin, nil), http.StatusOK)

	expectStatus(t, s.do(http.MethodPost, base+"/force-start", admin, nil), http.StatusConflict)
	expectStatus(t, s.do(http.MethodPost, base+"/archive", admin, nil), http.StatusOK)

	rec = s.do(http.MethodDelete, base, admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var removed struct {
		Deleted bool `json:"deleted"`
	}
	decode(t, rec, &removed)
	if removed.Deleted {
		t.Fatal("competition with registrations must be archived, not deleted")
	}
}

func TestAttemptExpiredIsGone(t *testing.T) {
	s := newServer(t)
	admin := s.token("1", "admin")
	student := s.token("7", "participant")

	rec := s.do(http.MethodPost, "/competitions", admin, map[string]interface{}{
		"subject":            "Chemistry",
		"start_at":           t0.Add(time.Hour),
		"end_at":             t0.Add(5 * time.Hour),
		"time_limit_seconds": 600,
		"question_count":     1,
		"pass_threshold":     100,
		"answer_key":         []string{"x"},
	})
	expectStatus(t, rec, http.StatusCreated)
	var comp competitionBody
	decode(t, rec, &comp)
	base := "/competitions/" + comp.ID

	expectStatus(t, s.do(http.MethodPost, base+"/publish", admin, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodPost, base+"/register", student, nil), http.StatusCreated)
	s.clock.Set(t0.Add(time.Hour))
	expectStatus(t, s.do(http.MethodPost, base+"/attempt", student, nil), http.StatusCreated)

	s.clock.Advance(10*time.Minute + 6*time.Second)
	rec = s.do(http.MethodPut, base+"/attempt/answers", student, map[string]interface{}{"question": 1, "answer": "x"})
	expectStatus(t, rec, http.StatusGone)
	var apiErr models.Error
	decode(t, rec, &apiErr)
	if apiErr.Code != "ATTEMPT_EXPIRED" {
		t.Fatalf("code = %s", apiErr.Code)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newServer(t)
	admin := s.token("1", "admin")

	expectStatus(t, s.do(http.MethodPost, "/competitions", admin, map[string]interface{}{"subject": ""}), http.StatusBadRequest)
	expectStatus(t, s.do(http.MethodGet, "/competitions/missing", "", nil), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodGet, "/competitions?phase=bogus", "", nil), http.StatusBadRequest)

	req := httptest.NewRequest(http.MethodGet, "/competitions", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.do(http.MethodGet, "/competitions", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []competitionBody
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("list = %+v", list)
	}
}
