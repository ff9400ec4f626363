package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"olympiad-engine/engine"
	"olympiad-engine/models"
	"olympiad-engine/utils"
)

type CompetitionController struct {
}

type competitionRequest struct {
	Subject          string    `json:"subject"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	TimeLimitSeconds int64     `json:"time_limit_seconds"`
	Price            int64     `json:"price"`
	QuestionCount    int       `json:"question_count"`
	PassThreshold    int       `json:"pass_threshold"`
	AnswerKey        []string  `json:"answer_key"`
}

type scheduleRequest struct {
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	TimeLimitSeconds int64     `json:"time_limit_seconds"`
}

func (cc *CompetitionController) CreateCompetition(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req competitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid request body"})
			return
		}

		c, err := e.CreateCompetition(r.Context(), models.Competition{
			Subject:       strings.TrimSpace(req.Subject),
			StartAt:       req.StartAt,
			EndAt:         req.EndAt,
			TimeLimit:     time.Duration(req.TimeLimitSeconds) * time.Second,
			Price:         req.Price,
			QuestionCount: req.QuestionCount,
			PassThreshold: req.PassThreshold,
			AnswerKey:     req.AnswerKey,
		})
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSONStatus(w, http.StatusCreated, c)
	}
}

func (cc *CompetitionController) ListCompetitions(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var phases []models.Phase
		if raw := r.URL.Query().Get("phase"); raw != "" {
			for _, p := range strings.Split(raw, ",") {
				phases = append(phases, models.Phase(strings.ToUpper(strings.TrimSpace(p))))
			}
		}
		list, err := e.ListCompetitions(r.Context(), phases...)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, list)
	}
}

func (cc *CompetitionController) GetCompetition(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := e.GetCompetition(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, c)
	}
}

func (cc *CompetitionController) UpdateSchedule(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid request body"})
			return
		}
		c, err := e.UpdateSchedule(r.Context(), mux.Vars(r)["id"], models.Schedule{
			StartAt:   req.StartAt,
			EndAt:     req.EndAt,
			TimeLimit: time.Duration(req.TimeLimitSeconds) * time.Second,
		})
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, c)
	}
}

func (cc *CompetitionController) RemoveCompetition(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, deleted, err := e.RemoveCompetition(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, map[string]interface{}{
			"deleted":     deleted,
			"competition": c,
		})
	}
}

// Transition handles the admin phase actions. action is the last path
// segment of the route.
func (cc *CompetitionController) Transition(e *engine.Engine, action string) http.HandlerFunc {
	var op func(context.Context, string) (models.Competition, error)
	switch action {
	case "publish":
		op = e.Publish
	case "force-start":
		op = e.ForceStart
	case "pause":
		op = e.Pause
	case "resume":
		op = e.Resume
	case "publish-results":
		op = e.PublishResults
	case "archive":
		op = e.Archive
	case "cancel":
		op = e.Cancel
	default:
		panic("controllers: unknown transition " + action)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		c, err := op(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, c)
	}
}
