package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"olympiad-engine/engine"
	"olympiad-engine/models"
	"olympiad-engine/utils"
)

type AttemptController struct {
}

func (ac *AttemptController) StartAttempt(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := e.StartAttempt(r.Context(), mux.Vars(r)["id"], CallerFrom(r).ParticipantID)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSONStatus(w, http.StatusCreated, sub)
	}
}

func (ac *AttemptController) RecordAnswer(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question int    `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid request body"})
			return
		}
		sub, err := e.RecordAnswer(r.Context(), mux.Vars(r)["id"], CallerFrom(r).ParticipantID, req.Question, req.Answer)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, sub)
	}
}

func (ac *AttemptController) FinalizeAttempt(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := e.FinalizeSubmission(r.Context(), mux.Vars(r)["id"], CallerFrom(r).ParticipantID)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, sub)
	}
}

func (ac *AttemptController) Disqualify(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "Invalid request body"})
			return
		}
		sub, err := e.Disqualify(r.Context(), mux.Vars(r)["id"], req.Reason)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, sub)
	}
}
