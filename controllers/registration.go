package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"olympiad-engine/engine"
	"olympiad-engine/models"
	"olympiad-engine/utils"
)

type RegistrationController struct {
}

func (rc *RegistrationController) Register(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFrom(r)
		reg, err := e.Register(r.Context(), mux.Vars(r)["id"], caller.ParticipantID)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSONStatus(w, http.StatusCreated, reg)
	}
}

func (rc *RegistrationController) SetEligibility(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Eligible *bool `json:"eligible"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Eligible == nil {
			utils.RespondWithError(w, http.StatusBadRequest, models.Error{Message: "eligible is required"})
			return
		}
		vars := mux.Vars(r)
		reg, err := e.SetEligibility(r.Context(), vars["id"], vars["participantID"], *req.Eligible)
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, reg)
	}
}
