package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"olympiad-engine/engine"
	"olympiad-engine/utils"
)

// ResultsController serves the reads filtered by the visibility rules.
type ResultsController struct {
}

func (rc *ResultsController) Leaderboard(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := e.Leaderboard(r.Context(), CallerFrom(r), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, board)
	}
}

func (rc *ResultsController) Stats(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := e.Stats(r.Context(), CallerFrom(r), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, stats)
	}
}

// Result returns the caller's own result. Administrators pick a
// participant with ?participant_id=.
func (rc *ResultsController) Result(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := e.Result(r.Context(), CallerFrom(r), mux.Vars(r)["id"], r.URL.Query().Get("participant_id"))
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, res)
	}
}

func (rc *ResultsController) Submissions(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := e.Submissions(r.Context(), CallerFrom(r), mux.Vars(r)["id"])
		if err != nil {
			utils.RespondWithAppError(w, err)
			return
		}
		utils.ResponseJSON(w, subs)
	}
}
