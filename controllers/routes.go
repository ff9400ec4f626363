package controllers

import (
	"github.com/gorilla/mux"

	"olympiad-engine/engine"
)

// Routes registers every engine endpoint on router.
func Routes(router *mux.Router, e *engine.Engine, secret []byte) {
	controller := Controller{Secret: secret}
	competitionController := CompetitionController{}
	registrationController := RegistrationController{}
	attemptController := AttemptController{}
	resultsController := ResultsController{}

	router.Use(controller.Identify)

	router.HandleFunc("/competitions", controller.AdminOnly(competitionController.CreateCompetition(e))).Methods("POST")
	router.HandleFunc("/competitions", competitionController.ListCompetitions(e)).Methods("GET")
	router.HandleFunc("/competitions/{id}", competitionController.GetCompetition(e)).Methods("GET")
	router.HandleFunc("/competitions/{id}/schedule", controller.AdminOnly(competitionController.UpdateSchedule(e))).Methods("PUT")
	router.HandleFunc("/competitions/{id}", controller.AdminOnly(competitionController.RemoveCompetition(e))).Methods("DELETE")
	for _, action := range []string{"publish", "force-start", "pause", "resume", "publish-results", "archive", "cancel"} {
		router.HandleFunc("/competitions/{id}/"+action, controller.AdminOnly(competitionController.Transition(e, action))).Methods("POST")
	}

	router.HandleFunc("/competitions/{id}/register", controller.ParticipantOnly(registrationController.Register(e))).Methods("POST")
	router.HandleFunc("/competitions/{id}/registrations/{participantID}/eligibility", controller.AdminOnly(registrationController.SetEligibility(e))).Methods("PUT")

	router.HandleFunc("/competitions/{id}/attempt", controller.ParticipantOnly(attemptController.StartAttempt(e))).Methods("POST")
	router.HandleFunc("/competitions/{id}/attempt/answers", controller.ParticipantOnly(attemptController.RecordAnswer(e))).Methods("PUT")
	router.HandleFunc("/competitions/{id}/attempt/finalize", controller.ParticipantOnly(attemptController.FinalizeAttempt(e))).Methods("POST")
	router.HandleFunc("/submissions/{id}/disqualify", controller.AdminOnly(attemptController.Disqualify(e))).Methods("POST")

	router.HandleFunc("/competitions/{id}/leaderboard", resultsController.Leaderboard(e)).Methods("GET")
	router.HandleFunc("/competitions/{id}/stats", resultsController.Stats(e)).Methods("GET")
	router.HandleFunc("/competitions/{id}/result", resultsController.Result(e)).Methods("GET")
	router.HandleFunc("/competitions/{id}/submissions", resultsController.Submissions(e)).Methods("GET")
}
