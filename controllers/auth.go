package controllers

import (
	"context"
	"net/http"

	"olympiad-engine/models"
	"olympiad-engine/utils"
)

type callerKey struct{}

// Controller holds what every handler needs to identify the caller.
type Controller struct {
	Secret []byte
}

// Identify resolves the bearer token into a caller stored on the request
// context. Requests without a token continue as anonymous.
func (c Controller) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := utils.CallerFromRequest(r, c.Secret)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// CallerFrom returns the caller Identify stored, or anonymous.
func CallerFrom(r *http.Request) models.Caller {
	if caller, ok := r.Context().Value(callerKey{}).(models.Caller); ok {
		return caller
	}
	return models.Anonymous
}

// AdminOnly rejects anyone but administrators.
func (c Controller) AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch CallerFrom(r).Role {
		case models.RoleAdmin:
			next(w, r)
		case models.RoleAnonymous:
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
		default:
			utils.RespondWithError(w, http.StatusForbidden, models.Error{Message: "Administrator rights required", Code: "FORBIDDEN"})
		}
	}
}

// ParticipantOnly rejects anonymous callers and administrators.
func (c Controller) ParticipantOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch CallerFrom(r).Role {
		case models.RoleParticipant:
			next(w, r)
		case models.RoleAnonymous:
			utils.RespondWithError(w, http.StatusUnauthorized, models.Error{Message: "Unauthorized"})
		default:
			utils.RespondWithError(w, http.StatusForbidden, models.Error{Message: "Only participants can do this", Code: "FORBIDDEN"})
		}
	}
}
