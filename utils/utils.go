package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"

	"olympiad-engine/apperrors"
	"olympiad-engine/models"
)

func RespondWithError(w http.ResponseWriter, status int, error models.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(error); err != nil {
		logrus.WithError(err).Error("failed to encode error response")
	}
}

func ResponseJSON(w http.ResponseWriter, data interface{}) {
	ResponseJSONStatus(w, http.StatusOK, data)
}

func ResponseJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, models.Error{Message: "Failed to encode response"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// RespondWithAppError writes an engine error with the status its code maps
// to. Causes are logged, never sent.
func RespondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		logrus.WithError(err).Error("unhandled error")
		RespondWithError(w, http.StatusInternalServerError, models.Error{
			Message: "Internal server error",
			Code:    string(apperrors.CodeUnknown),
		})
		return
	}
	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("code", appErr.Code).Error("request failed")
	}
	RespondWithError(w, status, models.Error{
		Message:  appErr.Message,
		Code:     string(appErr.Code),
		Metadata: appErr.Metadata,
	})
}

// ParseToken validates an HS256 token signed with secret.
func ParseToken(tokenString string, secret []byte) (*jwt.Token, error) {
	if len(secret) == 0 {
		return nil, errors.New("SECRET is not set")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				return nil, errors.New("token expired")
			}
		}
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

// GenerateToken issues a token carrying user_id and role.
func GenerateToken(userID, role string, secret []byte, expiration time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("SECRET is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":     "olympiad",
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(expiration).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// RoleOf maps an identity provider role onto the engine's roles.
func RoleOf(role string) (models.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "superadmin", "schooladmin", "admin":
		return models.RoleAdmin, true
	case "student", "participant":
		return models.RoleParticipant, true
	default:
		return "", false
	}
}

// CallerFromRequest reads the bearer token. A request without an
// Authorization header is anonymous; a present but bad token is an error.
func CallerFromRequest(r *http.Request, secret []byte) (models.Caller, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return models.Anonymous, nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return models.Caller{}, errors.New("Invalid Authorization header format")
	}

	token, err := ParseToken(parts[1], secret)
	if err != nil {
		return models.Caller{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Caller{}, errors.New("Invalid token claims")
	}

	var userID string
	switch id := claims["user_id"].(type) {
	case float64:
		userID = strconv.FormatInt(int64(id), 10)
	case string:
		userID = id
	}
	if userID == "" {
		return models.Caller{}, errors.New("user_id not found in token")
	}
	roleClaim, _ := claims["role"].(string)
	role, ok := RoleOf(roleClaim)
	if !ok {
		return models.Caller{}, fmt.Errorf("unknown role %q", roleClaim)
	}
	return models.Caller{ParticipantID: userID, Role: role}, nil
}
