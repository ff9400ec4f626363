package models

// Role is the caller's role as seen by the visibility gate.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
	RoleAnonymous   Role = "anonymous"
)

// Caller identifies who is asking.
type Caller struct {
	ParticipantID string
	Role          Role
}

// Anonymous is the caller for requests without credentials.
var Anonymous = Caller{Role: RoleAnonymous}

// IsAdmin reports whether the caller has administrator rights.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
