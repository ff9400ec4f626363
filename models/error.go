package models

// Error is the JSON body of every failed HTTP response.
type Error struct {
	Message  string            `json:"message"`
	Code     string            `json:"code,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
