package models

import "encoding/json"

// Durations are exposed to clients in seconds.

func (c Competition) MarshalJSON() ([]byte, error) {
	type plain Competition
	return json.Marshal(struct {
		plain
		TimeLimitSeconds float64 `json:"time_limit_seconds"`
	}{plain(c), c.TimeLimit.Seconds()})
}

func (s Submission) MarshalJSON() ([]byte, error) {
	type plain Submission
	return json.Marshal(struct {
		plain
		TimeTakenSeconds float64 `json:"time_taken_seconds"`
	}{plain(s), s.TimeTaken.Seconds()})
}

func (e LeaderboardEntry) MarshalJSON() ([]byte, error) {
	type plain LeaderboardEntry
	return json.Marshal(struct {
		plain
		TimeTakenSeconds float64 `json:"time_taken_seconds"`
	}{plain(e), e.TimeTaken.Seconds()})
}
