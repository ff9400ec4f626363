package models

import "time"

// LeaderboardEntry is one ranked row, derived from a completed submission.
type LeaderboardEntry struct {
	Rank          int           `json:"rank"`
	ParticipantID string        `json:"participant_id"`
	Percentage    int           `json:"percentage"`
	TimeTaken     time.Duration `json:"-"`
	Passed        bool          `json:"passed"`
}

// RegionStats is the per-region slice of competition statistics.
type RegionStats struct {
	Region        string  `json:"region"`
	Registrations int     `json:"registrations"`
	Submissions   int     `json:"submissions"`
	AvgScore      float64 `json:"avg_score"`
}

// Stats aggregates a competition's registrations and results.
type Stats struct {
	TotalRegistrations int           `json:"total_registrations"`
	TotalSubmissions   int           `json:"total_submissions"`
	TotalDisqualified  int           `json:"total_disqualified"`
	TotalPaid          int           `json:"total_paid"`
	AvgScore           float64       `json:"avg_score"`
	MaxScore           int           `json:"max_score"`
	PassCount          int           `json:"pass_count"`
	ByRegion           []RegionStats `json:"by_region"`
}

// OwnResult is what a participant sees about their own attempt.
type OwnResult struct {
	Submission  Submission         `json:"submission"`
	Percentage  *int               `json:"percentage,omitempty"`
	Passed      *bool              `json:"passed,omitempty"`
	Rank        *int               `json:"rank,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
}
