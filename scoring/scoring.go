// Package scoring turns terminal submissions into a ranked leaderboard and
// aggregate statistics. Every function here is pure.
//
// Percentages are whole numbers, rounded half up. Ranking is by percentage
// descending, then time taken ascending. Entries equal on both share a rank
// (1, 2, 2, 4) and are listed by participant id.
package scoring

import (
	"math"
	"sort"
	"strings"

	"olympiad-engine/models"
)

// UnknownRegion groups participants the profile collaborator has no region for.
const UnknownRegion = "unknown"

// Percentage returns raw/questionCount as a whole percentage, rounded half up.
func Percentage(raw, questionCount int) int {
	if questionCount <= 0 || raw <= 0 {
		return 0
	}
	return (raw*200 + questionCount) / (questionCount * 2)
}

// Passed reports whether percentage meets the pass threshold.
func Passed(percentage, passThreshold int) bool {
	return percentage >= passThreshold
}

// RawScore counts answers matching the key. Comparison ignores case and
// surrounding whitespace; questions without an answer score nothing.
func RawScore(answerKey []string, answers map[int]string) int {
	score := 0
	for q, given := range answers {
		if q < 1 || q > len(answerKey) {
			continue
		}
		if normalize(given) != "" && normalize(given) == normalize(answerKey[q-1]) {
			score++
		}
	}
	return score
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Rank builds the leaderboard from a competition's submissions. Only
// COMPLETED submissions are ranked; everything else is ignored.
func Rank(questionCount, passThreshold int, submissions []models.Submission) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(submissions))
	for _, s := range submissions {
		if s.Status != models.StatusCompleted {
			continue
		}
		pct := Percentage(s.RawScore, questionCount)
		entries = append(entries, models.LeaderboardEntry{
			ParticipantID: s.ParticipantID,
			Percentage:    pct,
			TimeTaken:     s.TimeTaken,
			Passed:        Passed(pct, passThreshold),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		if a.TimeTaken != b.TimeTaken {
			return a.TimeTaken < b.TimeTaken
		}
		return a.ParticipantID < b.ParticipantID
	})

	for i := range entries {
		if i > 0 && entries[i].Percentage == entries[i-1].Percentage && entries[i].TimeTaken == entries[i-1].TimeTaken {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// Input is everything Summarize needs. Paid and Regions come from the
// payment and profile collaborators.
type Input struct {
	QuestionCount int
	PassThreshold int
	Registrations []models.Registration
	Submissions   []models.Submission
	Paid          map[string]bool
	Regions       map[string]string
}

// Summarize computes aggregate statistics. IN_PROGRESS submissions are not
// counted; DISQUALIFIED ones count toward totals but not toward scores.
func Summarize(in Input) models.Stats {
	stats := models.Stats{
		TotalRegistrations: len(in.Registrations),
		ByRegion:           []models.RegionStats{},
	}

	type regionAcc struct {
		registrations int
		submissions   int
		scoreSum      int
		scored        int
	}
	regions := make(map[string]*regionAcc)
	regionOf := func(participantID string) *regionAcc {
		name := strings.TrimSpace(in.Regions[participantID])
		if name == "" {
			name = UnknownRegion
		}
		acc, ok := regions[name]
		if !ok {
			acc = &regionAcc{}
			regions[name] = acc
		}
		return acc
	}

	for _, r := range in.Registrations {
		regionOf(r.ParticipantID).registrations++
		if r.Eligible && in.Paid[r.ParticipantID] {
			stats.TotalPaid++
		}
	}

	scoreSum, scored := 0, 0
	for _, s := range in.Submissions {
		switch s.Status {
		case models.StatusDisqualified:
			stats.TotalSubmissions++
			stats.TotalDisqualified++
			regionOf(s.ParticipantID).submissions++
		case models.StatusCompleted:
			stats.TotalSubmissions++
			pct := Percentage(s.RawScore, in.QuestionCount)
			scoreSum += pct
			scored++
			if pct > stats.MaxScore {
				stats.MaxScore = pct
			}
			if Passed(pct, in.PassThreshold) {
				stats.PassCount++
			}
			acc := regionOf(s.ParticipantID)
			acc.submissions++
			acc.scoreSum += pct
			acc.scored++
		}
	}
	stats.AvgScore = average(scoreSum, scored)

	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		acc := regions[name]
		stats.ByRegion = append(stats.ByRegion, models.RegionStats{
			Region:        name,
			Registrations: acc.registrations,
			Submissions:   acc.submissions,
			AvgScore:      average(acc.scoreSum, acc.scored),
		})
	}
	return stats
}

func average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*100) / 100
}
