package store

import (
	"context"
	"sort"
	"sync"

	"olympiad-engine/models"
)

type pairKey struct {
	competitionID string
	participantID string
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu            sync.RWMutex
	competitions  map[string]models.Competition
	registrations map[pairKey]models.Registration
	submissions   map[string]models.Submission
	byPair        map[pairKey]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		competitions:  make(map[string]models.Competition),
		registrations: make(map[pairKey]models.Registration),
		submissions:   make(map[string]models.Submission),
		byPair:        make(map[pairKey]string),
	}
}

var _ Store = (*Memory)(nil)

func cloneCompetition(c models.Competition) models.Competition {
	out := c
	if c.AnswerKey != nil {
		out.AnswerKey = append([]string(nil), c.AnswerKey...)
	}
	if c.ResultsPublishedAt != nil {
		at := *c.ResultsPublishedAt
		out.ResultsPublishedAt = &at
	}
	if c.ArchivedAt != nil {
		at := *c.ArchivedAt
		out.ArchivedAt = &at
	}
	return out
}

func (m *Memory) CreateCompetition(_ context.Context, c models.Competition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[c.ID]; ok {
		return ErrDuplicate
	}
	m.competitions[c.ID] = cloneCompetition(c)
	return nil
}

func (m *Memory) GetCompetition(_ context.Context, id string) (models.Competition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.competitions[id]
	if !ok {
		return models.Competition{}, ErrNotFound
	}
	return cloneCompetition(c), nil
}

func (m *Memory) ListCompetitions(_ context.Context, phases ...models.Phase) ([]models.Competition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[models.Phase]bool, len(phases))
	for _, p := range phases {
		want[p] = true
	}
	out := make([]models.Competition, 0, len(m.competitions))
	for _, c := range m.competitions {
		if len(want) > 0 && !want[c.Phase] {
			continue
		}
		out = append(out, cloneCompetition(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

func (m *Memory) UpdateCompetition(_ context.Context, c models.Competition, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.competitions[c.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	m.competitions[c.ID] = cloneCompetition(c)
	return nil
}

func (m *Memory) DeleteCompetition(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[id]; !ok {
		return ErrNotFound
	}
	for key := range m.registrations {
		if key.competitionID == id {
			return ErrConflict
		}
	}
	delete(m.competitions, id)
	return nil
}

func (m *Memory) CreateRegistration(_ context.Context, r models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.competitions[r.CompetitionID]; !ok {
		return ErrNotFound
	}
	key := pairKey{r.CompetitionID, r.ParticipantID}
	if _, ok := m.registrations[key]; ok {
		return ErrDuplicate
	}
	m.registrations[key] = r
	return nil
}

func (m *Memory) GetRegistration(_ context.Context, competitionID, participantID string) (models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[pairKey{competitionID, participantID}]
	if !ok {
		return models.Registration{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) SetEligible(_ context.Context, competitionID, participantID string, eligible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{competitionID, participantID}
	r, ok := m.registrations[key]
	if !ok {
		return ErrNotFound
	}
	r.Eligible = eligible
	m.registrations[key] = r
	return nil
}

func (m *Memory) ListRegistrations(_ context.Context, competitionID string) ([]models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Registration
	for key, r := range m.registrations {
		if key.competitionID == competitionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out, nil
}

func (m *Memory) CreateSubmission(_ context.Context, s models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{s.CompetitionID, s.ParticipantID}
	if _, ok := m.byPair[key]; ok {
		return ErrDuplicate
	}
	if _, ok := m.submissions[s.ID]; ok {
		return ErrDuplicate
	}
	m.submissions[s.ID] = s.Clone()
	m.byPair[key] = s.ID
	return nil
}

func (m *Memory) GetSubmission(_ context.Context, id string) (models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return models.Submission{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) GetSubmissionByParticipant(_ context.Context, competitionID, participantID string) (models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey{competitionID, participantID}]
	if !ok {
		return models.Submission{}, ErrNotFound
	}
	return m.submissions[id].Clone(), nil
}

func (m *Memory) UpdateSubmission(_ context.Context, s models.Submission, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.submissions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	m.submissions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) ListSubmissions(_ context.Context, competitionID string) ([]models.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.CompetitionID == competitionID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out, nil
}

// ApplyTransition expects each finalized submission to carry Version+1 of
// the stored record.
func (m *Memory) ApplyTransition(_ context.Context, c models.Competition, expectedVersion int64, finalized []models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.competitions[c.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrConflict
	}
	for _, s := range finalized {
		stored, ok := m.submissions[s.ID]
		if !ok {
			return ErrNotFound
		}
		if stored.Version != s.Version-1 {
			return ErrConflict
		}
	}

	m.competitions[c.ID] = cloneCompetition(c)
	for _, s := range finalized {
		m.submissions[s.ID] = s.Clone()
	}
	return nil
}
