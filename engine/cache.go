package engine

import (
	"sync"

	"olympiad-engine/models"
)

// boardCache keeps computed leaderboards per competition. Each
// invalidation bumps a generation so a board computed from data read
// before the invalidation is never stored.
type boardCache struct {
	mu     sync.Mutex
	gen    map[string]uint64
	boards map[string][]models.LeaderboardEntry
}

func newBoardCache() *boardCache {
	return &boardCache{
		gen:    make(map[string]uint64),
		boards: make(map[string][]models.LeaderboardEntry),
	}
}

func (b *boardCache) get(id string) ([]models.LeaderboardEntry, uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	board, ok := b.boards[id]
	return board, b.gen[id], ok
}

func (b *boardCache) put(id string, gen uint64, board []models.LeaderboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen[id] == gen {
		b.boards[id] = board
	}
}

func (b *boardCache) invalidate(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen[id]++
	delete(b.boards, id)
}
