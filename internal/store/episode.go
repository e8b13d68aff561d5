package store

import (
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

// EpisodeStore holds session-scoped summaries. Episodes carry no
// transitions in the core spec, so this is a plain insert/list table.
type EpisodeStore struct {
	mu      sync.RWMutex
	records map[int64]types.Episode
	ids     *idCounter
}

func NewEpisodeStore() *EpisodeStore {
	return &EpisodeStore{
		records: make(map[int64]types.Episode),
		ids:     newIDCounter(),
	}
}

func (s *EpisodeStore) Add(sessionID, summary string, startedAt, endedAt time.Time) *types.Episode {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.allocate()
	e := types.Episode{
		ID:        id,
		SessionID: sessionID,
		Summary:   summary,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		CreatedAt: time.Now(),
	}
	s.records[id] = e
	return e.Clone()
}

func (s *EpisodeStore) Get(id int64) (*types.Episode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.records[id]
	if !found {
		return nil, false
	}
	return e.Clone(), true
}

func (s *EpisodeStore) BySession(sessionID string) []*types.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Episode, 0)
	for _, e := range s.records {
		if e.SessionID == sessionID {
			out = append(out, e.Clone())
		}
	}
	return out
}

func (s *EpisodeStore) All() []*types.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Episode, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.Clone())
	}
	return out
}

func (s *EpisodeStore) Restore(episodes []types.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]types.Episode, len(episodes))
	for _, e := range episodes {
		s.records[e.ID] = e
		s.ids.observe(e.ID)
	}
}
