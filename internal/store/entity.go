package store

import (
	"strings"
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

type entityRecord struct {
	mu   sync.Mutex
	data types.Entity
}

// EntityStore holds every knowledge-graph entity. Names are matched
// case-insensitively for de-duplication during extraction, but the
// original casing is stored.
type EntityStore struct {
	mu      sync.RWMutex
	records map[int64]*entityRecord
	byName  map[string]int64 // lowercased name -> id, for de-dup lookup
	ids     *idCounter
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		records: make(map[int64]*entityRecord),
		byName:  make(map[string]int64),
		ids:     newIDCounter(),
	}
}

// Add inserts a new entity and indexes it by lowercased name.
func (s *EntityStore) Add(name, entityType, description, agentID string, metadata map[string]string) *types.Entity {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.allocate()
	e := types.Entity{
		ID:          id,
		Name:        name,
		EntityType:  entityType,
		Description: description,
		AgentID:     agentID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    copyMetadata(metadata),
	}
	s.records[id] = &entityRecord{data: e}
	s.byName[strings.ToLower(name)] = id
	return e.Clone()
}

// FindByName looks up an entity by case-insensitive name match.
func (s *EntityStore) FindByName(name string) (*types.Entity, bool) {
	s.mu.RLock()
	id, found := s.byName[strings.ToLower(name)]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	return s.Get(id)
}

func (s *EntityStore) Get(id int64) (*types.Entity, bool) {
	s.mu.RLock()
	rec, found := s.records[id]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.data.Clone(), true
}

func (s *EntityStore) All() []*types.Entity {
	s.mu.RLock()
	recs := make([]*entityRecord, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]*types.Entity, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		e := rec.data.Clone()
		rec.mu.Unlock()
		out = append(out, e)
	}
	return out
}

// Restore repopulates the store from a snapshot.
func (s *EntityStore) Restore(entities []types.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*entityRecord, len(entities))
	s.byName = make(map[string]int64, len(entities))
	for _, e := range entities {
		s.records[e.ID] = &entityRecord{data: e}
		s.byName[strings.ToLower(e.Name)] = e.ID
		s.ids.observe(e.ID)
	}
}
