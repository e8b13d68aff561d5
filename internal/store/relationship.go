package store

import (
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

type relationshipRecord struct {
	mu   sync.Mutex
	data types.Relationship
}

// RelationshipStore holds every knowledge-graph edge. Referential
// integrity toward entities is weak: endpoints may refer to missing
// entities after an out-of-order restore, and traversal silently skips
// them rather than erroring.
type RelationshipStore struct {
	mu      sync.RWMutex
	records map[int64]*relationshipRecord
	ids     *idCounter
}

func NewRelationshipStore() *RelationshipStore {
	return &RelationshipStore{
		records: make(map[int64]*relationshipRecord),
		ids:     newIDCounter(),
	}
}

// Add inserts a new relationship.
func (s *RelationshipStore) Add(sourceID, targetID int64, relationType, description string, weight float64, createdBy string, metadata map[string]string) *types.Relationship {
	now := time.Now()
	if weight == 0 {
		weight = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.ids.allocate()
	r := types.Relationship{
		ID:             id,
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
		RelationType:   relationType,
		Description:    description,
		Weight:         weight,
		ValidFrom:      now,
		CreatedBy:      createdBy,
		Metadata:       copyMetadata(metadata),
	}
	s.records[id] = &relationshipRecord{data: r}
	return r.Clone()
}

func (s *RelationshipStore) Get(id int64) (*types.Relationship, bool) {
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

// All returns every relationship, live or invalidated.
func (s *RelationshipStore) All() []*types.Relationship {
	s.mu.RLock()
	recs := make([]*relationshipRecord, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]*types.Relationship, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		r := rec.data.Clone()
		rec.mu.Unlock()
		out = append(out, r)
	}
	return out
}

// ByEndpoint returns every live relationship where entityID is either
// endpoint.
func (s *RelationshipStore) ByEndpoint(entityID int64) []*types.Relationship {
	all := s.All()
	out := make([]*types.Relationship, 0)
	for _, r := range all {
		if !r.IsCurrent() {
			continue
		}
		if r.SourceEntityID == entityID || r.TargetEntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}

// Restore repopulates the store from a snapshot.
func (s *RelationshipStore) Restore(relationships []types.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*relationshipRecord, len(relationships))
	for _, r := range relationships {
		s.records[r.ID] = &relationshipRecord{data: r}
		s.ids.observe(r.ID)
	}
}
