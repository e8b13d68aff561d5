package store

import (
	"sort"
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

// memoryRecord pairs a Memory with its own lock and append-only history,
// so mutations on different ids proceed concurrently while mutations on
// the same id are serialized. Ground: the per-agent sync.RWMutex +
// registry-level sync.RWMutex split in the retrieved subagent registry.
type memoryRecord struct {
	mu      sync.Mutex
	data    types.Memory
	history []types.MemoryHistory
}

// MemoryStore holds every Memory and its audit history.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]*memoryRecord
	ids     *idCounter
	histIDs *idCounter
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*memoryRecord),
		ids:     newIDCounter(),
		histIDs: newIDCounter(),
	}
}

// AddRequest carries the fields accepted when adding a memory.
type AddRequest struct {
	Content   string
	Kind      types.MemoryKind
	AgentID   string
	UserID    string
	SessionID string
	Tags      []string
	Metadata  map[string]string
}

// Add allocates an id, stamps timestamps, appends the initial "add"
// history entry, and inserts the record. Returns an independent copy.
func (s *MemoryStore) Add(req AddRequest) *types.Memory {
	now := time.Now()
	kind := req.Kind
	if kind == "" {
		kind = types.MemoryKindFact
	}
	source := req.AgentID
	if source == "" {
		source = "unknown"
	}

	rec := &memoryRecord{
		data: types.Memory{
			Content:    req.Content,
			Kind:       kind,
			AgentID:    req.AgentID,
			UserID:     req.UserID,
			SessionID:  req.SessionID,
			Confidence: clampConfidence(1),
			Tags:       append([]string(nil), req.Tags...),
			CreatedAt:  now,
			UpdatedAt:  now,
			ValidFrom:  now,
			Source:     source,
			Metadata:   copyMetadata(req.Metadata),
		},
	}

	s.mu.Lock()
	id := s.ids.allocate()
	rec.data.ID = id
	rec.history = append(rec.history, types.MemoryHistory{
		ID:        s.histIDs.allocate(),
		MemoryID:  id,
		Operation: types.MemoryOpAdd,
		NewContent: rec.data.Content,
		Reason:    "Initial creation",
		ChangedBy: source,
		Timestamp: now,
	})
	s.records[id] = rec
	out := rec.data.Clone()
	s.mu.Unlock()

	return out
}

// Patch carries the optional fields accepted by Update; a nil pointer
// means "leave unchanged," and Tags/Metadata are applied only when
// HasTags/HasMeta is set.
type Patch struct {
	Content    *string
	Tags       []string
	HasTags    bool
	Confidence *float64
	Metadata   map[string]string
	HasMeta    bool
}

// Update applies the non-absent fields of a patch, appends an "update"
// history entry capturing old and new content, and returns the updated
// copy plus whether content changed (callers use this to decide
// whether to re-index embeddings).
func (s *MemoryStore) Update(id int64, patch Patch, changedBy, reason string) (mem *types.Memory, contentChanged, ok bool) {
	s.mu.RLock()
	rec, found := s.records[id]
	s.mu.RUnlock()
	if !found {
		return nil, false, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	oldContent := rec.data.Content
	if patch.Content != nil && *patch.Content != rec.data.Content {
		rec.data.Content = *patch.Content
		contentChanged = true
	}
	if patch.HasTags {
		rec.data.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Confidence != nil {
		rec.data.Confidence = clampConfidence(*patch.Confidence)
	}
	if patch.HasMeta {
		rec.data.Metadata = copyMetadata(patch.Metadata)
	}
	rec.data.UpdatedAt = time.Now()

	if reason == "" {
		reason = "Manual update"
	}
	rec.history = append(rec.history, types.MemoryHistory{
		ID:         s.histIDs.allocate(),
		MemoryID:   id,
		Operation:  types.MemoryOpUpdate,
		OldContent: oldContent,
		NewContent: rec.data.Content,
		Reason:     reason,
		ChangedBy:  changedBy,
		Timestamp:  rec.data.UpdatedAt,
	})

	return rec.data.Clone(), contentChanged, true
}

// Invalidate sets valid_until (overwriting it on repeated calls, per
// the pinned last-write-wins decision) and appends an "invalidate"
// history entry.
func (s *MemoryStore) Invalidate(id int64, reason, changedBy string) (*types.Memory, bool) {
	s.mu.RLock()
	rec, found := s.records[id]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := time.Now()
	rec.data.ValidUntil = &now

	rec.history = append(rec.history, types.MemoryHistory{
		ID:        s.histIDs.allocate(),
		MemoryID:  id,
		Operation: types.MemoryOpInvalidate,
		Reason:    reason,
		ChangedBy: changedBy,
		Timestamp: now,
	})

	return rec.data.Clone(), true
}

// Get returns an independent copy of a memory, or false if absent.
func (s *MemoryStore) Get(id int64) (*types.Memory, bool) {
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

// History returns a memory's audit entries in monotonic timestamp
// order (the order they were appended).
func (s *MemoryStore) History(id int64) ([]types.MemoryHistory, bool) {
	s.mu.RLock()
	rec, found := s.records[id]
	s.mu.RUnlock()
	if !found {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]types.MemoryHistory, len(rec.history))
	for i := range rec.history {
		out[i] = rec.history[i]
	}
	return out, true
}

// ListFilter narrows List to memories matching an agent/user scope and
// current validity.
type ListFilter struct {
	AgentID            string
	UserID             string
	IncludeInvalidated bool
}

// List returns independent copies of every matching memory sorted by
// id ascending, so callers that break ties on position (search, most
// notably) see insertion order rather than map iteration order.
func (s *MemoryStore) List(filter ListFilter) []*types.Memory {
	s.mu.RLock()
	recs := make([]*memoryRecord, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].data.ID < recs[j].data.ID
	})

	out := make([]*types.Memory, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		m := rec.data
		rec.mu.Unlock()

		if !filter.IncludeInvalidated && m.ValidUntil != nil {
			continue
		}
		if filter.AgentID != "" && m.AgentID != "" && m.AgentID != filter.AgentID {
			continue
		}
		if filter.UserID != "" && m.UserID != "" && m.UserID != filter.UserID {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// All returns independent copies of every memory regardless of
// validity or scope, for search and snapshotting.
func (s *MemoryStore) All() []*types.Memory {
	return s.List(ListFilter{IncludeInvalidated: true})
}

// AllHistory returns every memory's history keyed by memory id, for
// snapshotting.
func (s *MemoryStore) AllHistory() map[int64][]types.MemoryHistory {
	s.mu.RLock()
	recs := make(map[int64]*memoryRecord, len(s.records))
	for id, r := range s.records {
		recs[id] = r
	}
	s.mu.RUnlock()

	out := make(map[int64][]types.MemoryHistory, len(recs))
	for id, rec := range recs {
		rec.mu.Lock()
		hist := make([]types.MemoryHistory, len(rec.history))
		copy(hist, rec.history)
		rec.mu.Unlock()
		out[id] = hist
	}
	return out
}

// Restore repopulates the store from a snapshot: every record is
// inserted by id, histories are restored verbatim, and the id counters
// are rehydrated to max+1 so new writes never collide.
func (s *MemoryStore) Restore(memories []types.Memory, histories map[int64][]types.MemoryHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*memoryRecord, len(memories))
	var maxHistID int64
	for _, m := range memories {
		rec := &memoryRecord{data: m}
		if hist, ok := histories[m.ID]; ok {
			rec.history = append([]types.MemoryHistory(nil), hist...)
			for _, h := range hist {
				if h.ID > maxHistID {
					maxHistID = h.ID
				}
			}
		}
		s.records[m.ID] = rec
		s.ids.observe(m.ID)
	}
	s.histIDs.observe(maxHistID)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
