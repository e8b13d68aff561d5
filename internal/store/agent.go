package store

import (
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

// AgentStore holds every registered agent, keyed by client-supplied
// string id (not a generated counter). Ground: the teacher's
// RegisterAgent/UpdateAgentStatus/GetAgent/ListAgents shape, lifted
// from SQLite rows to an in-memory map.
type AgentStore struct {
	mu      sync.RWMutex
	records map[string]types.Agent
}

func NewAgentStore() *AgentStore {
	return &AgentStore{records: make(map[string]types.Agent)}
}

// Register inserts or updates an agent's registration.
func (s *AgentStore) Register(agentID string, capabilities []string) *types.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, found := s.records[agentID]
	a := types.Agent{
		AgentID:      agentID,
		Capabilities: append([]string(nil), capabilities...),
		Status:       types.AgentOnline,
		LastSeen:     now,
	}
	if found {
		a.MemoryCount = existing.MemoryCount
	}
	s.records[agentID] = a
	return a.Clone()
}

// Heartbeat bumps last_seen and marks the agent online.
func (s *AgentStore) Heartbeat(agentID string) (*types.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, found := s.records[agentID]
	if !found {
		return nil, false
	}
	a.LastSeen = time.Now()
	a.Status = types.AgentOnline
	s.records[agentID] = a
	return a.Clone(), true
}

// SetStatus updates an agent's status without touching last_seen.
func (s *AgentStore) SetStatus(agentID string, status types.AgentStatus) (*types.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, found := s.records[agentID]
	if !found {
		return nil, false
	}
	a.Status = status
	s.records[agentID] = a
	return a.Clone(), true
}

// IncrementMemoryCount is called whenever a memory is attributed to
// this agent.
func (s *AgentStore) IncrementMemoryCount(agentID string) {
	if agentID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.records[agentID]
	if !found {
		return
	}
	a.MemoryCount++
	s.records[agentID] = a
}

func (s *AgentStore) Get(agentID string) (*types.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, found := s.records[agentID]
	if !found {
		return nil, false
	}
	return a.Clone(), true
}

func (s *AgentStore) All() []*types.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Agent, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a.Clone())
	}
	return out
}

func (s *AgentStore) Restore(agents []types.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]types.Agent, len(agents))
	for _, a := range agents {
		s.records[a.AgentID] = a
	}
}
