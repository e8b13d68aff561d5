package store

import (
	"testing"

	"github.com/hivemindhq/hivemind/internal/types"
)

func TestAgentRegisterAndHeartbeat(t *testing.T) {
	s := NewAgentStore()
	a := s.Register("agent-1", []string{"search", "code"})
	if a.Status != types.AgentOnline {
		t.Fatalf("expected new agent to be online, got %s", a.Status)
	}

	s.IncrementMemoryCount("agent-1")
	s.IncrementMemoryCount("agent-1")

	_, ok := s.SetStatus("agent-1", types.AgentOffline)
	if !ok {
		t.Fatalf("expected SetStatus to find agent-1")
	}

	offline, _ := s.Get("agent-1")
	if offline.Status != types.AgentOffline {
		t.Fatalf("expected agent offline, got %s", offline.Status)
	}
	if offline.MemoryCount != 2 {
		t.Errorf("expected memory count 2, got %d", offline.MemoryCount)
	}

	revived, ok := s.Heartbeat("agent-1")
	if !ok {
		t.Fatalf("expected heartbeat to find agent-1")
	}
	if revived.Status != types.AgentOnline {
		t.Fatalf("expected heartbeat to bring agent back online")
	}
	if revived.MemoryCount != 2 {
		t.Errorf("expected heartbeat to preserve memory count, got %d", revived.MemoryCount)
	}
}

func TestAgentRegisterPreservesMemoryCountAcrossReregistration(t *testing.T) {
	s := NewAgentStore()
	s.Register("agent-1", []string{"search"})
	s.IncrementMemoryCount("agent-1")

	reregistered := s.Register("agent-1", []string{"search", "code"})
	if reregistered.MemoryCount != 1 {
		t.Fatalf("expected re-registration to preserve memory count, got %d", reregistered.MemoryCount)
	}
}

func TestAgentHeartbeatUnknownAgentFails(t *testing.T) {
	s := NewAgentStore()
	if _, ok := s.Heartbeat("ghost"); ok {
		t.Fatalf("expected heartbeat for unknown agent to fail")
	}
}
