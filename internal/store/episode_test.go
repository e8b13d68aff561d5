package store

import (
	"testing"
	"time"
)

func TestEpisodeBySessionFiltersCorrectly(t *testing.T) {
	s := NewEpisodeStore()
	now := time.Now()
	s.Add("session-a", "discussed deploy plan", now, now.Add(time.Minute))
	s.Add("session-b", "debugged flaky test", now, now.Add(time.Minute))
	s.Add("session-a", "wrapped up deploy", now, now.Add(2*time.Minute))

	episodes := s.BySession("session-a")
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes for session-a, got %d", len(episodes))
	}

	none := s.BySession("session-c")
	if len(none) != 0 {
		t.Fatalf("expected 0 episodes for unknown session, got %d", len(none))
	}
}
