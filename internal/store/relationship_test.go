package store

import "testing"

func TestRelationshipByEndpointMatchesEitherSide(t *testing.T) {
	s := NewRelationshipStore()
	r := s.Add(1, 2, "depends_on", "service a depends on service b", 0, "agent-1", nil)

	if r.Weight != 1 {
		t.Errorf("expected default weight 1, got %f", r.Weight)
	}

	bySource := s.ByEndpoint(1)
	if len(bySource) != 1 || bySource[0].ID != r.ID {
		t.Fatalf("expected relationship found via source endpoint")
	}

	byTarget := s.ByEndpoint(2)
	if len(byTarget) != 1 || byTarget[0].ID != r.ID {
		t.Fatalf("expected relationship found via target endpoint")
	}

	unrelated := s.ByEndpoint(99)
	if len(unrelated) != 0 {
		t.Fatalf("expected no relationships for unrelated entity")
	}
}
