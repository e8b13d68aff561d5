package search

import (
	"testing"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

func TestKeywordScoresExactMatchHighest(t *testing.T) {
	// Memory 1 matches through its tag but holds only "dark" of the two
	// query tokens in its content (0.5); memory 2 equals the query (1.0).
	memories := []*types.Memory{
		{ID: 1, Content: "the user prefers a dark theme", Tags: []string{"dark mode"}},
		{ID: 2, Content: "dark mode"},
	}

	results := Keyword(memories, Query{Text: "dark mode"})
	if len(results) != 2 {
		t.Fatalf("expected both memories to match, got %d", len(results))
	}
	if results[0].Memory.ID != 2 {
		t.Fatalf("expected exact match (id 2) to score highest, got id %d", results[0].Memory.ID)
	}
}

func TestKeywordExcludesInvalidatedMemories(t *testing.T) {
	now := time.Now()
	memories := []*types.Memory{
		{ID: 1, Content: "still valid fact", ValidUntil: nil},
		{ID: 2, Content: "invalidated fact", ValidUntil: &now},
	}

	results := Keyword(memories, Query{Text: "fact"})
	if len(results) != 1 || results[0].Memory.ID != 1 {
		t.Fatalf("expected only the valid memory to be returned, got %+v", results)
	}
}

func TestKeywordFiltersByAgentScope(t *testing.T) {
	memories := []*types.Memory{
		{ID: 1, Content: "agent one's fact", AgentID: "agent-1"},
		{ID: 2, Content: "agent two's fact", AgentID: "agent-2"},
	}

	results := Keyword(memories, Query{Text: "fact", AgentID: "agent-1"})
	if len(results) != 1 || results[0].Memory.ID != 1 {
		t.Fatalf("expected scoping to agent-1 only, got %+v", results)
	}
}

type fakeScorer struct {
	hits []VectorHit
}

func (f fakeScorer) TopK(query string, k int) []VectorHit {
	return f.hits
}

func TestHybridBlendsKeywordAndVectorScores(t *testing.T) {
	memories := []*types.Memory{
		{ID: 1, Content: "likes espresso"},
		{ID: 2, Content: "enjoys tea"},
	}
	scorer := fakeScorer{hits: []VectorHit{{ID: 1, Similarity: 1.0}, {ID: 2, Similarity: 0.9}}}

	results := Hybrid(memories, Query{Text: "espresso"}, scorer)

	var gotOne, gotTwo bool
	for _, r := range results {
		if r.Memory.ID == 1 {
			gotOne = true
			if r.Score <= 0.7 {
				t.Errorf("expected blended score for keyword+vector hit to exceed vector-only floor, got %f", r.Score)
			}
		}
		if r.Memory.ID == 2 {
			gotTwo = true
		}
	}
	if !gotOne {
		t.Fatalf("expected memory 1 (keyword+vector match) in results")
	}
	if !gotTwo {
		t.Fatalf("expected memory 2 (vector-only, above 0.3 floor) lifted into results")
	}
}

func TestKeywordTiesBreakByInsertionOrderAndAreStableAcrossCalls(t *testing.T) {
	memories := []*types.Memory{
		{ID: 1, Content: "fact about topic"},
		{ID: 2, Content: "fact about topic"},
		{ID: 3, Content: "fact about topic"},
	}

	var first []int64
	for attempt := 0; attempt < 5; attempt++ {
		results := Keyword(memories, Query{Text: "fact about topic"})
		if len(results) != 3 {
			t.Fatalf("expected all 3 equally-scored memories returned, got %d", len(results))
		}
		got := []int64{results[0].Memory.ID, results[1].Memory.ID, results[2].Memory.ID}
		if attempt == 0 {
			first = got
			if first[0] != 1 || first[1] != 2 || first[2] != 3 {
				t.Fatalf("expected tied results in insertion order [1 2 3], got %v", first)
			}
			continue
		}
		for i := range got {
			if got[i] != first[i] {
				t.Fatalf("attempt %d: tied ordering changed across calls, expected %v got %v", attempt, first, got)
			}
		}
	}
}

func TestHybridDropsLowSimilarityVectorOnlyHits(t *testing.T) {
	memories := []*types.Memory{
		{ID: 1, Content: "unrelated content"},
	}
	scorer := fakeScorer{hits: []VectorHit{{ID: 1, Similarity: 0.1}}}

	results := Hybrid(memories, Query{Text: "something else entirely"}, scorer)
	if len(results) != 0 {
		t.Fatalf("expected low-similarity vector-only hit below the 0.3 floor to be dropped, got %+v", results)
	}
}
