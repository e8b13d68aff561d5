package extraction

import "testing"

func TestClassifyExactMatchIsNoop(t *testing.T) {
	existing := []ExistingMemory{{ID: 1, Content: "User prefers dark mode"}}
	candidates := []Candidate{{Content: "user prefers dark mode"}}

	decisions := Classify(candidates, existing)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	if decisions[0].Kind != DecisionNoop || decisions[0].ExistingID != 1 {
		t.Fatalf("expected noop against existing id 1, got %+v", decisions[0])
	}
}

func TestClassifyMoreSpecificCandidateIsUpdate(t *testing.T) {
	existing := []ExistingMemory{{ID: 2, Content: "likes coffee"}}
	candidates := []Candidate{{Content: "likes coffee, specifically espresso"}}

	decisions := Classify(candidates, existing)
	if decisions[0].Kind != DecisionUpdate || decisions[0].ExistingID != 2 {
		t.Fatalf("expected update against existing id 2, got %+v", decisions[0])
	}
}

func TestClassifyLessSpecificCandidateIsNoop(t *testing.T) {
	existing := []ExistingMemory{{ID: 3, Content: "likes coffee, specifically espresso"}}
	candidates := []Candidate{{Content: "likes coffee"}}

	decisions := Classify(candidates, existing)
	if decisions[0].Kind != DecisionNoop || decisions[0].ExistingID != 3 {
		t.Fatalf("expected noop, existing memory already subsumes candidate, got %+v", decisions[0])
	}
}

func TestClassifyUnrelatedCandidateIsAdd(t *testing.T) {
	existing := []ExistingMemory{{ID: 4, Content: "likes coffee"}}
	candidates := []Candidate{{Content: "works remotely on weekends"}}

	decisions := Classify(candidates, existing)
	if decisions[0].Kind != DecisionAdd {
		t.Fatalf("expected add for unrelated candidate, got %+v", decisions[0])
	}
}

func TestClassifySkipsBlankCandidates(t *testing.T) {
	candidates := []Candidate{{Content: "   "}, {Content: ""}}
	decisions := Classify(candidates, nil)
	if len(decisions) != 0 {
		t.Fatalf("expected blank candidates to be skipped, got %d decisions", len(decisions))
	}
}
