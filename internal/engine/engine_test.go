package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/hivemindhq/hivemind/internal/errs"
	"github.com/hivemindhq/hivemind/internal/extraction"
	"github.com/hivemindhq/hivemind/internal/search"
	"github.com/hivemindhq/hivemind/internal/store"
	"github.com/hivemindhq/hivemind/internal/tasks"
	"github.com/hivemindhq/hivemind/internal/types"
)

func newTestEngine() *Engine {
	return New(Config{})
}

func TestAddUpdateInvalidateProducesOrderedHistory(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	mem, err := e.AddMemory(ctx, AddMemoryRequest{Content: "likes espresso", AgentID: "agent-1"})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	newContent := "likes espresso with oat milk"
	if _, err := e.UpdateMemory(ctx, mem.ID, UpdateMemoryRequest{Content: &newContent, ChangedBy: "agent-1"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, err := e.InvalidateMemory(mem.ID, "no longer accurate", "agent-1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	hist, err := e.GetMemoryHistory(mem.ID)
	if err != nil {
		t.Fatalf("get history failed: %v", err)
	}
	wantOps := []types.MemoryOperation{types.MemoryOpAdd, types.MemoryOpUpdate, types.MemoryOpInvalidate}
	if len(hist) != len(wantOps) {
		t.Fatalf("expected %d history entries, got %d", len(wantOps), len(hist))
	}
	for i, op := range wantOps {
		if hist[i].Operation != op {
			t.Errorf("entry %d: expected %s, got %s", i, op, hist[i].Operation)
		}
	}

	listed := e.ListMemories(store.ListFilter{})
	for _, m := range listed {
		if m.ID == mem.ID {
			t.Fatalf("expected invalidated memory excluded from default listing")
		}
	}
}

func TestAddMemoryRejectsEmptyContent(t *testing.T) {
	e := newTestEngine()
	_, err := e.AddMemory(context.Background(), AddMemoryRequest{Content: ""})
	if !errors.Is(err, errs.ErrMalformedRequest) {
		t.Fatalf("expected ErrMalformedRequest for empty content, got %v", err)
	}
}

func TestSearchFallsBackToKeywordWithoutEmbeddingProvider(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	e.AddMemory(ctx, AddMemoryRequest{Content: "the build pipeline uses buildkite", AgentID: "agent-1"})
	e.AddMemory(ctx, AddMemoryRequest{Content: "deploys run through argo", AgentID: "agent-1"})

	results := e.Search(search.Query{Text: "buildkite"})
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword match, got %d", len(results))
	}
}

func TestSearchScopesByAgent(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	e.AddMemory(ctx, AddMemoryRequest{Content: "prefers dark mode", AgentID: "agent-1"})
	e.AddMemory(ctx, AddMemoryRequest{Content: "prefers dark mode too", AgentID: "agent-2"})

	results := e.Search(search.Query{Text: "dark mode", AgentID: "agent-1"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result scoped to agent-1, got %d", len(results))
	}
	if results[0].Memory.AgentID != "agent-1" {
		t.Fatalf("expected scoped result to belong to agent-1, got %s", results[0].Memory.AgentID)
	}
}

func TestKnowledgeGraphTraversal(t *testing.T) {
	e := newTestEngine()
	redis, _ := e.AddEntity("redis", "service", "cache", "agent-1", nil)
	gateway, _ := e.AddEntity("api-gateway", "service", "", "agent-1", nil)

	if _, err := e.AddRelationship(redis.ID, gateway.ID, "used_by", "", 0, "agent-1", nil); err != nil {
		t.Fatalf("add relationship failed: %v", err)
	}

	visited, err := e.Traverse(redis.ID, 2, nil)
	if err != nil {
		t.Fatalf("traverse failed: %v", err)
	}
	if len(visited) != 2 {
		t.Fatalf("expected 2 entities reached, got %d", len(visited))
	}

	if _, err := e.Traverse(9999, 1, nil); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown start entity, got %v", err)
	}
}

func TestAddRelationshipRejectsMissingEndpoint(t *testing.T) {
	e := newTestEngine()
	redis, _ := e.AddEntity("redis", "service", "", "agent-1", nil)

	if _, err := e.AddRelationship(redis.ID, 9999, "used_by", "", 0, "agent-1", nil); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing target entity, got %v", err)
	}
}

func TestTaskStateMachineThroughEngine(t *testing.T) {
	e := newTestEngine()
	task := e.CreateTask(tasks.CreateRequest{Title: "index the repo", CreatedBy: "coordinator"})

	if _, err := e.ClaimTask(task.ID, "worker-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := e.StartTask(task.ID, "worker-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	completed, err := e.CompleteTask(task.ID, "worker-1", "done")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != types.TaskCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}

	if _, err := e.StartTask(task.ID, "worker-1"); !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("expected ErrWrongState starting an already-completed task, got %v", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	mem, _ := e.AddMemory(ctx, AddMemoryRequest{Content: "likes espresso", AgentID: "agent-1"})
	e.RegisterAgent("agent-1", []string{"search"})
	task := e.CreateTask(tasks.CreateRequest{Title: "index the repo"})

	doc := e.Snapshot()

	restored := newTestEngine()
	restored.Restore(doc)

	got, err := restored.GetMemory(mem.ID)
	if err != nil {
		t.Fatalf("expected restored memory to be found: %v", err)
	}
	if got.Content != "likes espresso" {
		t.Fatalf("unexpected restored content: %s", got.Content)
	}

	gotTask, err := restored.GetTask(task.ID)
	if err != nil {
		t.Fatalf("expected restored task to be found: %v", err)
	}
	if gotTask.Title != "index the repo" {
		t.Fatalf("unexpected restored task title: %s", gotTask.Title)
	}

	agent, err := restored.GetAgent("agent-1")
	if err != nil {
		t.Fatalf("expected restored agent to be found: %v", err)
	}
	if agent.AgentID != "agent-1" {
		t.Fatalf("unexpected restored agent id: %s", agent.AgentID)
	}

	// ids allocated post-restore must not collide with restored ones.
	next, err := restored.AddMemory(ctx, AddMemoryRequest{Content: "new fact after restore"})
	if err != nil {
		t.Fatalf("add after restore failed: %v", err)
	}
	if next.ID <= mem.ID {
		t.Fatalf("expected new memory id greater than restored id %d, got %d", mem.ID, next.ID)
	}
}

type stubVectorProvider struct {
	vectors map[string][]float32
}

func (p *stubVectorProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.vectors[text], nil
}

func (p *stubVectorProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectors[t]
	}
	return out, nil
}

func (p *stubVectorProvider) Dimensions() int { return 2 }
func (p *stubVectorProvider) Available() bool { return true }

func TestHybridSearchUsedWhenEmbeddingIndexPopulated(t *testing.T) {
	provider := &stubVectorProvider{vectors: map[string][]float32{
		"loves coffee": {1, 0},
		"enjoys tea":   {0, 1},
	}}
	e := New(Config{EmbeddingProvider: provider})
	ctx := context.Background()

	mem, _ := e.AddMemory(ctx, AddMemoryRequest{Content: "loves coffee", AgentID: "agent-1"})
	e.AddMemory(ctx, AddMemoryRequest{Content: "enjoys tea", AgentID: "agent-1"})

	// AddMemory dispatches indexing asynchronously; index it synchronously
	// here so the search path below is deterministic.
	e.index.IndexOne(ctx, mem.ID, mem.Content)

	results := e.Search(search.Query{Text: "loves coffee"})
	if len(results) == 0 {
		t.Fatalf("expected at least one hybrid search result")
	}
	if results[0].Memory.ID != mem.ID {
		t.Fatalf("expected top hit to be the exact keyword+vector match, got %+v", results[0])
	}
}

type fakeExtractionProvider struct {
	candidates []extraction.Candidate
}

func (p *fakeExtractionProvider) Extract(ctx context.Context, messages []extraction.Message) ([]extraction.Candidate, error) {
	return p.candidates, nil
}

func (p *fakeExtractionProvider) Available() bool { return true }

func TestExtractMemoriesAppliesAddAndNoopDecisions(t *testing.T) {
	e := newTestEngine()
	e.extractor = &fakeExtractionProvider{
		candidates: []extraction.Candidate{
			{Content: "likes coffee"},
			{Content: "already known fact"},
		},
	}

	ctx := context.Background()
	e.AddMemory(ctx, AddMemoryRequest{Content: "already known fact", AgentID: "agent-1"})

	applied, err := e.ExtractMemories(ctx, "agent-1", nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected 1 applied memory (the add), got %d", len(applied))
	}
	if applied[0].Content != "likes coffee" {
		t.Fatalf("unexpected applied memory: %+v", applied[0])
	}
}
