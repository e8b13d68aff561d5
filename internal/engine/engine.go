// Package engine wires the record store, search, graph, embedding
// index, extraction orchestrator, task engine, channel hub, snapshot
// manager, and replication emitter into the single surface the
// HTTP/WS transport calls. It is the only package that knows a memory
// mutation must also append history, maybe re-index an embedding,
// publish to a channel, and emit a replication frame — the store
// itself stays a passive record of state, the way
// internal/store/store.go's package doc promises.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hivemindhq/hivemind/internal/channels"
	"github.com/hivemindhq/hivemind/internal/embedding"
	"github.com/hivemindhq/hivemind/internal/errs"
	"github.com/hivemindhq/hivemind/internal/extraction"
	"github.com/hivemindhq/hivemind/internal/graph"
	"github.com/hivemindhq/hivemind/internal/logging"
	"github.com/hivemindhq/hivemind/internal/replication"
	"github.com/hivemindhq/hivemind/internal/search"
	"github.com/hivemindhq/hivemind/internal/snapshot"
	"github.com/hivemindhq/hivemind/internal/store"
	"github.com/hivemindhq/hivemind/internal/tasks"
	"github.com/hivemindhq/hivemind/internal/types"
)

var log = logging.WithComponent("ENGINE")

// Engine is the process-wide coordinator. Every field is itself
// concurrency-safe, so Engine has no lock of its own.
type Engine struct {
	store      *store.Store
	tasks      *tasks.Store
	channels   *channels.Hub
	index      *embedding.Index
	extractor  extraction.Provider
	replicator *replication.Emitter // nil when replication is disabled
}

// Config bundles the optional collaborators an Engine is built with.
type Config struct {
	EmbeddingProvider  embedding.Provider
	ExtractionProvider extraction.Provider
	Replicator         *replication.Emitter
}

func New(cfg Config) *Engine {
	return &Engine{
		store:      store.New(),
		tasks:      tasks.NewStore(),
		channels:   channels.NewHub(),
		index:      embedding.New(cfg.EmbeddingProvider),
		extractor:  cfg.ExtractionProvider,
		replicator: cfg.Replicator,
	}
}

func (e *Engine) emit(kind, operation string, payload interface{}) {
	if e.replicator != nil {
		e.replicator.Emit(kind, operation, payload)
	}
}

// --- Memories ---------------------------------------------------------

// AddMemoryRequest is the public request shape for adding a memory.
type AddMemoryRequest struct {
	Content   string
	Kind      types.MemoryKind
	AgentID   string
	UserID    string
	SessionID string
	Tags      []string
	Metadata  map[string]string
}

// AddMemory stores a new memory, publishes it to its user's channel and
// the global channel, replicates it, and dispatches asynchronous embedding indexing.
func (e *Engine) AddMemory(ctx context.Context, req AddMemoryRequest) (*types.Memory, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("%w: content is required", errs.ErrMalformedRequest)
	}

	mem := e.store.Memories.Add(store.AddRequest{
		Content:   req.Content,
		Kind:      req.Kind,
		AgentID:   req.AgentID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Tags:      req.Tags,
		Metadata:  req.Metadata,
	})

	e.store.Agents.IncrementMemoryCount(req.AgentID)
	e.channels.Publish(channels.MemoryChannel(mem.UserID), "memory_added", mem)
	e.channels.Publish(channels.GlobalChannel, "memory_added", mem)
	e.emit("memory", "add", mem)

	go e.index.IndexOne(context.Background(), mem.ID, mem.Content)

	return mem, nil
}

// UpdateMemoryRequest carries the optional fields accepted by UpdateMemory.
type UpdateMemoryRequest struct {
	Content    *string
	Tags       []string
	HasTags    bool
	Confidence *float64
	Metadata   map[string]string
	HasMeta    bool
	ChangedBy  string
	Reason     string
}

func (e *Engine) UpdateMemory(ctx context.Context, id int64, req UpdateMemoryRequest) (*types.Memory, error) {
	mem, contentChanged, ok := e.store.Memories.Update(id, store.Patch{
		Content:    req.Content,
		Tags:       req.Tags,
		HasTags:    req.HasTags,
		Confidence: req.Confidence,
		Metadata:   req.Metadata,
		HasMeta:    req.HasMeta,
	}, req.ChangedBy, req.Reason)
	if !ok {
		return nil, errs.NotFound("memory", id)
	}

	e.channels.Publish(channels.MemoryChannel(mem.UserID), "memory_updated", mem)
	e.channels.Publish(channels.GlobalChannel, "memory_updated", mem)
	e.emit("memory", "update", mem)

	if contentChanged {
		go e.index.IndexOne(context.Background(), mem.ID, mem.Content)
	}

	return mem, nil
}

func (e *Engine) InvalidateMemory(id int64, reason, changedBy string) (*types.Memory, error) {
	mem, ok := e.store.Memories.Invalidate(id, reason, changedBy)
	if !ok {
		return nil, errs.NotFound("memory", id)
	}

	e.index.Remove(id)
	e.channels.Publish(channels.MemoryChannel(mem.UserID), "memory_invalidated", mem)
	e.channels.Publish(channels.GlobalChannel, "memory_invalidated", mem)
	e.emit("memory", "invalidate", mem)
	return mem, nil
}

func (e *Engine) GetMemory(id int64) (*types.Memory, error) {
	mem, ok := e.store.Memories.Get(id)
	if !ok {
		return nil, errs.NotFound("memory", id)
	}
	return mem, nil
}

func (e *Engine) GetMemoryHistory(id int64) ([]types.MemoryHistory, error) {
	hist, ok := e.store.Memories.History(id)
	if !ok {
		return nil, errs.NotFound("memory", id)
	}
	return hist, nil
}

func (e *Engine) ListMemories(filter store.ListFilter) []*types.Memory {
	return e.store.Memories.List(filter)
}

// vectorScorer adapts *embedding.Index to search.VectorScorer, since
// the two packages intentionally don't import each other.
type vectorScorer struct{ index *embedding.Index }

func (v vectorScorer) TopK(query string, k int) []search.VectorHit {
	hits := v.index.TopK(query, k)
	out := make([]search.VectorHit, len(hits))
	for i, h := range hits {
		out[i] = search.VectorHit{ID: h.ID, Similarity: h.Similarity}
	}
	return out
}

// Search runs hybrid (keyword+vector) search when the embedding index
// is available and populated, falling back to pure keyword search
// otherwise — callers never need to know which path ran.
func (e *Engine) Search(q search.Query) []search.Result {
	all := e.store.Memories.All()
	if e.index.Available() && e.index.Len() > 0 {
		return search.Hybrid(all, q, vectorScorer{index: e.index})
	}
	return search.Keyword(all, q)
}

// --- Entities & relationships ------------------------------------------

func (e *Engine) AddEntity(name, entityType, description, agentID string, metadata map[string]string) (*types.Entity, bool) {
	if existing, found := e.store.Entities.FindByName(name); found {
		return existing, false
	}
	return e.store.Entities.Add(name, entityType, description, agentID, metadata), true
}

func (e *Engine) GetEntity(id int64) (*types.Entity, error) {
	ent, ok := e.store.Entities.Get(id)
	if !ok {
		return nil, errs.NotFound("entity", id)
	}
	return ent, nil
}

func (e *Engine) FindEntityByName(name string) (*types.Entity, bool) {
	return e.store.Entities.FindByName(name)
}

func (e *Engine) ListEntities() []*types.Entity {
	return e.store.Entities.All()
}

func (e *Engine) AddRelationship(sourceID, targetID int64, relationType, description string, weight float64, createdBy string, metadata map[string]string) (*types.Relationship, error) {
	if _, ok := e.store.Entities.Get(sourceID); !ok {
		return nil, errs.NotFound("entity", sourceID)
	}
	if _, ok := e.store.Entities.Get(targetID); !ok {
		return nil, errs.NotFound("entity", targetID)
	}
	rel := e.store.Relationships.Add(sourceID, targetID, relationType, description, weight, createdBy, metadata)
	e.emit("relationship", "add", rel)
	return rel, nil
}

func (e *Engine) EntityRelationships(entityID int64) ([]graph.Neighbor, error) {
	if _, ok := e.store.Entities.Get(entityID); !ok {
		return nil, errs.NotFound("entity", entityID)
	}
	return graph.EntityRelationships(entityID, e.store.Relationships.ByEndpoint, e.store.Entities.Get), nil
}

func (e *Engine) Traverse(startID int64, depth int, relationTypes []string) ([]graph.VisitedEntity, error) {
	if _, ok := e.store.Entities.Get(startID); !ok {
		return nil, errs.NotFound("entity", startID)
	}
	return graph.Traverse(startID, depth, e.store.Relationships.ByEndpoint, e.store.Entities.Get, relationTypes), nil
}

// --- Episodes -----------------------------------------------------------

func (e *Engine) AddEpisode(sessionID, summary string, startedAt, endedAt time.Time) *types.Episode {
	return e.store.Episodes.Add(sessionID, summary, startedAt, endedAt)
}

func (e *Engine) EpisodesBySession(sessionID string) []*types.Episode {
	return e.store.Episodes.BySession(sessionID)
}

// --- Agents ---------------------------------------------------------------

func (e *Engine) RegisterAgent(agentID string, capabilities []string) *types.Agent {
	a := e.store.Agents.Register(agentID, capabilities)
	e.channels.Publish(channels.AgentChannel, "agent_registered", a)
	e.emit("agent", "register", a)
	return a
}

func (e *Engine) Heartbeat(agentID string) (*types.Agent, error) {
	a, ok := e.store.Agents.Heartbeat(agentID)
	if !ok {
		return nil, errs.NotFound("agent", agentID)
	}
	return a, nil
}

func (e *Engine) SetAgentStatus(agentID string, status types.AgentStatus) (*types.Agent, error) {
	a, ok := e.store.Agents.SetStatus(agentID, status)
	if !ok {
		return nil, errs.NotFound("agent", agentID)
	}
	e.channels.Publish(channels.AgentChannel, "agent_status", a)
	e.emit("agent", "status", a)
	return a, nil
}

func (e *Engine) GetAgent(agentID string) (*types.Agent, error) {
	a, ok := e.store.Agents.Get(agentID)
	if !ok {
		return nil, errs.NotFound("agent", agentID)
	}
	return a, nil
}

func (e *Engine) ListAgents() []*types.Agent {
	return e.store.Agents.All()
}

// --- Tasks ------------------------------------------------------------

func (e *Engine) CreateTask(req tasks.CreateRequest) *types.Task {
	t := e.tasks.Create(req)
	e.channels.Publish(channels.TaskChannel, "task_created", t)
	e.emit("task", "create", t)
	return t
}

func (e *Engine) ClaimTask(id int64, agentID string) (*types.Task, error) {
	t, err := e.tasks.Claim(id, agentID)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_claimed", t)
	e.emit("task", "claim", t)
	return t, nil
}

func (e *Engine) StartTask(id int64, agentID string) (*types.Task, error) {
	t, err := e.tasks.Start(id, agentID)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_started", t)
	e.emit("task", "start", t)
	return t, nil
}

func (e *Engine) ReportTaskProgress(id int64, agentID, note string) (*types.Task, error) {
	t, err := e.tasks.Progress(id, agentID, note)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_progress", t)
	return t, nil
}

func (e *Engine) CompleteTask(id int64, agentID, result string) (*types.Task, error) {
	t, err := e.tasks.Complete(id, agentID, result)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_completed", t)
	e.emit("task", "complete", t)
	return t, nil
}

func (e *Engine) FailTask(id int64, agentID, reason string) (*types.Task, error) {
	t, err := e.tasks.Fail(id, agentID, reason)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_failed", t)
	e.emit("task", "fail", t)
	return t, nil
}

func (e *Engine) CancelTask(id int64, requestedBy, reason string) (*types.Task, error) {
	t, err := e.tasks.Cancel(id, requestedBy, reason)
	if err != nil {
		return nil, err
	}
	e.channels.Publish(channels.TaskChannel, "task_cancelled", t)
	e.emit("task", "cancel", t)
	return t, nil
}

func (e *Engine) GetTask(id int64) (*types.Task, error) {
	t, ok := e.tasks.Get(id)
	if !ok {
		return nil, errs.NotFound("task", id)
	}
	return t, nil
}

func (e *Engine) GetTaskEvents(id int64) ([]types.TaskEvent, error) {
	events, ok := e.tasks.Events(id)
	if !ok {
		return nil, errs.NotFound("task", id)
	}
	return events, nil
}

func (e *Engine) ListTasks(filter tasks.ListFilter) []*types.Task {
	return e.tasks.List(filter)
}

// --- Channels ------------------------------------------------------------

func (e *Engine) Subscribe(channel string) *channels.Subscription {
	return e.channels.Subscribe(channel)
}

func (e *Engine) RegisterChannel(ch types.Channel) *types.Channel {
	return e.channels.Register(ch)
}

func (e *Engine) ListChannels() []*types.Channel {
	return e.channels.ListRegistered()
}

// --- Extraction -----------------------------------------------------------

// ExtractMemories calls the configured extraction provider over a
// conversation, classifies each candidate against the agent's
// currently valid memories, and applies add/update/noop decisions
// through the normal mutation entry points.
func (e *Engine) ExtractMemories(ctx context.Context, agentID string, messages []extraction.Message) ([]*types.Memory, error) {
	if e.extractor == nil || !e.extractor.Available() {
		return nil, errs.ErrProviderUnavailable
	}

	candidates, err := e.extractor.Extract(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	existingMemories := e.store.Memories.List(store.ListFilter{AgentID: agentID})
	existing := make([]extraction.ExistingMemory, len(existingMemories))
	for i, m := range existingMemories {
		existing[i] = extraction.ExistingMemory{ID: m.ID, Content: m.Content}
	}

	decisions := extraction.Classify(candidates, existing)

	out := make([]*types.Memory, 0, len(decisions))
	for _, d := range decisions {
		switch d.Kind {
		case extraction.DecisionAdd:
			mem, err := e.AddMemory(ctx, AddMemoryRequest{
				Content: d.Candidate.Content,
				AgentID: agentID,
				Tags:    d.Candidate.Tags,
			})
			if err != nil {
				log.Warnf("failed to apply extracted add: %v", err)
				continue
			}
			out = append(out, mem)
		case extraction.DecisionUpdate:
			content := d.Candidate.Content
			mem, err := e.UpdateMemory(ctx, d.ExistingID, UpdateMemoryRequest{
				Content:   &content,
				ChangedBy: agentID,
				Reason:    "Updated by extraction",
			})
			if err != nil {
				log.Warnf("failed to apply extracted update: %v", err)
				continue
			}
			out = append(out, mem)
		case extraction.DecisionNoop:
			// Candidate already represented; nothing to apply.
		}
	}

	return out, nil
}

// --- Stats & snapshotting --------------------------------------------------

// Stats is the aggregate surfaced at GET /status.
type Stats struct {
	MemoryCount       int            `json:"memory_count"`
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
	EpisodeCount      int            `json:"episode_count"`
	AgentCount        int            `json:"agent_count"`
	TaskCount         int            `json:"task_count"`
	TasksByStatus     map[string]int `json:"tasks_by_status"`
	EmbeddingIndexLen int            `json:"embedding_index_len"`
	ChannelStats      []channels.Stats `json:"channel_stats"`
}

func (e *Engine) Stats() Stats {
	allTasks := e.tasks.All()
	byStatus := make(map[string]int)
	for _, t := range allTasks {
		byStatus[string(t.Status)]++
	}

	return Stats{
		MemoryCount:       len(e.store.Memories.All()),
		EntityCount:       len(e.store.Entities.All()),
		RelationshipCount: len(e.store.Relationships.All()),
		EpisodeCount:      len(e.store.Episodes.All()),
		AgentCount:        len(e.store.Agents.All()),
		TaskCount:         len(allTasks),
		TasksByStatus:     byStatus,
		EmbeddingIndexLen: e.index.Len(),
		ChannelStats:      e.channels.AllStats(),
	}
}

// Snapshot implements snapshot.Source.
func (e *Engine) Snapshot() snapshot.Document {
	memories := e.store.Memories.All()
	flatMemories := make([]types.Memory, len(memories))
	for i, m := range memories {
		flatMemories[i] = *m
	}

	entities := e.store.Entities.All()
	flatEntities := make([]types.Entity, len(entities))
	for i, en := range entities {
		flatEntities[i] = *en
	}

	relationships := e.store.Relationships.All()
	flatRelationships := make([]types.Relationship, len(relationships))
	for i, r := range relationships {
		flatRelationships[i] = *r
	}

	episodes := e.store.Episodes.All()
	flatEpisodes := make([]types.Episode, len(episodes))
	for i, ep := range episodes {
		flatEpisodes[i] = *ep
	}

	agents := e.store.Agents.All()
	flatAgents := make([]types.Agent, len(agents))
	for i, a := range agents {
		flatAgents[i] = *a
	}

	allTasks := e.tasks.All()
	flatTasks := make([]types.Task, len(allTasks))
	for i, t := range allTasks {
		flatTasks[i] = *t
	}

	registeredChannels := e.channels.ListRegistered()
	flatChannels := make([]types.Channel, len(registeredChannels))
	for i, ch := range registeredChannels {
		flatChannels[i] = *ch
	}

	return snapshot.Document{
		Memories:      flatMemories,
		MemoryHistory: e.store.Memories.AllHistory(),
		Entities:      flatEntities,
		Relationships: flatRelationships,
		Episodes:      flatEpisodes,
		Agents:        flatAgents,
		Tasks:         flatTasks,
		TaskEvents:    e.tasks.AllEvents(),
		Channels:      flatChannels,
	}
}

// Restore implements snapshot.Sink. It rebuilds every store and, when
// the embedding index is available, re-indexes every restored memory
// that is still current; invalidated memories are not re-indexed.
func (e *Engine) Restore(doc snapshot.Document) {
	e.store.Memories.Restore(doc.Memories, doc.MemoryHistory)
	e.store.Entities.Restore(doc.Entities)
	e.store.Relationships.Restore(doc.Relationships)
	e.store.Episodes.Restore(doc.Episodes)
	e.store.Agents.Restore(doc.Agents)
	e.tasks.Restore(doc.Tasks, doc.TaskEvents)

	for _, ch := range doc.Channels {
		e.channels.Register(ch)
	}

	if e.index.Available() {
		ids := make([]int64, 0, len(doc.Memories))
		contents := make([]string, 0, len(doc.Memories))
		for _, m := range doc.Memories {
			if m.ValidUntil != nil {
				continue
			}
			ids = append(ids, m.ID)
			contents = append(contents, m.Content)
		}
		go e.index.BatchIndex(context.Background(), ids, contents)
	}
}
