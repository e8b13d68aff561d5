// Package types defines the records shared by every hivemind component:
// memories, their audit history, knowledge-graph entities and
// relationships, episodes, agents, tasks and their events, and pub/sub
// channels. Nothing in this package mutates state; it is pure data.
package types

import "time"

// MemoryKind classifies what a Memory represents.
type MemoryKind string

const (
	MemoryKindFact       MemoryKind = "fact"
	MemoryKindEpisodic   MemoryKind = "episodic"
	MemoryKindProcedural MemoryKind = "procedural"
	MemoryKindSemantic   MemoryKind = "semantic"
)

// Memory is a single timestamped, scoped fact with provenance and tags.
type Memory struct {
	ID         int64             `json:"id"`
	Content    string            `json:"content"`
	Kind       MemoryKind        `json:"kind"`
	AgentID    string            `json:"agent_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Confidence float64           `json:"confidence"`
	Tags       []string          `json:"tags,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	ValidFrom  time.Time         `json:"valid_from"`
	ValidUntil *time.Time        `json:"valid_until,omitempty"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsCurrent reports whether the memory has not been invalidated.
func (m *Memory) IsCurrent() bool {
	return m.ValidUntil == nil
}

// Clone returns an independent deep copy, so callers can never hold a
// reference into the store.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	out := *m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.ValidUntil != nil {
		t := *m.ValidUntil
		out.ValidUntil = &t
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// MemoryOperation enumerates the append-only history event kinds.
type MemoryOperation string

const (
	MemoryOpAdd        MemoryOperation = "add"
	MemoryOpUpdate     MemoryOperation = "update"
	MemoryOpInvalidate MemoryOperation = "invalidate"
	// MemoryOpMerge is part of the declared operation domain but is
	// never produced: no implemented operation folds one memory into
	// another.
	MemoryOpMerge MemoryOperation = "merge"
)

// MemoryHistory is one append-only audit entry for a memory.
type MemoryHistory struct {
	ID         int64           `json:"id"`
	MemoryID   int64           `json:"memory_id"`
	Operation  MemoryOperation `json:"operation"`
	OldContent string          `json:"old_content,omitempty"`
	NewContent string          `json:"new_content,omitempty"`
	Reason     string          `json:"reason"`
	ChangedBy  string          `json:"changed_by"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (h *MemoryHistory) Clone() *MemoryHistory {
	if h == nil {
		return nil
	}
	out := *h
	return &out
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	EntityType  string            `json:"entity_type"`
	Description string            `json:"description,omitempty"`
	AgentID     string            `json:"agent_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Relationship is a directed, typed, weighted edge between two entities.
type Relationship struct {
	ID             int64             `json:"id"`
	SourceEntityID int64             `json:"source_entity_id"`
	TargetEntityID int64             `json:"target_entity_id"`
	RelationType   string            `json:"relation_type"`
	Description    string            `json:"description,omitempty"`
	Weight         float64           `json:"weight"`
	ValidFrom      time.Time         `json:"valid_from"`
	ValidUntil     *time.Time        `json:"valid_until,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (r *Relationship) IsCurrent() bool {
	return r.ValidUntil == nil
}

func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	out := *r
	if r.ValidUntil != nil {
		t := *r.ValidUntil
		out.ValidUntil = &t
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Episode is a session-scoped summary over a time interval.
type Episode struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Summary   string    `json:"summary"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// AgentStatus is the liveness state of a registered agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
	AgentBusy    AgentStatus = "busy"
)

// Agent is keyed by a client-supplied string id, not a generated one.
type Agent struct {
	AgentID      string      `json:"agent_id"`
	Capabilities []string    `json:"capabilities,omitempty"`
	Status       AgentStatus `json:"status"`
	LastSeen     time.Time   `json:"last_seen"`
	MemoryCount  int64       `json:"memory_count"`
}

func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = append([]string(nil), a.Capabilities...)
	}
	return &out
}

// TaskStatus is the task state-machine's current state.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskClaimed    TaskStatus = "claimed"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a unit of work routed through the claim/start/complete/fail
// state machine.
type Task struct {
	ID                   int64             `json:"id"`
	Title                string            `json:"title"`
	Description          string            `json:"description,omitempty"`
	Status               TaskStatus        `json:"status"`
	Priority             int               `json:"priority"`
	RequiredCapabilities []string          `json:"required_capabilities,omitempty"`
	AssignedAgent        string            `json:"assigned_agent,omitempty"`
	CreatedBy            string            `json:"created_by,omitempty"`
	DependencyIDs        []int64           `json:"dependency_ids,omitempty"`
	Result               string            `json:"result,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Deadline             *time.Time        `json:"deadline,omitempty"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.RequiredCapabilities != nil {
		out.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.DependencyIDs != nil {
		out.DependencyIDs = append([]int64(nil), t.DependencyIDs...)
	}
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// TaskEventType enumerates the task event log entry kinds.
type TaskEventType string

const (
	TaskEventCreated    TaskEventType = "created"
	TaskEventClaimed    TaskEventType = "claimed"
	TaskEventStarted    TaskEventType = "started"
	TaskEventProgress   TaskEventType = "progress"
	TaskEventCompleted  TaskEventType = "completed"
	TaskEventFailed     TaskEventType = "failed"
	TaskEventCancelled  TaskEventType = "cancelled"
	TaskEventReassigned TaskEventType = "reassigned"
)

// TaskEvent is one append-only entry in a task's event log.
type TaskEvent struct {
	ID        int64         `json:"id"`
	TaskID    int64         `json:"task_id"`
	EventType TaskEventType `json:"event_type"`
	AgentID   string        `json:"agent_id,omitempty"`
	Details   string        `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func (e *TaskEvent) Clone() *TaskEvent {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// ChannelType scopes who a channel is meant for.
type ChannelType string

const (
	ChannelPublic  ChannelType = "public"
	ChannelPrivate ChannelType = "private"
	ChannelAgent   ChannelType = "agent"
	ChannelUser    ChannelType = "user"
)

// Channel is a named pub/sub bus.
type Channel struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        ChannelType `json:"type"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
