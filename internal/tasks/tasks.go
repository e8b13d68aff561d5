// Package tasks implements the claim/start/complete/fail state machine
// for cooperative work items. Ground: the per-record-mutex store
// pattern of internal/store/memory.go, generalized to the Task/
// TaskStatus shape the teacher's internal/memory/interfaces.go defines
// for SQLite rows, and the strict transition guard table of spec.md
// §4.5. Supplement: ClaimTask additionally refuses to hand out a task
// while any of its DependencyIDs has not yet reached Completed, a rule
// the base spec leaves implicit in "tasks may depend on other tasks."
package tasks

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hivemindhq/hivemind/internal/errs"
	"github.com/hivemindhq/hivemind/internal/types"
)

// idCounter is a process-monotonic 64-bit allocator, mirroring
// internal/store's: rehydrated past the max observed id on restore so
// ids are never reused within a process lifetime.
type idCounter struct {
	next atomic.Int64
}

func newIDCounter() *idCounter {
	c := &idCounter{}
	c.next.Store(1)
	return c
}

func (c *idCounter) allocate() int64 {
	return c.next.Add(1) - 1
}

func (c *idCounter) observe(id int64) {
	for {
		cur := c.next.Load()
		if id < cur {
			return
		}
		if c.next.CompareAndSwap(cur, id+1) {
			return
		}
	}
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

type taskRecord struct {
	mu     sync.Mutex
	data   types.Task
	events []types.TaskEvent
}

// Store holds every task plus its append-only event log, keyed by id.
type Store struct {
	mu      sync.RWMutex
	records map[int64]*taskRecord
	ids     *idCounter
}

func NewStore() *Store {
	return &Store{
		records: make(map[int64]*taskRecord),
		ids:     newIDCounter(),
	}
}

// CreateRequest describes a new task.
type CreateRequest struct {
	Title                string
	Description          string
	Priority             int
	RequiredCapabilities []string
	DependencyIDs        []int64
	CreatedBy            string
	Deadline             *time.Time
	Metadata             map[string]string
}

func (s *Store) Create(req CreateRequest) *types.Task {
	now := time.Now().UTC()
	task := types.Task{
		Title:                req.Title,
		Description:          req.Description,
		Status:               types.TaskPending,
		Priority:             req.Priority,
		RequiredCapabilities: append([]string(nil), req.RequiredCapabilities...),
		DependencyIDs:        append([]int64(nil), req.DependencyIDs...),
		CreatedBy:            req.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
		Deadline:             req.Deadline,
		Metadata:             copyMetadata(req.Metadata),
	}

	rec := &taskRecord{data: task}

	s.mu.Lock()
	task.ID = s.ids.allocate()
	rec.data.ID = task.ID
	s.records[task.ID] = rec
	s.mu.Unlock()

	s.appendEvent(rec, types.TaskEventCreated, req.CreatedBy, "")
	return rec.data.Clone()
}

func (s *Store) Get(id int64) (*types.Task, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.data.Clone(), true
}

func (s *Store) Events(id int64) ([]types.TaskEvent, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]types.TaskEvent, len(rec.events))
	for i, e := range rec.events {
		out[i] = *e.Clone()
	}
	return out, true
}

// ListFilter narrows List by status and/or the agent assigned.
type ListFilter struct {
	Status        types.TaskStatus
	HasStatus     bool
	AssignedAgent string
}

func (s *Store) List(filter ListFilter) []*types.Task {
	s.mu.RLock()
	recs := make([]*taskRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]*types.Task, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		task := rec.data
		rec.mu.Unlock()

		if filter.HasStatus && task.Status != filter.Status {
			continue
		}
		if filter.AssignedAgent != "" && task.AssignedAgent != filter.AssignedAgent {
			continue
		}
		out = append(out, task.Clone())
	}
	return out
}

// dependenciesSatisfied reports whether every dependency id of task is
// Completed. Missing dependency ids are treated as unsatisfied, not
// skipped: a dangling dependency blocks the task forever rather than
// silently letting it through.
func (s *Store) dependenciesSatisfied(depIDs []int64) bool {
	for _, depID := range depIDs {
		dep, ok := s.Get(depID)
		if !ok || dep.Status != types.TaskCompleted {
			return false
		}
	}
	return true
}

// Claim assigns a pending task to agentID, provided all of its
// dependencies have completed.
func (s *Store) Claim(id int64, agentID string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.data.Status != types.TaskPending {
		return nil, errs.WrongState("claim", string(rec.data.Status), string(types.TaskPending))
	}
	if !s.dependenciesSatisfied(rec.data.DependencyIDs) {
		return nil, errs.WrongState("claim", "dependencies unsatisfied", "dependencies satisfied")
	}

	rec.data.Status = types.TaskClaimed
	rec.data.AssignedAgent = agentID
	rec.data.UpdatedAt = time.Now().UTC()
	s.appendEventLocked(rec, types.TaskEventClaimed, agentID, "")
	return rec.data.Clone(), nil
}

// Start moves a claimed task to in_progress; only the owning agent may
// start it.
func (s *Store) Start(id int64, agentID string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.data.AssignedAgent != agentID {
		return nil, errs.NotOwner("start", rec.data.AssignedAgent)
	}
	if rec.data.Status != types.TaskClaimed {
		return nil, errs.WrongState("start", string(rec.data.Status), string(types.TaskClaimed))
	}

	rec.data.Status = types.TaskInProgress
	rec.data.UpdatedAt = time.Now().UTC()
	s.appendEventLocked(rec, types.TaskEventStarted, agentID, "")
	return rec.data.Clone(), nil
}

// Progress records an informational progress event without changing
// task status.
func (s *Store) Progress(id int64, agentID, note string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.data.AssignedAgent != agentID {
		return nil, errs.NotOwner("report progress on", rec.data.AssignedAgent)
	}
	if rec.data.Status != types.TaskInProgress {
		return nil, errs.WrongState("report progress on", string(rec.data.Status), string(types.TaskInProgress))
	}

	s.appendEventLocked(rec, types.TaskEventProgress, agentID, note)
	return rec.data.Clone(), nil
}

// Complete marks an in-progress task completed; only the owning agent
// may complete it.
func (s *Store) Complete(id int64, agentID, result string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.data.AssignedAgent != agentID {
		return nil, errs.NotOwner("complete", rec.data.AssignedAgent)
	}
	if rec.data.Status != types.TaskInProgress {
		return nil, errs.WrongState("complete", string(rec.data.Status), string(types.TaskInProgress))
	}

	rec.data.Status = types.TaskCompleted
	rec.data.Result = result
	rec.data.UpdatedAt = time.Now().UTC()
	s.appendEventLocked(rec, types.TaskEventCompleted, agentID, result)
	return rec.data.Clone(), nil
}

// Fail marks a claimed or in-progress task failed. Unlike Complete,
// any agent may report a failure — not just the owner — matching
// spec.md's allowance for a coordinator to abort a stuck task on an
// unresponsive agent's behalf.
func (s *Store) Fail(id int64, agentID, reason string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.data.Status != types.TaskClaimed && rec.data.Status != types.TaskInProgress {
		return nil, errs.WrongState("fail", string(rec.data.Status), "claimed or in_progress")
	}

	rec.data.Status = types.TaskFailed
	rec.data.Result = reason
	rec.data.UpdatedAt = time.Now().UTC()
	s.appendEventLocked(rec, types.TaskEventFailed, agentID, reason)
	return rec.data.Clone(), nil
}

// Cancel is the only path into the terminal Cancelled state; it is
// reachable from any non-terminal status.
func (s *Store) Cancel(id int64, requestedBy, reason string) (*types.Task, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("task", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	switch rec.data.Status {
	case types.TaskCompleted, types.TaskFailed, types.TaskCancelled:
		return nil, errs.WrongState("cancel", string(rec.data.Status), "pending, claimed, or in_progress")
	}

	rec.data.Status = types.TaskCancelled
	rec.data.Result = reason
	rec.data.UpdatedAt = time.Now().UTC()
	s.appendEventLocked(rec, types.TaskEventCancelled, requestedBy, reason)
	return rec.data.Clone(), nil
}

func (s *Store) appendEvent(rec *taskRecord, eventType types.TaskEventType, agentID, note string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	s.appendEventLocked(rec, eventType, agentID, note)
}

func (s *Store) appendEventLocked(rec *taskRecord, eventType types.TaskEventType, agentID, note string) {
	rec.events = append(rec.events, types.TaskEvent{
		ID:        int64(len(rec.events) + 1),
		TaskID:    rec.data.ID,
		EventType: eventType,
		AgentID:   agentID,
		Details:   note,
		Timestamp: time.Now().UTC(),
	})
}

// All returns every task, for snapshotting.
func (s *Store) All() []*types.Task {
	return s.List(ListFilter{})
}

// AllEvents returns every task's event log keyed by task id, for
// snapshotting.
func (s *Store) AllEvents() map[int64][]types.TaskEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]types.TaskEvent, len(s.records))
	for id, rec := range s.records {
		rec.mu.Lock()
		events := make([]types.TaskEvent, len(rec.events))
		for i, e := range rec.events {
			events[i] = *e.Clone()
		}
		rec.mu.Unlock()
		out[id] = events
	}
	return out
}

// Restore rebuilds the store from a snapshot and rehydrates the id
// counter past the highest id observed.
func (s *Store) Restore(tasks []types.Task, events map[int64][]types.TaskEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[int64]*taskRecord, len(tasks))
	for _, t := range tasks {
		rec := &taskRecord{data: t, events: events[t.ID]}
		s.records[t.ID] = rec
		s.ids.observe(t.ID)
	}
}
