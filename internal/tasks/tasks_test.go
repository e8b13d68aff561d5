package tasks

import (
	"errors"
	"testing"

	"github.com/hivemindhq/hivemind/internal/errs"
	"github.com/hivemindhq/hivemind/internal/types"
)

func TestTaskLifecycleHappyPath(t *testing.T) {
	s := NewStore()
	task := s.Create(CreateRequest{Title: "index the repo", CreatedBy: "coordinator"})

	if task.Status != types.TaskPending {
		t.Fatalf("expected new task pending, got %s", task.Status)
	}

	claimed, err := s.Claim(task.ID, "worker-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.Status != types.TaskClaimed || claimed.AssignedAgent != "worker-1" {
		t.Fatalf("unexpected claimed task: %+v", claimed)
	}

	if _, err := s.Start(task.ID, "worker-1"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := s.Progress(task.ID, "worker-1", "halfway done"); err != nil {
		t.Fatalf("progress failed: %v", err)
	}

	completed, err := s.Complete(task.ID, "worker-1", "indexed 42 files")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != types.TaskCompleted {
		t.Fatalf("expected completed status, got %s", completed.Status)
	}

	events, ok := s.Events(task.ID)
	if !ok {
		t.Fatalf("expected events to be found")
	}
	wantTypes := []types.TaskEventType{
		types.TaskEventCreated,
		types.TaskEventClaimed,
		types.TaskEventStarted,
		types.TaskEventProgress,
		types.TaskEventCompleted,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(events))
	}
	for i, want := range wantTypes {
		if events[i].EventType != want {
			t.Errorf("event %d: expected %s, got %s", i, want, events[i].EventType)
		}
	}
}

func TestTaskClaimRejectsAlreadyClaimed(t *testing.T) {
	s := NewStore()
	task := s.Create(CreateRequest{Title: "one at a time"})
	if _, err := s.Claim(task.ID, "worker-1"); err != nil {
		t.Fatalf("first claim should succeed: %v", err)
	}

	_, err := s.Claim(task.ID, "worker-2")
	if !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("expected ErrWrongState for double claim, got %v", err)
	}
}

func TestTaskStartRejectsNonOwner(t *testing.T) {
	s := NewStore()
	task := s.Create(CreateRequest{Title: "owned task"})
	if _, err := s.Claim(task.ID, "worker-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	_, err := s.Start(task.ID, "worker-2")
	if !errors.Is(err, errs.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for non-owning start, got %v", err)
	}
}

func TestTaskClaimBlockedByUnsatisfiedDependency(t *testing.T) {
	s := NewStore()
	dep := s.Create(CreateRequest{Title: "prerequisite"})
	dependent := s.Create(CreateRequest{Title: "depends on prerequisite", DependencyIDs: []int64{dep.ID}})

	if _, err := s.Claim(dependent.ID, "worker-1"); !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("expected ErrWrongState for unsatisfied dependency, got %v", err)
	}

	if _, err := s.Claim(dep.ID, "worker-1"); err != nil {
		t.Fatalf("claim of prerequisite failed: %v", err)
	}
	if _, err := s.Start(dep.ID, "worker-1"); err != nil {
		t.Fatalf("start of prerequisite failed: %v", err)
	}
	if _, err := s.Complete(dep.ID, "worker-1", "done"); err != nil {
		t.Fatalf("complete of prerequisite failed: %v", err)
	}

	if _, err := s.Claim(dependent.ID, "worker-2"); err != nil {
		t.Fatalf("expected claim to succeed once dependency completed: %v", err)
	}
}

func TestTaskClaimBlockedByMissingDependency(t *testing.T) {
	s := NewStore()
	dependent := s.Create(CreateRequest{Title: "depends on a task that doesn't exist", DependencyIDs: []int64{999}})

	if _, err := s.Claim(dependent.ID, "worker-1"); !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("expected ErrWrongState for missing dependency, got %v", err)
	}
}

func TestTaskFailAllowsNonOwner(t *testing.T) {
	s := NewStore()
	task := s.Create(CreateRequest{Title: "flaky task"})
	if _, err := s.Claim(task.ID, "worker-1"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	failed, err := s.Fail(task.ID, "coordinator", "worker unresponsive")
	if err != nil {
		t.Fatalf("expected a non-owner to be able to fail a task, got %v", err)
	}
	if failed.Status != types.TaskFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
}

func TestTaskCancelReachableFromAnyNonTerminalState(t *testing.T) {
	s := NewStore()
	pending := s.Create(CreateRequest{Title: "still pending"})
	if _, err := s.Cancel(pending.ID, "coordinator", "no longer needed"); err != nil {
		t.Fatalf("expected cancel from pending to succeed: %v", err)
	}

	claimedTask := s.Create(CreateRequest{Title: "claimed"})
	s.Claim(claimedTask.ID, "worker-1")
	if _, err := s.Cancel(claimedTask.ID, "coordinator", "reprioritized"); err != nil {
		t.Fatalf("expected cancel from claimed to succeed: %v", err)
	}

	runningTask := s.Create(CreateRequest{Title: "in progress"})
	s.Claim(runningTask.ID, "worker-1")
	s.Start(runningTask.ID, "worker-1")
	if _, err := s.Cancel(runningTask.ID, "coordinator", "reprioritized"); err != nil {
		t.Fatalf("expected cancel from in_progress to succeed: %v", err)
	}

	completedTask := s.Create(CreateRequest{Title: "already done"})
	s.Claim(completedTask.ID, "worker-1")
	s.Start(completedTask.ID, "worker-1")
	s.Complete(completedTask.ID, "worker-1", "done")

	if _, err := s.Cancel(completedTask.ID, "coordinator", "too late"); !errors.Is(err, errs.ErrWrongState) {
		t.Fatalf("expected cancel of a completed task to be rejected, got %v", err)
	}
}

func TestTaskListFiltersByStatusAndAgent(t *testing.T) {
	s := NewStore()
	a := s.Create(CreateRequest{Title: "a"})
	b := s.Create(CreateRequest{Title: "b"})
	s.Claim(a.ID, "worker-1")
	s.Claim(b.ID, "worker-2")

	claimed := s.List(ListFilter{Status: types.TaskClaimed, HasStatus: true})
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed tasks, got %d", len(claimed))
	}

	byAgent := s.List(ListFilter{AssignedAgent: "worker-1"})
	if len(byAgent) != 1 || byAgent[0].ID != a.ID {
		t.Fatalf("expected only task a assigned to worker-1, got %+v", byAgent)
	}
}

func TestTaskRestoreRehydratesIDCounter(t *testing.T) {
	s := NewStore()
	s.Restore([]types.Task{{ID: 7, Title: "restored"}}, nil)

	next := s.Create(CreateRequest{Title: "new after restore"})
	if next.ID <= 7 {
		t.Fatalf("expected id greater than 7 after restore, got %d", next.ID)
	}
}
