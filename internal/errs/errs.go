// Package errs holds the sentinel error values and helper
// constructors shared by every component that can fail a request:
// the task engine and the engine package that wires it together with
// the store (whose own lookups report absence with a bool). Kept separate from internal/engine so internal/tasks (and
// any other lower-level package) can return the same sentinel kinds
// without importing the engine package that imports them back.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("hivemind: not found")
	ErrNotOwner            = errors.New("hivemind: not the assigned agent")
	ErrProviderUnavailable = errors.New("hivemind: provider unavailable")
	ErrMalformedRequest    = errors.New("hivemind: malformed request")
	ErrWrongState          = errors.New("hivemind: wrong task state")
)

// StateError reports a task state-machine guard failure: the action
// that was attempted, the task's actual status, and (when relevant)
// the status required for the action to succeed.
type StateError struct {
	Action  string
	Current string
	Wanted  string
}

func (e *StateError) Error() string {
	if e.Wanted == "" {
		return fmt.Sprintf("hivemind: cannot %s task in state %q", e.Action, e.Current)
	}
	return fmt.Sprintf("hivemind: cannot %s task in state %q (requires %q)", e.Action, e.Current, e.Wanted)
}

// Is lets errors.Is(err, ErrWrongState) match any *StateError.
func (e *StateError) Is(target error) bool {
	return target == ErrWrongState
}

// NotFoundError names the kind of record and the id that was missing.
// ID is interface{} because records are keyed either by a generated
// int64 (memories, tasks, entities) or a client-supplied string
// (agents).
type NotFoundError struct {
	Kind string
	ID   interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("hivemind: %s %v not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError matched by errors.Is(err, ErrNotFound).
func NotFound(kind string, id interface{}) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// WrongState builds a StateError matched by errors.Is(err, ErrWrongState).
func WrongState(action, current, wanted string) error {
	return &StateError{Action: action, Current: current, Wanted: wanted}
}

// NotOwnerError names the agent that actually owns the resource.
type NotOwnerError struct {
	Action string
	Owner  string
}

func (e *NotOwnerError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("hivemind: cannot %s, no agent owns this task", e.Action)
	}
	return fmt.Sprintf("hivemind: cannot %s, owned by %q", e.Action, e.Owner)
}

func (e *NotOwnerError) Is(target error) bool {
	return target == ErrNotOwner
}

// NotOwner builds a NotOwnerError matched by errors.Is(err, ErrNotOwner).
func NotOwner(action, owner string) error {
	return &NotOwnerError{Action: action, Owner: owner}
}
