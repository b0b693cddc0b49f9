package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a bookmark id does not exist in the store.
	ErrNotFound = errors.New("bookmark not found")
	// ErrDuplicate is returned when adding a URL that already exists as an
	// active bookmark. The store returns the existing record alongside it.
	ErrDuplicate = errors.New("bookmark with this url already exists")
	// ErrConflictsPending is returned by the orchestrator when divergent
	// edits were detected and the sync cycle halted awaiting resolution.
	ErrConflictsPending = errors.New("unresolved sync conflicts pending")
	// ErrSyncInProgress signals that a sync request was ignored because a
	// cycle is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// ValidationError describes invalid caller input, typically a bad URL.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RemoteUnavailableError wraps a failed call to the remote record backend.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote backend unavailable during %s: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}
