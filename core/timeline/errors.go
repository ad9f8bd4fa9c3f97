package timeline

import "fmt"

// ValidationError rejects a mutation before any persistence call is made.
// The local state is untouched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PersistenceError wraps a failed persistence call. For inserts the local
// state was not changed; for updates it was already applied eagerly.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// LoadError wraps a failed load. Prior in-memory state is preserved and the
// operation can be retried.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load timeline entries: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
