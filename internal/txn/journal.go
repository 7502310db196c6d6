// Package txn provides an undo journal for all-or-nothing operations.
package txn

import (
	"errors"
	"fmt"
)

// Journal records compensating steps while an operation runs.
// Rollback runs them newest first; Commit discards them.
type Journal struct {
	undo []func() error
	done bool
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// Record registers the step that reverses the mutation just applied.
// A nil journal ignores the call, so components can be driven without one.
func (j *Journal) Record(undo func() error) {
	if j == nil || j.done {
		return
	}
	j.undo = append(j.undo, undo)
}

// Len returns the number of pending undo steps.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.undo)
}

// Rollback reverts every recorded step in reverse order.
// It keeps going after a failed step and returns all failures joined.
func (j *Journal) Rollback() error {
	if j == nil || j.done {
		return nil
	}
	j.done = true
	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](); err != nil {
			errs = append(errs, fmt.Errorf("undo step %d: %w", i, err))
		}
	}
	j.undo = nil
	return errors.Join(errs...)
}

// Commit drops the undo log.
func (j *Journal) Commit() {
	if j == nil {
		return
	}
	j.done = true
	j.undo = nil
}
