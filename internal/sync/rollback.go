package sync

import (
	"context"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

// rollbackAction is one reversible step recorded during a book's sync.
type rollbackAction struct {
	description string
	undo        func(ctx context.Context) error
}

// RollbackList collects the external writes performed for a single book so
// they can be undone, in reverse order, if the local cache commit fails
// afterwards. Actions with no true inverse register a nil undo and are
// reported for manual cleanup instead.
type RollbackList struct {
	actions []rollbackAction
	log     *logger.Logger
}

// NewRollbackList creates an empty rollback list.
func NewRollbackList(log *logger.Logger) *RollbackList {
	if log == nil {
		log = logger.Get()
	}
	return &RollbackList{log: log}
}

// Add records a reversible action. undo may be nil when the action cannot be
// undone programmatically.
func (r *RollbackList) Add(description string, undo func(ctx context.Context) error) {
	r.actions = append(r.actions, rollbackAction{description: description, undo: undo})
}

// Len returns the number of recorded actions.
func (r *RollbackList) Len() int {
	return len(r.actions)
}

// Execute runs the undo functions in reverse order. Failures are logged and
// do not stop the remaining undos; the first failure is returned.
func (r *RollbackList) Execute(ctx context.Context) error {
	var firstErr error
	for i := len(r.actions) - 1; i >= 0; i-- {
		action := r.actions[i]
		if action.undo == nil {
			r.log.Warn("No automatic rollback available, manual cleanup may be required", map[string]interface{}{
				"action": action.description,
			})
			continue
		}
		if err := action.undo(ctx); err != nil {
			r.log.Error("Rollback step failed", map[string]interface{}{
				"action": action.description,
				"error":  err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.log.Info("Rolled back", map[string]interface{}{
			"action": action.description,
		})
	}
	return firstErr
}
