// Package audit provides append-only event writing for Warden.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/store"
)

// Event type names recorded by the governance engine.
const (
	EventTaskStarted       = "task.started"
	EventTaskBlocked       = "task.blocked"
	EventTaskCompleted     = "task.completed"
	EventTaskCancelled     = "task.cancelled"
	EventScopeChecked      = "scope.checked"
	EventGateEvaluated     = "gate.evaluated"
	EventTaskAssigned      = "task.assigned"
	EventTaskReleased      = "task.released"
	EventAssignmentExpired = "assignment.expired"
	EventDecisionRecorded  = "decision.recorded"
	EventOutcomeRecorded   = "outcome.recorded"
)

// Writer appends audit events for state-mutating and governance actions.
type Writer struct {
	store *store.Store
}

// NewWriter creates a new audit event writer.
func NewWriter(s *store.Store) *Writer {
	return &Writer{store: s}
}

// Record writes an event. Inputs are hashed so the log stays compact while
// remaining verifiable against the original request payload.
func (w *Writer) Record(eventType string, inputs interface{}, outcome, taskID, details string) (*models.Event, error) {
	return w.store.WriteEvent(eventType, hashInputs(inputs), outcome, taskID, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
