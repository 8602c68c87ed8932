package lifecycle

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, audit.NewWriter(s), nil), s
}

func seedTask(t *testing.T, s *store.Store, nt store.NewTask) (*models.Project, *models.Task) {
	t.Helper()
	project, err := s.CreateProject("p", "", nil)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	nt.ProjectID = project.ID
	if nt.Title == "" {
		nt.Title = "t"
	}
	task, err := s.CreateTask(nt)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return project, task
}

func TestTransition_Validation(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{})

	cases := []struct {
		name string
		req  Request
		kind fault.Kind
	}{
		{"missing actor", Request{TaskID: task.ID, Target: models.TaskStatusInProgress}, fault.KindValidation},
		{"missing task id", Request{Actor: "a", Target: models.TaskStatusInProgress}, fault.KindValidation},
		{"bad status", Request{Actor: "a", TaskID: task.ID, Target: "paused"}, fault.KindValidation},
		{"missing task", Request{Actor: "a", TaskID: "nope", Target: models.TaskStatusInProgress}, fault.KindNotFound},
	}

	for _, tc := range cases {
		_, err := c.Transition(tc.req)
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		if !fault.IsKind(err, tc.kind) {
			t.Errorf("%s: expected kind %v, got %v", tc.name, tc.kind, err)
		}
	}
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{})

	result, err := c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusDone})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if result.OK {
		t.Fatal("Expected todo -> done to be rejected")
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "not allowed") {
		t.Errorf("Expected an edge rejection reason, got %v", result.Reasons)
	}

	// The status stayed put.
	got, _ := s.GetTask(task.ID)
	if got.Status != models.TaskStatusTodo {
		t.Errorf("Expected status todo, got %s", got.Status)
	}
}

func TestTransition_BlockedNeedsReason(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{})
	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")

	result, err := c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusBlocked})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if result.OK {
		t.Fatal("Expected blocking without a reason to be rejected")
	}

	result, err = c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusBlocked, Reason: "waiting on review"})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if !result.OK {
		t.Fatalf("Expected blocking with a reason to succeed, got %v", result.Reasons)
	}

	// Blocked tasks can resume.
	result, err = c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusInProgress})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if !result.OK {
		t.Errorf("Expected blocked -> in_progress, got %v", result.Reasons)
	}
}

func TestTransition_DoneRequiresGatesAndEvidence(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{})
	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")

	// No artifacts: the default has_artifacts gate fails.
	result, err := c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusDone})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if result.OK {
		t.Fatal("Expected completion without evidence to be rejected")
	}
	if len(result.Gates) == 0 {
		t.Error("Expected gate results in the verdict")
	}
	if result.Advice == "" {
		t.Error("Expected remediation advice")
	}

	// With evidence attached the same transition passes.
	if _, err := s.AddArtifact(task.ID, models.ArtifactDiff, "pr#1", "the change"); err != nil {
		t.Fatalf("AddArtifact failed: %v", err)
	}
	result, err = c.Transition(Request{Actor: "a", TaskID: task.ID, Target: models.TaskStatusDone})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if !result.OK {
		t.Fatalf("Expected completion with evidence, got %v", result.Reasons)
	}

	got, _ := s.GetTask(task.ID)
	if got.Status != models.TaskStatusDone {
		t.Errorf("Expected status done, got %s", got.Status)
	}
}

func TestTransition_ScopeViolationRejects(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{
		Constraints: &models.TaskConstraints{AllowedPaths: []string{"src"}},
	})
	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")

	result, err := c.Transition(Request{
		Actor:     "a",
		TaskID:    task.ID,
		Target:    models.TaskStatusBlocked,
		Reason:    "stuck",
		Changeset: &models.Changeset{FilesChanged: []string{"secrets/key.pem"}},
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if result.OK {
		t.Fatal("Expected the out-of-scope changeset to be rejected")
	}
	if result.Scope == nil || result.Scope.Allowed {
		t.Errorf("Expected a scope verdict, got %+v", result.Scope)
	}
	if result.Advice == "" {
		t.Error("Expected remediation advice")
	}

	// The check itself is audited even when it blocks.
	events, err := s.ListEvents(task.ID, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if !hasEventType(events, "scope.checked") {
		t.Errorf("Expected a scope.checked event, got %+v", events)
	}
}

func TestTransition_BlockingConstraintRejects(t *testing.T) {
	c, s := newTestCoordinator(t)
	project, task := seedTask(t, s, store.NewTask{})
	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")

	_, err := s.AddConstraint(models.Constraint{
		ProjectID:    project.ID,
		Scope:        "project",
		Trigger:      models.TriggerFilesMatch,
		TriggerValue: "migrations",
		RuleText:     "never edit applied migrations",
		Enforcement:  models.EnforceBlock,
	})
	if err != nil {
		t.Fatalf("AddConstraint failed: %v", err)
	}

	result, err := c.Transition(Request{
		Actor:     "a",
		TaskID:    task.ID,
		Target:    models.TaskStatusBlocked,
		Reason:    "checkpoint",
		Changeset: &models.Changeset{FilesChanged: []string{"migrations/0002.sql"}},
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if result.OK {
		t.Fatal("Expected the blocking constraint to reject the transition")
	}
	if result.Rules == nil || !result.Rules.Blocked() {
		t.Errorf("Expected a rule verdict, got %+v", result.Rules)
	}
	if len(result.Reasons) == 0 || !strings.Contains(result.Reasons[0], "never edit applied migrations") {
		t.Errorf("Expected the rule text in the reasons, got %v", result.Reasons)
	}
}

func TestTransition_WarnConstraintDoesNotReject(t *testing.T) {
	c, s := newTestCoordinator(t)
	project, task := seedTask(t, s, store.NewTask{})
	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")

	_, err := s.AddConstraint(models.Constraint{
		ProjectID:   project.ID,
		Scope:       "project",
		Trigger:     models.TriggerAlways,
		RuleText:    "prefer small diffs",
		Enforcement: models.EnforceWarn,
	})
	if err != nil {
		t.Fatalf("AddConstraint failed: %v", err)
	}

	result, err := c.Transition(Request{
		Actor:     "a",
		TaskID:    task.ID,
		Target:    models.TaskStatusBlocked,
		Reason:    "checkpoint",
		Changeset: &models.Changeset{FilesChanged: []string{"src/a.go"}},
	})
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if !result.OK {
		t.Fatalf("Expected a warn-level constraint to let the transition through, got %v", result.Reasons)
	}
	if result.Rules == nil || len(result.Rules.Warnings) != 1 {
		t.Errorf("Expected the warning to surface, got %+v", result.Rules)
	}
}

func TestTransition_EventsRecorded(t *testing.T) {
	c, s := newTestCoordinator(t)
	_, task := seedTask(t, s, store.NewTask{})

	mustTransition(t, c, task.ID, models.TaskStatusInProgress, "")
	if _, err := s.AddArtifact(task.ID, models.ArtifactNote, "", "done"); err != nil {
		t.Fatalf("AddArtifact failed: %v", err)
	}
	mustTransition(t, c, task.ID, models.TaskStatusDone, "")

	events, err := s.ListEvents(task.ID, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	for _, want := range []string{"task.started", "gate.evaluated", "task.completed"} {
		if !hasEventType(events, want) {
			t.Errorf("Expected a %s event, got %+v", want, events)
		}
	}
	for _, e := range events {
		if e.InputsHash == "" {
			t.Error("Expected every event to carry an inputs hash")
		}
	}
}

func mustTransition(t *testing.T, c *Coordinator, taskID string, target models.TaskStatus, reason string) {
	t.Helper()
	result, err := c.Transition(Request{Actor: "a", TaskID: taskID, Target: target, Reason: reason})
	if err != nil {
		t.Fatalf("Transition to %s failed: %v", target, err)
	}
	if !result.OK {
		t.Fatalf("Transition to %s rejected: %v", target, result.Reasons)
	}
}

func hasEventType(events []models.Event, typ string) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}
