package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)

	// Create
	rules := &models.ProjectRules{
		AllowedPaths: []string{"src", "docs"},
	}
	project, err := s.CreateProject("warden", "github.com/wardenhq/warden", rules)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if project.ID == "" {
		t.Error("Expected project ID to be set")
	}

	// Get
	got, err := s.GetProject(project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected project, got nil")
	}
	if got.Name != "warden" {
		t.Errorf("Expected name warden, got %s", got.Name)
	}
	if got.Rules == nil || len(got.Rules.AllowedPaths) != 2 {
		t.Errorf("Expected rules to round-trip, got %+v", got.Rules)
	}

	// Get missing returns nil, not an error
	missing, err := s.GetProject("nope")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for missing project")
	}

	// List
	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 1 {
		t.Errorf("Expected 1 project, got %d", len(projects))
	}
}

func TestSetProjectRules(t *testing.T) {
	s := newTestStore(t)

	project, err := s.CreateProject("p", "", nil)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	err = s.SetProjectRules(project.ID, &models.ProjectRules{
		ForbiddenPaths: []string{"secrets"},
		MaxFiles:       5,
		DefaultGates:   []string{"has_tests"},
	})
	if err != nil {
		t.Fatalf("SetProjectRules failed: %v", err)
	}

	got, err := s.GetProject(project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Rules == nil {
		t.Fatal("Expected rules to be set")
	}
	if got.Rules.MaxFiles != 5 {
		t.Errorf("Expected max files 5, got %d", got.Rules.MaxFiles)
	}
	if len(got.Rules.DefaultGates) != 1 {
		t.Errorf("Expected 1 default gate, got %v", got.Rules.DefaultGates)
	}
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)

	project, err := s.CreateProject("p", "", nil)
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	task, err := s.CreateTask(NewTask{
		ProjectID:          project.ID,
		Title:              "wire the parser",
		Description:        "replace the ad-hoc split",
		Priority:           2,
		AcceptanceCriteria: []string{"handles quoted fields"},
		Constraints: &models.TaskConstraints{
			AllowedPaths: []string{"internal/parser"},
		},
		DependsOn: []string{"t-0"},
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Status != models.TaskStatusTodo {
		t.Errorf("Expected status todo, got %s", task.Status)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected task, got nil")
	}
	if got.Title != "wire the parser" {
		t.Errorf("Expected title to round-trip, got %s", got.Title)
	}
	if len(got.AcceptanceCriteria) != 1 || len(got.DependsOn) != 1 {
		t.Errorf("Expected JSON columns to round-trip, got %+v", got)
	}
	if got.Constraints == nil || len(got.Constraints.AllowedPaths) != 1 {
		t.Errorf("Expected constraints to round-trip, got %+v", got.Constraints)
	}
	if got.AssignedTo != "" || got.AssignedAt != nil {
		t.Error("Expected a fresh task to be unassigned")
	}

	missing, err := s.GetTask("nope")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for missing task")
	}
}

func TestListTasksFilters(t *testing.T) {
	s := newTestStore(t)

	p1, _ := s.CreateProject("p1", "", nil)
	p2, _ := s.CreateProject("p2", "", nil)

	t1, err := s.CreateTask(NewTask{ProjectID: p1.ID, Title: "a"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := s.CreateTask(NewTask{ProjectID: p1.ID, Title: "b"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := s.CreateTask(NewTask{ProjectID: p2.ID, Title: "c"}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := s.UpdateTaskStatus(t1.ID, models.TaskStatusInProgress); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	// Filter by project
	tasks, err := s.ListTasks(p1.ID, "")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks for p1, got %d", len(tasks))
	}

	// Filter by project and status
	tasks, err = s.ListTasks(p1.ID, string(models.TaskStatusInProgress))
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != t1.ID {
		t.Errorf("Expected only the in-progress task, got %+v", tasks)
	}

	// No filters returns everything
	tasks, err = s.ListTasks("", "")
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("Expected 3 tasks, got %d", len(tasks))
	}
}

func TestAssignTaskTx(t *testing.T) {
	s := newTestStore(t)

	project, _ := s.CreateProject("p", "", nil)
	task, err := s.CreateTask(NewTask{ProjectID: project.ID, Title: "t"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	result, err := s.AssignTaskTx(task.ID, "agent-1", 300)
	if err != nil {
		t.Fatalf("AssignTaskTx failed: %v", err)
	}
	if result.Task.AssignedTo != "agent-1" {
		t.Errorf("Expected holder agent-1, got %s", result.Task.AssignedTo)
	}
	if result.Lease == nil || result.Lease.TaskID != task.ID {
		t.Fatalf("Expected a lease for the task, got %+v", result.Lease)
	}
	if !result.Lease.ExpiresAt.After(time.Now().UTC()) {
		t.Error("Expected the lease to expire in the future")
	}

	// Second pick-up loses
	_, err = s.AssignTaskTx(task.ID, "agent-2", 300)
	if err != ErrTaskNotAssignable {
		t.Errorf("Expected ErrTaskNotAssignable, got %v", err)
	}

	// Missing task
	_, err = s.AssignTaskTx("nope", "agent-1", 300)
	if err != ErrTaskNotAssignable {
		t.Errorf("Expected ErrTaskNotAssignable for missing task, got %v", err)
	}
}

func TestAssignTaskTx_NonTodoRejected(t *testing.T) {
	s := newTestStore(t)

	project, _ := s.CreateProject("p", "", nil)
	task, _ := s.CreateTask(NewTask{ProjectID: project.ID, Title: "t"})
	if err := s.UpdateTaskStatus(task.ID, models.TaskStatusDone); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	if _, err := s.AssignTaskTx(task.ID, "agent-1", 300); err != ErrTaskNotAssignable {
		t.Errorf("Expected ErrTaskNotAssignable for a done task, got %v", err)
	}
}

func TestReleaseTask(t *testing.T) {
	s := newTestStore(t)

	project, _ := s.CreateProject("p", "", nil)
	task, _ := s.CreateTask(NewTask{ProjectID: project.ID, Title: "t"})
	if _, err := s.AssignTaskTx(task.ID, "agent-1", 300); err != nil {
		t.Fatalf("AssignTaskTx failed: %v", err)
	}

	if err := s.ReleaseTask(task.ID); err != nil {
		t.Fatalf("ReleaseTask failed: %v", err)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.AssignedTo != "" || got.AssignedAt != nil {
		t.Error("Expected assignment fields to be cleared")
	}

	lease, err := s.GetActiveLease(task.ID)
	if err != nil {
		t.Fatalf("GetActiveLease failed: %v", err)
	}
	if lease != nil {
		t.Error("Expected the lease to be dropped")
	}

	// Released tasks are assignable again
	if _, err := s.AssignTaskTx(task.ID, "agent-2", 300); err != nil {
		t.Errorf("Expected reassignment after release, got %v", err)
	}
}

func TestRenewLease(t *testing.T) {
	s := newTestStore(t)

	project, _ := s.CreateProject("p", "", nil)
	task, _ := s.CreateTask(NewTask{ProjectID: project.ID, Title: "t"})
	result, err := s.AssignTaskTx(task.ID, "agent-1", 60)
	if err != nil {
		t.Fatalf("AssignTaskTx failed: %v", err)
	}

	if err := s.RenewLease(result.Lease.ID, 3600); err != nil {
		t.Fatalf("RenewLease failed: %v", err)
	}

	lease, err := s.GetActiveLease(task.ID)
	if err != nil {
		t.Fatalf("GetActiveLease failed: %v", err)
	}
	if lease == nil {
		t.Fatal("Expected an active lease")
	}
	if !lease.ExpiresAt.After(result.Lease.ExpiresAt) {
		t.Error("Expected the renewed expiry to move forward")
	}
}

func TestExpiredAssignments(t *testing.T) {
	s := newTestStore(t)

	project, _ := s.CreateProject("p", "", nil)
	task, _ := s.CreateTask(NewTask{ProjectID: project.ID, Title: "t"})
	if _, err := s.AssignTaskTx(task.ID, "agent-1", 60); err != nil {
		t.Fatalf("AssignTaskTx failed: %v", err)
	}

	// Before expiry nothing is reclaimable.
	expired, err := s.ExpiredAssignments(time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpiredAssignments failed: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("Expected no expired assignments yet, got %d", len(expired))
	}

	// Past the lease TTL the assignment shows up.
	expired, err = s.ExpiredAssignments(time.Now().UTC().Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("ExpiredAssignments failed: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != task.ID {
		t.Errorf("Expected the lapsed assignment, got %+v", expired)
	}
}
