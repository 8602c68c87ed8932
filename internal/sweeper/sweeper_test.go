package sweeper

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/store"
)

func newTestSweeper(t *testing.T) (*Sweeper, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, audit.NewWriter(s), time.Minute), s
}

func TestSweep_ReclaimsExpiredAssignments(t *testing.T) {
	sw, s := newTestSweeper(t)

	project, _ := s.CreateProject("p", "", nil)
	task, _ := s.CreateTask(store.NewTask{ProjectID: project.ID, Title: "t"})
	if _, err := s.AssignTaskTx(task.ID, "agent-1", 60); err != nil {
		t.Fatalf("AssignTaskTx failed: %v", err)
	}

	// Lease still live: nothing to do.
	if got := sw.Sweep(time.Now().UTC()); got != 0 {
		t.Errorf("Expected 0 reclaimed, got %d", got)
	}

	// Past the TTL the assignment is released.
	if got := sw.Sweep(time.Now().UTC().Add(2 * time.Minute)); got != 1 {
		t.Errorf("Expected 1 reclaimed, got %d", got)
	}

	reloaded, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if reloaded.AssignedTo != "" {
		t.Errorf("Expected assignment to be cleared, got %q", reloaded.AssignedTo)
	}
	if reloaded.Status != models.TaskStatusTodo {
		t.Errorf("Expected the task back in todo, got %s", reloaded.Status)
	}

	events, err := s.ListEvents(task.ID, 0)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Type == audit.EventAssignmentExpired {
			found = true
		}
	}
	if !found {
		t.Error("Expected an assignment.expired event")
	}
}

func TestStats(t *testing.T) {
	sw, _ := newTestSweeper(t)

	sw.Sweep(time.Now().UTC())
	sw.Sweep(time.Now().UTC())

	stats := sw.Stats()
	if stats["sweeps"] != 2 {
		t.Errorf("Expected 2 sweeps, got %v", stats["sweeps"])
	}
	if stats["reclaimed"] != 0 {
		t.Errorf("Expected 0 reclaimed, got %v", stats["reclaimed"])
	}
}

func TestStartStop(t *testing.T) {
	sw, _ := newTestSweeper(t)

	sw.Start()
	sw.Stop()
}
