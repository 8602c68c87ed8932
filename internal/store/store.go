// Package store provides SQLite-backed persistence for Warden.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/models"
	_ "modernc.org/sqlite"
)

// Store provides access to the Warden SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		repo TEXT,
		rules TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'todo',
		priority INTEGER NOT NULL DEFAULT 0,
		acceptance_criteria TEXT,
		constraints TEXT,
		depends_on TEXT,
		assigned_to TEXT,
		assigned_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		holder_id TEXT NOT NULL,
		ttl_sec INTEGER NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		type TEXT NOT NULL,
		ref TEXT,
		summary TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id)
	);

	CREATE TABLE IF NOT EXISTS constraints (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		scope_value TEXT,
		trigger_type TEXT NOT NULL,
		trigger_value TEXT,
		rule_text TEXT NOT NULL,
		enforcement TEXT NOT NULL,
		tags TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id)
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		task_id TEXT,
		title TEXT NOT NULL,
		options TEXT,
		choice TEXT NOT NULL,
		rationale TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		subject_type TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		result TEXT NOT NULL,
		root_cause TEXT,
		recommendation TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		notes TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_tasks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		agent TEXT NOT NULL,
		summary TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_leases_task_id ON leases(task_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_task_id ON artifacts(task_id);
	CREATE INDEX IF NOT EXISTS idx_constraints_project ON constraints(project_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_project ON decisions(project_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_project ON outcomes(project_id);
	CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- JSON column helpers ---

func marshalJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalConstraints(raw sql.NullString) *models.TaskConstraints {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var tc models.TaskConstraints
	if err := json.Unmarshal([]byte(raw.String), &tc); err != nil {
		return nil
	}
	return &tc
}

// --- Project Operations ---

// CreateProject inserts a new project.
func (s *Store) CreateProject(name, repo string, rules *models.ProjectRules) (*models.Project, error) {
	now := time.Now().UTC()
	project := &models.Project{
		ID:        uuid.New().String(),
		Name:      name,
		Repo:      repo,
		Rules:     rules,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var rulesJSON interface{}
	if rules != nil {
		rulesJSON = marshalJSON(rules)
	}

	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, repo, rules, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Repo, rulesJSON, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return project, nil
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (s *Store) GetProject(id string) (*models.Project, error) {
	project := &models.Project{}
	var repo, rules sql.NullString

	err := s.db.QueryRow(
		`SELECT id, name, repo, rules, created_at, updated_at FROM projects WHERE id = ?`,
		id,
	).Scan(&project.ID, &project.Name, &repo, &rules, &project.CreatedAt, &project.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	if repo.Valid {
		project.Repo = repo.String
	}
	project.Rules = unmarshalConstraints(rules)
	return project, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects() ([]models.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, repo, rules, created_at, updated_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var repo, rules sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &repo, &rules, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		if repo.Valid {
			p.Repo = repo.String
		}
		p.Rules = unmarshalConstraints(rules)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// SetProjectRules replaces the rules for a project.
func (s *Store) SetProjectRules(id string, rules *models.ProjectRules) error {
	var rulesJSON interface{}
	if rules != nil {
		rulesJSON = marshalJSON(rules)
	}
	_, err := s.db.Exec(
		`UPDATE projects SET rules = ?, updated_at = ? WHERE id = ?`,
		rulesJSON, time.Now().UTC(), id,
	)
	return err
}

// --- Task Operations ---

// NewTask describes the mutable fields of a task at creation.
type NewTask struct {
	ProjectID          string
	Title              string
	Description        string
	Priority           int
	AcceptanceCriteria []string
	Constraints        *models.TaskConstraints
	DependsOn          []string
}

// CreateTask inserts a new task in the todo state.
func (s *Store) CreateTask(nt NewTask) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:                 uuid.New().String(),
		ProjectID:          nt.ProjectID,
		Title:              nt.Title,
		Description:        nt.Description,
		Status:             models.TaskStatusTodo,
		Priority:           nt.Priority,
		AcceptanceCriteria: nt.AcceptanceCriteria,
		Constraints:        nt.Constraints,
		DependsOn:          nt.DependsOn,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var constraintsJSON interface{}
	if nt.Constraints != nil {
		constraintsJSON = marshalJSON(nt.Constraints)
	}
	var criteriaJSON, dependsJSON interface{}
	if len(nt.AcceptanceCriteria) > 0 {
		criteriaJSON = marshalJSON(nt.AcceptanceCriteria)
	}
	if len(nt.DependsOn) > 0 {
		dependsJSON = marshalJSON(nt.DependsOn)
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, project_id, title, description, status, priority, acceptance_criteria, constraints, depends_on, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority,
		criteriaJSON, constraintsJSON, dependsJSON, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

const taskColumns = `id, project_id, title, description, status, priority, acceptance_criteria, constraints, depends_on, assigned_to, assigned_at, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	task := &models.Task{}
	var description, criteria, constraints, dependsOn, assignedTo sql.NullString
	var assignedAt sql.NullTime

	err := row.Scan(&task.ID, &task.ProjectID, &task.Title, &description, &task.Status, &task.Priority,
		&criteria, &constraints, &dependsOn, &assignedTo, &assignedAt, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		task.Description = description.String
	}
	task.AcceptanceCriteria = unmarshalStrings(criteria)
	task.Constraints = unmarshalConstraints(constraints)
	task.DependsOn = unmarshalStrings(dependsOn)
	if assignedTo.Valid {
		task.AssignedTo = assignedTo.String
	}
	if assignedAt.Valid {
		task.AssignedAt = &assignedAt.Time
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (s *Store) GetTask(id string) (*models.Task, error) {
	task, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks, optionally filtered by project and status.
func (s *Store) ListTasks(projectID, status string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var conds []string
	var args []interface{}

	if projectID != "" {
		conds = append(conds, `project_id = ?`)
		args = append(args, projectID)
	}
	if status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, status)
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY priority DESC, created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus updates the status of a task.
func (s *Store) UpdateTaskStatus(id string, status models.TaskStatus) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	return err
}

// --- Assignment Operations ---

// DefaultLeaseTTLSec is the assignment lease duration when the caller
// gives none.
const DefaultLeaseTTLSec = 900

// AssignResult holds the result of an atomic assignment.
type AssignResult struct {
	Task  *models.Task  `json:"task"`
	Lease *models.Lease `json:"lease"`
}

// ErrTaskNotAssignable indicates the task cannot be picked up (not found,
// already assigned, or not in an open state).
var ErrTaskNotAssignable = fmt.Errorf("task not found or not assignable")

// ErrTaskAlreadyLeased indicates the task already has an active lease.
var ErrTaskAlreadyLeased = fmt.Errorf("task already has an active lease")

// AssignTaskTx atomically assigns a task to a holder and creates a TTL
// lease in a single transaction. The compare-and-swap on status makes
// pick-up exclusive: a concurrent assignment loses on rows affected.
func (s *Store) AssignTaskTx(taskID, holderID string, ttlSec int) (*AssignResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	task, err := scanTask(tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotAssignable
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}

	if task.Status != models.TaskStatusTodo || task.AssignedTo != "" {
		return nil, ErrTaskNotAssignable
	}

	// Reject if another holder still has a live lease.
	var existingLeaseID string
	err = tx.QueryRow(
		`SELECT id FROM leases WHERE task_id = ? AND expires_at > ?`,
		taskID, now,
	).Scan(&existingLeaseID)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing lease: %w", err)
	}
	if existingLeaseID != "" {
		return nil, ErrTaskAlreadyLeased
	}

	result, err := tx.Exec(
		`UPDATE tasks SET assigned_to = ?, assigned_at = ?, updated_at = ? WHERE id = ? AND status = ? AND assigned_to IS NULL`,
		holderID, now, now, taskID, models.TaskStatusTodo,
	)
	if err != nil {
		return nil, fmt.Errorf("assign task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Task was picked up by another holder between check and update.
		return nil, ErrTaskNotAssignable
	}

	lease := &models.Lease{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		HolderID:  holderID,
		TTLSec:    ttlSec,
		ExpiresAt: now.Add(time.Duration(ttlSec) * time.Second),
		CreatedAt: now,
	}
	_, err = tx.Exec(
		`INSERT INTO leases (id, task_id, holder_id, ttl_sec, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		lease.ID, lease.TaskID, lease.HolderID, lease.TTLSec, lease.ExpiresAt, lease.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	task.AssignedTo = holderID
	task.AssignedAt = &now
	task.UpdatedAt = now

	return &AssignResult{Task: task, Lease: lease}, nil
}

// ReleaseTask clears the assignment fields and drops the task's leases.
func (s *Store) ReleaseTask(id string) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(`DELETE FROM leases WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete leases: %w", err)
	}
	_, err := s.db.Exec(
		`UPDATE tasks SET assigned_to = NULL, assigned_at = NULL, updated_at = ? WHERE id = ?`,
		now, id,
	)
	return err
}

// GetActiveLease returns the active lease for a task, if any.
func (s *Store) GetActiveLease(taskID string) (*models.Lease, error) {
	lease := &models.Lease{}
	err := s.db.QueryRow(
		`SELECT id, task_id, holder_id, ttl_sec, expires_at, created_at FROM leases WHERE task_id = ? AND expires_at > ? ORDER BY created_at DESC LIMIT 1`,
		taskID, time.Now().UTC(),
	).Scan(&lease.ID, &lease.TaskID, &lease.HolderID, &lease.TTLSec, &lease.ExpiresAt, &lease.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query lease: %w", err)
	}
	return lease, nil
}

// RenewLease extends the expiry of a lease (heartbeat).
func (s *Store) RenewLease(leaseID string, ttlSec int) error {
	_, err := s.db.Exec(
		`UPDATE leases SET expires_at = ? WHERE id = ?`,
		time.Now().UTC().Add(time.Duration(ttlSec)*time.Second), leaseID,
	)
	return err
}

// ExpiredAssignments returns tasks whose assignment lease has lapsed.
func (s *Store) ExpiredAssignments(now time.Time) ([]models.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskColumns+` FROM tasks WHERE assigned_to IS NOT NULL AND id NOT IN (SELECT task_id FROM leases WHERE expires_at > ?)`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired assignments: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
