// Package models defines the core domain types for Warden.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ValidStatus reports whether s is a known task status.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskConstraints bounds what an agent may change while executing a task.
// A nil list means "no opinion at this level"; task-level values take
// precedence over project rules field-by-field, never merged.
type TaskConstraints struct {
	AllowedPaths   []string `json:"allowed_paths,omitempty"`
	ForbiddenPaths []string `json:"forbidden_paths,omitempty"`
	MaxFiles       int      `json:"max_files,omitempty"`
	DefaultGates   []string `json:"default_gates,omitempty"`
}

// ProjectRules carries project-level defaults with the same shape as
// task constraints.
type ProjectRules = TaskConstraints

// Project owns tasks, constraints and the recall corpus.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Repo      string        `json:"repo,omitempty"`
	Rules     *ProjectRules `json:"rules,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Task represents a unit of work tracked by the control plane. Status is
// mutated only through the lifecycle coordinator.
type Task struct {
	ID                 string           `json:"id"`
	ProjectID          string           `json:"project_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Status             TaskStatus       `json:"status"`
	Priority           int              `json:"priority"`
	AcceptanceCriteria []string         `json:"acceptance_criteria,omitempty"`
	Constraints        *TaskConstraints `json:"constraints,omitempty"`
	DependsOn          []string         `json:"depends_on,omitempty"`
	AssignedTo         string           `json:"assigned_to,omitempty"`
	AssignedAt         *time.Time       `json:"assigned_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Lease represents a temporary assignment of a task to an agent, with TTL.
type Lease struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	HolderID  string    `json:"holder_id"`
	TTLSec    int       `json:"ttl_sec"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactType classifies evidence attached to a task.
type ArtifactType string

const (
	ArtifactDiff       ArtifactType = "diff"
	ArtifactPR         ArtifactType = "pr"
	ArtifactTestReport ArtifactType = "test_report"
	ArtifactDocument   ArtifactType = "document"
	ArtifactNote       ArtifactType = "note"
	ArtifactLink       ArtifactType = "link"
	ArtifactLog        ArtifactType = "log"
	ArtifactOther      ArtifactType = "other"
)

// Artifact is an append-only proof-of-work item attached to a task.
type Artifact struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id"`
	Type      ArtifactType `json:"type"`
	Ref       string       `json:"ref,omitempty"`
	Summary   string       `json:"summary,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ConstraintScope narrows where a project rule applies.
type ConstraintScope string

const (
	ScopeProject   ConstraintScope = "project"
	ScopeRepo      ConstraintScope = "repo"
	ScopeDirectory ConstraintScope = "directory"
	ScopeTaskType  ConstraintScope = "task_type"
)

// ConstraintTrigger names the condition that activates a constraint.
type ConstraintTrigger string

const (
	TriggerFilesMatch ConstraintTrigger = "files_match"
	TriggerTaskTag    ConstraintTrigger = "task_tag"
	TriggerGate       ConstraintTrigger = "gate"
	TriggerKeyword    ConstraintTrigger = "keyword"
	TriggerAlways     ConstraintTrigger = "always"
)

// EnforcementLevel controls whether a matched constraint blocks or warns.
type EnforcementLevel string

const (
	EnforceWarn  EnforcementLevel = "warn"
	EnforceBlock EnforcementLevel = "block"
)

// Constraint is an append-only project rule, triggered by context.
type Constraint struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"project_id"`
	Scope        ConstraintScope   `json:"scope"`
	ScopeValue   string            `json:"scope_value,omitempty"`
	Trigger      ConstraintTrigger `json:"trigger"`
	TriggerValue string            `json:"trigger_value,omitempty"`
	RuleText     string            `json:"rule_text"`
	Enforcement  EnforcementLevel  `json:"enforcement"`
	Tags         []string          `json:"tags,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Decision is an immutable record of a choice made during a task.
type Decision struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Title     string    `json:"title"`
	Options   []string  `json:"options,omitempty"`
	Choice    string    `json:"choice"`
	Rationale string    `json:"rationale,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OutcomeResult records how a prior subject turned out.
type OutcomeResult string

const (
	OutcomeWorked    OutcomeResult = "worked"
	OutcomeDidntWork OutcomeResult = "didnt_work"
	OutcomeMixed     OutcomeResult = "mixed"
	OutcomeUnknown   OutcomeResult = "unknown"
)

// Outcome is the immutable later-observed result of a decision, task,
// gate or checkpoint.
type Outcome struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"project_id"`
	SubjectType    string        `json:"subject_type"`
	SubjectID      string        `json:"subject_id"`
	Result         OutcomeResult `json:"result"`
	RootCause      string        `json:"root_cause,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// WorkItem is a lightweight backlog note kept for recall.
type WorkItem struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentTask records a past agent engagement for recall.
type AgentTask struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Agent     string    `json:"agent"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is an append-only audit log entry.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
