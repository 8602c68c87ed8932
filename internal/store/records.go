package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/models"
)

// --- Artifact Operations ---

// AddArtifact appends an evidence item to a task.
func (s *Store) AddArtifact(taskID string, typ models.ArtifactType, ref, summary string) (*models.Artifact, error) {
	now := time.Now().UTC()
	artifact := &models.Artifact{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Type:      typ,
		Ref:       ref,
		Summary:   summary,
		CreatedAt: now,
	}

	_, err := s.db.Exec(
		`INSERT INTO artifacts (id, task_id, type, ref, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		artifact.ID, artifact.TaskID, artifact.Type, artifact.Ref, artifact.Summary, artifact.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return artifact, nil
}

// ListArtifacts returns all evidence for a task, newest first.
func (s *Store) ListArtifacts(taskID string) ([]models.Artifact, error) {
	rows, err := s.db.Query(
		`SELECT id, task_id, type, ref, summary, created_at FROM artifacts WHERE task_id = ? ORDER BY created_at DESC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		var a models.Artifact
		var ref, summary sql.NullString
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Type, &ref, &summary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if ref.Valid {
			a.Ref = ref.String
		}
		if summary.Valid {
			a.Summary = summary.String
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// --- Constraint Operations ---

// AddConstraint appends a project rule. Constraints are never updated.
func (s *Store) AddConstraint(c models.Constraint) (*models.Constraint, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	var tagsJSON interface{}
	if len(c.Tags) > 0 {
		tagsJSON = marshalJSON(c.Tags)
	}

	_, err := s.db.Exec(
		`INSERT INTO constraints (id, project_id, scope, scope_value, trigger_type, trigger_value, rule_text, enforcement, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.Scope, c.ScopeValue, c.Trigger, c.TriggerValue, c.RuleText, c.Enforcement, tagsJSON, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert constraint: %w", err)
	}
	return &c, nil
}

// ListConstraints returns all constraints for a project.
func (s *Store) ListConstraints(projectID string) ([]models.Constraint, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, scope, scope_value, trigger_type, trigger_value, rule_text, enforcement, tags, created_at
		 FROM constraints WHERE project_id = ? ORDER BY created_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	var constraints []models.Constraint
	for rows.Next() {
		var c models.Constraint
		var scopeValue, triggerValue, tags sql.NullString
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Scope, &scopeValue, &c.Trigger, &triggerValue, &c.RuleText, &c.Enforcement, &tags, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan constraint: %w", err)
		}
		if scopeValue.Valid {
			c.ScopeValue = scopeValue.String
		}
		if triggerValue.Valid {
			c.TriggerValue = triggerValue.String
		}
		c.Tags = unmarshalStrings(tags)
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

// --- Decision Operations ---

// AddDecision records an immutable decision.
func (s *Store) AddDecision(d models.Decision) (*models.Decision, error) {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	var optionsJSON, tagsJSON interface{}
	if len(d.Options) > 0 {
		optionsJSON = marshalJSON(d.Options)
	}
	if len(d.Tags) > 0 {
		tagsJSON = marshalJSON(d.Tags)
	}

	_, err := s.db.Exec(
		`INSERT INTO decisions (id, project_id, task_id, title, options, choice, rationale, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.TaskID, d.Title, optionsJSON, d.Choice, d.Rationale, tagsJSON, d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	return &d, nil
}

// ListDecisions returns all decisions for a project.
func (s *Store) ListDecisions(projectID string) ([]models.Decision, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, task_id, title, options, choice, rationale, tags, created_at
		 FROM decisions WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.Decision
	for rows.Next() {
		var d models.Decision
		var taskID, options, rationale, tags sql.NullString
		if err := rows.Scan(&d.ID, &d.ProjectID, &taskID, &d.Title, &options, &d.Choice, &rationale, &tags, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if taskID.Valid {
			d.TaskID = taskID.String
		}
		if rationale.Valid {
			d.Rationale = rationale.String
		}
		d.Options = unmarshalStrings(options)
		d.Tags = unmarshalStrings(tags)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// --- Outcome Operations ---

// AddOutcome records an immutable outcome.
func (s *Store) AddOutcome(o models.Outcome) (*models.Outcome, error) {
	o.ID = uuid.New().String()
	o.CreatedAt = time.Now().UTC()

	var tagsJSON interface{}
	if len(o.Tags) > 0 {
		tagsJSON = marshalJSON(o.Tags)
	}

	_, err := s.db.Exec(
		`INSERT INTO outcomes (id, project_id, subject_type, subject_id, result, root_cause, recommendation, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ProjectID, o.SubjectType, o.SubjectID, o.Result, o.RootCause, o.Recommendation, tagsJSON, o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert outcome: %w", err)
	}
	return &o, nil
}

// ListOutcomes returns all outcomes for a project.
func (s *Store) ListOutcomes(projectID string) ([]models.Outcome, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, subject_type, subject_id, result, root_cause, recommendation, tags, created_at
		 FROM outcomes WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.Outcome
	for rows.Next() {
		var o models.Outcome
		var rootCause, recommendation, tags sql.NullString
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.SubjectType, &o.SubjectID, &o.Result, &rootCause, &recommendation, &tags, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if rootCause.Valid {
			o.RootCause = rootCause.String
		}
		if recommendation.Valid {
			o.Recommendation = recommendation.String
		}
		o.Tags = unmarshalStrings(tags)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// --- Work Item Operations ---

// AddWorkItem records a backlog note.
func (s *Store) AddWorkItem(w models.WorkItem) (*models.WorkItem, error) {
	w.ID = uuid.New().String()
	w.CreatedAt = time.Now().UTC()

	var tagsJSON interface{}
	if len(w.Tags) > 0 {
		tagsJSON = marshalJSON(w.Tags)
	}

	_, err := s.db.Exec(
		`INSERT INTO work_items (id, project_id, title, notes, tags, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.ProjectID, w.Title, w.Notes, tagsJSON, w.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}
	return &w, nil
}

// ListWorkItems returns all work items for a project.
func (s *Store) ListWorkItems(projectID string) ([]models.WorkItem, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, title, notes, tags, created_at FROM work_items WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		var w models.WorkItem
		var notes, tags sql.NullString
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Title, &notes, &tags, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		if notes.Valid {
			w.Notes = notes.String
		}
		w.Tags = unmarshalStrings(tags)
		items = append(items, w)
	}
	return items, rows.Err()
}

// --- Agent Task Operations ---

// AddAgentTask records a past agent engagement.
func (s *Store) AddAgentTask(a models.AgentTask) (*models.AgentTask, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	var tagsJSON interface{}
	if len(a.Tags) > 0 {
		tagsJSON = marshalJSON(a.Tags)
	}

	_, err := s.db.Exec(
		`INSERT INTO agent_tasks (id, project_id, agent, summary, tags, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.Agent, a.Summary, tagsJSON, a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert agent task: %w", err)
	}
	return &a, nil
}

// ListAgentTasks returns all agent task records for a project.
func (s *Store) ListAgentTasks(projectID string) ([]models.AgentTask, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, agent, summary, tags, created_at FROM agent_tasks WHERE project_id = ? ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query agent tasks: %w", err)
	}
	defer rows.Close()

	var items []models.AgentTask
	for rows.Next() {
		var a models.AgentTask
		var summary, tags sql.NullString
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Agent, &summary, &tags, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent task: %w", err)
		}
		if summary.Valid {
			a.Summary = summary.String
		}
		a.Tags = unmarshalStrings(tags)
		items = append(items, a)
	}
	return items, rows.Err()
}

// --- Event Operations ---

// WriteEvent appends an audit event.
func (s *Store) WriteEvent(eventType, inputsHash, outcome, taskID, details string) (*models.Event, error) {
	now := time.Now().UTC()
	event := &models.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  now,
	}

	_, err := s.db.Exec(
		`INSERT INTO events (id, type, inputs_hash, outcome, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Type, event.InputsHash, event.Outcome, event.TaskID, event.Details, event.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// ListEvents returns the most recent events for a task.
func (s *Store) ListEvents(taskID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, type, inputs_hash, outcome, task_id, details, timestamp FROM events WHERE task_id = ? ORDER BY timestamp DESC LIMIT ?`,
		taskID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var taskID, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.InputsHash, &e.Outcome, &taskID, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if taskID.Valid {
			e.TaskID = taskID.String
		}
		if details.Valid {
			e.Details = details.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
