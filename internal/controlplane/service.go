// Package controlplane provides the HTTP API and service layer for Warden.
package controlplane

import (
	"log"
	"time"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/gates"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/recall"
	"github.com/wardenhq/warden/internal/rules"
	"github.com/wardenhq/warden/internal/scope"
	"github.com/wardenhq/warden/internal/store"
)

// Service provides the control plane business logic.
type Service struct {
	store        *store.Store
	events       *audit.Writer
	coordinator  *lifecycle.Coordinator
	leaseTTLSec  int
	eventLimit   int
	defaultGates []gates.Gate
}

// Options carries daemon-level defaults into the service. Zero values fall
// back to the built-in defaults.
type Options struct {
	// LeaseTTLSec is the assignment lease duration applied when a caller
	// gives none.
	LeaseTTLSec int
	// DefaultGates are gate specs used when neither the task nor the
	// project declares any.
	DefaultGates []string
	// EventLimit caps how many audit events list operations return.
	EventLimit int
}

// NewService creates a new control plane service.
func NewService(s *store.Store, events *audit.Writer, opts Options) *Service {
	if opts.LeaseTTLSec <= 0 {
		opts.LeaseTTLSec = store.DefaultLeaseTTLSec
	}
	if opts.EventLimit <= 0 {
		opts.EventLimit = 50
	}
	fallback := gates.ParseList(opts.DefaultGates)
	return &Service{
		store:        s,
		events:       events,
		coordinator:  lifecycle.New(s, events, fallback),
		leaseTTLSec:  opts.LeaseTTLSec,
		eventLimit:   opts.EventLimit,
		defaultGates: fallback,
	}
}

// --- Project Operations ---

// CreateProject creates a new project.
func (s *Service) CreateProject(name, repo string, ruleSpec *models.ProjectRules) (*models.Project, error) {
	if name == "" {
		return nil, fault.Validationf("project name is required")
	}
	project, err := s.store.CreateProject(name, repo, ruleSpec)
	if err != nil {
		return nil, fault.Domainf(err, "create project")
	}
	return project, nil
}

// GetProject retrieves a project by ID.
func (s *Service) GetProject(id string) (*models.Project, error) {
	project, err := s.store.GetProject(id)
	if err != nil {
		return nil, fault.Domainf(err, "load project")
	}
	if project == nil {
		return nil, fault.NotFoundf("project %s not found", id)
	}
	return project, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects() ([]models.Project, error) {
	return s.store.ListProjects()
}

// SetProjectRules replaces a project's default rules.
func (s *Service) SetProjectRules(id string, ruleSpec *models.ProjectRules) error {
	if _, err := s.GetProject(id); err != nil {
		return err
	}
	return s.store.SetProjectRules(id, ruleSpec)
}

// --- Task Operations ---

// CreateTask creates a new task under a project.
func (s *Service) CreateTask(nt store.NewTask) (*models.Task, error) {
	if nt.Title == "" {
		return nil, fault.Validationf("task title is required")
	}
	if _, err := s.GetProject(nt.ProjectID); err != nil {
		return nil, err
	}
	task, err := s.store.CreateTask(nt)
	if err != nil {
		return nil, fault.Domainf(err, "create task")
	}
	return task, nil
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(id string) (*models.Task, error) {
	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, fault.Domainf(err, "load task")
	}
	if task == nil {
		return nil, fault.NotFoundf("task %s not found", id)
	}
	return task, nil
}

// ListTasks returns filtered tasks.
func (s *Service) ListTasks(projectID, status string) ([]models.Task, error) {
	return s.store.ListTasks(projectID, status)
}

// Transition attempts a status transition through the lifecycle coordinator.
func (s *Service) Transition(req lifecycle.Request) (*lifecycle.Result, error) {
	return s.coordinator.Transition(req)
}

// AssignTask atomically assigns a task to a holder with a TTL lease. A
// non-positive TTL takes the configured default.
func (s *Service) AssignTask(taskID, holderID string, ttlSec int) (*store.AssignResult, error) {
	if holderID == "" {
		return nil, fault.Validationf("holder id is required")
	}
	if ttlSec <= 0 {
		ttlSec = s.leaseTTLSec
	}
	result, err := s.store.AssignTaskTx(taskID, holderID, ttlSec)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.Record(audit.EventTaskAssigned, map[string]interface{}{
		"task_id":   taskID,
		"holder_id": holderID,
		"ttl":       ttlSec,
	}, "success", taskID, ""); err != nil {
		log.Printf("record assign event: %v", err)
	}
	return result, nil
}

// ReleaseTask releases a task assignment held by holderID.
func (s *Service) ReleaseTask(taskID, holderID string) error {
	lease, err := s.store.GetActiveLease(taskID)
	if err != nil {
		return fault.Domainf(err, "load lease")
	}
	if lease == nil {
		return fault.NotFoundf("no active lease for task %s", taskID)
	}
	if lease.HolderID != holderID {
		return fault.Unauthorizedf("lease for task %s is held by %s", taskID, lease.HolderID)
	}
	if err := s.store.ReleaseTask(taskID); err != nil {
		return fault.Domainf(err, "release task")
	}
	if _, err := s.events.Record(audit.EventTaskReleased, map[string]interface{}{
		"task_id":   taskID,
		"holder_id": holderID,
	}, "success", taskID, ""); err != nil {
		log.Printf("record release event: %v", err)
	}
	return nil
}

// RenewLease extends a task's assignment lease (heartbeat).
func (s *Service) RenewLease(taskID, holderID string, ttlSec int) error {
	lease, err := s.store.GetActiveLease(taskID)
	if err != nil {
		return fault.Domainf(err, "load lease")
	}
	if lease == nil || lease.HolderID != holderID {
		return fault.Unauthorizedf("no lease held by %s for task %s", holderID, taskID)
	}
	if ttlSec <= 0 {
		ttlSec = s.leaseTTLSec
	}
	return s.store.RenewLease(lease.ID, ttlSec)
}

// TaskEvents returns the audit trail for a task, capped at the configured
// event limit when the caller gives none.
func (s *Service) TaskEvents(taskID string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = s.eventLimit
	}
	return s.store.ListEvents(taskID, limit)
}

// --- Evidence Operations ---

var artifactTypes = map[models.ArtifactType]bool{
	models.ArtifactDiff:       true,
	models.ArtifactPR:         true,
	models.ArtifactTestReport: true,
	models.ArtifactDocument:   true,
	models.ArtifactNote:       true,
	models.ArtifactLink:       true,
	models.ArtifactLog:        true,
	models.ArtifactOther:      true,
}

// AddArtifact appends evidence to a task.
func (s *Service) AddArtifact(taskID string, typ models.ArtifactType, ref, summary string) (*models.Artifact, error) {
	if !artifactTypes[typ] {
		return nil, fault.Validationf("unknown artifact type %q", typ)
	}
	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}
	artifact, err := s.store.AddArtifact(taskID, typ, ref, summary)
	if err != nil {
		return nil, fault.Domainf(err, "add artifact")
	}
	return artifact, nil
}

// ListArtifacts returns the evidence for a task.
func (s *Service) ListArtifacts(taskID string) ([]models.Artifact, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}
	return s.store.ListArtifacts(taskID)
}

// --- Governance Operations ---

// CheckScope validates a raw changeset manifest against a task's leash and
// records the audit event regardless of the verdict.
func (s *Service) CheckScope(actor, taskID string, rawChangeset []byte) (*scope.Result, error) {
	if actor == "" {
		return nil, fault.Validationf("actor is required")
	}
	changeset, err := models.ParseChangeset(rawChangeset)
	if err != nil {
		return nil, fault.Validationf("%v", err)
	}
	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.GetProject(task.ProjectID)
	if err != nil {
		return nil, err
	}

	result := scope.Check(task, project, changeset)

	outcome := "allowed"
	if !result.Allowed {
		outcome = "blocked"
	}
	if _, err := s.events.Record(audit.EventScopeChecked, map[string]interface{}{
		"actor":     actor,
		"changeset": changeset,
	}, outcome, taskID, result.Reason); err != nil {
		log.Printf("record scope event: %v", err)
	}
	return &result, nil
}

// EvaluateGates runs the gate checks for a task. Explicit specs override the
// project defaults; the caller records any resulting event.
func (s *Service) EvaluateGates(actor, taskID string, specs []string) ([]gates.Result, error) {
	if actor == "" {
		return nil, fault.Validationf("actor is required")
	}
	task, err := s.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.GetProject(task.ProjectID)
	if err != nil {
		return nil, err
	}
	artifacts, err := s.store.ListArtifacts(taskID)
	if err != nil {
		return nil, fault.Domainf(err, "load artifacts")
	}

	gateList := gates.ForTask(gates.ParseList(specs), task, project, s.defaultGates)
	results, _ := gates.EvaluateAll(gateList, task, artifacts)
	return results, nil
}

// AddConstraint appends a project constraint.
func (s *Service) AddConstraint(c models.Constraint) (*models.Constraint, error) {
	if c.RuleText == "" {
		return nil, fault.Validationf("constraint rule text is required")
	}
	if c.Enforcement != models.EnforceWarn && c.Enforcement != models.EnforceBlock {
		return nil, fault.Validationf("unknown enforcement level %q", c.Enforcement)
	}
	if _, err := s.GetProject(c.ProjectID); err != nil {
		return nil, err
	}
	saved, err := s.store.AddConstraint(c)
	if err != nil {
		return nil, fault.Domainf(err, "add constraint")
	}
	return saved, nil
}

// ListConstraints returns a project's constraints.
func (s *Service) ListConstraints(projectID string) ([]models.Constraint, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	return s.store.ListConstraints(projectID)
}

// EvaluateConstraints matches a project's constraints against a context.
func (s *Service) EvaluateConstraints(projectID string, ctx rules.Context) (*rules.Result, error) {
	constraints, err := s.ListConstraints(projectID)
	if err != nil {
		return nil, err
	}
	result := rules.Evaluate(constraints, ctx)
	return &result, nil
}

// --- Memory Operations ---

// RecordDecision records an immutable decision.
func (s *Service) RecordDecision(d models.Decision) (*models.Decision, error) {
	if d.Title == "" || d.Choice == "" {
		return nil, fault.Validationf("decision title and choice are required")
	}
	if _, err := s.GetProject(d.ProjectID); err != nil {
		return nil, err
	}
	saved, err := s.store.AddDecision(d)
	if err != nil {
		return nil, fault.Domainf(err, "record decision")
	}
	if _, err := s.events.Record(audit.EventDecisionRecorded, d, "success", d.TaskID, d.Title); err != nil {
		log.Printf("record decision event: %v", err)
	}
	return saved, nil
}

// RecordOutcome records an immutable outcome.
func (s *Service) RecordOutcome(o models.Outcome) (*models.Outcome, error) {
	if o.SubjectID == "" {
		return nil, fault.Validationf("outcome subject id is required")
	}
	if _, err := s.GetProject(o.ProjectID); err != nil {
		return nil, err
	}
	saved, err := s.store.AddOutcome(o)
	if err != nil {
		return nil, fault.Domainf(err, "record outcome")
	}
	if _, err := s.events.Record(audit.EventOutcomeRecorded, o, "success", "", string(o.Result)); err != nil {
		log.Printf("record outcome event: %v", err)
	}
	return saved, nil
}

// AddWorkItem records a backlog note for recall.
func (s *Service) AddWorkItem(w models.WorkItem) (*models.WorkItem, error) {
	if w.Title == "" {
		return nil, fault.Validationf("work item title is required")
	}
	if _, err := s.GetProject(w.ProjectID); err != nil {
		return nil, err
	}
	return s.store.AddWorkItem(w)
}

// AddAgentTask records a past agent engagement for recall.
func (s *Service) AddAgentTask(a models.AgentTask) (*models.AgentTask, error) {
	if a.Agent == "" {
		return nil, fault.Validationf("agent name is required")
	}
	if _, err := s.GetProject(a.ProjectID); err != nil {
		return nil, err
	}
	return s.store.AddAgentTask(a)
}

// Recall scores the project history against the context and returns the
// ranked result.
func (s *Service) Recall(actor, projectID string, ctx recall.Context) (*recall.Result, error) {
	if actor == "" {
		return nil, fault.Validationf("actor is required")
	}
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}

	corpus := recall.Corpus{}
	var err error
	if corpus.Decisions, err = s.store.ListDecisions(projectID); err != nil {
		return nil, fault.Domainf(err, "load decisions")
	}
	if corpus.Outcomes, err = s.store.ListOutcomes(projectID); err != nil {
		return nil, fault.Domainf(err, "load outcomes")
	}
	if corpus.Constraints, err = s.store.ListConstraints(projectID); err != nil {
		return nil, fault.Domainf(err, "load constraints")
	}
	if corpus.WorkItems, err = s.store.ListWorkItems(projectID); err != nil {
		return nil, fault.Domainf(err, "load work items")
	}
	if corpus.AgentTasks, err = s.store.ListAgentTasks(projectID); err != nil {
		return nil, fault.Domainf(err, "load agent tasks")
	}

	return recall.Recall(ctx, corpus, time.Now().UTC())
}
