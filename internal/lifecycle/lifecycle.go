// Package lifecycle coordinates task status transitions. It is the only
// mutation path for task status: every transition runs the scope, gate and
// constraint checks and appends an audit event.
package lifecycle

import (
	"fmt"
	"log"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/gates"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/rules"
	"github.com/wardenhq/warden/internal/scope"
	"github.com/wardenhq/warden/internal/store"
)

// transitions is the legal edge set of the task state machine.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusTodo:       {models.TaskStatusInProgress},
	models.TaskStatusInProgress: {models.TaskStatusBlocked, models.TaskStatusDone, models.TaskStatusCancelled},
	models.TaskStatusBlocked:    {models.TaskStatusInProgress},
}

// eventForTarget maps the accepted transition to its audit event type.
var eventForTarget = map[models.TaskStatus]string{
	models.TaskStatusInProgress: audit.EventTaskStarted,
	models.TaskStatusBlocked:    audit.EventTaskBlocked,
	models.TaskStatusDone:       audit.EventTaskCompleted,
	models.TaskStatusCancelled:  audit.EventTaskCancelled,
}

// Request describes a proposed status transition.
type Request struct {
	Actor      string            `json:"actor"`
	TaskID     string            `json:"task_id"`
	Target     models.TaskStatus `json:"target"`
	Reason     string            `json:"reason,omitempty"`
	NeedsHuman bool              `json:"needs_human,omitempty"` // advisory, not a guard
	Changeset  *models.Changeset `json:"changeset,omitempty"`
	Gates      []gates.Gate      `json:"gates,omitempty"`
}

// Result is the structured verdict of a transition attempt. Guard failures
// land here so the agent can remediate and retry; only infrastructure
// failures surface as errors.
type Result struct {
	OK      bool           `json:"ok"`
	Task    *models.Task   `json:"task,omitempty"`
	Scope   *scope.Result  `json:"scope,omitempty"`
	Gates   []gates.Result `json:"gates,omitempty"`
	Rules   *rules.Result  `json:"rules,omitempty"`
	Reasons []string       `json:"reasons,omitempty"`
	Advice  string         `json:"advice,omitempty"`
}

// Coordinator drives the task state machine.
type Coordinator struct {
	store        *store.Store
	events       *audit.Writer
	defaultGates []gates.Gate
}

// New creates a lifecycle coordinator. defaultGates, when non-empty, is the
// daemon-configured fallback used when neither the task nor the project
// declares gates.
func New(s *store.Store, events *audit.Writer, defaultGates []gates.Gate) *Coordinator {
	return &Coordinator{store: s, events: events, defaultGates: defaultGates}
}

// Transition attempts to move a task to the target status, running every
// applicable guard. Reads happen before the decision, the decision before
// the audit write.
func (c *Coordinator) Transition(req Request) (*Result, error) {
	if req.Actor == "" {
		return nil, fault.Validationf("actor is required")
	}
	if req.TaskID == "" {
		return nil, fault.Validationf("task id is required")
	}
	if !models.ValidStatus(req.Target) {
		return nil, fault.Validationf("unknown target status %q", req.Target)
	}

	task, err := c.store.GetTask(req.TaskID)
	if err != nil {
		return nil, fault.Domainf(err, "load task")
	}
	if task == nil {
		return nil, fault.NotFoundf("task %s not found", req.TaskID)
	}
	project, err := c.store.GetProject(task.ProjectID)
	if err != nil {
		return nil, fault.Domainf(err, "load project")
	}
	if project == nil {
		return nil, fault.NotFoundf("project %s not found", task.ProjectID)
	}

	result := &Result{Task: task}

	if !edgeAllowed(task.Status, req.Target) {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("transition %s -> %s is not allowed", task.Status, req.Target))
		return result, nil
	}

	// Scope check runs first: a leash violation blocks the write
	// regardless of gate status.
	if req.Changeset != nil {
		scopeResult := scope.Check(task, project, req.Changeset)
		result.Scope = &scopeResult

		// The audit event records the changeset and verdict either way,
		// for post-hoc forensics.
		outcome := "allowed"
		if !scopeResult.Allowed {
			outcome = "blocked"
		}
		if _, err := c.events.Record(audit.EventScopeChecked, map[string]interface{}{
			"actor":     req.Actor,
			"changeset": req.Changeset,
		}, outcome, task.ID, scopeResult.Reason); err != nil {
			log.Printf("record scope event: %v", err)
		}

		if !scopeResult.Allowed {
			result.Reasons = append(result.Reasons, scopeResult.Violations...)
			result.Advice = "adjust the changeset to the allowed paths and retry"
			return result, nil
		}

		constraints, err := c.store.ListConstraints(project.ID)
		if err != nil {
			return nil, fault.Domainf(err, "load constraints")
		}
		ruleResult := rules.Evaluate(constraints, rules.Context{
			Files:    req.Changeset.AllFiles(),
			Keywords: []string{task.Title, task.Description, req.Reason},
		})
		result.Rules = &ruleResult
		if ruleResult.Blocked() {
			for _, v := range ruleResult.Violations {
				result.Reasons = append(result.Reasons, fmt.Sprintf("blocked by constraint: %s (%s)", v.Constraint.RuleText, v.Reason))
			}
			result.Advice = "a blocking project constraint matched; recall past outcomes before overriding"
			return result, nil
		}
	}

	switch req.Target {
	case models.TaskStatusBlocked:
		if req.Reason == "" {
			result.Reasons = append(result.Reasons, "blocking a task requires a reason")
			return result, nil
		}

	case models.TaskStatusDone:
		artifacts, err := c.store.ListArtifacts(task.ID)
		if err != nil {
			return nil, fault.Domainf(err, "load artifacts")
		}

		gateList := gates.ForTask(req.Gates, task, project, c.defaultGates)
		gateResults, allPassed := gates.EvaluateAll(gateList, task, artifacts)
		result.Gates = gateResults

		if _, err := c.events.Record(audit.EventGateEvaluated, map[string]interface{}{
			"actor": req.Actor,
			"gates": gateList,
		}, gateOutcome(allPassed), task.ID, fmt.Sprintf("%d gate(s) evaluated", len(gateResults))); err != nil {
			log.Printf("record gate event: %v", err)
		}

		if !allPassed {
			for _, gr := range gateResults {
				if !gr.Passed {
					result.Reasons = append(result.Reasons, fmt.Sprintf("gate %s failed: %s", gr.Gate.Type, gr.Reason))
					result.Reasons = append(result.Reasons, gr.MissingRequirements...)
				}
			}
			result.Advice = "satisfy the failing gates, attach evidence, and retry"
			return result, nil
		}
		if len(artifacts) == 0 {
			result.Reasons = append(result.Reasons, "completing a task requires at least one evidence artifact")
			result.Advice = "attach evidence (diff, test report, note) and retry"
			return result, nil
		}
	}

	if err := c.store.UpdateTaskStatus(task.ID, req.Target); err != nil {
		return nil, fault.Domainf(err, "update task status")
	}
	task.Status = req.Target

	if _, err := c.events.Record(eventForTarget[req.Target], map[string]interface{}{
		"actor":       req.Actor,
		"target":      req.Target,
		"needs_human": req.NeedsHuman,
	}, "accepted", task.ID, req.Reason); err != nil {
		log.Printf("record transition event: %v", err)
	}

	result.OK = true
	return result, nil
}

func edgeAllowed(from, to models.TaskStatus) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func gateOutcome(allPassed bool) string {
	if allPassed {
		return "passed"
	}
	return "failed"
}
