package controlplane

import (
	"context"
	"encoding/json"

	"github.com/wardenhq/warden/internal/dispatch"
	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/gates"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/recall"
	"github.com/wardenhq/warden/internal/rules"
)

// decode unmarshals tool args into a typed request, mapping shape errors
// to the validation tier.
func decode(args json.RawMessage, into interface{}) error {
	if len(args) == 0 {
		return fault.Validationf("tool args are required")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fault.Validationf("invalid tool args: %v", err)
	}
	return nil
}

// RegisterTools wires the governance operations into the shared tool
// registry. Every transport dispatches through this one table.
func RegisterTools(reg *dispatch.Registry, svc *Service) error {
	tools := []dispatch.Tool{
		{
			Name:        "task_transition",
			Description: "Request a task status transition; guards run and failures are returned as structured results",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					Actor      string          `json:"actor"`
					TaskID     string          `json:"task_id"`
					Target     string          `json:"target"`
					Reason     string          `json:"reason"`
					NeedsHuman bool            `json:"needs_human"`
					Changeset  json.RawMessage `json:"changeset"`
					Gates      []string        `json:"gates"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				lreq := lifecycle.Request{
					Actor:      req.Actor,
					TaskID:     req.TaskID,
					Target:     models.TaskStatus(req.Target),
					Reason:     req.Reason,
					NeedsHuman: req.NeedsHuman,
				}
				if len(req.Changeset) > 0 {
					changeset, err := models.ParseChangeset(req.Changeset)
					if err != nil {
						return nil, fault.Validationf("%v", err)
					}
					lreq.Changeset = changeset
				}
				if len(req.Gates) > 0 {
					lreq.Gates = gates.ParseList(req.Gates)
				}
				return svc.Transition(lreq)
			},
		},
		{
			Name:        "scope_check",
			Description: "Validate a changeset manifest against a task's allowed and forbidden paths",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					Actor     string          `json:"actor"`
					TaskID    string          `json:"task_id"`
					Changeset json.RawMessage `json:"changeset"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.CheckScope(req.Actor, req.TaskID, req.Changeset)
			},
		},
		{
			Name:        "gates_evaluate",
			Description: "Evaluate completion gates for a task against its attached evidence",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					Actor  string   `json:"actor"`
					TaskID string   `json:"task_id"`
					Gates  []string `json:"gates"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.EvaluateGates(req.Actor, req.TaskID, req.Gates)
			},
		},
		{
			Name:        "constraints_evaluate",
			Description: "Match project constraints against an evaluation context",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					ProjectID string        `json:"project_id"`
					Context   rules.Context `json:"context"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.EvaluateConstraints(req.ProjectID, req.Context)
			},
		},
		{
			Name:        "memory_recall",
			Description: "Rank past decisions, outcomes, constraints, work items and agent tasks by relevance",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					Actor     string         `json:"actor"`
					ProjectID string         `json:"project_id"`
					Context   recall.Context `json:"context"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.Recall(req.Actor, req.ProjectID, req.Context)
			},
		},
		{
			Name:        "task_assign",
			Description: "Atomically pick up a task with a TTL lease",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					TaskID   string `json:"task_id"`
					HolderID string `json:"holder_id"`
					TTLSec   int    `json:"ttl_sec"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.AssignTask(req.TaskID, req.HolderID, req.TTLSec)
			},
		},
		{
			Name:        "artifact_add",
			Description: "Attach an evidence artifact to a task",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var req struct {
					TaskID  string `json:"task_id"`
					Type    string `json:"type"`
					Ref     string `json:"ref"`
					Summary string `json:"summary"`
				}
				if err := decode(args, &req); err != nil {
					return nil, err
				}
				return svc.AddArtifact(req.TaskID, models.ArtifactType(req.Type), req.Ref, req.Summary)
			},
		},
		{
			Name:        "decision_record",
			Description: "Record an immutable decision",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var d models.Decision
				if err := decode(args, &d); err != nil {
					return nil, err
				}
				return svc.RecordDecision(d)
			},
		},
		{
			Name:        "outcome_record",
			Description: "Record the observed result of a past decision, task or gate",
			Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
				var o models.Outcome
				if err := decode(args, &o); err != nil {
					return nil, err
				}
				return svc.RecordOutcome(o)
			},
		},
	}

	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
