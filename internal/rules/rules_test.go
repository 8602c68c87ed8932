package rules

import (
	"testing"

	"github.com/wardenhq/warden/internal/models"
)

func block(trigger models.ConstraintTrigger, value, text string) models.Constraint {
	return models.Constraint{
		Trigger:      trigger,
		TriggerValue: value,
		RuleText:     text,
		Enforcement:  models.EnforceBlock,
	}
}

func warn(trigger models.ConstraintTrigger, value, text string) models.Constraint {
	c := block(trigger, value, text)
	c.Enforcement = models.EnforceWarn
	return c
}

func TestEvaluate_AlwaysTrigger(t *testing.T) {
	constraints := []models.Constraint{
		warn(models.TriggerAlways, "", "prefer small diffs"),
	}

	result := Evaluate(constraints, Context{})
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	if result.Blocked() {
		t.Error("Expected warn-level constraint not to block")
	}
}

func TestEvaluate_FilesMatch(t *testing.T) {
	constraints := []models.Constraint{
		block(models.TriggerFilesMatch, "migrations", "never edit applied migrations"),
	}

	result := Evaluate(constraints, Context{Files: []string{"migrations/0001_init.sql"}})
	if !result.Blocked() {
		t.Fatal("Expected files_match trigger to fire")
	}

	result = Evaluate(constraints, Context{Files: []string{"src/app.go"}})
	if result.Blocked() {
		t.Error("Expected non-matching files not to trigger")
	}
}

func TestEvaluate_TaskTag(t *testing.T) {
	constraints := []models.Constraint{
		warn(models.TriggerTaskTag, "infra", "infra changes need review"),
	}

	result := Evaluate(constraints, Context{Tags: []string{"infra", "urgent"}})
	if len(result.Warnings) != 1 {
		t.Errorf("Expected tag match, got %+v", result)
	}

	// Tag matching is exact.
	result = Evaluate(constraints, Context{Tags: []string{"infrastructure"}})
	if len(result.Warnings) != 0 {
		t.Error("Expected exact tag matching only")
	}
}

func TestEvaluate_GateTrigger(t *testing.T) {
	constraints := []models.Constraint{
		warn(models.TriggerGate, "has_tests", "flaky suite, rerun twice"),
	}

	result := Evaluate(constraints, Context{Gate: "has_tests"})
	if len(result.Warnings) != 1 {
		t.Errorf("Expected gate trigger to fire, got %+v", result)
	}

	// Empty gate context never matches.
	result = Evaluate(constraints, Context{})
	if len(result.Warnings) != 0 {
		t.Error("Expected empty gate context not to trigger")
	}
}

func TestEvaluate_KeywordTrigger(t *testing.T) {
	constraints := []models.Constraint{
		block(models.TriggerKeyword, "Deploy", "deploys are frozen this week"),
	}

	// Case-insensitive substring match.
	result := Evaluate(constraints, Context{Keywords: []string{"redeploy the service"}})
	if !result.Blocked() {
		t.Error("Expected case-insensitive keyword match")
	}

	result = Evaluate(constraints, Context{Keywords: []string{"refactor parser"}})
	if result.Blocked() {
		t.Error("Expected unrelated keywords not to trigger")
	}
}

func TestEvaluate_BlockNeverDowngraded(t *testing.T) {
	constraints := []models.Constraint{
		block(models.TriggerAlways, "", "hard rule"),
		warn(models.TriggerAlways, "", "soft rule"),
	}

	result := Evaluate(constraints, Context{})
	if len(result.Violations) != 1 || len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 violation and 1 warning, got %d/%d",
			len(result.Violations), len(result.Warnings))
	}
	if result.Violations[0].Constraint.RuleText != "hard rule" {
		t.Error("Expected the blocking constraint in violations")
	}
}

func TestEvaluate_MatchCarriesReason(t *testing.T) {
	constraints := []models.Constraint{
		warn(models.TriggerFilesMatch, "api", "api changes need a changelog entry"),
	}

	result := Evaluate(constraints, Context{Files: []string{"api/routes.go"}})
	if len(result.Warnings) != 1 {
		t.Fatal("Expected a match")
	}
	if result.Warnings[0].Reason == "" {
		t.Error("Expected the match to carry a reason")
	}
}
