// Package rules matches project-level constraints against an evaluation
// context and partitions the matches into violations and warnings.
package rules

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/scope"
)

// Context carries the facts a constraint trigger can match against.
type Context struct {
	Files     []string `json:"files,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Gate      string   `json:"gate,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	TaskType  string   `json:"taskType,omitempty"`
	Directory string   `json:"directory,omitempty"`
}

// Match pairs a triggered constraint with the reason it fired.
type Match struct {
	Constraint models.Constraint `json:"constraint"`
	Reason     string            `json:"reason"`
}

// Result partitions matched constraints by enforcement level. Callers must
// refuse the action on violations and surface warnings.
type Result struct {
	Violations []Match `json:"violations,omitempty"`
	Warnings   []Match `json:"warnings,omitempty"`
}

// Blocked reports whether any blocking constraint matched.
func (r Result) Blocked() bool {
	return len(r.Violations) > 0
}

// Evaluate matches every constraint against the context. Pure function:
// no mutation, no events.
func Evaluate(constraints []models.Constraint, ctx Context) Result {
	var result Result
	for _, c := range constraints {
		reason, ok := triggered(c, ctx)
		if !ok {
			continue
		}
		match := Match{Constraint: c, Reason: reason}
		if c.Enforcement == models.EnforceBlock {
			result.Violations = append(result.Violations, match)
		} else {
			result.Warnings = append(result.Warnings, match)
		}
	}
	return result
}

// triggered reports whether the constraint's trigger condition holds.
func triggered(c models.Constraint, ctx Context) (string, bool) {
	switch c.Trigger {
	case models.TriggerAlways:
		return "applies to all actions", true

	case models.TriggerFilesMatch:
		for _, file := range ctx.Files {
			if scope.MatchesPath(file, c.TriggerValue) {
				return fmt.Sprintf("file %s matches %q", file, c.TriggerValue), true
			}
		}

	case models.TriggerTaskTag:
		for _, tag := range ctx.Tags {
			if tag == c.TriggerValue {
				return fmt.Sprintf("task tagged %q", tag), true
			}
		}

	case models.TriggerGate:
		if ctx.Gate != "" && ctx.Gate == c.TriggerValue {
			return fmt.Sprintf("gate %q evaluated", ctx.Gate), true
		}

	case models.TriggerKeyword:
		needle := strings.ToLower(c.TriggerValue)
		if needle == "" {
			return "", false
		}
		for _, kw := range ctx.Keywords {
			if strings.Contains(strings.ToLower(kw), needle) {
				return fmt.Sprintf("keyword %q present", c.TriggerValue), true
			}
		}
	}
	return "", false
}
