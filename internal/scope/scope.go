// Package scope validates proposed changesets against the path rules that
// bound what an agent may touch while executing a task (the "leash").
package scope

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/models"
)

// Result is the verdict of a scope check. It is a value, never an error:
// a failed check is a policy outcome the agent can remediate.
type Result struct {
	Allowed    bool     `json:"allowed"`
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
}

// MatchesPath reports whether file falls under pattern. A pattern matches
// on exact equality or as a directory prefix; a trailing slash marks the
// pattern as a directory explicitly. Matching always stops at a path
// separator, so "a/" never captures "ab.ts".
func MatchesPath(file, pattern string) bool {
	if file == pattern {
		return true
	}
	if strings.HasPrefix(file, pattern+"/") {
		return true
	}
	if strings.HasSuffix(pattern, "/") && strings.HasPrefix(file, pattern) {
		return true
	}
	return false
}

// resolve picks the task-level list when the task has one, else the project
// rule. Lists are never merged across levels.
func resolve(taskVal, projectVal []string) []string {
	if len(taskVal) > 0 {
		return taskVal
	}
	return projectVal
}

// Check validates a changeset against the task's constraints, falling back
// to project rules field-by-field. The caller is responsible for recording
// the audit event; Check itself is pure.
func Check(task *models.Task, project *models.Project, changeset *models.Changeset) Result {
	var allowed, forbidden []string
	maxFiles := 0

	var taskC, projC models.TaskConstraints
	if task.Constraints != nil {
		taskC = *task.Constraints
	}
	if project != nil && project.Rules != nil {
		projC = *project.Rules
	}

	allowed = resolve(taskC.AllowedPaths, projC.AllowedPaths)
	forbidden = resolve(taskC.ForbiddenPaths, projC.ForbiddenPaths)
	// File-count ceiling is task-level only.
	maxFiles = taskC.MaxFiles

	files := changeset.AllFiles()
	var violations []string

	for _, file := range files {
		for _, pattern := range forbidden {
			if MatchesPath(file, pattern) {
				violations = append(violations, fmt.Sprintf("%s touches forbidden path %q", file, pattern))
			}
		}
		if len(allowed) > 0 {
			inAllowed := false
			for _, pattern := range allowed {
				if MatchesPath(file, pattern) {
					inAllowed = true
					break
				}
			}
			if !inAllowed {
				violations = append(violations, fmt.Sprintf("%s is not in any allowed path", file))
			}
		}
	}

	if maxFiles > 0 && len(files) > maxFiles {
		violations = append(violations, fmt.Sprintf("changeset touches %d files, limit is %d", len(files), maxFiles))
	}

	result := Result{
		Allowed:    len(violations) == 0,
		Violations: violations,
	}
	if result.Allowed {
		result.Reason = fmt.Sprintf("all %d files within scope", len(files))
	} else {
		result.Reason = fmt.Sprintf("%d scope violation(s)", len(violations))
	}
	return result
}
