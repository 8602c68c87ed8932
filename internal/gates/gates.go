// Package gates evaluates the pass/fail quality checks a task must satisfy
// before it may be marked done.
package gates

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wardenhq/warden/internal/models"
)

// Type names a gate check.
type Type string

const (
	HasTests      Type = "has_tests"
	HasDocs       Type = "has_docs"
	HasArtifacts  Type = "has_artifacts"
	AcceptanceMet Type = "acceptance_met"
	Custom        Type = "custom"
)

// knownTypes is the closed set the DSL parser accepts.
var knownTypes = map[Type]bool{
	HasTests:      true,
	HasDocs:       true,
	HasArtifacts:  true,
	AcceptanceMet: true,
	Custom:        true,
}

// Gate is a single named check with optional configuration.
type Gate struct {
	Type   Type                   `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Result carries the verdict for one gate. Like scope results, it is a
// value even when failed, so callers can surface remediation steps.
type Result struct {
	Gate                Gate     `json:"gate"`
	Passed              bool     `json:"passed"`
	Reason              string   `json:"reason"`
	MissingRequirements []string `json:"missing_requirements,omitempty"`
}

// Defaults is the hardcoded gate pair used when a project defines none.
func Defaults() []Gate {
	return []Gate{
		{Type: HasArtifacts, Config: map[string]interface{}{"minCount": 1}},
		{Type: AcceptanceMet},
	}
}

// Parse reads a compact gate spec: "type" or "type:key1=val1,key2=val2".
// Numeric-looking values are coerced to numbers. Unknown gate types are
// dropped silently; explicit Gate values with unknown types still fail at
// evaluation time.
func Parse(spec string) (Gate, bool) {
	spec = strings.TrimSpace(spec)
	name, rawConfig, hasConfig := strings.Cut(spec, ":")

	typ := Type(strings.TrimSpace(name))
	if !knownTypes[typ] {
		return Gate{}, false
	}

	gate := Gate{Type: typ}
	if hasConfig && rawConfig != "" {
		gate.Config = make(map[string]interface{})
		for _, pair := range strings.Split(rawConfig, ",") {
			key, val, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			val = strings.TrimSpace(val)
			if n, err := strconv.Atoi(val); err == nil {
				gate.Config[key] = n
			} else if f, err := strconv.ParseFloat(val, 64); err == nil {
				gate.Config[key] = f
			} else {
				gate.Config[key] = val
			}
		}
	}
	return gate, true
}

// ParseList parses a list of gate specs, dropping unknown types.
func ParseList(specs []string) []Gate {
	var parsed []Gate
	for _, spec := range specs {
		if gate, ok := Parse(spec); ok {
			parsed = append(parsed, gate)
		}
	}
	return parsed
}

// configInt reads an integer config value, tolerating the float64 the JSON
// decoder produces.
func configInt(g Gate, key, altKey string, fallback int) int {
	for _, k := range []string{key, altKey} {
		if k == "" {
			continue
		}
		switch v := g.Config[k].(type) {
		case int:
			return v
		case float64:
			return int(v)
		}
	}
	return fallback
}

// Evaluate runs one gate against the task's evidence.
func Evaluate(gate Gate, task *models.Task, artifacts []models.Artifact) Result {
	switch gate.Type {
	case HasTests:
		for _, a := range artifacts {
			if a.Type == models.ArtifactTestReport {
				return Result{Gate: gate, Passed: true, Reason: "test report attached"}
			}
		}
		return Result{
			Gate:                gate,
			Reason:              "no test report artifact",
			MissingRequirements: []string{"attach at least one artifact of type test_report"},
		}

	case HasDocs:
		for _, a := range artifacts {
			if a.Type == models.ArtifactDocument {
				return Result{Gate: gate, Passed: true, Reason: "documentation attached"}
			}
		}
		return Result{
			Gate:                gate,
			Reason:              "no document artifact",
			MissingRequirements: []string{"attach at least one artifact of type document"},
		}

	case HasArtifacts:
		minCount := configInt(gate, "minCount", "min_count", 1)
		if len(artifacts) >= minCount {
			return Result{Gate: gate, Passed: true, Reason: fmt.Sprintf("%d artifact(s) attached, %d required", len(artifacts), minCount)}
		}
		return Result{
			Gate:                gate,
			Reason:              fmt.Sprintf("%d artifact(s) attached, %d required", len(artifacts), minCount),
			MissingRequirements: []string{fmt.Sprintf("attach %d more artifact(s)", minCount-len(artifacts))},
		}

	case AcceptanceMet:
		// Placeholder semantics: any artifact counts as proof the criteria
		// are met. The criteria text is not inspected.
		if len(task.AcceptanceCriteria) == 0 {
			return Result{Gate: gate, Passed: true, Reason: "no acceptance criteria defined"}
		}
		if len(artifacts) > 0 {
			return Result{Gate: gate, Passed: true, Reason: "evidence attached for acceptance criteria"}
		}
		return Result{
			Gate:                gate,
			Reason:              fmt.Sprintf("%d acceptance criteria with no supporting evidence", len(task.AcceptanceCriteria)),
			MissingRequirements: []string{"attach evidence demonstrating the acceptance criteria"},
		}

	case Custom:
		// Extension point; no custom policy implemented yet.
		return Result{Gate: gate, Passed: true, Reason: "custom gate (no policy configured)"}

	default:
		return Result{
			Gate:                gate,
			Reason:              "Unknown gate type",
			MissingRequirements: []string{fmt.Sprintf("unrecognized gate type %q", gate.Type)},
		}
	}
}

// EvaluateAll runs every gate and reports whether all passed.
func EvaluateAll(gateList []Gate, task *models.Task, artifacts []models.Artifact) ([]Result, bool) {
	results := make([]Result, 0, len(gateList))
	allPassed := true
	for _, gate := range gateList {
		result := Evaluate(gate, task, artifacts)
		if !result.Passed {
			allPassed = false
		}
		results = append(results, result)
	}
	return results, allPassed
}

// ForTask resolves the gate list for a task: the explicit list when given,
// else the task's default gate specs, else the project's, else the
// daemon-configured fallback, else the hardcoded pair.
func ForTask(explicit []Gate, task *models.Task, project *models.Project, fallback []Gate) []Gate {
	if len(explicit) > 0 {
		return explicit
	}
	var specs []string
	if task.Constraints != nil && len(task.Constraints.DefaultGates) > 0 {
		specs = task.Constraints.DefaultGates
	} else if project != nil && project.Rules != nil {
		specs = project.Rules.DefaultGates
	}
	if parsed := ParseList(specs); len(parsed) > 0 {
		return parsed
	}
	if len(fallback) > 0 {
		return fallback
	}
	return Defaults()
}
