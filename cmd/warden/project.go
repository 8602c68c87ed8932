package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new project",
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectRulesCmd = &cobra.Command{
	Use:   "rules [project-id]",
	Short: "Set project default rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRules,
}

var constraintAddCmd = &cobra.Command{
	Use:   "constrain [project-id]",
	Short: "Add a project constraint",
	Args:  cobra.ExactArgs(1),
	RunE:  runConstraintAdd,
}

var constraintListCmd = &cobra.Command{
	Use:   "constraints [project-id]",
	Short: "List project constraints",
	Args:  cobra.ExactArgs(1),
	RunE:  runConstraintList,
}

var (
	projectName    string
	projectRepo    string
	allowedPaths   string
	forbiddenPaths string
	maxFiles       int
	defaultGates   string

	ruleText     string
	ruleTrigger  string
	triggerValue string
	enforcement  string
	ruleTags     string
)

func init() {
	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectShowCmd, projectRulesCmd, constraintAddCmd, constraintListCmd)

	projectAddCmd.Flags().StringVar(&projectName, "name", "", "Project name (required)")
	projectAddCmd.Flags().StringVar(&projectRepo, "repo", "", "Repository URL or path")
	projectAddCmd.MarkFlagRequired("name")

	projectRulesCmd.Flags().StringVar(&allowedPaths, "allow", "", "Comma-separated allowed path prefixes")
	projectRulesCmd.Flags().StringVar(&forbiddenPaths, "forbid", "", "Comma-separated forbidden path prefixes")
	projectRulesCmd.Flags().IntVar(&maxFiles, "max-files", 0, "Maximum files per changeset (0 = unlimited)")
	projectRulesCmd.Flags().StringVar(&defaultGates, "gates", "", "Comma-separated default gate specs")

	constraintAddCmd.Flags().StringVar(&ruleText, "rule", "", "Constraint rule text (required)")
	constraintAddCmd.Flags().StringVar(&ruleTrigger, "trigger", "always", "Trigger: always, files_match, task_tag, gate, keyword")
	constraintAddCmd.Flags().StringVar(&triggerValue, "value", "", "Trigger value (pattern, tag, gate or keyword)")
	constraintAddCmd.Flags().StringVar(&enforcement, "enforce", "warn", "Enforcement level: warn or block")
	constraintAddCmd.Flags().StringVar(&ruleTags, "tags", "", "Comma-separated tags")
	constraintAddCmd.MarkFlagRequired("rule")
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"name": projectName,
		"repo": projectRepo,
	}

	resp, err := apiPost("/projects", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Created project: %s\n", result["id"])
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects")
	if err != nil {
		return err
	}

	var projects []map[string]interface{}
	if err := json.Unmarshal(resp, &projects); err != nil {
		return err
	}

	if len(projects) == 0 {
		fmt.Println("No projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREPO")
	for _, p := range projects {
		id := truncateID(p["id"].(string))
		name := truncate(p["name"].(string), 30)
		repo := ""
		if r, ok := p["repo"].(string); ok {
			repo = r
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, name, repo)
	}
	w.Flush()
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0])
	if err != nil {
		return err
	}

	var project map[string]interface{}
	if err := json.Unmarshal(resp, &project); err != nil {
		return err
	}

	fmt.Printf("ID:      %s\n", project["id"])
	fmt.Printf("Name:    %s\n", project["name"])
	if repo, ok := project["repo"].(string); ok && repo != "" {
		fmt.Printf("Repo:    %s\n", repo)
	}
	fmt.Printf("Created: %s\n", project["created_at"])
	if rules, ok := project["rules"].(map[string]interface{}); ok {
		pretty, _ := json.MarshalIndent(rules, "", "  ")
		fmt.Printf("Rules:\n%s\n", pretty)
	}
	return nil
}

func runProjectRules(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"allowed_paths":   splitCSV(allowedPaths),
		"forbidden_paths": splitCSV(forbiddenPaths),
		"max_files":       maxFiles,
		"default_gates":   splitCSV(defaultGates),
	}

	if _, err := apiPut("/projects/"+args[0]+"/rules", body); err != nil {
		return err
	}

	fmt.Printf("Updated rules for project %s\n", args[0])
	return nil
}

func runConstraintAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"rule_text":     ruleText,
		"trigger":       ruleTrigger,
		"trigger_value": triggerValue,
		"enforcement":   enforcement,
		"tags":          splitCSV(ruleTags),
	}

	resp, err := apiPost("/projects/"+args[0]+"/constraints", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Added constraint: %s\n", result["id"])
	return nil
}

func runConstraintList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/projects/" + args[0] + "/constraints")
	if err != nil {
		return err
	}

	var constraints []map[string]interface{}
	if err := json.Unmarshal(resp, &constraints); err != nil {
		return err
	}

	if len(constraints) == 0 {
		fmt.Println("No constraints found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENFORCE\tTRIGGER\tRULE")
	for _, c := range constraints {
		id := truncateID(c["id"].(string))
		enforce := c["enforcement"].(string)
		trigger := c["trigger"].(string)
		rule := truncate(c["rule_text"].(string), 50)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, enforce, trigger, rule)
	}
	w.Flush()
	return nil
}
