package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move [task-id] [status]",
	Short: "Request a status transition (in_progress, blocked, done, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskMove,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign [task-id]",
	Short: "Pick up a task with a TTL lease",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAssign,
}

var taskReleaseCmd = &cobra.Command{
	Use:   "release [task-id]",
	Short: "Release a task assignment",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskRelease,
}

var taskScopeCmd = &cobra.Command{
	Use:   "scope [task-id]",
	Short: "Check a changeset manifest against the task's leash",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskScope,
}

var taskGatesCmd = &cobra.Command{
	Use:   "gates [task-id]",
	Short: "Evaluate completion gates for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGates,
}

var taskEvidenceCmd = &cobra.Command{
	Use:   "evidence [task-id]",
	Short: "Attach an evidence artifact to a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEvidence,
}

var taskEventsCmd = &cobra.Command{
	Use:   "events [task-id]",
	Short: "Show a task's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEvents,
}

var (
	taskProject  string
	taskTitle    string
	taskDesc     string
	taskPriority int
	taskStatus   string
	taskCriteria string

	actor         string
	moveReason    string
	changesetPath string
	gateSpecs     string
	holderID      string
	ttlSec        int

	artifactType    string
	artifactRef     string
	artifactSummary string
)

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskMoveCmd, taskAssignCmd,
		taskReleaseCmd, taskScopeCmd, taskGatesCmd, taskEvidenceCmd, taskEventsCmd)

	taskAddCmd.Flags().StringVar(&taskProject, "project", "", "Project ID (required)")
	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().IntVar(&taskPriority, "priority", 0, "Task priority (higher first)")
	taskAddCmd.Flags().StringVar(&taskCriteria, "criteria", "", "Comma-separated acceptance criteria")
	taskAddCmd.MarkFlagRequired("project")
	taskAddCmd.MarkFlagRequired("title")

	taskListCmd.Flags().StringVar(&taskProject, "project", "", "Filter by project ID")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (todo, in_progress, blocked, done, cancelled)")

	hostname, _ := os.Hostname()
	defaultActor := fmt.Sprintf("cli@%s", hostname)

	taskMoveCmd.Flags().StringVar(&actor, "actor", defaultActor, "Acting agent identifier")
	taskMoveCmd.Flags().StringVar(&moveReason, "reason", "", "Reason for the transition (required for blocked)")
	taskMoveCmd.Flags().StringVar(&changesetPath, "changeset", "", "Path to a changeset manifest JSON file")
	taskMoveCmd.Flags().StringVar(&gateSpecs, "gates", "", "Comma-separated gate specs overriding the defaults")

	taskAssignCmd.Flags().StringVar(&holderID, "holder", defaultActor, "Holder ID for the lease")
	taskAssignCmd.Flags().IntVar(&ttlSec, "ttl", 900, "Lease TTL in seconds")

	taskReleaseCmd.Flags().StringVar(&holderID, "holder", defaultActor, "Holder ID")

	taskScopeCmd.Flags().StringVar(&actor, "actor", defaultActor, "Acting agent identifier")
	taskScopeCmd.Flags().StringVar(&changesetPath, "changeset", "", "Path to a changeset manifest JSON file (required)")
	taskScopeCmd.MarkFlagRequired("changeset")

	taskGatesCmd.Flags().StringVar(&actor, "actor", defaultActor, "Acting agent identifier")
	taskGatesCmd.Flags().StringVar(&gateSpecs, "gates", "", "Comma-separated gate specs overriding the defaults")

	taskEvidenceCmd.Flags().StringVar(&artifactType, "type", "note", "Artifact type (diff, pr, test_report, document, note, link, log, other)")
	taskEvidenceCmd.Flags().StringVar(&artifactRef, "ref", "", "Artifact reference (URL, path, identifier)")
	taskEvidenceCmd.Flags().StringVar(&artifactSummary, "summary", "", "Artifact summary")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"project_id":          taskProject,
		"title":               taskTitle,
		"description":         taskDesc,
		"priority":            taskPriority,
		"acceptance_criteria": splitCSV(taskCriteria),
	}

	resp, err := apiPost("/tasks", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Created task: %s\n", result["id"])
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	url := "/tasks?project_id=" + taskProject
	if taskStatus != "" {
		url += "&status=" + taskStatus
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var tasks []map[string]interface{}
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tASSIGNED TO")
	for _, t := range tasks {
		id := truncateID(t["id"].(string))
		title := truncate(t["title"].(string), 40)
		status := t["status"].(string)
		assignedTo := ""
		if a, ok := t["assigned_to"].(string); ok {
			assignedTo = a
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, title, status, assignedTo)
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var task map[string]interface{}
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", task["id"])
	fmt.Printf("Project:     %s\n", task["project_id"])
	fmt.Printf("Title:       %s\n", task["title"])
	if desc, ok := task["description"].(string); ok && desc != "" {
		fmt.Printf("Description: %s\n", desc)
	}
	fmt.Printf("Status:      %s\n", task["status"])
	if a, ok := task["assigned_to"].(string); ok && a != "" {
		fmt.Printf("Assigned To: %s\n", a)
	}
	if criteria, ok := task["acceptance_criteria"].([]interface{}); ok && len(criteria) > 0 {
		fmt.Println("Acceptance Criteria:")
		for _, c := range criteria {
			fmt.Printf("  - %s\n", c)
		}
	}
	fmt.Printf("Created:     %s\n", task["created_at"])
	fmt.Printf("Updated:     %s\n", task["updated_at"])
	return nil
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"actor":  actor,
		"target": args[1],
		"reason": moveReason,
	}
	if gateSpecs != "" {
		body["gates"] = splitCSV(gateSpecs)
	}
	if changesetPath != "" {
		raw, err := os.ReadFile(changesetPath)
		if err != nil {
			return fmt.Errorf("reading changeset: %w", err)
		}
		body["changeset"] = json.RawMessage(raw)
	}

	resp, err := apiPost("/tasks/"+args[0]+"/transition", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if ok, _ := result["ok"].(bool); ok {
		fmt.Printf("Task %s moved to %s\n", args[0], args[1])
		return nil
	}

	fmt.Println("Transition rejected:")
	if reasons, ok := result["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			fmt.Printf("  - %s\n", r)
		}
	}
	if advice, ok := result["advice"].(string); ok && advice != "" {
		fmt.Printf("Advice: %s\n", advice)
	}
	return nil
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"holder_id": holderID,
		"ttl_sec":   ttlSec,
	}

	resp, err := apiPost("/tasks/"+args[0]+"/assign", body)
	if err != nil {
		return err
	}

	var result struct {
		Lease map[string]interface{} `json:"lease"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Assigned task %s to %s\n", args[0], holderID)
	if result.Lease != nil {
		fmt.Printf("Lease expires: %s\n", result.Lease["expires_at"])
	}
	return nil
}

func runTaskRelease(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"holder_id": holderID,
	}

	if _, err := apiPost("/tasks/"+args[0]+"/release", body); err != nil {
		return err
	}

	fmt.Printf("Released task %s\n", args[0])
	return nil
}

func runTaskScope(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(changesetPath)
	if err != nil {
		return fmt.Errorf("reading changeset: %w", err)
	}

	body := map[string]interface{}{
		"actor":     actor,
		"changeset": json.RawMessage(raw),
	}

	resp, err := apiPost("/tasks/"+args[0]+"/scope-check", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if allowed, _ := result["allowed"].(bool); allowed {
		fmt.Printf("Scope OK: %s\n", result["reason"])
		return nil
	}

	fmt.Printf("Scope violation: %s\n", result["reason"])
	if violations, ok := result["violations"].([]interface{}); ok {
		for _, v := range violations {
			fmt.Printf("  - %s\n", v)
		}
	}
	return nil
}

func runTaskGates(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"actor": actor,
	}
	if gateSpecs != "" {
		body["gates"] = splitCSV(gateSpecs)
	}

	resp, err := apiPost("/tasks/"+args[0]+"/gates", body)
	if err != nil {
		return err
	}

	var results []map[string]interface{}
	if err := json.Unmarshal(resp, &results); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GATE\tPASSED\tREASON")
	for _, r := range results {
		gate := r["gate"].(map[string]interface{})
		fmt.Fprintf(w, "%s\t%v\t%s\n", gate["type"], r["passed"], r["reason"])
	}
	w.Flush()
	return nil
}

func runTaskEvidence(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"type":    artifactType,
		"ref":     artifactRef,
		"summary": artifactSummary,
	}

	resp, err := apiPost("/tasks/"+args[0]+"/artifacts", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Added artifact: %s\n", result["id"])
	return nil
}

func runTaskEvents(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0] + "/events")
	if err != nil {
		return err
	}

	var events []map[string]interface{}
	if err := json.Unmarshal(resp, &events); err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tOUTCOME\tDETAILS")
	for _, e := range events {
		details := ""
		if d, ok := e["details"].(string); ok {
			details = truncate(d, 60)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e["timestamp"], e["type"], e["outcome"], details)
	}
	w.Flush()
	return nil
}

// --- Helpers ---

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
