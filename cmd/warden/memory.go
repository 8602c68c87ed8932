package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Record and recall project memory",
}

var decisionCmd = &cobra.Command{
	Use:   "decide [project-id]",
	Short: "Record a decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionAdd,
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome [project-id]",
	Short: "Record an outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutcomeAdd,
}

var workItemCmd = &cobra.Command{
	Use:   "note [project-id]",
	Short: "Record a backlog note",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkItemAdd,
}

var agentTaskCmd = &cobra.Command{
	Use:   "engagement [project-id]",
	Short: "Record a past agent engagement",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentTaskAdd,
}

var recallCmd = &cobra.Command{
	Use:   "recall [project-id]",
	Short: "Recall relevant history before acting",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecall,
}

var (
	decisionTitle     string
	decisionOptions   string
	decisionChoice    string
	decisionRationale string
	decisionTaskID    string
	memoryTags        string

	outcomeSubjectType string
	outcomeSubjectID   string
	outcomeResult      string
	outcomeRootCause   string
	outcomeRec         string

	noteTitle string
	noteBody  string

	engagementAgent   string
	engagementSummary string

	recallQuery    string
	recallFiles    string
	recallKeywords string
	recallLimit    int
)

func init() {
	memoryCmd.AddCommand(decisionCmd, outcomeCmd, workItemCmd, agentTaskCmd, recallCmd)

	decisionCmd.Flags().StringVar(&decisionTitle, "title", "", "Decision title (required)")
	decisionCmd.Flags().StringVar(&decisionOptions, "options", "", "Comma-separated options considered")
	decisionCmd.Flags().StringVar(&decisionChoice, "choice", "", "The chosen option (required)")
	decisionCmd.Flags().StringVar(&decisionRationale, "why", "", "Rationale for the choice")
	decisionCmd.Flags().StringVar(&decisionTaskID, "task", "", "Related task ID")
	decisionCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	decisionCmd.MarkFlagRequired("title")
	decisionCmd.MarkFlagRequired("choice")

	outcomeCmd.Flags().StringVar(&outcomeSubjectType, "subject-type", "decision", "Subject type (decision, task, gate)")
	outcomeCmd.Flags().StringVar(&outcomeSubjectID, "subject", "", "Subject ID (required)")
	outcomeCmd.Flags().StringVar(&outcomeResult, "result", "unknown", "Result: worked, didnt_work, mixed, unknown")
	outcomeCmd.Flags().StringVar(&outcomeRootCause, "root-cause", "", "Root cause when it failed")
	outcomeCmd.Flags().StringVar(&outcomeRec, "recommend", "", "Recommendation for next time")
	outcomeCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	outcomeCmd.MarkFlagRequired("subject")

	workItemCmd.Flags().StringVar(&noteTitle, "title", "", "Note title (required)")
	workItemCmd.Flags().StringVar(&noteBody, "notes", "", "Note body")
	workItemCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	workItemCmd.MarkFlagRequired("title")

	agentTaskCmd.Flags().StringVar(&engagementAgent, "agent", "", "Agent name (required)")
	agentTaskCmd.Flags().StringVar(&engagementSummary, "summary", "", "Engagement summary")
	agentTaskCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	agentTaskCmd.MarkFlagRequired("agent")

	hostname, _ := os.Hostname()
	recallCmd.Flags().StringVar(&actor, "actor", fmt.Sprintf("cli@%s", hostname), "Acting agent identifier")
	recallCmd.Flags().StringVar(&recallQuery, "query", "", "Free text query")
	recallCmd.Flags().StringVar(&memoryTags, "tags", "", "Comma-separated tags")
	recallCmd.Flags().StringVar(&recallFiles, "files", "", "Comma-separated file paths")
	recallCmd.Flags().StringVar(&recallKeywords, "keywords", "", "Comma-separated keywords")
	recallCmd.Flags().IntVar(&recallLimit, "limit", 0, "Max results per category (default 10)")
}

func runDecisionAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"title":     decisionTitle,
		"options":   splitCSV(decisionOptions),
		"choice":    decisionChoice,
		"rationale": decisionRationale,
		"task_id":   decisionTaskID,
		"tags":      splitCSV(memoryTags),
	}

	resp, err := apiPost("/projects/"+args[0]+"/decisions", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Recorded decision: %s\n", result["id"])
	return nil
}

func runOutcomeAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"subject_type":   outcomeSubjectType,
		"subject_id":     outcomeSubjectID,
		"result":         outcomeResult,
		"root_cause":     outcomeRootCause,
		"recommendation": outcomeRec,
		"tags":           splitCSV(memoryTags),
	}

	resp, err := apiPost("/projects/"+args[0]+"/outcomes", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Recorded outcome: %s\n", result["id"])
	return nil
}

func runWorkItemAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"title": noteTitle,
		"notes": noteBody,
		"tags":  splitCSV(memoryTags),
	}

	resp, err := apiPost("/projects/"+args[0]+"/work-items", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Recorded note: %s\n", result["id"])
	return nil
}

func runAgentTaskAdd(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"agent":   engagementAgent,
		"summary": engagementSummary,
		"tags":    splitCSV(memoryTags),
	}

	resp, err := apiPost("/projects/"+args[0]+"/agent-tasks", body)
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Recorded engagement: %s\n", result["id"])
	return nil
}

func runRecall(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"actor": actor,
		"context": map[string]interface{}{
			"query":    recallQuery,
			"tags":     splitCSV(memoryTags),
			"files":    splitCSV(recallFiles),
			"keywords": splitCSV(recallKeywords),
			"limit":    recallLimit,
		},
	}

	resp, err := apiPost("/projects/"+args[0]+"/recall", body)
	if err != nil {
		return err
	}

	var result struct {
		Decisions []struct {
			Item   map[string]interface{} `json:"item"`
			Score  int                    `json:"relevance_score"`
			Reason string                 `json:"relevance_reason"`
		} `json:"decisions"`
		Outcomes []struct {
			Item   map[string]interface{} `json:"item"`
			Score  int                    `json:"relevance_score"`
			Reason string                 `json:"relevance_reason"`
		} `json:"outcomes"`
		Constraints []struct {
			Item   map[string]interface{} `json:"item"`
			Score  int                    `json:"relevance_score"`
			Reason string                 `json:"relevance_reason"`
		} `json:"constraints"`
		Summary map[string]interface{} `json:"summary"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tKIND\tWHAT\tWHY")
	for _, d := range result.Decisions {
		fmt.Fprintf(w, "%d\tdecision\t%s\t%s\n", d.Score, truncate(str(d.Item["title"]), 40), d.Reason)
	}
	for _, o := range result.Outcomes {
		what := fmt.Sprintf("%s: %s", str(o.Item["result"]), str(o.Item["recommendation"]))
		fmt.Fprintf(w, "%d\toutcome\t%s\t%s\n", o.Score, truncate(what, 40), o.Reason)
	}
	for _, c := range result.Constraints {
		fmt.Fprintf(w, "%d\tconstraint\t%s\t%s\n", c.Score, truncate(str(c.Item["rule_text"]), 40), c.Reason)
	}
	w.Flush()

	if len(result.Summary) > 0 {
		fmt.Printf("\nMax score: %v\n", result.Summary["max_score"])
	}
	return nil
}

// str converts a decoded JSON value to its string form, tolerating nil.
func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
