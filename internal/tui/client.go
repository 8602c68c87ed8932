package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Warden API
type Client struct {
	baseURL    string
	token      string
	actorID    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL, token string) *Client {
	hostname, _ := os.Hostname()
	return &Client{
		baseURL: baseURL,
		token:   token,
		actorID: fmt.Sprintf("tui@%s", hostname),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

func (c *Client) do(method, path string, data interface{}) ([]byte, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}
	return respBody, nil
}

// ListProjects fetches projects from the API
func (c *Client) ListProjects() ([]ProjectItem, error) {
	resp, err := c.do(http.MethodGet, "/projects", nil)
	if err != nil {
		return nil, err
	}

	var projects []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp, &projects); err != nil {
		return nil, err
	}

	items := make([]ProjectItem, len(projects))
	for i, p := range projects {
		items[i] = ProjectItem{ID: p.ID, Name: p.Name}
	}
	return items, nil
}

// ListTasks fetches tasks from the API
func (c *Client) ListTasks(projectID, status string) ([]TaskItem, error) {
	url := "/tasks?project_id=" + projectID
	if status != "" {
		url += "&status=" + status
	}

	resp, err := c.do(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var tasks []struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Status     string `json:"status"`
		AssignedTo string `json:"assigned_to"`
	}
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return nil, err
	}

	items := make([]TaskItem, len(tasks))
	for i, t := range tasks {
		items[i] = TaskItem{
			ID:         t.ID,
			TaskTitle:  t.Title,
			Status:     t.Status,
			AssignedTo: t.AssignedTo,
		}
	}
	return items, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(id string) (*TaskDetail, error) {
	resp, err := c.do(http.MethodGet, "/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}

	var task struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Status      string   `json:"status"`
		AssignedTo  string   `json:"assigned_to"`
		Criteria    []string `json:"acceptance_criteria"`
		CreatedAt   string   `json:"created_at"`
		UpdatedAt   string   `json:"updated_at"`
	}
	if err := json.Unmarshal(resp, &task); err != nil {
		return nil, err
	}

	return &TaskDetail{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		AssignedTo:  task.AssignedTo,
		Criteria:    task.Criteria,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}, nil
}

// GetTaskGates evaluates a task's gates
func (c *Client) GetTaskGates(taskID string) ([]GateDetail, error) {
	body := map[string]string{"actor": c.actorID}
	resp, err := c.do(http.MethodPost, "/tasks/"+taskID+"/gates", body)
	if err != nil {
		return nil, err
	}

	var results []struct {
		Gate struct {
			Type string `json:"type"`
		} `json:"gate"`
		Passed bool   `json:"passed"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp, &results); err != nil {
		return nil, err
	}

	details := make([]GateDetail, len(results))
	for i, r := range results {
		details[i] = GateDetail{
			Type:   r.Gate.Type,
			Passed: r.Passed,
			Reason: r.Reason,
		}
	}
	return details, nil
}

// GetTaskEvents fetches a task's audit trail
func (c *Client) GetTaskEvents(taskID string) ([]EventDetail, error) {
	resp, err := c.do(http.MethodGet, "/tasks/"+taskID+"/events", nil)
	if err != nil {
		return nil, err
	}

	var events []struct {
		Type      string `json:"type"`
		Outcome   string `json:"outcome"`
		Details   string `json:"details"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(resp, &events); err != nil {
		return nil, err
	}

	details := make([]EventDetail, len(events))
	for i, e := range events {
		details[i] = EventDetail{
			Type:      e.Type,
			Outcome:   e.Outcome,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		}
	}
	return details, nil
}

// AssignTask picks up a task for the TUI actor
func (c *Client) AssignTask(taskID string) error {
	body := map[string]interface{}{
		"holder_id": c.actorID,
		"ttl_sec":   900,
	}
	_, err := c.do(http.MethodPost, "/tasks/"+taskID+"/assign", body)
	return err
}

// ReleaseTask releases a task assignment
func (c *Client) ReleaseTask(taskID string) error {
	body := map[string]string{"holder_id": c.actorID}
	_, err := c.do(http.MethodPost, "/tasks/"+taskID+"/release", body)
	return err
}

// TransitionTask requests a status transition
func (c *Client) TransitionTask(taskID, target, reason string) (bool, []string, error) {
	body := map[string]string{
		"actor":  c.actorID,
		"target": target,
		"reason": reason,
	}
	resp, err := c.do(http.MethodPost, "/tasks/"+taskID+"/transition", body)
	if err != nil {
		return false, nil, err
	}

	var result struct {
		OK      bool     `json:"ok"`
		Reasons []string `json:"reasons"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return false, nil, err
	}
	return result.OK, result.Reasons, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}
	return health.OK, nil
}
