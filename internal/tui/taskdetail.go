package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// TaskDetailModel manages the task detail screen
type TaskDetailModel struct {
	client  *Client
	taskID  string
	task    *TaskDetail
	gates   []GateDetail
	events  []EventDetail
	width   int
	height  int
	loading bool
	scroll  int
}

// TaskDetail represents detailed task info
type TaskDetail struct {
	ID          string
	Title       string
	Description string
	Status      string
	AssignedTo  string
	Criteria    []string
	CreatedAt   string
	UpdatedAt   string
}

// GateDetail represents one gate verdict
type GateDetail struct {
	Type   string
	Passed bool
	Reason string
}

// EventDetail represents an audit log entry
type EventDetail struct {
	Type      string
	Outcome   string
	Details   string
	Timestamp string
}

// NewTaskDetailModel creates a new task detail model
func NewTaskDetailModel(client *Client) *TaskDetailModel {
	return &TaskDetailModel{
		client: client,
	}
}

// Init initializes the task detail model
func (m *TaskDetailModel) Init() tea.Cmd {
	return nil
}

// SetTask sets the task ID to display
func (m *TaskDetailModel) SetTask(id string) {
	m.taskID = id
	m.task = nil
	m.gates = nil
	m.events = nil
	m.scroll = 0
}

// SetSize sets the dimensions
func (m *TaskDetailModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Refresh fetches task details
func (m *TaskDetailModel) Refresh() tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		task, err := m.client.GetTask(m.taskID)
		if err != nil {
			return errMsg{err}
		}
		gates, _ := m.client.GetTaskGates(m.taskID)
		events, _ := m.client.GetTaskEvents(m.taskID)
		return taskDetailLoadedMsg{task, gates, events}
	}
}

// Update handles messages
func (m *TaskDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDetailLoadedMsg:
		m.loading = false
		m.task = msg.task
		m.gates = msg.gates
		m.events = msg.events
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.scroll++
		case "k", "up":
			if m.scroll > 0 {
				m.scroll--
			}
		case "r":
			return m, m.Refresh()
		}
	}
	return m, nil
}

// View renders the task detail
func (m *TaskDetailModel) View() string {
	if m.loading || m.task == nil {
		return "Loading task details..."
	}

	var b strings.Builder

	// Header
	b.WriteString(headerStyle.Render(m.task.Title))
	b.WriteString("\n\n")

	// Task fields
	b.WriteString(m.renderField("ID", m.task.ID))
	b.WriteString(m.renderField("Status", formatStatus(m.task.Status)))
	b.WriteString(m.renderField("Description", m.task.Description))
	if m.task.AssignedTo != "" {
		b.WriteString(m.renderField("Assigned To", m.task.AssignedTo))
	}
	b.WriteString(m.renderField("Created", m.task.CreatedAt))
	b.WriteString(m.renderField("Updated", m.task.UpdatedAt))

	// Acceptance criteria section
	if len(m.task.Criteria) > 0 {
		b.WriteString(sectionStyle.Render("Acceptance Criteria"))
		b.WriteString("\n")
		for _, c := range m.task.Criteria {
			b.WriteString(fmt.Sprintf("  • %s\n", c))
		}
	}

	// Gates section
	if len(m.gates) > 0 {
		b.WriteString(sectionStyle.Render("Gates"))
		b.WriteString("\n")
		for _, g := range m.gates {
			mark := statusBlocked.Render("✗")
			if g.Passed {
				mark = statusDone.Render("✓")
			}
			b.WriteString(fmt.Sprintf("  %s %s — %s\n", mark, g.Type, truncate(g.Reason, 60)))
		}
	}

	// Events section
	if len(m.events) > 0 {
		b.WriteString(sectionStyle.Render("Events"))
		b.WriteString("\n")
		for i, e := range m.events {
			if i >= 5 {
				b.WriteString(fmt.Sprintf("  ... and %d more events\n", len(m.events)-5))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s (%s)\n", e.Timestamp, e.Type, e.Outcome))
		}
	}

	// Apply scroll
	lines := strings.Split(b.String(), "\n")
	if m.scroll >= len(lines) {
		m.scroll = len(lines) - 1
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
	visible := lines[m.scroll:]
	if len(visible) > m.height {
		visible = visible[:m.height]
	}

	return strings.Join(visible, "\n")
}

func (m *TaskDetailModel) renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

type taskDetailLoadedMsg struct {
	task   *TaskDetail
	gates  []GateDetail
	events []EventDetail
}
