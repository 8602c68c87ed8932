// Package tui implements the interactive task board for the Warden
// control plane.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type screen int

const (
	screenProjects screen = iota
	screenTasks
	screenDetail
)

var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

type errMsg struct {
	err error
}

type projectsLoadedMsg struct {
	projects []ProjectItem
}

type actionDoneMsg struct {
	note string
}

// projectEntry implements list.Item for the project picker
type projectEntry struct {
	project ProjectItem
}

func (e projectEntry) FilterValue() string { return e.project.Name }
func (e projectEntry) Title() string       { return e.project.Name }
func (e projectEntry) Description() string { return e.project.ID }

// App is the top-level TUI model
type App struct {
	client      *Client
	screen      screen
	projectList list.Model
	tasks       *TaskListModel
	detail      *TaskDetailModel
	width       int
	height      int
	status      string
	lastErr     error
}

// New creates the TUI application.
func New(apiAddr, token string) *App {
	client := NewClient(apiAddr, token)

	delegate := list.NewDefaultDelegate()
	pl := list.New([]list.Item{}, delegate, 80, 20)
	pl.Title = "Projects"
	pl.Styles.Title = listTitleStyle

	return &App{
		client:      client,
		screen:      screenProjects,
		projectList: pl,
		detail:      NewTaskDetailModel(client),
	}
}

// Run starts the TUI event loop.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init loads the project list.
func (a *App) Init() tea.Cmd {
	return a.loadProjects()
}

func (a *App) loadProjects() tea.Cmd {
	return func() tea.Msg {
		projects, err := a.client.ListProjects()
		if err != nil {
			return errMsg{err}
		}
		return projectsLoadedMsg{projects}
	}
}

// Update handles messages for the active screen.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := a.height - 2
		a.projectList.SetSize(a.width, contentHeight)
		if a.tasks != nil {
			a.tasks.SetSize(a.width, contentHeight)
		}
		a.detail.SetSize(a.width, contentHeight)
		return a, nil

	case errMsg:
		a.lastErr = msg.err
		return a, nil

	case actionDoneMsg:
		a.status = msg.note
		a.lastErr = nil
		if a.tasks != nil {
			return a, a.tasks.Refresh()
		}
		return a, nil

	case projectsLoadedMsg:
		items := make([]list.Item, len(msg.projects))
		for i, p := range msg.projects {
			items[i] = projectEntry{p}
		}
		a.projectList.SetItems(items)
		return a, nil

	case tea.KeyMsg:
		if cmd := a.handleKey(msg); cmd != nil {
			return a, cmd
		}
	}

	return a.forward(msg)
}

// handleKey handles global and screen-switching keys. Returns nil when
// the key should fall through to the active screen.
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit

	case "esc":
		switch a.screen {
		case screenDetail:
			a.screen = screenTasks
			return a.tasks.Refresh()
		case screenTasks:
			a.screen = screenProjects
			return a.loadProjects()
		}
		return nil

	case "enter":
		switch a.screen {
		case screenProjects:
			if item := a.projectList.SelectedItem(); item != nil {
				entry := item.(projectEntry)
				a.tasks = NewTaskListModel(a.client, entry.project.ID)
				a.tasks.SetSize(a.width, a.height-2)
				a.screen = screenTasks
				return a.tasks.Init()
			}
		case screenTasks:
			if task := a.tasks.SelectedTask(); task != nil {
				a.detail.SetTask(task.ID)
				a.screen = screenDetail
				return a.detail.Refresh()
			}
		}
		return nil

	case "f":
		if a.screen == screenTasks {
			a.tasks.CycleFilter()
			return a.tasks.Refresh()
		}
		return nil

	case "a":
		if a.screen == screenTasks {
			if task := a.tasks.SelectedTask(); task != nil {
				return a.assign(task.ID)
			}
		}
		return nil

	case "x":
		if a.screen == screenTasks {
			if task := a.tasks.SelectedTask(); task != nil {
				return a.release(task.ID)
			}
		}
		return nil

	case "s":
		if a.screen == screenTasks {
			if task := a.tasks.SelectedTask(); task != nil {
				return a.transition(task.ID, "in_progress")
			}
		}
		return nil

	case "d":
		if a.screen == screenTasks {
			if task := a.tasks.SelectedTask(); task != nil {
				return a.transition(task.ID, "done")
			}
		}
		return nil
	}
	return nil
}

func (a *App) assign(taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.AssignTask(taskID); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{note: "task assigned"}
	}
}

func (a *App) release(taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.ReleaseTask(taskID); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{note: "task released"}
	}
}

func (a *App) transition(taskID, target string) tea.Cmd {
	return func() tea.Msg {
		ok, reasons, err := a.client.TransitionTask(taskID, target, "")
		if err != nil {
			return errMsg{err}
		}
		if !ok {
			note := "transition rejected"
			if len(reasons) > 0 {
				note = fmt.Sprintf("rejected: %s", reasons[0])
			}
			return actionDoneMsg{note: note}
		}
		return actionDoneMsg{note: fmt.Sprintf("moved to %s", target)}
	}
}

// forward delegates the message to the active screen.
func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.screen {
	case screenProjects:
		a.projectList, cmd = a.projectList.Update(msg)
	case screenTasks:
		_, cmd = a.tasks.Update(msg)
	case screenDetail:
		_, cmd = a.detail.Update(msg)
	}
	return a, cmd
}

// View renders the active screen plus the status bar.
func (a *App) View() string {
	var content string
	switch a.screen {
	case screenProjects:
		content = a.projectList.View()
	case screenTasks:
		content = a.tasks.View()
	case screenDetail:
		content = a.detail.View()
	}

	bar := a.statusBar()
	return content + "\n" + bar
}

func (a *App) statusBar() string {
	if a.lastErr != nil {
		return errorStyle.Render("error: " + a.lastErr.Error())
	}

	help := ""
	switch a.screen {
	case screenProjects:
		help = "enter: open • q: quit"
	case screenTasks:
		help = "enter: detail • a: assign • x: release • s: start • d: done • f: filter • esc: back"
	case screenDetail:
		help = "j/k: scroll • r: refresh • esc: back"
	}

	bar := helpStyle.Render(help)
	if a.status != "" {
		bar = statusBarStyle.Render(a.status) + "  " + bar
	}
	return bar
}
