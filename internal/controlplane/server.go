package controlplane

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/dispatch"
	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/gates"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/models"
	"github.com/wardenhq/warden/internal/recall"
	"github.com/wardenhq/warden/internal/rules"
	"github.com/wardenhq/warden/internal/store"
)

// Version is the control plane API version reported by /health.
const Version = "0.1.0"

// Server provides the HTTP API for Warden.
type Server struct {
	service  *Service
	store    *store.Store
	registry *dispatch.Registry
	addr     string
	token    string
	server   *http.Server
}

// NewServer creates a new HTTP server. An empty token disables auth.
func NewServer(service *Service, s *store.Store, registry *dispatch.Registry, addr, token string) *Server {
	return &Server{
		service:  service,
		store:    s,
		registry: registry,
		addr:     addr,
		token:    token,
	}
}

// Handler builds the routing mux. Exposed separately from Start so tests
// can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Project endpoints
	mux.HandleFunc("/projects", s.handleProjects)
	mux.HandleFunc("/projects/", s.handleProjectByID)

	// Task endpoints
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/tasks/", s.handleTaskByID)

	// Tool dispatch
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/rpc", s.handleRPC)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	return s.withAuth(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting Warden daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// withAuth enforces the bearer token on every route except /health.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, fault.Unauthorizedf("invalid or missing bearer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Error Mapping ---

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps the error taxonomy onto HTTP status codes. Anything not
// classified is a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := ""

	var fe *fault.Error
	if errors.As(err, &fe) {
		kind = fe.Kind.String()
		switch fe.Kind {
		case fault.KindValidation:
			status = http.StatusBadRequest
		case fault.KindUnauthorized:
			status = http.StatusUnauthorized
		case fault.KindNotFound:
			status = http.StatusNotFound
		}
	}
	if errors.Is(err, store.ErrTaskNotAssignable) || errors.Is(err, store.ErrTaskAlreadyLeased) {
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Health ---

// HealthResponse is the /health payload.
type HealthResponse struct {
	OK      bool      `json:"ok"`
	DB      bool      `json:"db"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		OK:      true,
		DB:      s.store.Ping(ctx) == nil,
		Version: Version,
		Time:    time.Now().UTC(),
	}
	if !resp.DB {
		resp.OK = false
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Project Handlers ---

// handleProjects handles POST /projects and GET /projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createProject(w, r)
	case http.MethodGet:
		s.listProjects(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProjectByID handles /projects/{id}/*
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "project id required", http.StatusBadRequest)
		return
	}

	projectID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	sub := ""
	if len(parts) > 2 {
		sub = parts[2]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getProject(w, r, projectID)
	case action == "rules" && r.Method == http.MethodPut:
		s.setProjectRules(w, r, projectID)
	case action == "constraints" && sub == "" && r.Method == http.MethodPost:
		s.addConstraint(w, r, projectID)
	case action == "constraints" && sub == "" && r.Method == http.MethodGet:
		s.listConstraints(w, r, projectID)
	case action == "constraints" && sub == "evaluate" && r.Method == http.MethodPost:
		s.evaluateConstraints(w, r, projectID)
	case action == "decisions" && r.Method == http.MethodPost:
		s.recordDecision(w, r, projectID)
	case action == "decisions" && r.Method == http.MethodGet:
		s.listDecisions(w, r, projectID)
	case action == "outcomes" && r.Method == http.MethodPost:
		s.recordOutcome(w, r, projectID)
	case action == "outcomes" && r.Method == http.MethodGet:
		s.listOutcomes(w, r, projectID)
	case action == "work-items" && r.Method == http.MethodPost:
		s.addWorkItem(w, r, projectID)
	case action == "agent-tasks" && r.Method == http.MethodPost:
		s.addAgentTask(w, r, projectID)
	case action == "recall" && r.Method == http.MethodPost:
		s.recallMemory(w, r, projectID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type createProjectRequest struct {
	Name  string               `json:"name"`
	Repo  string               `json:"repo"`
	Rules *models.ProjectRules `json:"rules,omitempty"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	project, err := s.service.CreateProject(req.Name, req.Repo, req.Rules)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects()
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request, projectID string) {
	project, err := s.service.GetProject(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) setProjectRules(w http.ResponseWriter, r *http.Request, projectID string) {
	var ruleSpec models.ProjectRules
	if err := json.NewDecoder(r.Body).Decode(&ruleSpec); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.service.SetProjectRules(projectID, &ruleSpec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) addConstraint(w http.ResponseWriter, r *http.Request, projectID string) {
	var c models.Constraint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	c.ProjectID = projectID

	saved, err := s.service.AddConstraint(c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listConstraints(w http.ResponseWriter, r *http.Request, projectID string) {
	constraints, err := s.service.ListConstraints(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if constraints == nil {
		constraints = []models.Constraint{}
	}
	writeJSON(w, http.StatusOK, constraints)
}

func (s *Server) evaluateConstraints(w http.ResponseWriter, r *http.Request, projectID string) {
	var ctx rules.Context
	if err := json.NewDecoder(r.Body).Decode(&ctx); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.service.EvaluateConstraints(projectID, ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request, projectID string) {
	var d models.Decision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	d.ProjectID = projectID

	saved, err := s.service.RecordDecision(d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listDecisions(w http.ResponseWriter, r *http.Request, projectID string) {
	decisions, err := s.store.ListDecisions(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if decisions == nil {
		decisions = []models.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) recordOutcome(w http.ResponseWriter, r *http.Request, projectID string) {
	var o models.Outcome
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	o.ProjectID = projectID

	saved, err := s.service.RecordOutcome(o)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) listOutcomes(w http.ResponseWriter, r *http.Request, projectID string) {
	outcomes, err := s.store.ListOutcomes(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if outcomes == nil {
		outcomes = []models.Outcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) addWorkItem(w http.ResponseWriter, r *http.Request, projectID string) {
	var item models.WorkItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	item.ProjectID = projectID

	saved, err := s.service.AddWorkItem(item)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) addAgentTask(w http.ResponseWriter, r *http.Request, projectID string) {
	var at models.AgentTask
	if err := json.NewDecoder(r.Body).Decode(&at); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	at.ProjectID = projectID

	saved, err := s.service.AddAgentTask(at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

type recallRequest struct {
	Actor   string         `json:"actor"`
	Context recall.Context `json:"context"`
}

func (s *Server) recallMemory(w http.ResponseWriter, r *http.Request, projectID string) {
	var req recallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.service.Recall(req.Actor, projectID, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Task Handlers ---

// handleTasks handles POST /tasks and GET /tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id}/*
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	taskID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, taskID)
	case action == "transition" && r.Method == http.MethodPost:
		s.transitionTask(w, r, taskID)
	case action == "assign" && r.Method == http.MethodPost:
		s.assignTask(w, r, taskID)
	case action == "release" && r.Method == http.MethodPost:
		s.releaseTask(w, r, taskID)
	case action == "renew" && r.Method == http.MethodPost:
		s.renewLease(w, r, taskID)
	case action == "scope-check" && r.Method == http.MethodPost:
		s.checkScope(w, r, taskID)
	case action == "gates" && r.Method == http.MethodPost:
		s.evaluateGates(w, r, taskID)
	case action == "artifacts" && r.Method == http.MethodPost:
		s.addArtifact(w, r, taskID)
	case action == "artifacts" && r.Method == http.MethodGet:
		s.listArtifacts(w, r, taskID)
	case action == "events" && r.Method == http.MethodGet:
		s.listEvents(w, r, taskID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type createTaskRequest struct {
	ProjectID          string                  `json:"project_id"`
	Title              string                  `json:"title"`
	Description        string                  `json:"description"`
	Priority           int                     `json:"priority"`
	AcceptanceCriteria []string                `json:"acceptance_criteria,omitempty"`
	Constraints        *models.TaskConstraints `json:"constraints,omitempty"`
	DependsOn          []string                `json:"depends_on,omitempty"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	task, err := s.service.CreateTask(store.NewTask{
		ProjectID:          req.ProjectID,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Constraints:        req.Constraints,
		DependsOn:          req.DependsOn,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	status := r.URL.Query().Get("status")

	tasks, err := s.service.ListTasks(projectID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := s.service.GetTask(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type transitionRequest struct {
	Actor      string          `json:"actor"`
	Target     string          `json:"target"`
	Reason     string          `json:"reason,omitempty"`
	NeedsHuman bool            `json:"needs_human,omitempty"`
	Changeset  json.RawMessage `json:"changeset,omitempty"`
	Gates      []string        `json:"gates,omitempty"`
}

func (s *Server) transitionTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	lreq := lifecycle.Request{
		Actor:      req.Actor,
		TaskID:     taskID,
		Target:     models.TaskStatus(req.Target),
		Reason:     req.Reason,
		NeedsHuman: req.NeedsHuman,
		Gates:      gates.ParseList(req.Gates),
	}
	if len(req.Changeset) > 0 {
		changeset, err := models.ParseChangeset(req.Changeset)
		if err != nil {
			writeError(w, fault.Validationf("%v", err))
			return
		}
		lreq.Changeset = changeset
	}

	result, err := s.service.Transition(lreq)
	if err != nil {
		writeError(w, err)
		return
	}

	// Guard rejections keep a 200: the request was handled, the verdict is
	// in the body.
	writeJSON(w, http.StatusOK, result)
}

type assignRequest struct {
	HolderID string `json:"holder_id"`
	TTLSec   int    `json:"ttl_sec"`
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.service.AssignTask(taskID, req.HolderID, req.TTLSec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type releaseRequest struct {
	HolderID string `json:"holder_id"`
}

func (s *Server) releaseTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.service.ReleaseTask(taskID, req.HolderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (s *Server) renewLease(w http.ResponseWriter, r *http.Request, taskID string) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.service.RenewLease(taskID, req.HolderID, req.TTLSec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renewed"})
}

type scopeCheckRequest struct {
	Actor     string          `json:"actor"`
	Changeset json.RawMessage `json:"changeset"`
}

func (s *Server) checkScope(w http.ResponseWriter, r *http.Request, taskID string) {
	var req scopeCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := s.service.CheckScope(req.Actor, taskID, req.Changeset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type gatesRequest struct {
	Actor string   `json:"actor"`
	Gates []string `json:"gates,omitempty"`
}

func (s *Server) evaluateGates(w http.ResponseWriter, r *http.Request, taskID string) {
	var req gatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	results, err := s.service.EvaluateGates(req.Actor, taskID, req.Gates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type addArtifactRequest struct {
	Type    string `json:"type"`
	Ref     string `json:"ref"`
	Summary string `json:"summary,omitempty"`
}

func (s *Server) addArtifact(w http.ResponseWriter, r *http.Request, taskID string) {
	var req addArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	artifact, err := s.service.AddArtifact(taskID, models.ArtifactType(req.Type), req.Ref, req.Summary)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, artifact)
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request, taskID string) {
	artifacts, err := s.service.ListArtifacts(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []models.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request, taskID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.service.TaskEvents(taskID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Tool Dispatch ---

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.List())
}

type rpcRequest struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

type rpcResponse struct {
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
}

// handleRPC routes a tool call through the shared registry. Tool errors
// ride the same taxonomy as the REST handlers.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Tool == "" {
		writeError(w, fault.Validationf("tool name is required"))
		return
	}

	result, err := s.registry.Dispatch(r.Context(), req.Tool, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpcResponse{OK: true, Result: result})
}
