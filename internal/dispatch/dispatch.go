// Package dispatch provides a table-driven tool registry: one map from
// tool name to handler, shared by every caller, instead of parallel
// per-transport switch statements.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/wardenhq/warden/internal/fault"
)

// Handler executes one tool call. Args arrive as raw JSON; the handler
// owns decoding and shape validation.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Tool is a registered, callable operation.
type Tool struct {
	Name        string
	Description string
	Handler     Handler
}

// Info is the externally visible description of a tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to handlers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are an error: the registry is the
// single source of truth for routing.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, Info{Name: t.Name, Description: t.Description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch routes one call to its handler.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fault.NotFoundf("unknown tool %q", name)
	}
	return tool.Handler(ctx, args)
}
