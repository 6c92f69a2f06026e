// Package tools provides the typed research tool registry and its connector implementations.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Property describes a single parameter in a tool's input schema.
type Property struct {
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
}

// InputSchema describes the JSON schema for a tool's parameters.
type InputSchema struct {
	Properties map[string]Property `json:"properties"`
	Type       string              `json:"type"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the provider-facing description of a tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// Tool is a callable research tool. Exec returns a human-readable result
// string that is fed back to the reasoning model verbatim.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Exec(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds tool instances and hands out named menu subsets.
// Registration happens once at wiring time; lookups are read-only after.
type Registry struct {
	tools map[string]Tool
	menus map[string][]string
	mu    sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		menus: make(map[string][]string),
	}
}

// Register adds a tool to the registry. Registering the same name twice panics;
// duplicate names are a wiring bug, not a runtime condition.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool %q registered twice", name))
	}
	r.tools[name] = tool
}

// RegisterAll registers a batch of tools.
func (r *Registry) RegisterAll(tools ...Tool) {
	for _, tool := range tools {
		r.Register(tool)
	}
}

// DefineMenu names a subset of registered tools. Every named tool must
// already be registered.
func (r *Registry) DefineMenu(menu string, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			return fmt.Errorf("menu %q references unregistered tool %q", menu, name)
		}
	}
	r.menus[menu] = append([]string(nil), names...)
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Menu returns the tool definitions for a named menu, in registration order
// of the menu definition. Unknown menus return nil.
func (r *Registry) Menu(menu string) []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names, ok := r.menus[menu]
	if !ok {
		return nil
	}
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// MenuNames returns the tool names of a named menu.
func (r *Registry) MenuNames(menu string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.menus[menu]...)
}

// List returns the names of all registered tools, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch executes a tool request and always returns a text result.
// Unknown tool names and connector failures become literal result strings
// so the calling loop can feed them back to the model instead of aborting.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	tool, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	result, err := tool.Exec(ctx, args)
	if err != nil {
		return fmt.Sprintf("Tool error: %s", err.Error())
	}
	return result
}
