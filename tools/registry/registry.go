package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/nachoal/coding-agent-server/internal/schema"
	"github.com/nachoal/coding-agent-server/internal/validator"
	"github.com/nachoal/coding-agent-server/tools"
)

// ToolFactory is a function that creates a new tool instance
type ToolFactory func() tools.Tool

// Registry manages tool registration and discovery
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]ToolFactory
	generator *schema.Generator
	validator *validator.Validator
}

// New creates a new tool registry
func New() *Registry {
	return &Registry{
		tools:     make(map[string]ToolFactory),
		generator: schema.NewGenerator(),
		validator: validator.New(),
	}
}

// Register registers a tool factory with the given name
func (r *Registry) Register(name string, factory ToolFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool '%s' is already registered", name)
	}

	r.tools[name] = factory
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (tools.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}

	return factory(), nil
}

// List returns the registered tool names in sorted order
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

// InputSchema returns the JSON schema of a tool's parameters
func (r *Registry) InputSchema(name string) (map[string]interface{}, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return r.generator.Generate(tool.Parameters())
}

// GetSchema returns the OpenAI-style function schema for a tool
func (r *Registry) GetSchema(name string) (map[string]interface{}, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return r.generator.GenerateFunctionSchema(
		tool.Name(),
		tool.Description(),
		tool.Parameters(),
	), nil
}

// Execute executes a tool by name with the given parameters
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}

	// Unmarshal parameters into the tool's parameter struct
	paramStruct := tool.Parameters()
	if err := json.Unmarshal(params, paramStruct); err != nil {
		return "", tools.NewToolError(tools.CodeInvalidParams, "Failed to parse parameters").
			WithDetail("error", err.Error())
	}

	if err := r.validator.Validate(paramStruct); err != nil {
		return "", tools.NewToolError(tools.CodeValidationFailed, "Parameter validation failed: "+err.Error()).
			WithDetail("error", err.Error())
	}

	return tool.Execute(ctx, params)
}
