// Package tool defines the tool contract (C2) and the registry that
// resolves tool-name strings to implementations and their JSON schemas.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Context is the map handed to a tool's Execute call. It always carries at
// least working_directory, config, and the scratchpad handle when present;
// callers may add further keys.
type Context map[string]any

// WorkingDirectory returns the working_directory key, or "." if unset.
func (c Context) WorkingDirectory() string {
	if v, ok := c["working_directory"].(string); ok && v != "" {
		return v
	}
	return "."
}

// Tool is the contract every callable tool implements. Execute always
// returns a string; structured data must be JSON-encoded by the tool
// itself.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input json.RawMessage, tc Context) (string, error)
}

// Registry resolves tool names to implementations. Thread-safe: Get is
// read-mostly and safe for concurrent executor workers, matching the
// teacher's ToolRegistry shape (internal/agent/tool_registry.go).
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry builds a registry from an ordered tool list. Duplicate names
// are a construction-time error (spec §4.1), as is a tool whose
// input_schema fails to compile as JSON Schema.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		schemas: make(map[string]*jsonschema.Schema, len(tools)),
	}
	for _, t := range tools {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool registry: duplicate tool name %q", name)
	}
	schema, err := compileSchema(name, t.InputSchema())
	if err != nil {
		return err
	}
	r.tools[name] = t
	r.schemas[name] = schema
	return nil
}

func compileSchema(name string, schemaDoc map[string]any) (*jsonschema.Schema, error) {
	if schemaDoc == nil {
		schemaDoc = map[string]any{}
	}
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("tool registry: tool %q: encode input_schema: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	resourceName := name + ".json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("tool registry: tool %q: invalid input_schema: %w", name, err)
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("tool registry: tool %q: invalid input_schema: %w", name, err)
	}
	return schema, nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ValidateInput validates input against the registered tool's compiled
// schema. Unknown tool names are reported by the caller (the executor),
// not here.
func (r *Registry) ValidateInput(name string, input json.RawMessage) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()
	if schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return fmt.Errorf("invalid tool input JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tool input failed schema validation: %w", err)
	}
	return nil
}

// Descriptor is the provider-facing {name, description, input_schema}
// triple produced by the registry build.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Descriptors returns the provider-facing tool list (spec §4.1 registry
// build, part (a)).
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for name, t := range r.tools {
		out = append(out, Descriptor{Name: name, Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return out
}
