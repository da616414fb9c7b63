package tool

import (
	"context"
	"encoding/json"
	"testing"
)

type stubTool struct {
	name   string
	schema map[string]any
}

func (s stubTool) Name() string                { return s.name }
func (s stubTool) Description() string         { return "stub tool " + s.name }
func (s stubTool) InputSchema() map[string]any { return s.schema }
func (s stubTool) Execute(ctx context.Context, input json.RawMessage, tc Context) (string, error) {
	return "ok", nil
}

func TestContextWorkingDirectory(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{"set", Context{"working_directory": "/tmp/work"}, "/tmp/work"},
		{"unset", Context{}, "."},
		{"empty string", Context{"working_directory": ""}, "."},
		{"wrong type", Context{"working_directory": 5}, "."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ctx.WorkingDirectory(); got != tc.want {
				t.Errorf("WorkingDirectory() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewRegistryDuplicateName(t *testing.T) {
	_, err := NewRegistry(stubTool{name: "search"}, stubTool{name: "search"})
	if err == nil {
		t.Fatal("expected error constructing registry with duplicate tool names")
	}
}

func TestNewRegistryInvalidSchema(t *testing.T) {
	// A schema whose "type" is not a recognized JSON Schema value fails to
	// compile.
	_, err := NewRegistry(stubTool{name: "bad", schema: map[string]any{"type": 5}})
	if err == nil {
		t.Fatal("expected error constructing registry with invalid input_schema")
	}
}

func TestRegistryGet(t *testing.T) {
	reg, err := NewRegistry(stubTool{name: "search"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	got, ok := reg.Get("search")
	if !ok || got.Name() != "search" {
		t.Errorf("Get(%q) = %v, %v", "search", got, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("expected Get(missing) to report not-found")
	}
}

func TestRegistryValidateInput(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"query"},
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	}
	reg, err := NewRegistry(stubTool{name: "search", schema: schema})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := reg.ValidateInput("search", json.RawMessage(`{"query":"hi"}`)); err != nil {
		t.Errorf("expected valid input to pass, got %v", err)
	}
	if err := reg.ValidateInput("search", json.RawMessage(`{}`)); err == nil {
		t.Error("expected missing required field to fail validation")
	}
	if err := reg.ValidateInput("search", json.RawMessage(`not json`)); err == nil {
		t.Error("expected malformed JSON to fail validation")
	}
	// Unregistered tool name: validation is a no-op (schema is nil), the
	// caller is responsible for reporting unknown names.
	if err := reg.ValidateInput("unknown", json.RawMessage(`{}`)); err != nil {
		t.Errorf("expected no-op for unregistered tool name, got %v", err)
	}
}

func TestRegistryDescriptors(t *testing.T) {
	reg, err := NewRegistry(
		stubTool{name: "a", schema: map[string]any{"type": "object"}},
		stubTool{name: "b", schema: map[string]any{"type": "object"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	descs := reg.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("Descriptors() len = %d, want 2", len(descs))
	}
	names := map[string]bool{}
	for _, d := range descs {
		names[d.Name] = true
		if d.Description == "" {
			t.Errorf("Descriptor %q missing description", d.Name)
		}
	}
	if !names["a"] || !names["b"] {
		t.Errorf("Descriptors() names = %v, want a and b", names)
	}
}
