package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/xeipuuv/gojsonschema"
)

// Registration errors.
var (
	ErrDuplicateTool  = errors.New("tool name already registered")
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// Args is the validated argument bundle passed to handlers.
type Args map[string]interface{}

// String returns the named argument as a string, or "" if absent.
func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

// Float returns the named argument as a float64, or 0 if absent.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns the named argument as an int64, or 0 if absent.
func (a Args) Int(name string) int64 {
	switch v := a[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Bool returns the named argument as a bool, or false if absent.
func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Handler executes a tool with validated arguments. A *Failure return
// reports a declared business failure; any other error is treated as an
// unexpected fault.
type Handler func(ctx context.Context, args Args) (interface{}, error)

// Tool is a named, schema-described capability the server can execute.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler

	compiled *gojsonschema.Schema
}

// Registry holds the set of available tools. Registration happens once
// during startup; after Freeze the registry is read-only and safe for
// lock-free concurrent lookups.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	frozen atomic.Bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. It fails on a duplicate name, an
// invalid definition, or a frozen registry, and never mutates an
// existing entry on failure.
func (r *Registry) Register(t Tool) error {
	if err := validateDefinition(t); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.Schema.jsonSchema()))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", t.Name, err)
	}
	t.compiled = compiled

	if r.frozen.Load() {
		return fmt.Errorf("cannot register %s: %w", t.Name, ErrRegistryFrozen)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("cannot register %s: %w", t.Name, ErrDuplicateTool)
	}
	r.tools[t.Name] = &t

	return nil
}

// Freeze marks the end of registration. All later Register calls fail
// and lookups no longer take the lock.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Frozen reports whether registration has completed.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.tools)
}

func validateDefinition(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Description == "" {
		return fmt.Errorf("tool description cannot be empty for %s", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil for %s", t.Name)
	}

	return validateFields(t.Name, t.Schema.Fields)
}

func validateFields(toolName string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			return fmt.Errorf("field name cannot be empty in %s", toolName)
		}
		if seen[field.Name] {
			return fmt.Errorf("duplicate field %s in %s", field.Name, toolName)
		}
		seen[field.Name] = true

		if !validKinds[field.Kind] {
			return fmt.Errorf("invalid kind %q for field %s in %s", field.Kind, field.Name, toolName)
		}
		if len(field.Fields) > 0 {
			if field.Kind != KindObject {
				return fmt.Errorf("field %s in %s declares nested fields but is not an object", field.Name, toolName)
			}
			if err := validateFields(toolName, field.Fields); err != nil {
				return err
			}
		}
		if field.Elem != nil {
			if field.Kind != KindArray {
				return fmt.Errorf("field %s in %s declares an element shape but is not an array", field.Name, toolName)
			}
			if !validKinds[field.Elem.Kind] {
				return fmt.Errorf("invalid element kind %q for field %s in %s", field.Elem.Kind, field.Name, toolName)
			}
		}
	}
	return nil
}
