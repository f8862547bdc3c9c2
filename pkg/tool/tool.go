// Package tool holds the capability model shared by the server and the client:
// tool descriptors, the JSON value union tools receive their arguments in,
// the name-keyed registry that forms the catalog, and the dispatcher that
// validates and executes invocations.
package tool

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Descriptor declares the public interface of a tool. It is the unit of the
// discovery response and is immutable once registered.
type Descriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Tool is a callable unit registered under its descriptor name.
// Invoke only ever sees arguments that already passed schema validation.
type Tool interface {
	// Describe returns the public descriptor.
	Describe() Descriptor
	// Invoke executes the tool. The returned value must be JSON-serializable.
	Invoke(ctx context.Context, args Args) (any, error)
}

// Func adapts a plain function to the Tool interface.
func Func(desc Descriptor, fn func(ctx context.Context, args Args) (any, error)) Tool {
	return funcTool{desc: desc, fn: fn}
}

type funcTool struct {
	desc Descriptor
	fn   func(ctx context.Context, args Args) (any, error)
}

func (f funcTool) Describe() Descriptor { return f.desc }

func (f funcTool) Invoke(ctx context.Context, args Args) (any, error) { return f.fn(ctx, args) }

// ObjectSchema builds the `type: object` parameter schema used by descriptors.
// props maps a parameter name to its JSON type ("number", "string", ...).
func ObjectSchema(props map[string]string, required ...string) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(props)),
		Required:   append([]string{}, required...),
	}
	for name, typ := range props {
		s.Properties[name] = &jsonschema.Schema{Type: typ}
	}
	return s
}

// Validate checks the descriptor invariants: a non-empty name, an object
// parameter schema whose required names are declared properties, and a
// schema that compiles.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if d.Parameters == nil {
		return fmt.Errorf("tool %q: parameters schema is missing", d.Name)
	}
	if d.Parameters.Type != "object" {
		return fmt.Errorf("tool %q: parameters type is %q, want \"object\"", d.Name, d.Parameters.Type)
	}
	for _, req := range d.Parameters.Required {
		if _, ok := d.Parameters.Properties[req]; !ok {
			return fmt.Errorf("tool %q: required parameter %q is not a declared property", d.Name, req)
		}
	}
	if _, err := compileParameters(d); err != nil {
		return fmt.Errorf("tool %q: %w", d.Name, err)
	}
	return nil
}

// RequiredNames returns the required parameter names in declaration order.
func (d Descriptor) RequiredNames() []string {
	if d.Parameters == nil {
		return nil
	}
	return slices.Clone(d.Parameters.Required)
}
