// Package arith provides the reference arithmetic tools.
package arith

import (
	"context"

	"github.com/wilhg/toolwire/pkg/tool"
)

// LegacySubtractName is the misspelled name older clients call subtract by.
const LegacySubtractName = "substract"

var operands = map[string]string{"a": "number", "b": "number"}

// Add sums two numbers.
type Add struct{}

func (Add) Describe() tool.Descriptor {
	return tool.Descriptor{
		Name:        "add",
		Description: "Adds two numbers together.",
		Parameters:  tool.ObjectSchema(operands, "a", "b"),
	}
}

func (Add) Invoke(ctx context.Context, args tool.Args) (any, error) {
	a, b, err := pair(args)
	if err != nil {
		return nil, err
	}
	return a.Add(b)
}

// Subtract returns a - b. Name overrides the registered name when set.
type Subtract struct {
	Name string
}

func (s Subtract) Describe() tool.Descriptor {
	name := s.Name
	if name == "" {
		name = "subtract"
	}
	return tool.Descriptor{
		Name:        name,
		Description: "Subtract two numbers",
		Parameters:  tool.ObjectSchema(operands, "a", "b"),
	}
}

func (Subtract) Invoke(ctx context.Context, args tool.Args) (any, error) {
	a, b, err := pair(args)
	if err != nil {
		return nil, err
	}
	return a.Sub(b)
}

func pair(args tool.Args) (tool.Number, tool.Number, error) {
	a, err := args.Number("a")
	if err != nil {
		return tool.Number{}, tool.Number{}, err
	}
	b, err := args.Number("b")
	if err != nil {
		return tool.Number{}, tool.Number{}, err
	}
	return a, b, nil
}

type options struct {
	legacyAlias bool
}

// Option configures Register.
type Option func(*options)

// WithLegacyAlias also registers subtract under LegacySubtractName.
func WithLegacyAlias() Option {
	return func(o *options) { o.legacyAlias = true }
}

// Register adds the arithmetic tools to reg in catalog order.
func Register(reg *tool.Registry, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ts := []tool.Tool{Add{}, Subtract{}}
	if o.legacyAlias {
		ts = append(ts, Subtract{Name: LegacySubtractName})
	}
	for _, t := range ts {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
