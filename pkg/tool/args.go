package tool

import (
	"github.com/wilhg/toolwire/pkg/errmodel"
)

// Args is the validated argument object handed to a tool.
type Args struct {
	fields map[string]Value
}

// NewArgs wraps an object's members.
func NewArgs(fields map[string]Value) Args {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Args{fields: fields}
}

// Len returns the number of supplied arguments.
func (a Args) Len() int { return len(a.fields) }

// Value returns the raw argument.
func (a Args) Value(name string) (Value, bool) {
	v, ok := a.fields[name]
	return v, ok
}

// Object returns the arguments as an object value.
func (a Args) Object() Value { return ObjectValue(a.fields) }

// Number returns a numeric argument.
func (a Args) Number(name string) (Number, error) {
	v, err := a.lookup(name)
	if err != nil {
		return Number{}, err
	}
	n, ok := v.Number()
	if !ok {
		return Number{}, wrongKind(name, KindNumber, v.Kind())
	}
	if !n.IsFinite() {
		return Number{}, errmodel.Validation(errmodel.CodeInvalidArguments, "argument "+name+" is out of range", map[string]any{
			"argument": name,
			"value":    n.String(),
		})
	}
	return n, nil
}

// String returns a string argument.
func (a Args) String(name string) (string, error) {
	v, err := a.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.Str()
	if !ok {
		return "", wrongKind(name, KindString, v.Kind())
	}
	return s, nil
}

func (a Args) lookup(name string) (Value, error) {
	v, ok := a.fields[name]
	if !ok {
		return Value{}, errmodel.Validation(errmodel.CodeInvalidArguments, "missing argument "+name, map[string]any{"argument": name})
	}
	return v, nil
}

func wrongKind(name string, want, got Kind) error {
	return errmodel.Validation(errmodel.CodeInvalidArguments, "argument "+name+" must be a "+want.String(), map[string]any{
		"argument": name,
		"want":     want.String(),
		"got":      got.String(),
	})
}
