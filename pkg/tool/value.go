package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	sjs "github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind enumerates the JSON value kinds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded JSON value.
type Value struct {
	kind Kind
	b    bool
	n    Number
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null is the JSON null value.
var Null = Value{kind: KindNull}

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func NumberValue(n Number) Value { return Value{kind: KindNumber, n: n} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func ArrayValue(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// ObjectValue builds an object value. The map is not copied.
func ObjectValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Number() (Number, bool) { return v.n, v.kind == KindNumber }
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }
func (v Value) Array() ([]Value, bool) { return v.arr, v.kind == KindArray }
func (v Value) Object() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Field returns a member of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Keys returns the object member names, sorted.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Any converts back to the generic form produced by encoding/json with
// UseNumber: nil, bool, json.Number, string, []any, map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.n.String())
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Any()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value; object keys come out sorted.
func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(v.Any()) }

// UnmarshalJSON decodes any JSON document, keeping number literals.
func (v *Value) UnmarshalJSON(b []byte) error {
	decoded, err := DecodeValue(bytes.NewReader(b))
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// DecodeValue reads exactly one JSON document.
func DecodeValue(r io.Reader) (Value, error) {
	doc, err := sjs.UnmarshalJSON(r)
	if err != nil {
		return Value{}, err
	}
	return FromAny(doc)
}

// FromAny converts a generic decoded JSON value (or plain Go scalars) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		n, err := ParseNumber(string(t))
		if err != nil {
			return Value{}, err
		}
		return NumberValue(n), nil
	case Number:
		return NumberValue(t), nil
	case float64:
		n, err := FloatNumber(t)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(n), nil
	case int:
		return NumberValue(IntNumber(int64(t))), nil
	case int64:
		return NumberValue(IntNumber(t)), nil
	case string:
		return StringValue(t), nil
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			arr[i] = ev
		}
		return ArrayValue(arr...), nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			obj[k] = ev
		}
		return ObjectValue(obj), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON value of type %T", x)
	}
}
