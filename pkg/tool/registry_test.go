package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wilhg/toolwire/pkg/errmodel"
)

func constTool(name, desc string, out any) Tool {
	return Func(Descriptor{
		Name:        name,
		Description: desc,
		Parameters:  ObjectSchema(map[string]string{"a": "number"}, "a"),
	}, func(ctx context.Context, args Args) (any, error) { return out, nil })
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(constTool("one", "first", 1)); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Resolve("one"); !ok {
		t.Fatal("expected tool to resolve")
	}
	if _, ok := r.Resolve("missing"); ok {
		t.Fatal("unexpected tool")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("nil tool should be rejected")
	}
	if err := r.Register(constTool("", "nameless", 0)); err == nil {
		t.Fatal("empty name should be rejected")
	}
}

func TestRegisterLastWinsKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(constTool("a", "first a", 1), constTool("b", "b", 2), constTool("a", "second a", 3))
	if r.Len() != 2 {
		t.Fatalf("len=%d want 2", r.Len())
	}
	cat, err := r.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if cat[0].Name != "a" || cat[0].Description != "second a" || cat[1].Name != "b" {
		t.Fatalf("catalog=%+v", cat)
	}
	var seen []string
	r.Range(func(name string, _ Tool) { seen = append(seen, name) })
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("range order=%v", seen)
	}
}

func TestCatalogEmptyAndInvalid(t *testing.T) {
	r := NewRegistry()
	cat, err := r.Catalog()
	if err != nil || cat == nil || len(cat) != 0 {
		t.Fatalf("empty catalog=%v err=%v", cat, err)
	}
	b, _ := json.Marshal(cat)
	if string(b) != "[]" {
		t.Fatalf("empty catalog encodes as %s", b)
	}

	r.MustRegister(Func(Descriptor{Name: "broken", Parameters: &jsonschema.Schema{Type: "string"}}, nil))
	if _, err := r.Catalog(); !errmodel.IsCode(err, errmodel.CodeCatalogUnavailable) {
		t.Fatalf("want catalog_unavailable, got %v", err)
	}
}

func TestDescriptorValidate(t *testing.T) {
	ok := Descriptor{Name: "x", Parameters: ObjectSchema(map[string]string{"a": "number"}, "a")}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	undeclared := Descriptor{Name: "x", Parameters: ObjectSchema(map[string]string{"a": "number"}, "b")}
	if err := undeclared.Validate(); err == nil {
		t.Fatal("required name outside properties should fail")
	}
	if err := (Descriptor{Name: "x"}).Validate(); err == nil {
		t.Fatal("missing parameters should fail")
	}
}

func TestDescriptorJSONShape(t *testing.T) {
	d := Descriptor{
		Name:        "add",
		Description: "Adds two numbers together.",
		Parameters:  ObjectSchema(map[string]string{"a": "number", "b": "number"}, "a", "b"),
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":"add","description":"Adds two numbers together.","parameters":{"type":"object","required":["a","b"],"properties":{"a":{"type":"number"},"b":{"type":"number"}}}}`
	var got, exp any
	_ = json.Unmarshal(b, &got)
	_ = json.Unmarshal([]byte(want), &exp)
	gb, _ := json.Marshal(got)
	eb, _ := json.Marshal(exp)
	if string(gb) != string(eb) {
		t.Fatalf("descriptor json=%s", b)
	}
}
