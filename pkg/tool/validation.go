package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sjs "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/toolwire/pkg/errmodel"
)

// compileParameters compiles a descriptor's parameter schema for validation.
func compileParameters(d Descriptor) (*sjs.Schema, error) {
	raw, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	doc, err := sjs.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}
	loc := "mem://tools/" + url.PathEscape(d.Name) + ".json"
	c := sjs.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, fmt.Errorf("add parameters schema: %w", err)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compile parameters schema: %w", err)
	}
	return sch, nil
}

// validateArguments checks a decoded body against the compiled schema and,
// on success, returns it as Args. Unknown members are accepted unless the
// schema forbids them.
func validateArguments(name string, sch *sjs.Schema, v Value) (Args, error) {
	obj, ok := v.Object()
	if !ok {
		return Args{}, errmodel.Validation(errmodel.CodeInvalidArguments, "arguments must be a JSON object", map[string]any{
			"tool": name,
			"got":  v.Kind().String(),
		})
	}
	if err := sch.Validate(v.Any()); err != nil {
		return Args{}, errmodel.Validation(errmodel.CodeInvalidArguments, describeViolation(err), map[string]any{"tool": name})
	}
	return NewArgs(obj), nil
}

// describeViolation flattens a schema validation error into a single line.
func describeViolation(err error) string {
	var ve *sjs.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var parts []string
	for _, line := range strings.Split(ve.Error(), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		parts = append(parts, strings.TrimPrefix(line, "- "))
	}
	if len(parts) == 0 {
		return "arguments do not match the tool's parameters"
	}
	return strings.Join(parts, "; ")
}
