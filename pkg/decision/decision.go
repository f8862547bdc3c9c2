// Package decision turns a decision maker's free-text reply into a
// structured tool-use decision.
package decision

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/wilhg/toolwire/pkg/errmodel"
)

// Decision is the decision maker's verdict for one question.
// ToolName and Parameters are only meaningful when ToolUse is true.
type Decision struct {
	ToolUse    bool           `json:"tool_use"`
	ToolName   string         `json:"tool_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// NoTool is the decision to answer without a tool.
var NoTool = Decision{}

var fenced = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_-]+)?\\s*\\n?(.*?)```")

// Parse extracts a Decision from text. It accepts a bare JSON object, one
// wrapped in Markdown code fences, or the first well-formed object embedded
// in prose. Numbers in Parameters are json.Number so literals survive.
func Parse(text string) (Decision, error) {
	obj, ok := extract(text)
	if !ok {
		return Decision{}, unparseable("reply is not a JSON object", text)
	}
	raw, present := obj["tool_use"]
	if !present {
		return Decision{}, unparseable(`"tool_use" is missing`, text)
	}
	use, isBool := raw.(bool)
	if !isBool {
		return Decision{}, unparseable(`"tool_use" must be a boolean`, text)
	}
	if !use {
		return NoTool, nil
	}
	name, _ := obj["tool_name"].(string)
	if name == "" {
		return Decision{}, unparseable(`"tool_name" must be a non-empty string when "tool_use" is true`, text)
	}
	params, isObj := obj["parameters"].(map[string]any)
	if !isObj {
		return Decision{}, unparseable(`"parameters" must be an object when "tool_use" is true`, text)
	}
	return Decision{ToolUse: true, ToolName: name, Parameters: params}, nil
}

func unparseable(msg, text string) error {
	return errmodel.Model(errmodel.CodeDecisionUnparseable, msg, map[string]any{"reply": text}, nil)
}

func extract(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if obj, ok := decodeObject(text); ok {
		return obj, true
	}
	for _, m := range fenced.FindAllStringSubmatch(text, -1) {
		if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok {
			return obj, true
		}
	}
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := balancedEnd(text[start:]); end > 0 {
			if obj, ok := decodeObject(text[start : start+end]); ok {
				return obj, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

func decodeObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, true
}

// balancedEnd returns the length of the brace-balanced prefix of s, which
// starts with '{', or 0 if the braces never close. Braces inside strings
// are ignored.
func balancedEnd(s string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}
