// Package prompt renders the decision prompt from a discovered catalog and
// keeps the versioned templates it is rendered from.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wilhg/toolwire/pkg/tool"
)

// RouterTemplate is the store name of the decision prompt template.
const RouterTemplate = "router"

const routerBody = `You are a function router. Based on the user's query, decide whether to use a tool.

Available tools:
{{.ToolsList}}

Tool Definitions:
{{.ToolsJSON}}

Respond in valid JSON only, like:
{
    "tool_use": true,
    "tool_name": "add",
    "parameters": {
        "a": 4,
        "b": 5
    }
}

Include "tool_name" and "parameters" only when "tool_use" is true. If no tool fits the query, respond with:
{"tool_use": false}

Query: "{{.Question}}"
`

// Request is a rendered decision prompt.
type Request struct {
	Text     string
	Template string
	Version  int
	// Tokens is the estimated token count of Text.
	Tokens int
	Issues []Issue
}

// Builder renders decision prompts from a template store.
type Builder struct {
	store    *Store
	version  int
	estimate TokenEstimator
}

// Option configures a Builder.
type Option func(*Builder)

// WithStore renders from s instead of the built-in store.
func WithStore(s *Store) Option { return func(b *Builder) { b.store = s } }

// WithVersion pins a template version; 0 means latest.
func WithVersion(v int) Option { return func(b *Builder) { b.version = v } }

// WithTokenEstimator sets the token estimator. Defaults to rune length.
func WithTokenEstimator(est TokenEstimator) Option { return func(b *Builder) { b.estimate = est } }

// NewBuilder returns a builder over the router template.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = DefaultStore()
	}
	if b.estimate == nil {
		b.estimate = RuneEstimator
	}
	return b
}

// Build renders with the built-in template.
func Build(question string, catalog []tool.Descriptor) (Request, error) {
	return NewBuilder().Build(question, catalog)
}

// Build renders the prompt for question over catalog. Rendering is
// deterministic: identical inputs produce identical text.
func (b *Builder) Build(question string, catalog []tool.Descriptor) (Request, error) {
	p, ok := b.store.Get(RouterTemplate, b.version)
	if !ok {
		return Request{}, fmt.Errorf("template %s v%d not found", RouterTemplate, b.version)
	}
	tmpl, err := parse(p.Name, p.Body)
	if err != nil {
		return Request{}, fmt.Errorf("parse template %s v%d: %w", p.Name, p.Version, err)
	}
	defs, err := Definitions(catalog)
	if err != nil {
		return Request{}, err
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"ToolsList": ToolsList(catalog),
		"ToolsJSON": defs,
		"Question":  question,
	})
	if err != nil {
		return Request{}, fmt.Errorf("render template %s v%d: %w", p.Name, p.Version, err)
	}
	text := buf.String()
	return Request{
		Text:     text,
		Template: p.Name,
		Version:  p.Version,
		Tokens:   b.estimate(text),
		Issues:   LintText(text),
	}, nil
}

// ToolsList renders "<i>. <name>: <description>" lines, 1-based, one per
// catalog entry including duplicates.
func ToolsList(catalog []tool.Descriptor) string {
	lines := make([]string, len(catalog))
	for i, d := range catalog {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, d.Name, d.Description)
	}
	return strings.Join(lines, "\n")
}

// Definitions renders the name-keyed descriptor object with 4-space
// indentation. Names keep their first position; a later duplicate replaces
// the earlier definition.
func Definitions(catalog []tool.Descriptor) (string, error) {
	var order []string
	last := make(map[string]tool.Descriptor, len(catalog))
	for _, d := range catalog {
		if _, seen := last[d.Name]; !seen {
			order = append(order, d.Name)
		}
		last[d.Name] = d
	}
	if len(order) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteString("{\n")
	for i, name := range order {
		key, err := marshalIndent(name, "")
		if err != nil {
			return "", err
		}
		val, err := marshalIndent(last[name], "    ")
		if err != nil {
			return "", fmt.Errorf("encode descriptor %q: %w", name, err)
		}
		b.WriteString("    ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(val)
		if i < len(order)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func marshalIndent(v any, prefix string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, "    ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// LoadOverride saves the template file at path as the next router version
// and returns it with a diff against the version it supersedes.
func (s *Store) LoadOverride(path string) (Prompt, string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Prompt{}, "", fmt.Errorf("read template: %w", err)
	}
	prev, _ := s.Get(RouterTemplate, 0)
	p, err := s.Save(Prompt{Name: RouterTemplate, Body: string(body), Meta: map[string]string{"source": path}})
	if err != nil {
		return Prompt{}, "", err
	}
	return p, UnifiedDiff(prev.Body, p.Body), nil
}
