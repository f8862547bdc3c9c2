// Package llm is the text-generation boundary behind the decision maker.
// Providers register a Factory from their package init and binaries pick
// one by name.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// Split joins system messages into one instruction and returns the rest in
// order. Used by providers that take system text out of band.
func Split(messages []Message) (string, []Message) {
	var sys []string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(sys, "\n\n"), turns
}

// Usage is token accounting as reported by the provider. Zero when the
// provider reports nothing.
type Usage struct {
	Prompt int
	Output int
	Total  int
}

// Reply is one completion.
type Reply struct {
	Text  string
	Model string
	Usage Usage
}

// LLM generates a reply for a conversation.
type LLM interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (Reply, error)
}

// Config is the provider-independent construction input.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// JSON constrains replies to a single JSON object where the provider
	// supports it. The prompt must still ask for JSON.
	JSON bool
	// Temperature is sent only when non-nil.
	Temperature *float64
	// Replies seeds the scripted provider.
	Replies []string
}

// Factory constructs an LLM from provider config.
type Factory func(ctx context.Context, cfg Config) (LLM, error)

var providers = struct {
	sync.RWMutex
	m map[string]Factory
}{m: map[string]Factory{}}

// Register adds a provider. Names are unique.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("llm: provider needs a name and a factory")
	}
	providers.Lock()
	defer providers.Unlock()
	if _, dup := providers.m[name]; dup {
		return fmt.Errorf("llm: provider %q already registered", name)
	}
	providers.m[name] = f
	return nil
}

// New builds the named provider.
func New(ctx context.Context, name string, cfg Config) (LLM, error) {
	providers.RLock()
	f, ok := providers.m[name]
	providers.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm: unknown provider %q (registered: %s)", name, strings.Join(Providers(), ", "))
	}
	return f(ctx, cfg)
}

// Providers returns the registered names, sorted.
func Providers() []string {
	providers.RLock()
	defer providers.RUnlock()
	names := make([]string, 0, len(providers.m))
	for n := range providers.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
