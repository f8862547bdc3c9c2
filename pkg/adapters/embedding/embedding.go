// Package embedding is the text embedding boundary behind the catalog
// shortlist. Providers register from their package init.
package embedding

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Vector []float32

// Embedder returns one vector per input, in input order. The same input and
// model must always give the same vector.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, inputs []string) ([]Vector, error)
}

// Config is the provider-independent construction input.
type Config struct {
	APIKey string
	Model  string
	// Dim requests a vector size. 0 keeps the provider default; remote
	// providers pass it through, hashed uses it directly.
	Dim int
}

// Factory constructs an Embedder from provider config.
type Factory func(ctx context.Context, cfg Config) (Embedder, error)

var providers = struct {
	sync.RWMutex
	m map[string]Factory
}{m: map[string]Factory{}}

// Register adds a provider. Names are unique.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("embedding: provider needs a name and a factory")
	}
	providers.Lock()
	defer providers.Unlock()
	if _, dup := providers.m[name]; dup {
		return fmt.Errorf("embedding: provider %q already registered", name)
	}
	providers.m[name] = f
	return nil
}

// New builds the named provider.
func New(ctx context.Context, name string, cfg Config) (Embedder, error) {
	if cfg.Dim < 0 {
		return nil, fmt.Errorf("embedding: negative dimension %d", cfg.Dim)
	}
	providers.RLock()
	f, ok := providers.m[name]
	providers.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embedding: unknown provider %q (registered: %s)", name, strings.Join(Providers(), ", "))
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

// Check verifies that an Embedder returned one vector per input.
func Check(inputs []string, out []Vector) error {
	if len(out) != len(inputs) {
		return fmt.Errorf("embedding: got %d vectors for %d inputs", len(out), len(inputs))
	}
	return nil
}
