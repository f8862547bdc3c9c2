package tool

import (
	"fmt"
	"sync"

	sjs "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
)

type entry struct {
	tool Tool
	desc Descriptor
	// compiled parameter schema; nil until first use
	schema *sjs.Schema
}

// Registry keeps tools by name. Iteration follows first-registration order;
// re-registering a name replaces the tool but keeps its position.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	log     *logger.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report replaced registrations.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{entries: map[string]*entry{}}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log).Named("registry")
	return r
}

// Register registers a Tool by its descriptor name. The descriptor is captured
// once; later changes to what Describe returns are not observed.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	d := t.Describe()
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.Name]; exists {
		r.log.Warnw("tool re-registered; replacing previous definition", "tool", d.Name)
	} else {
		r.order = append(r.order, d.Name)
	}
	r.entries[d.Name] = &entry{tool: t, desc: d}
	return nil
}

// MustRegister registers tools and panics on error. Intended for program setup.
func (r *Registry) MustRegister(ts ...Tool) {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve returns a Tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Range calls fn for each registered tool in catalog order.
func (r *Registry) Range(fn func(name string, t Tool)) {
	r.mu.RLock()
	items := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		items = append(items, r.entries[name])
	}
	r.mu.RUnlock()
	for _, e := range items {
		fn(e.desc.Name, e.tool)
	}
}

// Names returns registered names in catalog order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Catalog returns every descriptor in catalog order. It fails if any
// descriptor is malformed, so a misconfigured server never advertises a
// partial catalog. An empty registry yields an empty, non-nil slice.
func (r *Registry) Catalog() ([]Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		d := r.entries[name].desc
		if err := d.Validate(); err != nil {
			return nil, errmodel.System(errmodel.CodeCatalogUnavailable, "tool catalog is misconfigured", map[string]any{"tool": name}, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// lookup returns the entry and its compiled schema, compiling on first use.
func (r *Registry) lookup(name string) (*entry, *sjs.Schema, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var sch *sjs.Schema
	if ok {
		sch = e.schema
	}
	r.mu.RUnlock()
	if !ok {
		return nil, nil, errmodel.Validation(errmodel.CodeNotFound, "Tool not found", map[string]any{"tool": name})
	}
	if sch != nil {
		return e, sch, nil
	}
	compiled, err := compileParameters(e.desc)
	if err != nil {
		return nil, nil, errmodel.System(errmodel.CodeCatalogUnavailable, "tool parameters schema is invalid", map[string]any{"tool": name}, err)
	}
	r.mu.Lock()
	// a concurrent re-registration may have replaced e; only fill in our own entry
	if cur, ok := r.entries[name]; ok && cur == e && e.schema == nil {
		e.schema = compiled
	}
	r.mu.Unlock()
	return e, compiled, nil
}
