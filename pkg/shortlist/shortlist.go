// Package shortlist narrows a large catalog to the tools whose descriptions
// are most similar to the question before the decision prompt is built.
package shortlist

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/tool"
)

// Shortlister ranks descriptors by embedding similarity. Descriptor vectors
// are cached by name and description, so a stable catalog is embedded once.
type Shortlister struct {
	emb embedding.Embedder
	max int
	log *logger.Logger

	mu    sync.Mutex
	cache map[string]embedding.Vector
}

// Option configures a Shortlister.
type Option func(*Shortlister)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(s *Shortlister) { s.log = l } }

// New returns a Shortlister keeping at most limit tool names.
func New(emb embedding.Embedder, limit int, opts ...Option) (*Shortlister, error) {
	if emb == nil {
		return nil, fmt.Errorf("shortlist: nil embedder")
	}
	if limit < 1 {
		return nil, fmt.Errorf("shortlist: limit must be positive, got %d", limit)
	}
	s := &Shortlister{emb: emb, max: limit, cache: make(map[string]embedding.Vector)}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log).Named("shortlist")
	return s, nil
}

// Max is the largest number of distinct tool names Select keeps.
func (s *Shortlister) Max() int { return s.max }

// Select returns the catalog entries whose names rank in the top Max for
// question, in their original catalog order. A catalog with at most Max
// distinct names is returned unchanged.
func (s *Shortlister) Select(ctx context.Context, question string, catalog []tool.Descriptor) ([]tool.Descriptor, error) {
	// rank the last definition of each name, as the prompt shows it
	last := make(map[string]int, len(catalog))
	var names []string
	for i, d := range catalog {
		if _, seen := last[d.Name]; !seen {
			names = append(names, d.Name)
		}
		last[d.Name] = i
	}
	if len(names) <= s.max {
		return catalog, nil
	}

	texts := make([]string, len(names))
	for i, n := range names {
		texts[i] = text(catalog[last[n]])
	}
	vecs, err := s.vectors(ctx, texts)
	if err != nil {
		return nil, err
	}
	qv, err := s.emb.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("shortlist: embed question: %w", err)
	}
	if err := embedding.Check([]string{question}, qv); err != nil {
		return nil, err
	}
	top, err := rank(qv[0], vecs, s.max)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(top))
	for _, m := range top {
		keep[names[m.pos]] = true
	}
	out := make([]tool.Descriptor, 0, len(top))
	for _, d := range catalog {
		if keep[d.Name] {
			out = append(out, d)
		}
	}
	s.log.Debugw("catalog shortlisted", "from", len(names), "to", len(keep), "embedder", s.emb.Name())
	return out, nil
}

// vectors embeds texts, only sending the ones not already cached.
func (s *Shortlister) vectors(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	s.mu.Lock()
	var missing []string
	for _, t := range texts {
		if _, ok := s.cache[t]; !ok {
			missing = append(missing, t)
		}
	}
	s.mu.Unlock()

	if len(missing) > 0 {
		sort.Strings(missing)
		got, err := s.emb.Embed(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("shortlist: embed catalog: %w", err)
		}
		if err := embedding.Check(missing, got); err != nil {
			return nil, err
		}
		s.mu.Lock()
		for i, t := range missing {
			s.cache[t] = got[i]
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		out[i] = s.cache[t]
	}
	return out, nil
}

func text(d tool.Descriptor) string { return d.Name + ": " + d.Description }
