// Package scripted provides a deterministic provider that replays canned
// replies. Used by tests and offline demos.
package scripted

import (
	"context"
	"errors"
	"sync"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
)

// ErrExhausted is returned once every reply has been served and the
// provider was not built to cycle.
var ErrExhausted = errors.New("scripted: replies exhausted")

// LLM replays replies in order.
type LLM struct {
	mu      sync.Mutex
	replies []string
	next    int
	cycle   bool
	prompts []string
}

// New returns a provider serving replies once each.
func New(replies ...string) *LLM { return &LLM{replies: replies} }

// Cycling returns a provider that starts over after the last reply.
func Cycling(replies ...string) *LLM { return &LLM{replies: replies, cycle: true} }

func (s *LLM) Name() string { return "scripted" }

func (s *LLM) Generate(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	if err := ctx.Err(); err != nil {
		return llm.Reply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		s.prompts = append(s.prompts, m.Content)
	}
	if s.next >= len(s.replies) {
		if !s.cycle || len(s.replies) == 0 {
			return llm.Reply{}, ErrExhausted
		}
		s.next = 0
	}
	text := s.replies[s.next]
	s.next++
	return llm.Reply{Text: text, Model: "scripted"}, nil
}

// Prompts returns every message content received so far.
func (s *LLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Factory builds a cycling provider from cfg.Replies. With no replies it
// always declines to use a tool.
func Factory(_ context.Context, cfg llm.Config) (llm.LLM, error) { // nolint: revive
	replies := cfg.Replies
	if len(replies) == 0 {
		replies = []string{`{"tool_use": false}`}
	}
	return Cycling(replies...), nil
}

func init() {
	_ = llm.Register("scripted", Factory)
}
