package decision

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/prompt"
)

// Maker produces a free-text decision reply for a rendered prompt.
type Maker interface {
	Decide(ctx context.Context, req prompt.Request) (string, error)
}

// MakerFunc adapts a function to Maker.
type MakerFunc func(ctx context.Context, req prompt.Request) (string, error)

func (f MakerFunc) Decide(ctx context.Context, req prompt.Request) (string, error) {
	return f(ctx, req)
}

// LLMMaker asks a language model for the decision.
type LLMMaker struct {
	model   llm.LLM
	limiter *rate.Limiter
	log     *logger.Logger
}

// MakerOption configures an LLMMaker.
type MakerOption func(*LLMMaker)

// WithRateLimit caps decisions per minute. n <= 0 disables the limit.
func WithRateLimit(n int) MakerOption {
	return func(m *LLMMaker) {
		if n <= 0 {
			m.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithMakerLogger sets the logger.
func WithMakerLogger(l *logger.Logger) MakerOption { return func(m *LLMMaker) { m.log = l } }

// NewLLMMaker wraps model. Without WithRateLimit calls are unlimited.
func NewLLMMaker(model llm.LLM, opts ...MakerOption) *LLMMaker {
	m := &LLMMaker{model: model, limiter: rate.NewLimiter(rate.Inf, 0)}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log).Named("decision")
	return m
}

// Decide waits for a rate-limit token, then sends the prompt as a single
// user message. Failures are model/decision_failed.
func (m *LLMMaker) Decide(ctx context.Context, req prompt.Request) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", errmodel.Model(errmodel.CodeDecisionFailed, "decision rate limit wait aborted", map[string]any{"provider": m.model.Name()}, err)
	}
	start := time.Now()
	res, err := m.model.Generate(ctx, []llm.Message{llm.User(req.Text)})
	if err != nil {
		return "", errmodel.Model(errmodel.CodeDecisionFailed, "decision maker request failed", map[string]any{"provider": m.model.Name()}, err)
	}
	m.log.Debugw("decision reply",
		"provider", m.model.Name(),
		"model", res.Model,
		"prompt_tokens", res.Usage.Prompt,
		"output_tokens", res.Usage.Output,
		"duration", time.Since(start),
	)
	return res.Text, nil
}
