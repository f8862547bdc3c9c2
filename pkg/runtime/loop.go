// Package runtime runs orchestration cycles: discover the catalog, ask the
// decision maker which tool to use, invoke it and report.
package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wilhg/toolwire/pkg/decision"
	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/mcpclient"
	"github.com/wilhg/toolwire/pkg/metrics"
	"github.com/wilhg/toolwire/pkg/otel"
	"github.com/wilhg/toolwire/pkg/prompt"
	"github.com/wilhg/toolwire/pkg/tool"
)

// Loop runs one cycle at a time. It keeps no state between cycles; the
// catalog is fetched fresh on every Run.
type Loop struct {
	mu sync.Mutex

	client          mcpclient.Client
	maker           decision.Maker
	builder         *prompt.Builder
	shortlist       Shortlister
	decisionTimeout time.Duration
	metrics         *metrics.Metrics
	log             *logger.Logger
	tracer          trace.Tracer
	now             func() time.Time
}

// Shortlister narrows a catalog for a question. Implemented by
// shortlist.Shortlister.
type Shortlister interface {
	Select(ctx context.Context, question string, catalog []tool.Descriptor) ([]tool.Descriptor, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithBuilder sets the prompt builder. Defaults to the built-in template.
func WithBuilder(b *prompt.Builder) Option { return func(l *Loop) { l.builder = b } }

// WithShortlist narrows large catalogs before the prompt is built. A
// shortlist failure is logged and the full catalog is used.
func WithShortlist(s Shortlister) Option { return func(l *Loop) { l.shortlist = s } }

// WithDecisionTimeout bounds each decision round trip.
func WithDecisionTimeout(d time.Duration) Option { return func(l *Loop) { l.decisionTimeout = d } }

// WithMetrics records outcomes and step durations.
func WithMetrics(m *metrics.Metrics) Option { return func(l *Loop) { l.metrics = m } }

// WithLogger sets the logger.
func WithLogger(lg *logger.Logger) Option { return func(l *Loop) { l.log = lg } }

// WithTracer overrides the tracer from the global provider.
func WithTracer(t trace.Tracer) Option { return func(l *Loop) { l.tracer = t } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// New builds a Loop over client and maker.
func New(client mcpclient.Client, maker decision.Maker, opts ...Option) *Loop {
	l := &Loop{
		client:          client,
		maker:           maker,
		decisionTimeout: 60 * time.Second,
		tracer:          otel.Tracer("toolwire/runtime"),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.builder == nil {
		l.builder = prompt.NewBuilder()
	}
	l.log = logger.OrNop(l.log).Named("loop")
	return l
}

// Run executes one cycle for question. Every failure is reported in the
// returned Report; Run itself does not fail. Concurrent calls on the same
// Loop are serialized.
func (l *Loop) Run(ctx context.Context, question string) Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	rep := Report{CycleID: uuid.NewString(), Question: question, States: []State{Idle}}
	ctx, span := l.tracer.Start(ctx, "Loop.Run", trace.WithAttributes(attribute.String("cycle.id", rep.CycleID)))
	defer span.End()
	start := l.now()
	log := l.log.With("cycle_id", rep.CycleID)

	finish := func(o Outcome, err error) Report {
		rep.Outcome = o
		rep.Err = errmodel.From(err)
		rep.Duration = l.now().Sub(start)
		rep.enter(Idle)
		span.SetAttributes(attribute.String("cycle.outcome", string(o)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, rep.Err.Code)
			log.Warnw("cycle failed", "outcome", o, "code", rep.Err.Code, "error", rep.Err.Message)
		} else {
			log.Infow("cycle finished", "outcome", o, "duration", rep.Duration)
		}
		if l.metrics != nil {
			l.metrics.ObserveCycle(string(o))
		}
		return rep
	}

	rep.enter(Discovering)
	catalog, err := l.discover(ctx)
	if err != nil {
		rep.enter(DiscoveryFailed)
		return finish(OutcomeDiscoveryFailed, err)
	}
	rep.enter(Discovered)
	rep.CatalogSize = len(catalog)
	if len(catalog) == 0 {
		return finish(OutcomeNoToolsAvailable, nil)
	}

	offered := l.narrow(ctx, question, catalog, log)
	rep.OfferedSize = len(offered)

	rep.enter(Deciding)
	req, err := l.builder.Build(question, offered)
	if err != nil {
		rep.enter(DecisionFailed)
		return finish(OutcomeDecisionFailed, errmodel.System(errmodel.CodeDecisionFailed, "decision prompt could not be rendered", nil, err))
	}
	rep.PromptTokens = req.Tokens
	for _, is := range req.Issues {
		log.Warnw("prompt lint", "rule", is.Rule, "message", is.Message, "offset", is.Offset)
	}
	if l.metrics != nil {
		l.metrics.ObservePromptTokens(req.Tokens)
	}
	reply, err := l.decide(ctx, req)
	rep.Reply = reply
	if err != nil {
		rep.enter(DecisionFailed)
		return finish(OutcomeDecisionFailed, err)
	}
	d, err := decision.Parse(reply)
	if err != nil {
		rep.enter(DecisionUnparseable)
		return finish(OutcomeDecisionUnparseable, err)
	}
	rep.enter(Decided)
	rep.Decision = &d
	if !d.ToolUse {
		return finish(OutcomeNoTool, nil)
	}

	rep.enter(Invoking)
	res, err := l.invoke(ctx, d)
	if err != nil {
		rep.enter(InvocationFailed)
		return finish(OutcomeInvocationFailed, err)
	}
	rep.enter(Invoked)
	rep.Result = &res
	return finish(OutcomeInvoked, nil)
}

func (l *Loop) discover(ctx context.Context) ([]tool.Descriptor, error) {
	ctx, span := l.tracer.Start(ctx, "Loop.discover")
	defer span.End()
	defer l.observeStep("discover", l.now())
	cat, err := l.client.ListTools(ctx)
	if err != nil {
		span.RecordError(err)
		var ce *errmodel.Error
		if !errors.As(err, &ce) {
			err = errmodel.Network(errmodel.CodeDiscoveryFailed, "discovery failed", nil, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.size", len(cat)))
	return cat, nil
}

func (l *Loop) narrow(ctx context.Context, question string, catalog []tool.Descriptor, log *logger.Logger) []tool.Descriptor {
	if l.shortlist == nil {
		return catalog
	}
	ctx, span := l.tracer.Start(ctx, "Loop.shortlist", trace.WithAttributes(attribute.Int("catalog.size", len(catalog))))
	defer span.End()
	defer l.observeStep("shortlist", l.now())
	out, err := l.shortlist.Select(ctx, question, catalog)
	if err != nil || len(out) == 0 {
		if err != nil {
			span.RecordError(err)
		}
		log.Warnw("shortlist unavailable, offering full catalog", "error", err)
		return catalog
	}
	span.SetAttributes(attribute.Int("offered.size", len(out)))
	return out
}

func (l *Loop) decide(ctx context.Context, req prompt.Request) (string, error) {
	ctx, span := l.tracer.Start(ctx, "Loop.decide", trace.WithAttributes(
		attribute.String("prompt.template", req.Template),
		attribute.Int("prompt.version", req.Version),
		attribute.Int("prompt.tokens", req.Tokens),
	))
	defer span.End()
	defer l.observeStep("decide", l.now())
	if l.decisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.decisionTimeout)
		defer cancel()
	}
	reply, err := l.maker.Decide(ctx, req)
	if err != nil {
		span.RecordError(err)
		var ce *errmodel.Error
		if !errors.As(err, &ce) {
			err = errmodel.Model(errmodel.CodeDecisionFailed, "decision maker failed", nil, err)
		}
		return "", err
	}
	return reply, nil
}

func (l *Loop) invoke(ctx context.Context, d decision.Decision) (tool.Result, error) {
	ctx, span := l.tracer.Start(ctx, "Loop.invoke", trace.WithAttributes(attribute.String("tool.name", d.ToolName)))
	defer span.End()
	defer l.observeStep("invoke", l.now())
	res, err := l.client.CallTool(ctx, d.ToolName, d.Parameters)
	if err != nil {
		span.RecordError(err)
		var ce *errmodel.Error
		if !errors.As(err, &ce) {
			err = errmodel.Network(errmodel.CodeInvocationFailed, "invocation failed", map[string]any{"tool": d.ToolName}, err)
		}
		return tool.Result{}, err
	}
	return res, nil
}

func (l *Loop) observeStep(step string, start time.Time) {
	if l.metrics != nil {
		l.metrics.ObserveStep(step, l.now().Sub(start))
	}
}
