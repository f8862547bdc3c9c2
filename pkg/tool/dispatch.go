package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	sjs "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
)

// TimestampLayout renders UTC instants with microsecond precision and a Z suffix.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// MaxBodyBytes bounds the size of an invocation body.
const MaxBodyBytes = 1 << 20

// FormatTimestamp renders t in the invocation timestamp format.
func FormatTimestamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// Result is the invocation response. A failed invocation carries only Error.
type Result struct {
	Result    any    `json:"result"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// MarshalJSON emits {"result","timestamp"} on success and {"error"} on failure.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	return json.Marshal(struct {
		Result    any    `json:"result"`
		Timestamp string `json:"timestamp"`
	}{r.Result, r.Timestamp})
}

// Invocation describes one finished dispatch for observers.
type Invocation struct {
	Tool      string
	Arguments json.RawMessage
	Err       *errmodel.Error
	Duration  time.Duration
	At        time.Time
}

// Observer is notified after every dispatch, successful or not.
type Observer interface {
	ObserveInvocation(ctx context.Context, inv Invocation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, inv Invocation)

func (f ObserverFunc) ObserveInvocation(ctx context.Context, inv Invocation) { f(ctx, inv) }

// Dispatcher resolves, validates and executes invocations against a Registry.
type Dispatcher struct {
	reg       *Registry
	now       func() time.Time
	observers []Observer
	log       *logger.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithObserver adds an invocation observer.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observers = append(d.observers, o) }
}

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(l *logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher returns a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrNop(d.log).Named("dispatch")
	return d
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Invoke executes the named tool with a raw JSON request body. The tool is
// resolved before the body is read, so unknown names fail with not_found
// regardless of the body.
func (d *Dispatcher) Invoke(ctx context.Context, name string, body io.Reader) (Result, error) {
	start := d.now()
	e, sch, err := d.reg.lookup(name)
	if err != nil {
		d.finish(ctx, name, nil, start, err)
		return Result{}, err
	}
	raw, err := readBody(body)
	if err != nil {
		d.finish(ctx, name, nil, start, err)
		return Result{}, err
	}
	v, err := DecodeValue(bytes.NewReader(raw))
	if err != nil {
		err = errmodel.Validation(errmodel.CodeBadJSON, "Invalid JSON", map[string]any{"tool": name, "error": err.Error()})
		d.finish(ctx, name, raw, start, err)
		return Result{}, err
	}
	res, err := d.call(ctx, e, sch, v)
	d.finish(ctx, name, raw, start, err)
	return res, err
}

// InvokeValue executes the named tool with already-decoded arguments.
func (d *Dispatcher) InvokeValue(ctx context.Context, name string, args Value) (Result, error) {
	start := d.now()
	raw, _ := json.Marshal(args)
	e, sch, err := d.reg.lookup(name)
	if err != nil {
		d.finish(ctx, name, raw, start, err)
		return Result{}, err
	}
	res, err := d.call(ctx, e, sch, args)
	d.finish(ctx, name, raw, start, err)
	return res, err
}

func (d *Dispatcher) call(ctx context.Context, e *entry, sch *sjs.Schema, v Value) (res Result, err error) {
	name := e.desc.Name
	args, err := validateArguments(name, sch, v)
	if err != nil {
		return Result{}, err
	}

	defer func() {
		if p := recover(); p != nil {
			err = errmodel.System(errmodel.CodeToolFailed, "tool panicked", map[string]any{"tool": name}, fmt.Errorf("%v", p))
		}
	}()
	out, ierr := e.tool.Invoke(ctx, args)
	if ierr != nil {
		var ce *errmodel.Error
		if errors.As(ierr, &ce) {
			return Result{}, ce
		}
		return Result{}, errmodel.Tool(errmodel.CodeToolFailed, "tool execution failed", map[string]any{"tool": name}, ierr)
	}
	if _, merr := json.Marshal(out); merr != nil {
		return Result{}, errmodel.System(errmodel.CodeToolFailed, "tool result is not JSON-serializable", map[string]any{"tool": name}, merr)
	}
	return Result{Result: out, Timestamp: FormatTimestamp(d.now())}, nil
}

func (d *Dispatcher) finish(ctx context.Context, name string, raw []byte, start time.Time, err error) {
	inv := Invocation{Tool: name, Arguments: raw, Duration: d.now().Sub(start), At: start}
	if err != nil {
		inv.Err = errmodel.From(err)
		d.log.Debugw("invocation failed", "tool", name, "code", inv.Err.Code, "error", inv.Err.Message)
	} else {
		d.log.Debugw("invocation succeeded", "tool", name, "duration", inv.Duration)
	}
	for _, o := range d.observers {
		o.ObserveInvocation(ctx, inv)
	}
}

func readBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes+1))
	if err != nil {
		return nil, errmodel.Validation(errmodel.CodeBadJSON, "Invalid JSON", map[string]any{"error": err.Error()})
	}
	if len(raw) > MaxBodyBytes {
		return nil, errmodel.Validation(errmodel.CodeBadJSON, "request body too large", map[string]any{"limit": MaxBodyBytes})
	}
	return raw, nil
}
