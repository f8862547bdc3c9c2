// Package errmodel is the structured error shared by the server, the client
// and the orchestrator. Errors travel as an {"error", "trace_id"} envelope on
// the wire and as *Error in process.
package errmodel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
)

// Categories group codes by who is at fault.
const (
	CategoryValidation = "validation"
	CategoryTool       = "tool"
	CategoryNetwork    = "network"
	CategoryModel      = "model"
	CategoryPolicy     = "policy"
	CategorySystem     = "system"
)

// Codes shared by the discovery and invocation transactions.
const (
	CodeNotFound            = "not_found"
	CodeBadJSON             = "bad_json"
	CodeInvalidArguments    = "invalid_arguments"
	CodeCatalogUnavailable  = "catalog_unavailable"
	CodeToolFailed          = "tool_failed"
	CodeDiscoveryFailed     = "discovery_failed"
	CodeDecisionUnparseable = "decision_unparseable"
	CodeDecisionFailed      = "decision_failed"
	CodeInvocationFailed    = "invocation_failed"
	CodeUnknownTool         = "unknown_tool"
	CodeInternal            = "internal"
)

const (
	maxMessage = 512
	maxContext = 256
)

// Error is a categorized, coded error. Causes is the serializable summary
// of the wrapped errors; the first cause is also reachable via Unwrap.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// New constructs an error. Long messages and context strings are truncated.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, maxMessage)}
	if len(ctx) > 0 {
		ce.Context = compactContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		if ce.cause == nil {
			ce.cause = c
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From returns the *Error in err's chain, or wraps err as system/internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Category: CategorySystem, Code: CodeInternal, Message: truncate(err.Error(), maxMessage), cause: err}
}

func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func Policy(code, message string, ctx map[string]any) *Error {
	return New(CategoryPolicy, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategorySystem, code, message, ctx, cause)
}

func Network(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryNetwork, code, message, ctx, cause)
}

func Model(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryModel, code, message, ctx, cause)
}

func Tool(code, message string, ctx map[string]any, cause error) *Error {
	return New(CategoryTool, code, message, ctx, cause)
}

// codeStatus overrides the category status for specific codes.
var codeStatus = map[string]int{
	CodeNotFound:         http.StatusNotFound,
	"conflict":           http.StatusConflict,
	"unauthorized":       http.StatusUnauthorized,
	"forbidden":          http.StatusForbidden,
	"method_not_allowed": http.StatusMethodNotAllowed,
}

var categoryStatus = map[string]int{
	CategoryValidation: http.StatusBadRequest,
	CategoryPolicy:     http.StatusForbidden,
	CategoryNetwork:    http.StatusBadGateway,
	CategoryTool:       http.StatusBadGateway,
	CategoryModel:      http.StatusBadGateway,
}

// HTTPStatus maps an error to its response status. Unknown categories are 500.
func HTTPStatus(e *Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	if e.Category == CategoryValidation || e.Category == CategoryPolicy {
		if s, ok := codeStatus[e.Code]; ok {
			return s
		}
	}
	if s, ok := categoryStatus[e.Category]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Envelope is the JSON body written by WriteHTTP.
type Envelope struct {
	Error   *Error `json:"error"`
	TraceID string `json:"trace_id"`
}

// WriteHTTP writes err as an envelope with its mapped status. The trace id
// of the request span is included when there is one.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	if ce == nil {
		ce = &Error{Category: CategorySystem, Code: CodeInternal, Message: "unknown error"}
	}
	env := Envelope{Error: ce}
	if r != nil {
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			env.TraceID = sc.TraceID().String()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(ce))
	_ = json.NewEncoder(w).Encode(env)
}

// Decode reads an envelope body. It reports false when body is not one.
func Decode(body []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil || env.Error.Code == "" {
		return Envelope{}, false
	}
	return env, true
}

// truncate trims s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	suffix := "..."
	if max <= len(suffix) {
		suffix = ""
	}
	cut := max - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

// compactContext keeps scalars and renders everything else as truncated JSON.
func compactContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, maxContext)
		case int, int64, float64, bool, nil:
			out[k] = t
		default:
			if b, err := json.Marshal(t); err == nil {
				out[k] = truncate(string(b), maxContext)
			} else {
				out[k] = t
			}
		}
	}
	return out
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

// IsCode checks if err carries the given code.
func IsCode(err error, code string) bool {
	ce := From(err)
	return ce != nil && ce.Code == code
}
