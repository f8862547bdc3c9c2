// Package mcpclient discovers and invokes tools on a remote tool server.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/logger"
	"github.com/wilhg/toolwire/pkg/tool"
)

// Client defines the discovery and invocation capabilities the orchestrator needs.
type Client interface {
	// ListTools returns the server catalog. On failure the catalog is empty
	// (never nil) and the error carries code discovery_failed.
	ListTools(ctx context.Context) ([]tool.Descriptor, error)
	// CallTool invokes one tool with named arguments.
	CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error)
}

// ErrorResult renders a failure in the invocation result shape.
func ErrorResult(err error) tool.Result {
	if err == nil {
		return tool.Result{}
	}
	return tool.Result{Error: errmodel.From(err).Message}
}

// MaxResponseBytes bounds how much of a server response the client reads.
const MaxResponseBytes = 4 << 20

// HTTPClient talks to a tool server over plain HTTP+JSON.
type HTTPClient struct {
	base              *url.URL
	hc                *http.Client
	discoveryTimeout  time.Duration
	invocationTimeout time.Duration
	maxResponse       int64
	log               *logger.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *HTTPClient) { c.hc = hc } }

// WithDiscoveryTimeout bounds each discovery transaction.
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.discoveryTimeout = d }
}

// WithInvocationTimeout bounds each invocation transaction.
func WithInvocationTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.invocationTimeout = d }
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option { return func(c *HTTPClient) { c.log = l } }

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	c := &HTTPClient{
		base:              u,
		hc:                http.DefaultClient,
		discoveryTimeout:  10 * time.Second,
		invocationTimeout: 10 * time.Second,
		maxResponse:       MaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log).Named("client")
	return c, nil
}

// BaseURL returns the configured server address.
func (c *HTTPClient) BaseURL() string { return c.base.String() }

// ListTools performs one discovery transaction.
func (c *HTTPClient) ListTools(ctx context.Context) ([]tool.Descriptor, error) {
	empty := []tool.Descriptor{}
	ctx, cancel := context.WithTimeout(ctx, c.discoveryTimeout)
	defer cancel()

	endpoint := c.base.String() + "/_mcp/tools"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, discoveryFailed("build request", endpoint, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.hc.Do(req)
	if err != nil {
		return empty, discoveryFailed("server unreachable", endpoint, 0, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := c.readBody(res.Body)
	if err != nil {
		return empty, discoveryFailed("read response", endpoint, res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK {
		return empty, discoveryFailed("unexpected status", endpoint, res.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}
	var cat []tool.Descriptor
	if err := json.Unmarshal(body, &cat); err != nil {
		return empty, discoveryFailed("malformed catalog", endpoint, res.StatusCode, err)
	}
	if cat == nil {
		// a literal null is not a catalog
		return empty, discoveryFailed("malformed catalog", endpoint, res.StatusCode, fmt.Errorf("catalog is null"))
	}
	c.log.Debugw("discovered tools", "count", len(cat))
	return cat, nil
}

func discoveryFailed(msg, endpoint string, status int, cause error) error {
	ctx := map[string]any{"endpoint": endpoint}
	if status != 0 {
		ctx["status"] = status
	}
	return errmodel.Network(errmodel.CodeDiscoveryFailed, "discovery failed: "+msg, ctx, cause)
}

// CallTool performs one invocation transaction.
func (c *HTTPClient) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.invocationTimeout)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return tool.Result{}, errmodel.Validation(errmodel.CodeInvalidArguments, "arguments are not JSON-serializable", map[string]any{"tool": name, "error": err.Error()})
	}
	endpoint := c.base.String() + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tool.Result{}, invocationFailed("build request", name, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.hc.Do(req)
	if err != nil {
		return tool.Result{}, invocationFailed("server unreachable", name, 0, err)
	}
	defer func() { _ = res.Body.Close() }()
	body, err := c.readBody(res.Body)
	if err != nil {
		return tool.Result{}, invocationFailed("read response", name, res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK {
		return tool.Result{}, statusError(name, res.StatusCode, body)
	}
	return decodeResult(name, body)
}

func (c *HTTPClient) readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.maxResponse+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxResponse {
		return nil, fmt.Errorf("response exceeds %d bytes", c.maxResponse)
	}
	return body, nil
}

func decodeResult(name string, body []byte) (tool.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out struct {
		Result    any    `json:"result"`
		Timestamp string `json:"timestamp"`
	}
	if err := dec.Decode(&out); err != nil {
		return tool.Result{}, invocationFailed("malformed result", name, http.StatusOK, err)
	}
	return tool.Result{Result: out.Result, Timestamp: out.Timestamp}, nil
}

// statusError maps a non-200 response to a client-side error, keeping the
// server's message. Both the structured envelope and a bare {"error": "..."}
// body are understood.
func statusError(name string, status int, body []byte) error {
	msg := serverMessage(body)
	ctx := map[string]any{"tool": name, "status": status}
	switch status {
	case http.StatusNotFound:
		return errmodel.Validation(errmodel.CodeUnknownTool, msg, ctx)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errmodel.Validation(errmodel.CodeInvalidArguments, msg, ctx)
	default:
		return errmodel.Network(errmodel.CodeInvocationFailed, msg, ctx, nil)
	}
}

func serverMessage(body []byte) string {
	if env, ok := errmodel.Decode(body); ok && env.Error.Message != "" {
		return env.Error.Message
	}
	var bare struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if err := json.Unmarshal(body, &bare); err == nil {
		if bare.Error != "" {
			return bare.Error
		}
		if bare.Detail != nil {
			return fmt.Sprint(bare.Detail)
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "empty error response"
}

func invocationFailed(msg, name string, status int, cause error) error {
	ctx := map[string]any{"tool": name}
	if status != 0 {
		ctx["status"] = status
	}
	return errmodel.Network(errmodel.CodeInvocationFailed, "invocation failed: "+msg, ctx, cause)
}
