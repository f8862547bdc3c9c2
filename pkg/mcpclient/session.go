package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/tool"
)

// SessionClient adapts an MCP client session to Client, so the orchestrator
// can run against the /mcp bridge instead of the plain HTTP routes.
type SessionClient struct {
	cs                *mcp.ClientSession
	discoveryTimeout  time.Duration
	invocationTimeout time.Duration
	// stop ends the connection context DialMCP created; nil for NewSession.
	stop context.CancelFunc
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithSessionTimeouts bounds each tools/list and tools/call round trip. The
// discovery timeout also bounds the DialMCP handshake.
func WithSessionTimeouts(discovery, invocation time.Duration) SessionOption {
	return func(s *SessionClient) {
		s.discoveryTimeout = discovery
		s.invocationTimeout = invocation
	}
}

func newSession(opts []SessionOption) *SessionClient {
	s := &SessionClient{discoveryTimeout: 10 * time.Second, invocationTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession wraps an established session.
func NewSession(cs *mcp.ClientSession, opts ...SessionOption) *SessionClient {
	s := newSession(opts)
	s.cs = cs
	return s
}

// DialMCP connects to a streamable HTTP MCP endpoint such as
// http://host:8000/mcp. The transport ties the connection's lifetime to the
// context it is connected with, so the handshake is bounded by a timer
// rather than by a deadline on that context.
func DialMCP(ctx context.Context, endpoint string, hc *http.Client, opts ...SessionOption) (*SessionClient, error) {
	s := newSession(opts)
	life, stop := context.WithCancel(context.WithoutCancel(ctx))
	timer := time.AfterFunc(s.discoveryTimeout, stop)
	unlink := context.AfterFunc(ctx, stop)

	client := mcp.NewClient(&mcp.Implementation{Name: "toolclient", Version: "dev"}, nil)
	cs, err := client.Connect(life, &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: hc}, nil)
	expired, aborted := !timer.Stop(), !unlink()
	if err == nil && !expired && !aborted {
		s.cs, s.stop = cs, stop
		return s, nil
	}
	if err == nil {
		_ = cs.Close()
		err = context.Canceled
	}
	stop()
	if expired {
		err = fmt.Errorf("handshake exceeded %s: %w", s.discoveryTimeout, err)
	}
	return nil, errmodel.Network(errmodel.CodeDiscoveryFailed, "mcp connect failed", map[string]any{"endpoint": endpoint}, err)
}

// Close ends the session.
func (s *SessionClient) Close() error {
	err := s.cs.Close()
	if s.stop != nil {
		s.stop()
	}
	return err
}

// ListTools pages through tools/list.
func (s *SessionClient) ListTools(ctx context.Context) ([]tool.Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.discoveryTimeout)
	defer cancel()
	out := []tool.Descriptor{}
	for t, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return []tool.Descriptor{}, errmodel.Network(errmodel.CodeDiscoveryFailed, "discovery failed: tools/list", nil, err)
		}
		d := tool.Descriptor{Name: t.Name, Description: t.Description}
		if t.InputSchema != nil {
			raw, err := json.Marshal(t.InputSchema)
			if err == nil {
				var sch jsonschema.Schema
				if json.Unmarshal(raw, &sch) == nil {
					d.Parameters = &sch
				}
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// CallTool invokes tools/call and decodes the bridged result.
func (s *SessionClient) CallTool(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.invocationTimeout)
	defer cancel()
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return tool.Result{}, invocationFailed("tools/call", name, 0, err)
	}
	text := firstText(res)
	if res.IsError {
		code, msg, _ := strings.Cut(text, ": ")
		ctx := map[string]any{"tool": name}
		switch code {
		case errmodel.CodeNotFound:
			return tool.Result{}, errmodel.Validation(errmodel.CodeUnknownTool, msg, ctx)
		case errmodel.CodeInvalidArguments, errmodel.CodeBadJSON:
			return tool.Result{}, errmodel.Validation(errmodel.CodeInvalidArguments, msg, ctx)
		default:
			return tool.Result{}, errmodel.Network(errmodel.CodeInvocationFailed, text, ctx, nil)
		}
	}
	return decodeResult(name, []byte(text))
}

func firstText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
