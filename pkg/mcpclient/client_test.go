package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/mcpserver"
	"github.com/wilhg/toolwire/pkg/tool"
	"github.com/wilhg/toolwire/pkg/tool/arith"
)

func arithDispatcher(t *testing.T) *tool.Dispatcher {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, arith.Register(reg))
	return tool.NewDispatcher(reg)
}

func realServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := mcpserver.New(arithDispatcher(t), mcpserver.Config{MCPBridge: true})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestListToolsAgainstServer(t *testing.T) {
	ts := realServer(t)
	c, err := New(ts.URL + "/")
	require.NoError(t, err)
	cat, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, cat, 2)
	assert.Equal(t, "add", cat[0].Name)
	assert.Equal(t, []string{"a", "b"}, cat[0].RequiredNames())
}

func TestCallToolAgainstServer(t *testing.T) {
	ts := realServer(t)
	c, err := New(ts.URL)
	require.NoError(t, err)

	res, err := c.CallTool(context.Background(), "add", map[string]any{"a": 4, "b": 5})
	require.NoError(t, err)
	assert.Equal(t, json.Number("9"), res.Result)
	assert.NotEmpty(t, res.Timestamp)

	_, err = c.CallTool(context.Background(), "nonexistent", map[string]any{"a": 1})
	assert.True(t, errmodel.IsCode(err, errmodel.CodeUnknownTool), "%v", err)

	_, err = c.CallTool(context.Background(), "add", map[string]any{"a": "x", "b": 3})
	assert.True(t, errmodel.IsCode(err, errmodel.CodeInvalidArguments), "%v", err)
}

func TestDiscoveryFailuresYieldEmptyCatalog(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", 500) },
		"malformed":    func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"tools": []}`)) },
		"null":         func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`null`)) },
		"slow": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(h)
			defer ts.Close()
			c, err := New(ts.URL, WithDiscoveryTimeout(100*time.Millisecond))
			require.NoError(t, err)
			cat, err := c.ListTools(context.Background())
			require.Error(t, err)
			assert.True(t, errmodel.IsCode(err, errmodel.CodeDiscoveryFailed))
			assert.NotNil(t, cat)
			assert.Empty(t, cat)
		})
	}
}

func TestDiscoveryUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	c, err := New(url)
	require.NoError(t, err)
	cat, err := c.ListTools(context.Background())
	assert.True(t, errmodel.IsCode(err, errmodel.CodeDiscoveryFailed))
	assert.Empty(t, cat)
}

func TestOversizedResponsesAreRejected(t *testing.T) {
	big := `{"result": "` + strings.Repeat("x", 256) + `", "timestamp": "2024-01-01T00:00:00.000000Z"}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer ts.Close()
	c, err := New(ts.URL)
	require.NoError(t, err)
	c.maxResponse = 128

	cat, err := c.ListTools(context.Background())
	assert.True(t, errmodel.IsCode(err, errmodel.CodeDiscoveryFailed), "%v", err)
	assert.Empty(t, cat)

	_, err = c.CallTool(context.Background(), "add", map[string]any{})
	assert.True(t, errmodel.IsCode(err, errmodel.CodeInvocationFailed), "%v", err)
	assert.ErrorContains(t, err, "read response")

	c.maxResponse = int64(len(big))
	res, err := c.CallTool(context.Background(), "add", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 256), res.Result)
}

func TestCallToolUnderstandsBareErrorBodies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Tool not found"}`))
	}))
	defer ts.Close()
	c, err := New(ts.URL)
	require.NoError(t, err)
	_, err = c.CallTool(context.Background(), "x", nil)
	ce := errmodel.From(err)
	assert.Equal(t, errmodel.CodeUnknownTool, ce.Code)
	assert.Equal(t, "Tool not found", ce.Message)

	b, _ := json.Marshal(ErrorResult(err))
	assert.JSONEq(t, `{"error": "Tool not found"}`, string(b))
}

func TestCallToolEscapesName(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"result": 1, "timestamp": "2024-01-01T00:00:00.000000Z"}`))
	}))
	defer ts.Close()
	c, err := New(ts.URL)
	require.NoError(t, err)
	_, err = c.CallTool(context.Background(), "a/b c", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "/a%2Fb%20c", gotPath)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("localhost:8000")
	assert.Error(t, err)
}

func TestSessionClientOverBridge(t *testing.T) {
	ctx := context.Background()
	srv, err := mcpserver.NewMCPServer(arithDispatcher(t), "test")
	require.NoError(t, err)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()
	cs, err := mcp.NewClient(&mcp.Implementation{Name: "t", Version: "v0"}, nil).Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	sc := NewSession(cs)
	defer sc.Close()

	cat, err := sc.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, cat, 2)
	require.NotNil(t, cat[0].Parameters)
	assert.Equal(t, "object", cat[0].Parameters.Type)

	res, err := sc.CallTool(ctx, "subtract", map[string]any{"a": 10, "b": 4})
	require.NoError(t, err)
	assert.Equal(t, json.Number("6"), res.Result)

	_, err = sc.CallTool(ctx, "add", map[string]any{"a": 1})
	assert.True(t, errmodel.IsCode(err, errmodel.CodeInvalidArguments), "%v", err)
}

func TestSessionClientOverHTTP(t *testing.T) {
	ts := realServer(t)
	sc, err := DialMCP(context.Background(), ts.URL+mcpserver.BridgePath, ts.Client())
	require.NoError(t, err)
	defer sc.Close()
	res, err := sc.CallTool(context.Background(), "add", map[string]any{"a": 2, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, json.Number("4"), res.Result)
}

// stallingBridge serves the bridge until stall is set, after which every POST
// hangs until the client gives up.
func stallingBridge(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	s, err := mcpserver.New(arithDispatcher(t), mcpserver.Config{MCPBridge: true})
	require.NoError(t, err)
	h := s.Router()
	stall := new(atomic.Bool)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && stall.Load() {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			http.Error(w, "stalled", http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })
	return ts, stall
}

func TestSessionClientTimesOutOnStalledServer(t *testing.T) {
	ts, stall := stallingBridge(t)
	sc, err := DialMCP(context.Background(), ts.URL+mcpserver.BridgePath, ts.Client(),
		WithSessionTimeouts(200*time.Millisecond, 200*time.Millisecond))
	require.NoError(t, err)
	defer sc.Close()
	stall.Store(true)

	start := time.Now()
	cat, err := sc.ListTools(context.Background())
	assert.True(t, errmodel.IsCode(err, errmodel.CodeDiscoveryFailed), "%v", err)
	assert.Empty(t, cat)

	_, err = sc.CallTool(context.Background(), "add", map[string]any{"a": 1, "b": 2})
	assert.True(t, errmodel.IsCode(err, errmodel.CodeInvocationFailed), "%v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDialMCPBoundsHandshake(t *testing.T) {
	ts, stall := stallingBridge(t)
	stall.Store(true)
	start := time.Now()
	_, err := DialMCP(context.Background(), ts.URL+mcpserver.BridgePath, ts.Client(),
		WithSessionTimeouts(200*time.Millisecond, time.Second))
	assert.True(t, errmodel.IsCode(err, errmodel.CodeDiscoveryFailed), "%v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
