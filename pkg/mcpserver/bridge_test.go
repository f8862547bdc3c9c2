package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolwire/pkg/tool"
	"github.com/wilhg/toolwire/pkg/tool/arith"
)

func connectBridge(t *testing.T, disp *tool.Dispatcher) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	srv, err := NewMCPServer(disp, "test")
	require.NoError(t, err)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "bridge-test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestBridgeListAndCall(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, arith.Register(reg))
	var observed []string
	disp := tool.NewDispatcher(reg, tool.WithObserver(tool.ObserverFunc(func(_ context.Context, inv tool.Invocation) {
		observed = append(observed, inv.Tool)
	})))
	cs := connectBridge(t, disp)
	ctx := context.Background()

	lt, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tl := range lt.Tools {
		names = append(names, tl.Name)
	}
	require.ElementsMatch(t, []string{"add", "subtract"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "add", Arguments: map[string]any{"a": 4, "b": 5}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text := res.Content[0].(*mcp.TextContent).Text
	var out struct {
		Result    json.Number `json:"result"`
		Timestamp string      `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	require.Equal(t, json.Number("9"), out.Result)
	require.Regexp(t, isoMicros, out.Timestamp)
	require.Equal(t, []string{"add"}, observed)
}

func TestBridgeReportsValidationAsToolError(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, arith.Register(reg))
	cs := connectBridge(t, tool.NewDispatcher(reg))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "subtract", Arguments: map[string]any{"a": "x"}})
	require.NoError(t, err)
	require.True(t, res.IsError)
	text := res.Content[0].(*mcp.TextContent).Text
	require.True(t, strings.HasPrefix(text, "invalid_arguments:"), text)
}
