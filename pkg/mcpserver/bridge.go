package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/toolwire/pkg/errmodel"
	"github.com/wilhg/toolwire/pkg/tool"
)

// NewMCPServer exports the dispatcher's catalog as MCP tools. Calls go through
// the same dispatcher, so validation and observers behave as on the HTTP routes.
func NewMCPServer(disp *tool.Dispatcher, version string) (*mcp.Server, error) {
	if version == "" {
		version = "dev"
	}
	cat, err := disp.Registry().Catalog()
	if err != nil {
		return nil, fmt.Errorf("export catalog: %w", err)
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "toolwire", Version: version}, nil)
	for _, d := range cat {
		srv.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters,
		}, bridgeHandler(disp, d.Name))
	}
	return srv, nil
}

// NewBridge returns a streamable HTTP handler serving NewMCPServer.
func NewBridge(disp *tool.Dispatcher, version string) (http.Handler, error) {
	srv, err := NewMCPServer(disp, version)
	if err != nil {
		return nil, err
	}
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil), nil
}

func bridgeHandler(disp *tool.Dispatcher, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := []byte("{}")
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			args = req.Params.Arguments
		}
		res, err := disp.Invoke(ctx, name, bytes.NewReader(args))
		if err != nil {
			// tool-level failures are reported in the result so the model can see them
			ce := errmodel.From(err)
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: ce.Code + ": " + ce.Message}},
			}, nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
			StructuredContent: json.RawMessage(b),
		}, nil
	}
}
