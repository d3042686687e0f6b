package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/pianificatore-mcp/internal/metrics"
)

const (
	methodCallTool      = "tools/call"
	methodListTools     = "tools/list"
	methodGetPrompt     = "prompts/get"
	methodListPrompts   = "prompts/list"
	methodListResources = "resources/list"
	methodReadResource  = "resources/read"
)

// Register adds the dispatcher's tools and prompts to server and installs the
// middleware that routes invocations back to the dispatcher.
func (d *Dispatcher) Register(server *mcp.Server) {
	ctx := context.Background()

	// The handlers below only make the SDK advertise the tools and prompts
	// capabilities; Middleware serves every call.
	for _, tool := range d.ListTools(ctx) {
		name := tool.Name
		server.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return d.handleCallTool(ctx, name, req)
		})
	}

	for _, prompt := range d.ListPrompts(ctx) {
		server.AddPrompt(prompt, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return d.GetPrompt(ctx, req.Params.Name)
		})
	}

	server.AddReceivingMiddleware(d.Middleware)
}

// Middleware serves listings, resource requests, prompt lookups and tool calls
// from the dispatcher, so clients see its descriptor order and unknown names
// reach its typed errors and soft failures rather than the SDK's own lookups.
// Everything else passes through.
func (d *Dispatcher) Middleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		res, err := d.route(ctx, method, req, next)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.MCPRequestsTotal.WithLabelValues(method, status).Inc()
		return res, err
	}
}

func (d *Dispatcher) route(ctx context.Context, method string, req mcp.Request, next mcp.MethodHandler) (mcp.Result, error) {
	switch method {
	case methodListTools:
		return &mcp.ListToolsResult{Tools: d.ListTools(ctx)}, nil
	case methodListPrompts:
		return &mcp.ListPromptsResult{Prompts: d.ListPrompts(ctx)}, nil
	case methodListResources:
		return &mcp.ListResourcesResult{Resources: d.ListResources(ctx)}, nil
	case methodReadResource:
		r, ok := req.(*mcp.ReadResourceRequest)
		if !ok || r.Params == nil {
			return nil, fmt.Errorf("invalid %s request", method)
		}
		res, err := d.ReadResource(ctx, r.Params.URI)
		if err != nil {
			return nil, err
		}
		return res, nil
	case methodGetPrompt:
		r, ok := req.(*mcp.GetPromptRequest)
		if !ok || r.Params == nil {
			return nil, fmt.Errorf("invalid %s request", method)
		}
		res, err := d.GetPrompt(ctx, r.Params.Name)
		if err != nil {
			return nil, err
		}
		return res, nil
	case methodCallTool:
		r, ok := req.(*mcp.CallToolRequest)
		if !ok || r.Params == nil {
			return nil, fmt.Errorf("invalid %s request", method)
		}
		res, err := d.handleCallTool(ctx, r.Params.Name, r)
		if err != nil {
			return nil, err
		}
		return res, nil
	default:
		return next(ctx, method, req)
	}
}

// handleCallTool adapts a tool failure into an error result so the calling
// agent reads the engine diagnostic as tool output.
func (d *Dispatcher) handleCallTool(ctx context.Context, name string, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := d.CallToolRaw(ctx, name, req.Params.Arguments)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: toolErr.Error()}},
				IsError: true,
			}, nil
		}
		return nil, err
	}
	return res, nil
}
