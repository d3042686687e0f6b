package server

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/pianificatore-mcp/internal/duck"
)

func passthrough(called *bool) mcp.MethodHandler {
	return func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		*called = true
		return &mcp.ListToolsResult{}, nil
	}
}

func TestPianificatore_Server_Middleware(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, &mockQuerier{err: &duck.QueryError{SQL: "SELECT x", Err: errors.New(`Binder Error: Referenced column "x" not found in FROM clause!`)}})

	t.Run("resources/list", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "resources/list", &mcp.ListResourcesRequest{Params: &mcp.ListResourcesParams{}})
		require.NoError(t, err)
		require.False(t, called)
		list, ok := res.(*mcp.ListResourcesResult)
		require.True(t, ok)
		require.Empty(t, list.Resources)
	})

	t.Run("resources/read", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "resources/read", &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "file:///tmp/x"}})
		require.False(t, called)
		require.Nil(t, res)
		var schemeErr *UnsupportedSchemeError
		require.ErrorAs(t, err, &schemeErr)
		require.Equal(t, "file", schemeErr.Scheme)
	})

	t.Run("prompts/get unknown", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "prompts/get", &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "nope"}})
		require.False(t, called)
		require.Nil(t, res)
		var promptErr *UnknownPromptError
		require.ErrorAs(t, err, &promptErr)
	})

	t.Run("tools/call unknown tool", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "tools/call", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "bogus"}})
		require.NoError(t, err)
		require.False(t, called)
		result, ok := res.(*mcp.CallToolResult)
		require.True(t, ok)
		require.False(t, result.IsError)
		require.Equal(t, "Unsupported tool: bogus", resultText(t, result))
	})

	t.Run("tools/call engine failure", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "tools/call", &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
			Name:      "query",
			Arguments: []byte(`{"query":"SELECT x"}`),
		}})
		require.NoError(t, err)
		result, ok := res.(*mcp.CallToolResult)
		require.True(t, ok)
		require.True(t, result.IsError)
		require.Equal(t, `Error executing tool query: Binder Error: Referenced column "x" not found in FROM clause!`, resultText(t, result))
	})

	t.Run("missing params", func(t *testing.T) {
		t.Parallel()
		var called bool
		_, err := d.Middleware(passthrough(&called))(t.Context(), "resources/read", &mcp.ReadResourceRequest{})
		require.ErrorContains(t, err, "invalid resources/read request")
		require.False(t, called)
	})

	t.Run("prompts/list keeps dispatcher order", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "prompts/list", &mcp.ListPromptsRequest{Params: &mcp.ListPromptsParams{}})
		require.NoError(t, err)
		require.False(t, called)
		list, ok := res.(*mcp.ListPromptsResult)
		require.True(t, ok)
		require.Len(t, list.Prompts, 2)
		require.Equal(t, "pianificatore-ui", list.Prompts[0].Name)
		require.Equal(t, "duckdb-motherduck-initial-prompt", list.Prompts[1].Name)
	})

	t.Run("tools/list", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "tools/list", &mcp.ListToolsRequest{Params: &mcp.ListToolsParams{}})
		require.NoError(t, err)
		require.False(t, called)
		list, ok := res.(*mcp.ListToolsResult)
		require.True(t, ok)
		require.Equal(t, d.ListTools(t.Context()), list.Tools)
	})

	t.Run("other methods pass through", func(t *testing.T) {
		t.Parallel()
		var called bool
		res, err := d.Middleware(passthrough(&called))(t.Context(), "logging/setLevel", nil)
		require.NoError(t, err)
		require.True(t, called)
		require.IsType(t, &mcp.ListToolsResult{}, res)
	})
}

func connectInMemory(t *testing.T, q Querier) *mcp.ClientSession {
	t.Helper()

	d := newTestDispatcher(t, q)
	server := mcp.NewServer(&mcp.Implementation{Name: "pianificatore_ui", Version: "test"}, nil)
	d.Register(server)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(t.Context(), serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ss.Close()
	})

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(t.Context(), clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cs.Close()
	})
	return cs
}

func TestPianificatore_Server_Register_EndToEnd(t *testing.T) {
	t.Parallel()

	session, err := duck.Open(t.Context(), testLogger(t), duck.SessionConfig{Location: duck.MemoryLocation})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
	})
	cs := connectInMemory(t, session)
	ctx := t.Context()

	t.Run("tools/list", func(t *testing.T) {
		tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
		require.NoError(t, err)
		require.Len(t, tools.Tools, 1)
		require.Equal(t, "query", tools.Tools[0].Name)
	})

	t.Run("prompts/list", func(t *testing.T) {
		for range 2 {
			list, err := cs.ListPrompts(ctx, &mcp.ListPromptsParams{})
			require.NoError(t, err)
			require.Len(t, list.Prompts, 2)
			require.Equal(t, "pianificatore-ui", list.Prompts[0].Name)
			require.Equal(t, "duckdb-motherduck-initial-prompt", list.Prompts[1].Name)
		}
	})

	t.Run("prompts/get", func(t *testing.T) {
		res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "pianificatore-ui"})
		require.NoError(t, err)
		require.Len(t, res.Messages, 1)

		_, err = cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "nope"})
		require.ErrorContains(t, err, "Unknown prompt: nope")
	})

	t.Run("tools/call", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      "query",
			Arguments: map[string]any{"query": "SELECT 42 AS answer"},
		})
		require.NoError(t, err)
		require.False(t, res.IsError)
		text := resultText(t, res)
		require.Contains(t, text, "answer")
		require.Contains(t, text, "42")
		require.Contains(t, text, "(1 row)")
	})

	t.Run("tools/call soft failures", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "bogus", Arguments: map[string]any{}})
		require.NoError(t, err)
		require.Equal(t, "Unsupported tool: bogus", resultText(t, res))

		res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "query", Arguments: map[string]any{}})
		require.NoError(t, err)
		require.Equal(t, "Error: No query provided", resultText(t, res))
	})

	t.Run("tools/call engine failure", func(t *testing.T) {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{
			Name:      "query",
			Arguments: map[string]any{"query": "SELECT * FROM missing_table"},
		})
		require.NoError(t, err)
		require.True(t, res.IsError)
		text := resultText(t, res)
		require.Contains(t, text, "Error executing tool query: ")
		require.Contains(t, text, "missing_table")
	})
}
