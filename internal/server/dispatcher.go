package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/pianificatore-mcp/internal/duck"
	"github.com/malbeclabs/pianificatore-mcp/internal/metrics"
	"github.com/malbeclabs/pianificatore-mcp/internal/prompts"
)

const (
	queryToolDescription = "Esegui una query SQL (dialetto DuckDB) su MotherDuck/DuckDB. " +
		"Supporta SELECT/CTE e, se richiesto, anche INSERT/UPDATE sulle tabelle autorizzate."
	queryArgDescription = "Query SQL (DuckDB) da eseguire: SELECT/CTE e, se necessario, INSERT/UPDATE."

	queryArg = "query"
)

type Querier interface {
	Query(ctx context.Context, sql string) (*duck.Result, error)
}

type ToolName string

const (
	ToolUnknown ToolName = ""
	ToolQuery   ToolName = "query"
)

func parseToolName(name string) ToolName {
	switch ToolName(name) {
	case ToolQuery:
		return ToolQuery
	default:
		return ToolUnknown
	}
}

type PromptName string

const (
	PromptUnknown PromptName = ""
	PromptPlanner PromptName = "pianificatore-ui"
	PromptDuckDB  PromptName = "duckdb-motherduck-initial-prompt"
)

func parsePromptName(name string) PromptName {
	switch PromptName(name) {
	case PromptPlanner:
		return PromptPlanner
	case PromptDuckDB:
		return PromptDuckDB
	default:
		return PromptUnknown
	}
}

type DispatcherConfig struct {
	Logger  *slog.Logger
	Querier Querier
}

func (cfg *DispatcherConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Querier == nil {
		return fmt.Errorf("querier is required")
	}
	return nil
}

// Dispatcher serves the fixed capability surface: no resources, two static
// prompts and the query tool.
type Dispatcher struct {
	log     *slog.Logger
	querier Querier

	tools   []*mcp.Tool
	prompts []*mcp.Prompt
	bodies  map[PromptName]prompts.Prompt
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate dispatcher config: %w", err)
	}

	d := &Dispatcher{
		log:     cfg.Logger,
		querier: cfg.Querier,
		tools: []*mcp.Tool{{
			Name:        string(ToolQuery),
			Description: queryToolDescription,
			InputSchema: queryInputSchema(),
		}},
		bodies: make(map[PromptName]prompts.Prompt),
	}
	for _, p := range prompts.All() {
		d.prompts = append(d.prompts, &mcp.Prompt{
			Name:        p.Name,
			Description: p.Description,
		})
		d.bodies[PromptName(p.Name)] = p
	}
	return d, nil
}

func queryInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			queryArg: {
				Type:        "string",
				Description: queryArgDescription,
			},
		},
		Required: []string{queryArg},
	}
}

func (d *Dispatcher) ListResources(_ context.Context) []*mcp.Resource {
	d.log.Debug("server: listing resources")
	return []*mcp.Resource{}
}

func (d *Dispatcher) ReadResource(_ context.Context, uri string) (*mcp.ReadResourceResult, error) {
	d.log.Debug("server: reading resource", "uri", uri)
	scheme := ""
	if u, err := url.Parse(uri); err == nil {
		scheme = u.Scheme
	}
	return nil, &UnsupportedSchemeError{URI: uri, Scheme: scheme}
}

func (d *Dispatcher) ListPrompts(_ context.Context) []*mcp.Prompt {
	d.log.Debug("server: listing prompts")
	return slices.Clone(d.prompts)
}

func (d *Dispatcher) GetPrompt(_ context.Context, name string) (*mcp.GetPromptResult, error) {
	d.log.Debug("server: getting prompt", "name", name)

	pn := parsePromptName(name)
	switch pn {
	case PromptPlanner, PromptDuckDB:
		p := d.bodies[pn]
		return &mcp.GetPromptResult{
			Description: p.ResultDescription,
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: p.Text},
			}},
		}, nil
	case PromptUnknown:
		return nil, &UnknownPromptError{Name: name}
	default:
		panic(fmt.Sprintf("unhandled prompt %q", pn))
	}
}

func (d *Dispatcher) ListTools(_ context.Context) []*mcp.Tool {
	d.log.Debug("server: listing tools")
	return slices.Clone(d.tools)
}

// CallTool runs a tool invocation. Unknown tools and missing or malformed
// arguments come back as ordinary text content; only execution failures are
// returned as *ToolError.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	d.log.Debug("server: calling tool", "name", name)

	tn := parseToolName(name)
	switch tn {
	case ToolUnknown:
		metrics.ToolCallsTotal.WithLabelValues("unsupported", "soft_error").Inc()
		return textResult(fmt.Sprintf("Unsupported tool: %s", name)), nil
	case ToolQuery:
		return d.callQuery(ctx, args)
	default:
		panic(fmt.Sprintf("unhandled tool %q", tn))
	}
}

// CallToolRaw decodes JSON arguments before calling CallTool. Arguments that
// are not a JSON object are treated like missing arguments.
func (d *Dispatcher) CallToolRaw(ctx context.Context, name string, raw json.RawMessage) (*mcp.CallToolResult, error) {
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			d.log.Debug("server: ignoring undecodable tool arguments", "name", name, "error", err)
			args = nil
		}
	}
	return d.CallTool(ctx, name, args)
}

func (d *Dispatcher) callQuery(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	toolName := string(ToolQuery)

	v, ok := args[queryArg]
	if !ok || v == nil {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "soft_error").Inc()
		return textResult("Error: No query provided"), nil
	}
	sql, ok := v.(string)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "soft_error").Inc()
		return textResult(fmt.Sprintf("Error: Invalid query argument: expected string, got %T", v)), nil
	}
	if strings.TrimSpace(sql) == "" {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "soft_error").Inc()
		return textResult("Error: No query provided"), nil
	}

	startTime := time.Now()
	res, err := d.querier.Query(ctx, sql)
	metrics.ToolCallDuration.WithLabelValues(toolName).Observe(time.Since(startTime).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
		d.log.Error("server: tool execution failed", "name", toolName, "error", err)
		return nil, &ToolError{Tool: toolName, Err: err}
	}
	metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()

	return textResult(res.String()), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
