package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/view"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Store  store.Store
	Views  *view.Service
	Logger *slog.Logger
}

// Server wraps an MCP server with flowlens tool handlers.
type Server struct {
	store     store.Store
	views     *view.Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all 4 tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		store:  deps.Store,
		views:  deps.Views,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowlens",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowlens lays out stored n8n workflows and aggregates their execution history. Use flowlens.list to find workflows, flowlens.graph for the positioned graph, flowlens.metrics for per-node runtime statistics, and flowlens.diagram for a Mermaid, ASCII or PNG rendering."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listTool(), Handler: s.handleList},
		{Tool: graphTool(), Handler: s.handleGraph},
		{Tool: metricsTool(), Handler: s.handleMetrics},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func listTool() mcp.Tool {
	return mcp.NewTool("flowlens.list",
		mcp.WithDescription("List stored workflows"),
		mcp.WithBoolean("active_only", mcp.Description("Only return active workflows")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of workflows (default: 50)")),
		mcp.WithNumber("offset", mcp.Description("Number of workflows to skip")),
	)
}

// viewOptions are shared by every tool that computes a view.
func viewOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the stored workflow")),
		mcp.WithString("environment", mcp.Description("Only use executions from this environment")),
		mcp.WithString("filter", mcp.Description("Execution predicate as engine:expression, e.g. expr:execution.status == \"error\" or jq:.mode == \"webhook\"")),
		mcp.WithNumber("limit", mcp.Description("Use only the newest N matching executions")),
	}
}

func graphTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Compute the positioned, classified graph of a workflow with node metrics"),
	}, viewOptions()...)
	return mcp.NewTool("flowlens.graph", opts...)
}

func metricsTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Aggregate per-node execution metrics for a workflow"),
	}, viewOptions()...)
	return mcp.NewTool("flowlens.metrics", opts...)
}

func diagramTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Render a workflow diagram with runtime status. Returns Mermaid flowchart syntax, ASCII art, or a PNG image"),
		mcp.WithString("format",
			mcp.Enum("mermaid", "ascii", "png"),
			mcp.Description("Output format (default: mermaid)"),
		),
	}, viewOptions()...)
	return mcp.NewTool("flowlens.diagram", opts...)
}
