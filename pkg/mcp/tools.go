package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/view"
)

// handleList returns stored workflow summaries.
func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.WorkflowFilter{
		ActiveOnly: req.GetBool("active_only", false),
		Limit:      req.GetInt("limit", 50),
		Offset:     req.GetInt("offset", 0),
	}
	list, err := s.store.ListWorkflows(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list workflows failed: %v", err)), nil
	}
	if list == nil {
		list = []*store.WorkflowSummary{}
	}
	return marshalResult(list)
}

// handleGraph returns the full computed view.
func (s *Server) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResult := s.graph(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return marshalResult(g)
}

// handleMetrics returns only the node metrics and workflow summary.
func (s *Server) handleMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, errResult := s.graph(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return marshalResult(map[string]any{
		"workflowId": g.WorkflowID,
		"metrics":    g.Metrics,
		"summary":    g.Summary,
	})
}

// handleDiagram renders the computed view in the requested format.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := diagram.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError("format must be mermaid, ascii, or png"), nil
	}

	g, errResult := s.graph(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	out, err := diagram.Render(ctx, diagram.Build(g.Workflow, g.Layout, g.Metrics), format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram render failed: %v", err)), nil
	}
	if format == diagram.FormatPNG {
		return mcp.NewToolResultImage(g.Name, base64.StdEncoding.EncodeToString(out), format.ContentType()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// graph resolves the view named by the request. On failure it returns a
// tool error result instead of a Go error so the agent sees the message.
func (s *Server) graph(ctx context.Context, req mcp.CallToolRequest) (*view.Graph, *mcp.CallToolResult) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return nil, mcp.NewToolResultError("workflow_id is required")
	}
	opts := view.Options{
		Environment: req.GetString("environment", ""),
		Filter:      req.GetString("filter", ""),
		Limit:       req.GetInt("limit", 0),
	}

	ctx = logging.WithWorkflowID(ctx, workflowID)
	g, err := s.views.Graph(ctx, workflowID, opts)
	if err != nil {
		logging.LogWith(ctx, s.logger).Warn("view failed", "error", err)
		return nil, mcp.NewToolResultError(fmt.Sprintf("view failed: %v", err))
	}
	return g, nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
