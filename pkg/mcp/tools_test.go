package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/view"
	"github.com/rendis/flowlens/pkg/schema"
)

// --- Mock Store ---

type mockStore struct {
	store.Store // embed for unimplemented methods

	workflows map[string]*schema.Workflow
	execs     map[string][]schema.Execution
	listErr   error
	lastList  store.WorkflowFilter
}

func newMockStore() *mockStore {
	wf := &schema.Workflow{
		ID:     "wf-1",
		Name:   "orders",
		Active: true,
		Nodes: []schema.Node{
			{ID: "t", Name: "Webhook", Type: "n8n-nodes-base.webhook"},
			{ID: "i", Name: "Check", Type: "n8n-nodes-base.if"},
			{ID: "s", Name: "Save", Type: "n8n-nodes-base.postgres"},
		},
		Connections: schema.ConnectionTable{
			"Webhook": {"main": {{{Node: "Check", Type: "main"}}}},
			"Check":   {"main": {{{Node: "Save", Type: "main"}}, {}}},
		},
	}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &mockStore{
		workflows: map[string]*schema.Workflow{wf.ID: wf},
		execs: map[string][]schema.Execution{wf.ID: {
			{ID: "e2", Status: schema.ExecutionError, Environment: "prod", StartedAt: base.Add(time.Hour),
				RunData: map[string][]schema.RunAttempt{"Save": {{ExecutionTimeMs: ms(30), Error: &schema.RunError{Message: "timeout"}}}}},
			{ID: "e1", Status: schema.ExecutionSuccess, Environment: "dev", StartedAt: base,
				RunData: map[string][]schema.RunAttempt{"Save": {{ExecutionTimeMs: ms(10)}}}},
		}},
	}
}

func ms(v float64) *float64 { return &v }

func (m *mockStore) GetWorkflow(_ context.Context, id string) (*schema.Workflow, error) {
	wf, ok := m.workflows[id]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeNotFound, "workflow not found")
	}
	return wf, nil
}

func (m *mockStore) ListWorkflows(_ context.Context, filter store.WorkflowFilter) ([]*store.WorkflowSummary, error) {
	m.lastList = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*store.WorkflowSummary
	for _, wf := range m.workflows {
		out = append(out, &store.WorkflowSummary{ID: wf.ID, Name: wf.Name, Active: wf.Active, NodeCount: len(wf.Nodes)})
	}
	return out, nil
}

func (m *mockStore) ListExecutions(_ context.Context, filter store.ExecutionFilter) ([]schema.Execution, error) {
	var out []schema.Execution
	for _, e := range m.execs[filter.WorkflowID] {
		if filter.Environment != "" && e.Environment != filter.Environment {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func newTestServer(t *testing.T, ms *mockStore) *Server {
	t.Helper()
	filters, err := expressions.NewRegistry()
	require.NoError(t, err)
	return NewServer(ServerDeps{
		Store: ms,
		Views: view.NewService(ms, filters),
	})
}

// --- Helper ---

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

// --- Tests ---

func TestListTool(t *testing.T) {
	ms := newMockStore()
	s := newTestServer(t, ms)

	result, err := s.handleList(context.Background(), buildRequest("flowlens.list", map[string]any{
		"active_only": true,
		"limit":       float64(10),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var list []store.WorkflowSummary
	unmarshalResult(t, result, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "wf-1", list[0].ID)
	assert.Equal(t, 3, list[0].NodeCount)
	assert.True(t, ms.lastList.ActiveOnly)
	assert.Equal(t, 10, ms.lastList.Limit)
}

func TestListToolDefaults(t *testing.T) {
	ms := newMockStore()
	ms.workflows = map[string]*schema.Workflow{}
	s := newTestServer(t, ms)

	result, err := s.handleList(context.Background(), buildRequest("flowlens.list", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", extractText(t, result))
	assert.False(t, ms.lastList.ActiveOnly)
	assert.Equal(t, 50, ms.lastList.Limit)
}

func TestListToolStoreError(t *testing.T) {
	ms := newMockStore()
	ms.listErr = schema.NewError(schema.ErrCodeStore, "db down")
	s := newTestServer(t, ms)

	result, err := s.handleList(context.Background(), buildRequest("flowlens.list", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGraphTool(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleGraph(context.Background(), buildRequest("flowlens.graph", map[string]any{
		"workflow_id": "wf-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var g view.Graph
	unmarshalResult(t, result, &g)
	assert.Equal(t, "wf-1", g.WorkflowID)
	require.Len(t, g.Layout.Nodes, 3)
	assert.Len(t, g.Layout.Edges, 2)
	assert.Equal(t, 2, g.Metrics["s"].ExecutionCount)
	assert.Equal(t, schema.NodeStatusError, g.Metrics["s"].LastStatus)
}

func TestGraphToolEnvironment(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleGraph(context.Background(), buildRequest("flowlens.graph", map[string]any{
		"workflow_id": "wf-1",
		"environment": "dev",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var g view.Graph
	unmarshalResult(t, result, &g)
	assert.Equal(t, 1, g.Metrics["s"].ExecutionCount)
	assert.Equal(t, schema.NodeStatusSuccess, g.Metrics["s"].LastStatus)
}

func TestGraphToolMissingID(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleGraph(context.Background(), buildRequest("flowlens.graph", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGraphToolNotFound(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleGraph(context.Background(), buildRequest("flowlens.graph", map[string]any{
		"workflow_id": "missing",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "not found")
}

func TestMetricsTool(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleMetrics(context.Background(), buildRequest("flowlens.metrics", map[string]any{
		"workflow_id": "wf-1",
		"filter":      `expr:execution.status == "error"`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		WorkflowID string                        `json:"workflowId"`
		Metrics    map[string]schema.NodeMetrics `json:"metrics"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "wf-1", out.WorkflowID)
	assert.Equal(t, 1, out.Metrics["s"].ExecutionCount)
	assert.InDelta(t, 1.0, out.Metrics["s"].FailureRate, 1e-9)
	assert.Equal(t, "timeout", out.Metrics["s"].LastError)
}

func TestMetricsToolBadFilter(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleMetrics(context.Background(), buildRequest("flowlens.metrics", map[string]any{
		"workflow_id": "wf-1",
		"filter":      "expr:(((",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDiagramToolMermaid(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleDiagram(context.Background(), buildRequest("flowlens.diagram", map[string]any{
		"workflow_id": "wf-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := extractText(t, result)
	assert.Contains(t, text, "graph LR")
	assert.Contains(t, text, "Check")
}

func TestDiagramToolASCII(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleDiagram(context.Background(), buildRequest("flowlens.diagram", map[string]any{
		"workflow_id": "wf-1",
		"format":      "ascii",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "[FAIL]")
}

func TestDiagramToolPNG(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleDiagram(context.Background(), buildRequest("flowlens.diagram", map[string]any{
		"workflow_id": "wf-1",
		"format":      "png",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	img, ok := result.Content[len(result.Content)-1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)
	raw, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), raw[:4])
}

func TestDiagramToolBadFormat(t *testing.T) {
	s := newTestServer(t, newMockStore())

	result, err := s.handleDiagram(context.Background(), buildRequest("flowlens.diagram", map[string]any{
		"workflow_id": "wf-1",
		"format":      "svg",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Test helpers ---

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}
