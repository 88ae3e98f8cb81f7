package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/layout"
	"github.com/rendis/flowlens/pkg/schema"
)

// --- Test workflow builders ---

func conn(target string) []schema.Connection {
	return []schema.Connection{{Node: target, Type: "main"}}
}

// orderWorkflow: Webhook -> Check(if) -> {Save (true), Alert (false)}; Save error output -> Alert.
func orderWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:   "wf-1",
		Name: "Order Pipeline",
		Nodes: []schema.Node{
			{ID: "hook", Name: "Webhook", Type: "n8n-nodes-base.webhook"},
			{ID: "check", Name: "Check", Type: "n8n-nodes-base.if"},
			{ID: "save", Name: "Save", Type: "n8n-nodes-base.postgres"},
			{ID: "alert", Name: "Alert", Type: "n8n-nodes-base.slack", Disabled: true},
		},
		Connections: schema.ConnectionTable{
			"Webhook": {"main": {conn("Check")}},
			"Check":   {"main": {conn("Save"), conn("Alert")}},
			"Save":    {"error": {conn("Alert")}},
		},
	}
}

func orderMetrics() map[string]schema.NodeMetrics {
	return map[string]schema.NodeMetrics{
		"hook":  {NodeID: "hook", ExecutionCount: 4, AvgDurationMs: 3, LastStatus: schema.NodeStatusSuccess},
		"check": {NodeID: "check", ExecutionCount: 4, AvgDurationMs: 1, LastStatus: schema.NodeStatusRunning},
		"save":  {NodeID: "save", ExecutionCount: 2, AvgDurationMs: 120, FailureRate: 0.5, LastStatus: schema.NodeStatusError, LastError: "deadlock"},
		"alert": {NodeID: "alert", LastStatus: schema.NodeStatusSuccess},
	}
}

func orderModel(t *testing.T) *DiagramModel {
	t.Helper()
	wf := orderWorkflow()
	model := Build(wf, layout.Compute(wf.Nodes, wf.Connections), orderMetrics())
	require.NotNil(t, model)
	return model
}

// --- Build tests ---

func TestBuildLevels(t *testing.T) {
	model := orderModel(t)

	assert.Equal(t, "Order Pipeline", model.Title)
	require.Len(t, model.Nodes, 4)
	assert.Equal(t, [][]string{{"hook"}, {"check"}, {"save"}, {"alert"}}, model.Levels)
}

func TestBuildEdges(t *testing.T) {
	model := orderModel(t)
	require.Len(t, model.Edges, 4)

	byPair := make(map[string]Edge, len(model.Edges))
	for _, e := range model.Edges {
		byPair[e.From+">"+e.To] = e
	}
	assert.Equal(t, "true", byPair["check>save"].Label)
	assert.False(t, byPair["check>save"].ErrorPath)

	falseEdge := byPair["check>alert"]
	assert.Equal(t, "false", falseEdge.Label)
	assert.True(t, falseEdge.ErrorPath)
	assert.True(t, falseEdge.Animated)

	assert.Equal(t, "error", byPair["save>alert"].Label)
	assert.True(t, byPair["save>alert"].ErrorPath)
}

func TestBuildStatusOverlay(t *testing.T) {
	model := orderModel(t)

	save := findNode(model.Nodes, "save")
	require.NotNil(t, save)
	require.NotNil(t, save.Status)
	assert.Equal(t, schema.NodeStatusError, save.Status.Status)
	assert.Equal(t, "deadlock", save.Status.Error)
	assert.Equal(t, 2, save.Status.Executions)
	assert.Equal(t, schema.CategoryDatabase, save.Category)

	alert := findNode(model.Nodes, "alert")
	require.NotNil(t, alert)
	assert.Nil(t, alert.Status, "never-run nodes carry no overlay")
	assert.True(t, alert.Disabled)
}

func TestBuildWithoutMetrics(t *testing.T) {
	wf := orderWorkflow()
	model := Build(wf, layout.Compute(wf.Nodes, wf.Connections), nil)
	for _, n := range model.Nodes {
		assert.Nil(t, n.Status)
	}
}

func TestBuildEmpty(t *testing.T) {
	model := Build(nil, nil, nil)
	assert.Equal(t, "Workflow", model.Title)
	assert.Empty(t, model.Nodes)
	assert.Empty(t, model.Levels)

	empty := Build(&schema.Workflow{}, layout.Compute(nil, nil), nil)
	assert.Empty(t, empty.Levels)
	assert.Empty(t, RenderASCII(empty)[len("=== Workflow ===\n\n"):])
}
