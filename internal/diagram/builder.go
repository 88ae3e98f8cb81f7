package diagram

import (
	"github.com/rendis/flowlens/pkg/schema"
)

// Build constructs a DiagramModel from a computed layout and optional node
// metrics keyed by node ID. Nodes keep layout order; levels group them by
// layer.
func Build(wf *schema.Workflow, l *schema.Layout, metrics map[string]schema.NodeMetrics) *DiagramModel {
	model := &DiagramModel{Title: titleOf(wf)}
	if l == nil {
		return model
	}

	maxLayer := -1
	model.Nodes = make([]*Node, 0, len(l.Nodes))
	for _, ln := range l.Nodes {
		n := &Node{
			ID:       ln.ID,
			Label:    ln.Name,
			Subtitle: ln.DisplayType,
			Category: ln.Category,
			Layer:    ln.Layer,
			Position: ln.Position,
			Disabled: ln.Disabled,
		}
		overlayStatus(n, metrics)
		model.Nodes = append(model.Nodes, n)
		if ln.Layer > maxLayer {
			maxLayer = ln.Layer
		}
	}

	model.Levels = make([][]string, maxLayer+1)
	for _, n := range model.Nodes {
		model.Levels[n.Layer] = append(model.Levels[n.Layer], n.ID)
	}

	model.Edges = make([]Edge, 0, len(l.Edges))
	for _, le := range l.Edges {
		model.Edges = append(model.Edges, Edge{
			From:      le.Source,
			To:        le.Target,
			Label:     le.Label,
			ErrorPath: le.IsErrorPath,
			Animated:  le.Animated,
		})
	}
	return model
}

// overlayStatus attaches metrics to a node that has run at least once.
func overlayStatus(n *Node, metrics map[string]schema.NodeMetrics) {
	m, ok := metrics[n.ID]
	if !ok || m.ExecutionCount == 0 {
		return
	}
	n.Status = &StatusOverlay{
		Status:        m.LastStatus,
		AvgDurationMs: m.AvgDurationMs,
		FailureRate:   m.FailureRate,
		Executions:    m.ExecutionCount,
		Error:         m.LastError,
	}
}

func titleOf(wf *schema.Workflow) string {
	if wf != nil && wf.Name != "" {
		return wf.Name
	}
	return "Workflow"
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
