package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/flowlens/pkg/schema"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
// Nodes are created in level order so DOT ranks follow the computed layers.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, renderErr("create graphviz", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, renderErr("create graph", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, level := range model.Levels {
		for _, id := range level {
			node := findNode(model.Nodes, id)
			if node == nil {
				continue
			}
			gvNode, nErr := graph.CreateNodeByName(node.ID)
			if nErr != nil {
				return nil, renderErr("create node "+node.ID, nErr)
			}
			gvNode.SetLabel(node.Label)
			applyNodeStyle(gvNode, node)
			gvNodes[node.ID] = gvNode
		}
	}

	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			return nil, renderErr("create edge", eErr)
		}
		if edge.Label != "" {
			e.SetLabel(edge.Label)
		}
		if edge.ErrorPath {
			e.SetStyle(cgraph.DashedEdgeStyle)
			e.SetColor("#8b1a1a")
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, renderErr("render PNG", err)
	}

	return buf.Bytes(), nil
}

func renderErr(op string, err error) error {
	return schema.NewError(schema.ErrCodeRender, fmt.Sprintf("diagram: %s: %v", op, err)).WithCause(err)
}

// applyNodeStyle sets graphviz attributes based on category and status.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Category {
	case schema.CategoryTrigger:
		gvNode.SetShape(cgraph.EllipseShape)
	case schema.CategoryLogic:
		gvNode.SetShape(cgraph.DiamondShape)
	case schema.CategoryError:
		gvNode.SetShape(cgraph.HexagonShape)
	case schema.CategoryDatabase:
		gvNode.SetShape(cgraph.CylinderShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if node.Disabled {
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetFontColor("#888888")
		return
	}
	if node.Status != nil {
		applyStatusColor(gvNode, node.Status.Status)
	}
}

// applyStatusColor sets fill color and style based on status.
func applyStatusColor(gvNode *cgraph.Node, status schema.NodeStatus) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch status {
	case schema.NodeStatusSuccess:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case schema.NodeStatusError:
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	case schema.NodeStatusRunning:
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	}
}
