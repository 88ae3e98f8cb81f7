package layout

import (
	"github.com/rendis/flowlens/internal/classify"
	"github.com/rendis/flowlens/pkg/schema"
)

// Option configures Compute.
type Option func(*config)

type config struct {
	dims Dimensions
}

// WithDimensions overrides the node size and gaps.
func WithDimensions(d Dimensions) Option {
	return func(c *config) { c.dims = d }
}

// Compute builds the positioned graph for a workflow. It never fails: unknown
// connection endpoints are dropped and an empty node list yields an empty
// layout. Identical input produces identical output.
func Compute(nodes []schema.Node, connections schema.ConnectionTable, opts ...Option) *schema.Layout {
	cfg := config{dims: DefaultDimensions}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := ParseConnections(nodes, connections)

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	triggers, sources := rootSets(nodes, g)
	layers := AssignLayers(ids, g.Outgoing, triggers, sources)
	positions := Position(ids, layers, cfg.dims)

	out := &schema.Layout{
		Nodes: make([]schema.LayoutNode, 0, len(nodes)),
		Edges: g.Edges,
	}
	for _, n := range nodes {
		c := classify.Classify(n)
		outputs := g.OutputCounts[n.ID]
		if outputs < 1 {
			outputs = 1
		}
		out.Nodes = append(out.Nodes, schema.LayoutNode{
			ID:             n.ID,
			Name:           n.Name,
			Type:           n.Type,
			DisplayType:    c.DisplayType,
			Layer:          layers[n.ID],
			Position:       positions[n.ID],
			Category:       c.Category,
			IsTrigger:      c.IsTrigger,
			IsError:        c.IsError,
			IsBranching:    c.IsBranching,
			HasCredentials: n.HasCredentials(),
			Disabled:       n.Disabled,
			OutputCount:    outputs,
		})
	}
	return out
}
