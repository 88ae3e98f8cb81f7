// Package layout turns a workflow's nodes and connection table into a
// positioned, classified graph. Every function here is pure and total:
// dangling references are dropped and cyclic input always terminates.
package layout

import (
	"fmt"
	"sort"

	"github.com/rendis/flowlens/internal/classify"
	"github.com/rendis/flowlens/pkg/schema"
)

// Target is one outgoing adjacency entry.
type Target struct {
	NodeID      string
	OutputIndex int
}

// Graph is the adjacency resolved from a connection table.
type Graph struct {
	Outgoing     map[string][]Target // node ID → targets, in connection order
	Incoming     map[string][]string // node ID → source node IDs
	OutputCounts map[string]int      // node ID → widest output slot list seen
	Edges        []schema.LayoutEdge // unpositioned edges
}

// ParseConnections resolves the name-keyed connection table against the node
// list. Source entries whose name is unknown are skipped whole; individual
// connections to unknown targets are skipped alone.
//
// Sources are visited in node-list order and output types with "main" first,
// then lexically, so the edge order is deterministic.
func ParseConnections(nodes []schema.Node, table schema.ConnectionTable) *Graph {
	g := &Graph{
		Outgoing:     make(map[string][]Target, len(nodes)),
		Incoming:     make(map[string][]string, len(nodes)),
		OutputCounts: make(map[string]int, len(nodes)),
		Edges:        make([]schema.LayoutEdge, 0),
	}

	byName := make(map[string]*schema.Node, len(nodes))
	for i := range nodes {
		if _, exists := byName[nodes[i].Name]; !exists {
			byName[nodes[i].Name] = &nodes[i]
		}
	}

	seen := make(map[string]bool, len(table))
	for i := range nodes {
		name := nodes[i].Name
		outputs, ok := table[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		source := byName[name]

		for _, outputType := range sortedOutputTypes(outputs) {
			slots := outputs[outputType]
			if len(slots) > g.OutputCounts[source.ID] {
				g.OutputCounts[source.ID] = len(slots)
			}

			for outputIndex, slot := range slots {
				for _, conn := range slot {
					target, ok := byName[conn.Node]
					if !ok {
						continue
					}
					g.Outgoing[source.ID] = append(g.Outgoing[source.ID], Target{NodeID: target.ID, OutputIndex: outputIndex})
					g.Incoming[target.ID] = append(g.Incoming[target.ID], source.ID)
					g.Edges = append(g.Edges, buildEdge(source, target, outputType, outputIndex, conn.Index))
				}
			}
		}
	}

	return g
}

// buildEdge creates the unpositioned edge for one resolved connection.
func buildEdge(source, target *schema.Node, outputType string, outputIndex, inputIndex int) schema.LayoutEdge {
	style := edgeStyleFor(source, outputType, outputIndex)
	return schema.LayoutEdge{
		ID:          edgeID(source.ID, outputType, outputIndex, target.ID, inputIndex),
		Source:      source.ID,
		Target:      target.ID,
		OutputIndex: outputIndex,
		InputIndex:  inputIndex,
		OutputType:  outputType,
		IsErrorPath: outputType == schema.OutputError || outputIndex > 0,
		Label:       style.Label,
		Animated:    style.Animated,
	}
}

// edgeID is stable across recomputation so renderers can diff.
func edgeID(sourceID, outputType string, outputIndex int, targetID string, inputIndex int) string {
	return fmt.Sprintf("%s-%s-%d-%s-%d", sourceID, outputType, outputIndex, targetID, inputIndex)
}

func sortedOutputTypes(outputs map[string][][]schema.Connection) []string {
	types := make([]string, 0, len(outputs))
	for t := range outputs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i] == schema.OutputMain || types[j] == schema.OutputMain {
			return types[i] == schema.OutputMain && types[j] != schema.OutputMain
		}
		return types[i] < types[j]
	})
	return types
}

// rootSets splits the roots into triggers and non-trigger sources (no incoming
// edges), both in node-list order.
func rootSets(nodes []schema.Node, g *Graph) (triggers, sources []string) {
	for _, n := range nodes {
		if classify.IsTrigger(n.Type) {
			triggers = append(triggers, n.ID)
		} else if len(g.Incoming[n.ID]) == 0 {
			sources = append(sources, n.ID)
		}
	}
	return triggers, sources
}
