package layout

import "github.com/rendis/flowlens/pkg/schema"

// --- Test workflow builders ---

func node(id, name, typ string) schema.Node {
	return schema.Node{ID: id, Name: name, Type: typ}
}

func mainTo(targets ...string) []schema.Connection {
	conns := make([]schema.Connection, 0, len(targets))
	for _, t := range targets {
		conns = append(conns, schema.Connection{Node: t, Type: schema.OutputMain})
	}
	return conns
}

func mainOutputs(slots ...[]schema.Connection) map[string][][]schema.Connection {
	return map[string][][]schema.Connection{schema.OutputMain: slots}
}

// branchingWorkflow is Trigger → HTTP → IF, with IF true → Yes and false → No.
func branchingWorkflow() ([]schema.Node, schema.ConnectionTable) {
	nodes := []schema.Node{
		node("t", "Trigger", "n8n-nodes-base.manualTrigger"),
		node("h", "HTTP", "n8n-nodes-base.httpRequest"),
		node("i", "IF", "n8n-nodes-base.if"),
		node("y", "Yes", "n8n-nodes-base.set"),
		node("n", "No", "n8n-nodes-base.noOp"),
	}
	conns := schema.ConnectionTable{
		"Trigger": mainOutputs(mainTo("HTTP")),
		"HTTP":    mainOutputs(mainTo("IF")),
		"IF":      mainOutputs(mainTo("Yes"), mainTo("No")),
	}
	return nodes, conns
}

// cyclicWorkflow is D(trigger) → A → B → C → A.
func cyclicWorkflow() ([]schema.Node, schema.ConnectionTable) {
	nodes := []schema.Node{
		node("D", "D", "n8n-nodes-base.scheduleTrigger"),
		node("A", "A", "n8n-nodes-base.set"),
		node("B", "B", "n8n-nodes-base.set"),
		node("C", "C", "n8n-nodes-base.set"),
	}
	conns := schema.ConnectionTable{
		"D": mainOutputs(mainTo("A")),
		"A": mainOutputs(mainTo("B")),
		"B": mainOutputs(mainTo("C")),
		"C": mainOutputs(mainTo("A")),
	}
	return nodes, conns
}

func layersOf(l *schema.Layout) map[string]int {
	out := make(map[string]int, len(l.Nodes))
	for _, n := range l.Nodes {
		out[n.ID] = n.Layer
	}
	return out
}

func edgeBetween(l *schema.Layout, source, target string) *schema.LayoutEdge {
	for i := range l.Edges {
		if l.Edges[i].Source == source && l.Edges[i].Target == target {
			return &l.Edges[i]
		}
	}
	return nil
}
