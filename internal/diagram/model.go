package diagram

import "github.com/rendis/flowlens/pkg/schema"

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string // node IDs per layer, top to bottom within a layer
}

// Node is a positioned workflow node.
type Node struct {
	ID       string
	Label    string
	Subtitle string // display type
	Category schema.Category
	Layer    int
	Position schema.Position
	Disabled bool
	Status   *StatusOverlay
}

// StatusOverlay carries runtime metrics for a node that has run at least once.
type StatusOverlay struct {
	Status        schema.NodeStatus
	AvgDurationMs float64
	FailureRate   float64
	Executions    int
	Error         string
}

// Edge is a connection between two nodes.
type Edge struct {
	From      string
	To        string
	Label     string
	ErrorPath bool
	Animated  bool
}
