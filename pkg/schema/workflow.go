package schema

import "time"

// Workflow is a named collection of nodes and the connections between them.
// The JSON shape follows the n8n export format so exported files load as-is.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Active      bool            `json:"active,omitempty"`
	Nodes       []Node          `json:"nodes"`
	Connections ConnectionTable `json:"connections"`
	Settings    map[string]any  `json:"settings,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitzero"`
	UpdatedAt   time.Time       `json:"updatedAt,omitzero"`
}

// Node is a single step in a workflow. Name is the key used by the connection
// table and by execution run data; ID is what the layout output refers to.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion,omitempty"`
	Position    []float64      `json:"position,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// HasCredentials reports whether any credential is attached to the node.
func (n Node) HasCredentials() bool {
	return len(n.Credentials) > 0
}

// ConnectionTable maps source node name → output type → output slot → targets.
// The slot index is the source output index.
type ConnectionTable map[string]map[string][][]Connection

// Connection is one link out of an output slot.
type Connection struct {
	Node  string `json:"node"`            // target node name
	Type  string `json:"type,omitempty"`  // target input type
	Index int    `json:"index"`           // target input index
}

// Output type names used by the connection table.
const (
	OutputMain  = "main"
	OutputError = "error"
)
