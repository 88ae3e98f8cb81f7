package schema

// Category is the visual family of a node.
type Category string

const (
	CategoryTrigger    Category = "trigger"
	CategoryError      Category = "error"
	CategoryLogic      Category = "logic"
	CategoryDatabase   Category = "database"
	CategoryAPI        Category = "api"
	CategoryCode       Category = "code"
	CategoryAI         Category = "ai"
	CategoryTransform  Category = "transform"
	CategoryCredential Category = "credential"
	CategoryDefault    Category = "default"
)

// Categories lists every category in classification precedence order.
var Categories = []Category{
	CategoryTrigger,
	CategoryError,
	CategoryLogic,
	CategoryDatabase,
	CategoryAPI,
	CategoryCode,
	CategoryAI,
	CategoryTransform,
	CategoryCredential,
	CategoryDefault,
}

// Position is a 2D coordinate in layout space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LayoutNode is a positioned, classified node.
type LayoutNode struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	DisplayType    string   `json:"displayType"`
	Layer          int      `json:"layer"`
	Position       Position `json:"position"`
	Category       Category `json:"category"`
	IsTrigger      bool     `json:"isTrigger"`
	IsError        bool     `json:"isError"`
	IsBranching    bool     `json:"isBranching"`
	HasCredentials bool     `json:"hasCredentials"`
	Disabled       bool     `json:"disabled,omitempty"`
	OutputCount    int      `json:"outputCount"`
}

// LayoutEdge is a directed link between two layout nodes.
type LayoutEdge struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	OutputIndex int    `json:"outputIndex"`
	InputIndex  int    `json:"inputIndex"`
	OutputType  string `json:"outputType"`
	IsErrorPath bool   `json:"isErrorPath"`
	Label       string `json:"label,omitempty"`
	Animated    bool   `json:"animated"`
}

// Layout is the full graph handed to a renderer.
type Layout struct {
	Nodes []LayoutNode `json:"nodes"`
	Edges []LayoutEdge `json:"edges"`
}

// Node returns the layout node with the given ID, or nil.
func (l *Layout) Node(id string) *LayoutNode {
	for i := range l.Nodes {
		if l.Nodes[i].ID == id {
			return &l.Nodes[i]
		}
	}
	return nil
}
