package schema

// NodeStatus is the most recent health state shown for a node.
type NodeStatus string

const (
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusRunning NodeStatus = "running"
)

// NodeMetrics are runtime statistics for one node across execution history.
type NodeMetrics struct {
	NodeID         string     `json:"nodeId"`
	AvgDurationMs  float64    `json:"avgDurationMs"`
	FailureRate    float64    `json:"failureRate"`
	LastStatus     NodeStatus `json:"lastStatus"`
	ExecutionCount int        `json:"executionCount"`
	LastError      string     `json:"lastError,omitempty"`
	SampleInput    []Item     `json:"sampleInput,omitempty"`
	SampleOutput   []Item     `json:"sampleOutput,omitempty"`
}
