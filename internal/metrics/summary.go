package metrics

import (
	"sort"

	"github.com/rendis/flowlens/pkg/schema"
)

// Summary is a workflow-level rollup of node metrics.
type Summary struct {
	TotalExecutions int      `json:"totalExecutions"`
	ActiveNodes     int      `json:"activeNodes"`
	FailingNodes    []string `json:"failingNodes,omitempty"`
	SlowestNodeID   string   `json:"slowestNodeId,omitempty"`
	SlowestAvgMs    float64  `json:"slowestAvgMs,omitempty"`
}

// Summarize rolls per-node metrics up. TotalExecutions is the number of
// distinct executions in the history, not a sum over nodes.
func Summarize(byNode map[string]schema.NodeMetrics, executions []schema.Execution) Summary {
	s := Summary{TotalExecutions: len(executions)}

	ids := make([]string, 0, len(byNode))
	for id := range byNode {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		m := byNode[id]
		if m.ExecutionCount == 0 {
			continue
		}
		s.ActiveNodes++
		if m.FailureRate > 0 {
			s.FailingNodes = append(s.FailingNodes, id)
		}
		if m.AvgDurationMs > s.SlowestAvgMs {
			s.SlowestAvgMs = m.AvgDurationMs
			s.SlowestNodeID = id
		}
	}
	return s
}
