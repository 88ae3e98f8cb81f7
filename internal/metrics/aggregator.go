// Package metrics aggregates execution history into per-node runtime
// statistics. Aggregation is pure and never fails: missing or malformed run
// data simply counts as no activity.
package metrics

import (
	"sort"

	"github.com/rendis/flowlens/pkg/schema"
)

// Aggregate computes NodeMetrics for every node, keyed by node ID. Nodes are
// matched to run data by exact name.
func Aggregate(nodes []schema.Node, executions []schema.Execution) map[string]schema.NodeMetrics {
	out := make(map[string]schema.NodeMetrics, len(nodes))
	for _, n := range nodes {
		out[n.ID] = aggregateNode(n, executions)
	}
	return out
}

// aggregateNode walks the executions that ran the node, most recent first.
func aggregateNode(n schema.Node, executions []schema.Execution) schema.NodeMetrics {
	m := schema.NodeMetrics{
		NodeID:     n.ID,
		LastStatus: schema.NodeStatusSuccess,
	}

	matching := make([]*schema.Execution, 0)
	for i := range executions {
		if _, ok := executions[i].RunData[n.Name]; ok {
			matching = append(matching, &executions[i])
		}
	}
	if len(matching) == 0 {
		return m
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].StartedAt.After(matching[j].StartedAt)
	})

	var (
		durations  []float64
		errorCount int
		errorSeen  bool
	)
	for _, exec := range matching {
		attempts := exec.RunData[n.Name]
		if len(attempts) > 0 {
			attempt := attempts[len(attempts)-1]

			if attempt.ExecutionTimeMs != nil {
				durations = append(durations, *attempt.ExecutionTimeMs)
			}
			if attempt.Error != nil {
				errorCount++
				// The most recent error wins even when its message is empty.
				if !errorSeen {
					m.LastError = attempt.Error.Message
					errorSeen = true
				}
			}
			if batch := attempt.FirstBatch(); len(batch) > 0 {
				if m.SampleInput == nil {
					m.SampleInput = batch
				}
				if m.SampleOutput == nil && attempt.Error == nil {
					m.SampleOutput = batch
				}
			}
		}

		// Plain overwrite in recency order; the value left after the loop wins.
		switch exec.Status {
		case schema.ExecutionError:
			m.LastStatus = schema.NodeStatusError
		case schema.ExecutionRunning:
			m.LastStatus = schema.NodeStatusRunning
		}
	}

	m.ExecutionCount = len(matching)
	m.AvgDurationMs = mean(durations)
	m.FailureRate = float64(errorCount) / float64(len(matching))
	return m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
