package view

import (
	"context"
	"sort"

	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// StaticSource serves one workflow and its executions from memory, for
// views over documents read from disk.
type StaticSource struct {
	workflow *schema.Workflow
	execs    []schema.Execution
}

// NewStaticSource copies execs and orders them newest first, matching the
// order the store returns.
func NewStaticSource(wf *schema.Workflow, execs []schema.Execution) *StaticSource {
	sorted := make([]schema.Execution, len(execs))
	copy(sorted, execs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})
	return &StaticSource{workflow: wf, execs: sorted}
}

// GetWorkflow implements store.WorkflowSource.
func (s *StaticSource) GetWorkflow(_ context.Context, id string) (*schema.Workflow, error) {
	if s.workflow == nil || s.workflow.ID != id {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", id)
	}
	return s.workflow, nil
}

// ListExecutions implements store.ExecutionSource.
func (s *StaticSource) ListExecutions(_ context.Context, filter store.ExecutionFilter) ([]schema.Execution, error) {
	out := make([]schema.Execution, 0, len(s.execs))
	for _, e := range s.execs {
		if filter.Environment != "" && e.Environment != filter.Environment {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Since != nil && e.StartedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, e)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
