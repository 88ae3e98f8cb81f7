package store

import (
	"context"

	"github.com/rendis/flowlens/pkg/schema"
)

// Store holds workflow definitions and their execution history. It is the
// fetch side feeding the layout and metrics engines.
// All implementations must be safe for concurrent use.
type Store interface {
	WorkflowSource
	ExecutionSource

	SaveWorkflow(ctx context.Context, wf *schema.Workflow) error
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*WorkflowSummary, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// AppendExecutions inserts or replaces executions for a workflow.
	AppendExecutions(ctx context.Context, workflowID string, execs []schema.Execution) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// WorkflowSource returns a workflow definition by ID.
type WorkflowSource interface {
	GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error)
}

// ExecutionSource returns execution history for a workflow.
type ExecutionSource interface {
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]schema.Execution, error)
}
