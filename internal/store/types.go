package store

import (
	"time"

	"github.com/rendis/flowlens/pkg/schema"
)

// WorkflowSummary is the list view of a stored workflow.
type WorkflowSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Active         bool      `json:"active"`
	NodeCount      int       `json:"nodeCount"`
	ExecutionCount int       `json:"executionCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// WorkflowFilter narrows ListWorkflows.
type WorkflowFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ExecutionFilter narrows ListExecutions. WorkflowID is required.
type ExecutionFilter struct {
	WorkflowID  string
	Environment string
	Status      schema.ExecutionStatus
	Since       *time.Time
	Limit       int
}
