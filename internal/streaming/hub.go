// Package streaming fans workflow change notifications out to live
// subscribers such as the API's server-sent event stream.
package streaming

import "context"

// Event types published by flowlens.
const (
	EventWorkflowSaved      = "workflow.saved"
	EventWorkflowDeleted    = "workflow.deleted"
	EventExecutionsAppended = "executions.appended"
	EventViewRefreshed      = "view.refreshed"
)

// Event tells subscribers that something about a workflow's view changed.
type Event struct {
	WorkflowID string `json:"workflowId"`
	Type       string `json:"type"`
	Payload    any    `json:"payload,omitempty"`
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	WorkflowID string   `json:"workflowId,omitempty"`
	Types      []string `json:"types,omitempty"`
}

// Publisher is the write side of a Hub.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Hub provides pub/sub for workflow events.
type Hub interface {
	Publisher
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
