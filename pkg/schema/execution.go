package schema

import (
	"encoding/json"
	"time"
)

// ExecutionStatus is the overall status of one workflow run.
type ExecutionStatus string

const (
	ExecutionSuccess  ExecutionStatus = "success"
	ExecutionError    ExecutionStatus = "error"
	ExecutionRunning  ExecutionStatus = "running"
	ExecutionWaiting  ExecutionStatus = "waiting"
	ExecutionCanceled ExecutionStatus = "canceled"
	ExecutionCrashed  ExecutionStatus = "crashed"
	ExecutionNew      ExecutionStatus = "new"
)

// Execution is one historical run of a workflow.
type Execution struct {
	ID          string                  `json:"id"`
	WorkflowID  string                  `json:"workflowId,omitempty"`
	Status      ExecutionStatus         `json:"status"`
	Mode        string                  `json:"mode,omitempty"`
	Environment string                  `json:"environment,omitempty"`
	StartedAt   time.Time               `json:"startedAt"`
	StoppedAt   *time.Time              `json:"stoppedAt,omitempty"`
	RunData     map[string][]RunAttempt `json:"runData,omitempty"` // node name → attempts
}

// RunAttempt is one invocation of a node inside an execution.
type RunAttempt struct {
	ExecutionTimeMs *float64  `json:"executionTimeMs,omitempty"`
	StartTime       int64     `json:"startTime,omitempty"`
	Error           *RunError `json:"error,omitempty"`
	Data            RunOutput `json:"data"`
}

// RunError carries the failure reported for an attempt.
type RunError struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	NodeType    string `json:"nodeType,omitempty"`
}

// RunOutput holds the item batches emitted per output index.
type RunOutput struct {
	Main [][]Item `json:"main,omitempty"`
}

// Item is an opaque data item passed between nodes.
type Item = map[string]any

// FirstBatch returns the first main output batch, or nil.
func (a RunAttempt) FirstBatch() []Item {
	if len(a.Data.Main) == 0 {
		return nil
	}
	return a.Data.Main[0]
}

// UnmarshalJSON accepts both the flattened shape and the raw n8n export shape,
// where run data lives under data.resultData.runData.
func (e *Execution) UnmarshalJSON(b []byte) error {
	type plain Execution
	var aux struct {
		plain
		Data *struct {
			ResultData struct {
				RunData map[string][]RunAttempt `json:"runData"`
			} `json:"resultData"`
		} `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*e = Execution(aux.plain)
	if len(e.RunData) == 0 && aux.Data != nil {
		e.RunData = aux.Data.ResultData.RunData
	}
	return nil
}

// UnmarshalJSON accepts n8n's "executionTime" key as an alias of executionTimeMs.
func (a *RunAttempt) UnmarshalJSON(b []byte) error {
	type plain RunAttempt
	var aux struct {
		plain
		ExecutionTime *float64 `json:"executionTime,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*a = RunAttempt(aux.plain)
	if a.ExecutionTimeMs == nil {
		a.ExecutionTimeMs = aux.ExecutionTime
	}
	return nil
}
