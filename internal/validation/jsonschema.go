package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlens/pkg/schema"
)

const (
	workflowSchemaURL   = "https://flowlens.dev/schemas/workflow.json"
	executionsSchemaURL = "https://flowlens.dev/schemas/executions.json"
)

// workflowSchemaJSON describes an exported n8n workflow. Only the parts the
// layout engine reads are constrained; everything else passes through.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowlens.dev/schemas/workflow.json",
  "type": "object",
  "required": ["nodes"],
  "properties": {
    "id": { "type": ["string", "number"] },
    "name": { "type": "string" },
    "active": { "type": "boolean" },
    "nodes": {
      "type": "array",
      "items": { "$ref": "#/$defs/node" }
    },
    "connections": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {
          "type": "array",
          "items": {
            "type": ["array", "null"],
            "items": { "$ref": "#/$defs/connection" }
          }
        }
      }
    },
    "settings": { "type": "object" }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["name", "type"],
      "properties": {
        "id": { "type": "string" },
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "typeVersion": { "type": "number" },
        "position": {
          "type": "array",
          "items": { "type": "number" }
        },
        "parameters": { "type": "object" },
        "credentials": { "type": "object" },
        "disabled": { "type": "boolean" }
      }
    },
    "connection": {
      "type": "object",
      "required": ["node"],
      "properties": {
        "node": { "type": "string", "minLength": 1 },
        "type": { "type": "string" },
        "index": { "type": "integer", "minimum": 0 }
      }
    }
  }
}`

// executionsSchemaJSON describes a list of executions.
const executionsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowlens.dev/schemas/executions.json",
  "type": "array",
  "items": { "$ref": "#/$defs/execution" },
  "$defs": {
    "execution": {
      "type": "object",
      "properties": {
        "id": { "type": ["string", "number"] },
        "status": { "type": "string" },
        "mode": { "type": "string" },
        "environment": { "type": "string" },
        "startedAt": { "type": "string", "format": "date-time" },
        "stoppedAt": { "type": ["string", "null"] },
        "runData": { "$ref": "#/$defs/runData" },
        "data": { "type": "object" }
      }
    },
    "runData": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": { "$ref": "#/$defs/attempt" }
      }
    },
    "attempt": {
      "type": "object",
      "properties": {
        "executionTime": { "type": "number", "minimum": 0 },
        "executionTimeMs": { "type": "number", "minimum": 0 },
        "startTime": { "type": "number" },
        "error": { "type": ["object", "null"] },
        "data": { "type": "object" }
      }
    }
  }
}`

// SchemaValidator checks decoded documents against the embedded schemas.
// It is safe for concurrent use.
type SchemaValidator struct {
	workflow   *jsonschema.Schema
	executions *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded workflow and executions schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	resources := map[string]string{
		workflowSchemaURL:   workflowSchemaJSON,
		executionsSchemaURL: executionsSchemaJSON,
	}
	for url, src := range resources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}

	wf, err := c.Compile(workflowSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}
	ex, err := c.Compile(executionsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile executions schema: %w", err)
	}
	return &SchemaValidator{workflow: wf, executions: ex}, nil
}

// Workflow validates a generic workflow document and records violations in result.
func (v *SchemaValidator) Workflow(doc any, result *schema.ValidationResult) {
	validateInto(v.workflow, doc, result)
}

// Executions validates a generic executions array and records violations in result.
func (v *SchemaValidator) Executions(doc any, result *schema.ValidationResult) {
	validateInto(v.executions, doc, result)
}

func validateInto(s *jsonschema.Schema, doc any, result *schema.ValidationResult) {
	value, err := toJSONValue(doc)
	if err != nil {
		result.AddError("/", "document is not JSON compatible: "+err.Error())
		return
	}
	err = s.Validate(value)
	if err == nil {
		return
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		result.AddError("/", err.Error())
		return
	}
	for _, v := range collectViolations(verr) {
		result.AddError(v.path, v.message)
	}
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

type violation struct {
	path    string
	message string
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []violation{{path: loc, message: verr.Error()}}
	}

	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
