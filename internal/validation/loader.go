package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowlens/pkg/schema"
)

// Format is the serialization of an input document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Loader decodes and validates workflow and execution documents.
type Loader struct {
	schemas *SchemaValidator
}

// NewLoader creates a Loader with the embedded schemas compiled.
func NewLoader() (*Loader, error) {
	sv, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{schemas: sv}, nil
}

var defaultLoader = sync.OnceValues(NewLoader)

// LoadWorkflow decodes and validates a workflow with the default loader.
func LoadWorkflow(data []byte, format Format) (*schema.Workflow, *schema.ValidationResult, error) {
	l, err := defaultLoader()
	if err != nil {
		return nil, nil, err
	}
	return l.Workflow(data, format)
}

// LoadExecutions decodes and validates an execution list with the default loader.
func LoadExecutions(data []byte, format Format) ([]schema.Execution, *schema.ValidationResult, error) {
	l, err := defaultLoader()
	if err != nil {
		return nil, nil, err
	}
	return l.Executions(data, format)
}

// Workflow decodes a workflow document. Structural violations are returned
// as a VALIDATION_ERROR; lint findings only produce warnings in the result.
func (l *Loader) Workflow(data []byte, format Format) (*schema.Workflow, *schema.ValidationResult, error) {
	result := &schema.ValidationResult{}

	doc, err := decode(data, format)
	if err != nil {
		return nil, result, err
	}
	if m, ok := doc.(map[string]any); ok {
		stringifyID(m)
	}

	l.schemas.Workflow(doc, result)
	if !result.Valid() {
		return nil, result, result.ToError()
	}

	wf := &schema.Workflow{}
	if err := remarshal(doc, wf); err != nil {
		return nil, result, err
	}
	lintWorkflow(wf, result)
	return wf, result, nil
}

// Executions decodes an execution list. Accepted shapes are a bare array, or
// an object wrapping the array under "executions" or "data" (n8n public API).
func (l *Loader) Executions(data []byte, format Format) ([]schema.Execution, *schema.ValidationResult, error) {
	result := &schema.ValidationResult{}

	doc, err := decode(data, format)
	if err != nil {
		return nil, result, err
	}
	doc = unwrapExecutions(doc)
	if list, ok := doc.([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				stringifyID(m)
			}
		}
	}

	l.schemas.Executions(doc, result)
	if !result.Valid() {
		return nil, result, result.ToError()
	}

	var execs []schema.Execution
	if err := remarshal(doc, &execs); err != nil {
		return nil, result, err
	}
	if execs == nil {
		execs = []schema.Execution{}
	}
	lintExecutions(execs, result)
	return execs, result, nil
}

func decode(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid YAML").WithCause(err)
		}
		doc = stringKeys(doc)
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON").WithCause(err)
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported format %q", format)
	}
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "document is empty")
	}
	return doc, nil
}

func unwrapExecutions(doc any) any {
	m, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	for _, key := range []string{"executions", "data"} {
		if list, ok := m[key].([]any); ok {
			return list
		}
	}
	return doc
}

// stringKeys rewrites YAML mappings with non-string keys, such as an unquoted
// node name "1:", into string-keyed maps so the document re-encodes as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}

// stringifyID turns numeric IDs, common in older n8n exports, into strings.
func stringifyID(m map[string]any) {
	if id, ok := m["id"]; ok && id != nil {
		if _, isString := id.(string); !isString {
			m["id"] = fmt.Sprint(id)
		}
	}
}

func remarshal(doc any, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "re-encode document").WithCause(err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "decode document").WithCause(err)
	}
	return nil
}
