package expressions

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// executionVar is the name the execution document is bound to in CEL and Expr.
const executionVar = "execution"

// DefaultEngine is used when a filter string carries no engine prefix.
const DefaultEngine = "expr"

// Registry holds one instance of every engine, keyed by name.
type Registry struct {
	engines map[string]Engine
}

// NewRegistry builds the jq, expr and cel engines.
func NewRegistry() (*Registry, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	r := &Registry{engines: make(map[string]Engine, 3)}
	for _, e := range []Engine{NewGoJQEngine(), NewExprEngine(), celEngine} {
		r.engines[e.Name()] = e
	}
	return r, nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Names lists the registered engines in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filter is a predicate over executions bound to one engine.
type Filter struct {
	Engine     Engine
	Expression string
}

// Parse builds a Filter from "engine:expression". Without a known engine
// prefix the whole string is an expression for DefaultEngine.
func (r *Registry) Parse(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty filter")
	}

	name, expression := DefaultEngine, s
	if prefix, rest, ok := strings.Cut(s, ":"); ok {
		if _, known := r.engines[strings.TrimSpace(prefix)]; known {
			name, expression = strings.TrimSpace(prefix), strings.TrimSpace(rest)
		}
	}
	if expression == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", name)
	}
	return &Filter{Engine: r.engines[name], Expression: expression}, nil
}

// String renders the filter back to "engine:expression".
func (f *Filter) String() string {
	if f == nil || f.Engine == nil {
		return ""
	}
	return f.Engine.Name() + ":" + f.Expression
}

// Apply keeps the executions whose predicate result is truthy. null and
// false reject; any other value keeps the execution. Order is preserved.
func (f *Filter) Apply(ctx context.Context, execs []schema.Execution) ([]schema.Execution, error) {
	if f == nil || f.Engine == nil {
		return execs, nil
	}

	out := make([]schema.Execution, 0, len(execs))
	for i := range execs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := Document(execs[i])
		if err != nil {
			return nil, err
		}

		data := doc
		if f.Engine.Name() != "jq" {
			data = map[string]any{executionVar: doc}
		}

		v, err := f.Engine.Evaluate(ctx, f.Expression, data)
		if err != nil {
			if e, ok := err.(*schema.Error); ok {
				e.Details = mergeDetails(e.Details, map[string]any{"execution_id": execs[i].ID})
			}
			return nil, err
		}
		if truthy(v) {
			out = append(out, execs[i])
		}
	}
	return out, nil
}

// Document converts an execution to the generic form expressions see. Besides
// the JSON fields it carries derived keys: nodes (names that ran, sorted),
// failedNodes (names whose last attempt errored, sorted) and durationMs.
func Document(e schema.Execution) (map[string]any, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeExpression, "encode execution").WithCause(err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeExpression, "decode execution").WithCause(err)
	}

	nodes := make([]any, 0, len(e.RunData))
	failed := make([]any, 0)
	names := make([]string, 0, len(e.RunData))
	for name := range e.RunData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attempts := e.RunData[name]
		if len(attempts) == 0 {
			continue
		}
		nodes = append(nodes, name)
		if attempts[len(attempts)-1].Error != nil {
			failed = append(failed, name)
		}
	}
	doc["nodes"] = nodes
	doc["failedNodes"] = failed

	if e.StoppedAt != nil && !e.StartedAt.IsZero() {
		doc["durationMs"] = float64(e.StoppedAt.Sub(e.StartedAt).Milliseconds())
	} else {
		doc["durationMs"] = nil
	}
	return doc, nil
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func mergeDetails(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
