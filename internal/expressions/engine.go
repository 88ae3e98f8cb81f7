package expressions

import "context"

// Engine evaluates a predicate or projection over an execution document.
// Three implementations: CEL, GoJQ, Expr.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
