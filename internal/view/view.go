// Package view assembles the positioned graph and node metrics for one
// workflow from stored data, memoizing results by input hash.
package view

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rendis/flowlens/internal/cache"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/layout"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/metrics"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// cacheVersion changes whenever the cached Graph encoding changes.
const cacheVersion = "graph/v1"

// Graph is the computed view of a workflow.
type Graph struct {
	WorkflowID string                        `json:"workflowId"`
	Name       string                        `json:"name"`
	Layout     *schema.Layout                `json:"layout"`
	Metrics    map[string]schema.NodeMetrics `json:"metrics"`
	Summary    metrics.Summary               `json:"summary"`
	Filter     string                        `json:"filter,omitempty"`
	ComputedAt time.Time                     `json:"computedAt"`

	// Workflow is the definition the view was computed from.
	Workflow *schema.Workflow `json:"-"`
}

// Compute builds a Graph from a workflow and its executions without touching
// any store.
func Compute(wf *schema.Workflow, execs []schema.Execution, opts ...layout.Option) *Graph {
	m := metrics.Aggregate(wf.Nodes, execs)
	return &Graph{
		WorkflowID: wf.ID,
		Name:       wf.Name,
		Layout:     layout.Compute(wf.Nodes, wf.Connections, opts...),
		Metrics:    m,
		Summary:    metrics.Summarize(m, execs),
		ComputedAt: time.Now().UTC(),
		Workflow:   wf,
	}
}

// Options narrows the execution history a view is computed over.
type Options struct {
	Environment string
	Filter      string // "engine:expression", see expressions.Registry.Parse
	Limit       int    // newest N executions after filtering; 0 means all
}

// Source is the read side of the store the service needs.
type Source interface {
	store.WorkflowSource
	store.ExecutionSource
}

// Observer is told about every Graph call.
type Observer func(workflowID string, elapsed time.Duration, cached bool)

// Service computes views from stored workflows.
type Service struct {
	source     Source
	cache      cache.Cache
	filters    *expressions.Registry
	logger     *slog.Logger
	layoutOpts []layout.Option
	observer   Observer
}

// Option configures a Service.
type Option func(*Service)

// WithCache memoizes computed views.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLayoutOptions forwards options to layout.Compute.
func WithLayoutOptions(opts ...layout.Option) Option {
	return func(s *Service) { s.layoutOpts = append(s.layoutOpts, opts...) }
}

// WithObserver registers a callback invoked after every Graph call.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a Service reading from source.
func NewService(source Source, filters *expressions.Registry, opts ...Option) *Service {
	s := &Service{
		source:  source,
		cache:   cache.Nop{},
		filters: filters,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the view of a stored workflow. Cache failures are logged and
// fall through to a fresh computation.
func (s *Service) Graph(ctx context.Context, workflowID string, opts Options) (*Graph, error) {
	start := time.Now()
	ctx = logging.WithWorkflowID(ctx, workflowID)
	log := logging.LogWith(ctx, s.logger)

	wf, err := s.source.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	execs, err := s.executions(ctx, workflowID, opts)
	if err != nil {
		return nil, err
	}

	key, err := cache.Key(cacheVersion, wf, execs)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeCache, "build cache key").WithCause(err)
	}

	if g, ok := s.lookup(ctx, log, key); ok {
		g.Workflow = wf
		g.Filter = opts.Filter
		s.observe(workflowID, start, true)
		log.Debug("view served from cache", "executions", len(execs))
		return g, nil
	}

	g := Compute(wf, execs, s.layoutOpts...)
	g.Filter = opts.Filter
	s.store(ctx, log, key, g)
	s.observe(workflowID, start, false)

	log.Info("view computed",
		"nodes", len(g.Layout.Nodes),
		"edges", len(g.Layout.Edges),
		"executions", len(execs),
		"duration_ms", time.Since(start).Milliseconds())
	return g, nil
}

// executions fetches history newest first and applies the optional filter.
// The store applies Limit directly when no filter is set.
func (s *Service) executions(ctx context.Context, workflowID string, opts Options) ([]schema.Execution, error) {
	filter := store.ExecutionFilter{WorkflowID: workflowID, Environment: opts.Environment}
	if opts.Filter == "" {
		filter.Limit = opts.Limit
	}

	execs, err := s.source.ListExecutions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if opts.Filter == "" {
		return execs, nil
	}

	if s.filters == nil {
		return nil, schema.NewError(schema.ErrCodeExpression, "execution filters are not enabled")
	}
	f, err := s.filters.Parse(opts.Filter)
	if err != nil {
		return nil, err
	}
	execs, err = f.Apply(ctx, execs)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(execs) > opts.Limit {
		execs = execs[:opts.Limit]
	}
	return execs, nil
}

func (s *Service) lookup(ctx context.Context, log *slog.Logger, key string) (*Graph, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("view cache get failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	g := &Graph{}
	if err := json.Unmarshal(raw, g); err != nil {
		log.Warn("view cache entry unreadable", "error", err)
		return nil, false
	}
	return g, true
}

func (s *Service) store(ctx context.Context, log *slog.Logger, key string, g *Graph) {
	raw, err := json.Marshal(g)
	if err != nil {
		log.Warn("view encode failed", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		log.Warn("view cache set failed", "error", err)
	}
}

func (s *Service) observe(workflowID string, start time.Time, cached bool) {
	if s.observer != nil {
		s.observer(workflowID, time.Since(start), cached)
	}
}
