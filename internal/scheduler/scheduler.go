package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/streaming"
	"github.com/rendis/flowlens/internal/view"
)

// WorkflowLister enumerates the workflows to refresh.
type WorkflowLister interface {
	ListWorkflows(ctx context.Context, filter store.WorkflowFilter) ([]*store.WorkflowSummary, error)
}

// Refresher recomputes the view for one workflow. Satisfied by *view.Service.
type Refresher interface {
	Graph(ctx context.Context, workflowID string, opts view.Options) (*view.Graph, error)
}

// Report describes one refresh pass.
type Report struct {
	StartedAt time.Time
	Refreshed int
	Failed    int
	Skipped   int
}

// Scheduler recomputes every stored workflow's view on a cron schedule so
// requests find a warm cache.
type Scheduler struct {
	lister    WorkflowLister
	refresher Refresher
	parser    cron.Parser
	schedule  cron.Schedule
	spec      string
	logger    *slog.Logger
	events    streaming.Publisher
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex

	lastMu sync.Mutex
	last   *Report

	inflightMu sync.Mutex
	inflight   map[string]struct{} // workflow IDs currently refreshing (dedup)
}

// NewScheduler creates a Scheduler for a standard five-field cron expression.
func NewScheduler(lister WorkflowLister, refresher Refresher, spec string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		lister:    lister,
		refresher: refresher,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		spec:      spec,
		logger:    logger,
		events:    streaming.Nop{},
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", spec, err)
	}
	s.schedule = schedule
	return s, nil
}

// SetPublisher announces every successful refresh on p. Call before Start.
func (s *Scheduler) SetPublisher(p streaming.Publisher) {
	s.events = p
}

// Start launches the background loop. The first pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.String("cron", s.spec))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every stored workflow and returns what happened.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	report := Report{StartedAt: s.now().UTC()}

	workflows, err := s.lister.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		s.logger.Error("failed to list workflows", slog.String("error", err.Error()))
		s.setLast(report)
		return report
	}

	for _, wf := range workflows {
		if ctx.Err() != nil {
			break
		}
		if !s.tryAcquire(wf.ID) {
			report.Skipped++
			continue
		}
		g, err := s.refresher.Graph(ctx, wf.ID, view.Options{})
		if err != nil {
			report.Failed++
			s.logger.Error("failed to refresh workflow view",
				slog.String("workflow_id", wf.ID),
				slog.String("error", err.Error()),
			)
		} else {
			report.Refreshed++
			s.publish(ctx, wf.ID, g)
		}
		s.release(wf.ID)
	}

	s.logger.Debug("refresh pass finished",
		slog.Int("refreshed", report.Refreshed),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
	)
	s.setLast(report)
	return report
}

func (s *Scheduler) publish(ctx context.Context, workflowID string, g *view.Graph) {
	err := s.events.Publish(ctx, streaming.Event{
		WorkflowID: workflowID,
		Type:       streaming.EventViewRefreshed,
		Payload:    map[string]any{"computedAt": g.ComputedAt, "summary": g.Summary},
	})
	if err != nil {
		s.logger.Debug("refresh event dropped", slog.String("workflow_id", workflowID), slog.String("error", err.Error()))
	}
}

// LastReport returns the most recent pass, or nil before the first one.
func (s *Scheduler) LastReport() *Report {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

func (s *Scheduler) setLast(r Report) {
	s.lastMu.Lock()
	s.last = &r
	s.lastMu.Unlock()
}

// tryAcquire returns true and marks the workflow as in-flight if it is not already refreshing.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// NextRun returns the first scheduled time after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
