package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/streaming"
	"github.com/rendis/flowlens/internal/validation"
	"github.com/rendis/flowlens/internal/view"
	"github.com/rendis/flowlens/pkg/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkflowFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}
	list, err := s.store.ListWorkflows(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if list == nil {
		list = []*store.WorkflowSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wf, result, err := s.loader.Workflow(body, requestFormat(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.store.SaveWorkflow(r.Context(), wf); err != nil {
		writeErr(w, err)
		return
	}

	logging.LogWith(logging.WithWorkflowID(r.Context(), wf.ID), s.logger).
		Info("workflow saved", "nodes", len(wf.Nodes), "warnings", len(result.Warnings))
	s.publish(r, wf.ID, streaming.EventWorkflowSaved, map[string]any{"nodes": len(wf.Nodes)})
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       wf.ID,
		"warnings": warningsOf(result),
	})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteWorkflow(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	s.publish(r, id, streaming.EventWorkflowDeleted, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAppendExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	execs, result, err := s.loader.Executions(body, requestFormat(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	n, err := s.store.AppendExecutions(r.Context(), id, execs)
	if err != nil {
		writeErr(w, err)
		return
	}

	logging.LogWith(logging.WithWorkflowID(r.Context(), id), s.logger).
		Info("executions imported", "count", n)
	s.publish(r, id, streaming.EventExecutionsAppended, map[string]any{"count": n})
	writeJSON(w, http.StatusOK, map[string]any{
		"appended": n,
		"warnings": warningsOf(result),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graph(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleNodeMetrics(w http.ResponseWriter, r *http.Request) {
	g, ok := s.graph(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflowId": g.WorkflowID,
		"metrics":    g.Metrics,
		"summary":    g.Summary,
	})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, err)
		return
	}
	g, ok := s.graph(w, r)
	if !ok {
		return
	}

	out, err := diagram.Render(r.Context(), diagram.Build(g.Workflow, g.Layout, g.Metrics), format)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// graph resolves the view for the {id} route param using the query string
// options. It writes the error response itself and reports false on failure.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) (*view.Graph, bool) {
	opts := view.Options{
		Environment: r.URL.Query().Get("environment"),
		Filter:      r.URL.Query().Get("filter"),
		Limit:       queryInt(r, "limit", 0),
	}
	g, err := s.views.Graph(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return g, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// requestFormat picks the document decoder from the Content-Type header.
func requestFormat(r *http.Request) validation.Format {
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return validation.FormatYAML
	}
	return validation.FormatJSON
}

func warningsOf(r *schema.ValidationResult) []schema.ValidationIssue {
	if r == nil || r.Warnings == nil {
		return []schema.ValidationIssue{}
	}
	return r.Warnings
}
