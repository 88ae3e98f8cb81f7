package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/cache"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/internal/view"
)

const workflowDoc = `{
  "id": "wf-1",
  "name": "orders",
  "active": true,
  "nodes": [
    {"id": "t", "name": "Webhook", "type": "n8n-nodes-base.webhook"},
    {"id": "s", "name": "Save", "type": "n8n-nodes-base.postgres"}
  ],
  "connections": {
    "Webhook": {"main": [[{"node": "Save", "type": "main", "index": 0}]]}
  }
}`

const executionsDoc = `[
  {"id": "e1", "status": "success", "environment": "prod", "startedAt": "2025-06-01T01:00:00Z",
   "runData": {"Webhook": [{"executionTime": 10}], "Save": [{"executionTime": 40}]}},
  {"id": "e2", "status": "error", "environment": "staging", "startedAt": "2025-06-01T02:00:00Z",
   "runData": {"Webhook": [{"executionTime": 20}], "Save": [{"executionTime": 60, "error": {"message": "deadlock"}}]}}
]`

type testEnv struct {
	server *httptest.Server
	store  store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	filters, err := expressions.NewRegistry()
	require.NoError(t, err)

	m := NewMetrics()
	views := view.NewService(st, filters,
		view.WithCache(cache.NewMemory(0)),
		view.WithObserver(m.ObserveView),
	)
	srv, err := NewServer(Deps{Store: st, Views: views, Metrics: m})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/workflows", "application/json", workflowDoc)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = e.do(t, http.MethodPost, "/workflows/wf-1/executions", "application/json", executionsDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func decodeMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeMap(t, body)["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}

func TestSaveAndGetWorkflow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/workflows", "application/json", workflowDoc)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decodeMap(t, body)
	assert.Equal(t, "wf-1", created["id"])
	assert.Empty(t, created["warnings"])

	resp, body = env.do(t, http.MethodGet, "/workflows/wf-1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeMap(t, body)
	assert.Equal(t, "orders", got["name"])
	assert.Len(t, got["nodes"], 2)
}

func TestSaveWorkflow_YAML(t *testing.T) {
	env := newTestEnv(t)
	doc := `
id: wf-y
name: yaml flow
nodes:
  - name: Cron
    type: n8n-nodes-base.cron
  - name: Ghost
    type: n8n-nodes-base.set
connections:
  Cron:
    main:
      - - node: Missing
          type: main
          index: 0
`
	resp, body := env.do(t, http.MethodPost, "/workflows", "application/yaml", doc)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decodeMap(t, body)
	assert.Equal(t, "wf-y", created["id"])
	assert.NotEmpty(t, created["warnings"], "dangling target is reported as a warning")
}

func TestSaveWorkflow_Invalid(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/workflows", "application/json", `{"name": "no nodes"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeMap(t, body)["code"])

	resp, _ = env.do(t, http.MethodPost, "/workflows", "application/json", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListWorkflows(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, body := env.do(t, http.MethodGet, "/workflows?active=true", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []store.WorkflowSummary
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "wf-1", list[0].ID)
	assert.Equal(t, 2, list[0].NodeCount)
	assert.Equal(t, 2, list[0].ExecutionCount)
}

func TestListWorkflows_Empty(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/workflows", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestGetWorkflow_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodGet, "/workflows/missing", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeMap(t, body)["code"])
}

func TestAppendExecutions_UnknownWorkflow(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/workflows/missing/executions", "application/json", executionsDoc)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAppendExecutions_Response(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/workflows", "application/json", workflowDoc)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodPost, "/workflows/wf-1/executions", "application/json", executionsDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 2, decodeMap(t, body)["appended"])
}

func TestGraph(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, body := env.do(t, http.MethodGet, "/workflows/wf-1/graph", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var g view.Graph
	require.NoError(t, json.Unmarshal(body, &g))
	assert.Equal(t, "wf-1", g.WorkflowID)
	require.Len(t, g.Layout.Nodes, 2)
	require.Len(t, g.Layout.Edges, 1)
	assert.Equal(t, 2, g.Metrics["s"].ExecutionCount)
	assert.InDelta(t, 0.5, g.Metrics["s"].FailureRate, 1e-9)
	assert.Equal(t, "deadlock", g.Metrics["s"].LastError)
}

func TestGraph_EnvironmentAndFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, body := env.do(t, http.MethodGet, "/workflows/wf-1/graph?environment=prod", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var g view.Graph
	require.NoError(t, json.Unmarshal(body, &g))
	assert.Equal(t, 1, g.Metrics["s"].ExecutionCount)
	assert.Zero(t, g.Metrics["s"].FailureRate)

	q := "/workflows/wf-1/graph?filter=" + "expr:execution.status%20%3D%3D%20%22error%22"
	resp, body = env.do(t, http.MethodGet, q, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	g = view.Graph{}
	require.NoError(t, json.Unmarshal(body, &g))
	assert.Equal(t, 1, g.Metrics["s"].ExecutionCount)
	assert.InDelta(t, 1.0, g.Metrics["s"].FailureRate, 1e-9)
}

func TestGraph_BadFilter(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, _ := env.do(t, http.MethodGet, "/workflows/wf-1/graph?filter=expr:%28%28%28", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNodeMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, body := env.do(t, http.MethodGet, "/workflows/wf-1/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decodeMap(t, body)
	assert.Equal(t, "wf-1", out["workflowId"])
	assert.Contains(t, out["metrics"], "t")
	assert.Contains(t, out["metrics"], "s")
	assert.NotNil(t, out["summary"])
}

func TestDiagram(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, body := env.do(t, http.MethodGet, "/workflows/wf-1/diagram", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "mermaid")
	assert.Contains(t, string(body), "graph LR")

	resp, body = env.do(t, http.MethodGet, "/workflows/wf-1/diagram?format=ascii", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Webhook")
	assert.Contains(t, string(body), "Save")

	resp, _ = env.do(t, http.MethodGet, "/workflows/wf-1/diagram?format=svg", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/workflows/missing/diagram", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, _ := env.do(t, http.MethodDelete, "/workflows/wf-1", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/workflows/wf-1", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/workflows/wf-1", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodOptions, "/workflows", "", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resp, _ := env.do(t, http.MethodGet, "/workflows/wf-1/graph", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "flowlens_http_requests_total")
	assert.Contains(t, text, `route="/workflows/{id}/graph"`)
	assert.Contains(t, text, "flowlens_view_compute_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor("VALIDATION_ERROR"))
	assert.Equal(t, http.StatusBadRequest, statusFor("EXPRESSION_ERROR"))
	assert.Equal(t, http.StatusNotFound, statusFor("NOT_FOUND"))
	assert.Equal(t, http.StatusConflict, statusFor("CONFLICT"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("STORE_ERROR"))
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&neg=-1", nil)
	assert.Equal(t, 5, queryInt(r, "limit", 10))
	assert.Equal(t, 10, queryInt(r, "bad", 10))
	assert.Equal(t, 10, queryInt(r, "neg", 10))
	assert.Equal(t, 10, queryInt(r, "missing", 10))
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/workflows/wf-1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 8)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	post, body := env.do(t, http.MethodPost, "/workflows/wf-1/executions", "application/json", executionsDoc)
	require.Equal(t, http.StatusOK, post.StatusCode, string(body))

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
	assert.Equal(t, "event: executions.appended", next())
	data := next()
	assert.Contains(t, data, `"workflowId":"wf-1"`)
	assert.Contains(t, data, `"count":2`)
}

func TestEventsStream_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/workflows/missing/events", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
