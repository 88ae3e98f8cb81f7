package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowlens/pkg/schema"
)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/flowlens.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so QueryRow is used for all of them.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Workflows ---

// SaveWorkflow inserts or replaces a workflow. An empty ID is filled with a
// new UUID and written back to wf.
func (s *LibSQLStore) SaveWorkflow(ctx context.Context, wf *schema.Workflow) error {
	if wf == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	wf.CreatedAt = timeOr(wf.CreatedAt, now)
	wf.UpdatedAt = now

	def, err := json.Marshal(wf)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "marshal workflow").WithCause(err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, active, definition, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, active=excluded.active,
		 definition=excluded.definition, updated_at=excluded.updated_at`,
		wf.ID, wf.Name, wf.Active, string(def), wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return storeErr("save workflow", err)
	}
	return nil
}

// GetWorkflow returns the stored definition or a NOT_FOUND error.
func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*schema.Workflow, error) {
	var def string
	err := s.db.QueryRowContext(ctx, `SELECT definition FROM workflows WHERE id = ?`, id).Scan(&def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("workflow", id)
	}
	if err != nil {
		return nil, storeErr("get workflow", err)
	}

	wf := &schema.Workflow{}
	if err := json.Unmarshal([]byte(def), wf); err != nil {
		return nil, storeErr("decode workflow", err)
	}
	return wf, nil
}

// ListWorkflows returns summaries ordered by most recently updated.
func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*WorkflowSummary, error) {
	query := `SELECT w.id, w.name, w.active, w.definition, w.updated_at,
		(SELECT COUNT(*) FROM executions e WHERE e.workflow_id = w.id)
		FROM workflows w`
	if filter.ActiveOnly {
		query += " WHERE w.active = 1"
	}
	query += " ORDER BY w.updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("list workflows", err)
	}
	defer rows.Close()

	var out []*WorkflowSummary
	for rows.Next() {
		sum := &WorkflowSummary{}
		var def string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Active, &def, &sum.UpdatedAt, &sum.ExecutionCount); err != nil {
			return nil, storeErr("scan workflow", err)
		}
		var nodes struct {
			Nodes []json.RawMessage `json:"nodes"`
		}
		if json.Unmarshal([]byte(def), &nodes) == nil {
			sum.NodeCount = len(nodes.Nodes)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteWorkflow removes a workflow and, by cascade, its executions.
func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE workflow_id = ?`, id); err != nil {
		return storeErr("delete executions", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete workflow", err)
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Executions ---

// AppendExecutions upserts executions under workflowID in one transaction.
// An execution is identified by (workflow, environment, id), so the same n8n
// execution ID from another workflow or environment is a separate record.
// Executions without an ID get a new UUID.
func (s *LibSQLStore) AppendExecutions(ctx context.Context, workflowID string, execs []schema.Execution) (int, error) {
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO executions (id, workflow_id, status, mode, environment, started_at, stopped_at, run_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(workflow_id, environment, id) DO UPDATE SET status=excluded.status, mode=excluded.mode,
		 started_at=excluded.started_at, stopped_at=excluded.stopped_at, run_data=excluded.run_data`)
	if err != nil {
		return 0, storeErr("prepare append", err)
	}
	defer stmt.Close()

	for i := range execs {
		e := &execs[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		runData, err := json.Marshal(e.RunData)
		if err != nil {
			return 0, storeErr("marshal run data", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, workflowID, string(e.Status), e.Mode, e.Environment,
			e.StartedAt.UTC(), nullTime(e.StoppedAt), string(runData)); err != nil {
			return 0, storeErr("insert execution", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit append", err)
	}
	return len(execs), nil
}

// ListExecutions returns executions newest first.
func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]schema.Execution, error) {
	if filter.WorkflowID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow id is required")
	}

	where := []string{"workflow_id = ?"}
	args := []any{filter.WorkflowID}
	if filter.Environment != "" {
		where = append(where, "environment = ?")
		args = append(args, filter.Environment)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, workflow_id, status, mode, environment, started_at, stopped_at, run_data FROM executions WHERE " +
		strings.Join(where, " AND ") + " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list executions", err)
	}
	defer rows.Close()

	out := make([]schema.Execution, 0)
	for rows.Next() {
		var (
			e         schema.Execution
			status    string
			stoppedAt sql.NullTime
			runData   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.WorkflowID, &status, &e.Mode, &e.Environment, &e.StartedAt, &stoppedAt, &runData); err != nil {
			return nil, storeErr("scan execution", err)
		}
		e.Status = schema.ExecutionStatus(status)
		if stoppedAt.Valid {
			t := stoppedAt.Time
			e.StoppedAt = &t
		}
		// Unreadable run data is treated as no activity rather than failing the listing.
		if runData.Valid && runData.String != "" {
			_ = json.Unmarshal([]byte(runData.String), &e.RunData)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Helpers ---

func notFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeErr(op string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %v", op, err).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(resource, id)
	}
	return nil
}

func timeOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ Store = (*LibSQLStore)(nil)
