// Package db runs declarative data-access tasks inside managed transactions.
// Failures never escape as raw errors: every task batch comes back as a
// Result whose status and message are drawn from the fixed taxonomy.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"pantry.app/internal/tabular"
)

// Client-facing message constants shared by every operation.
const (
	MsgSuccess = "Operation was successful."
	MsgNoData  = "The resource was found but had no data stored."
)

// Manager owns the process-wide connection pool and executes task batches.
// Lifecycle: created at startup, closed at shutdown.
type Manager struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to Postgres through the pgx stdlib driver and applies pool
// tuning. The search_path is carried in the DSN.
func Open(dsn string, log *zap.Logger) (*Manager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewManager(db, log), nil
}

// NewManager wraps an existing handle; used by tests with a mocked database.
func NewManager(db *sql.DB, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{db: db, log: log}
}

// Close releases the connection pool.
func (m *Manager) Close() error { return m.db.Close() }

// DB exposes the underlying handle for readiness probes.
func (m *Manager) DB() *sql.DB { return m.db }

// Ping verifies database connectivity.
func (m *Manager) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

// Result is the uniform envelope produced by every data-access call.
type Result struct {
	Content    []tabular.Table
	StatusCode int
	Message    string
}

// OK reports whether the call reached a non-error terminal state. 204 is a
// valid terminal state distinct from the failure space.
func (r Result) OK() bool { return r.StatusCode == 200 || r.StatusCode == 204 }

// First returns the first produced table, or a zero table.
func (r Result) First() tabular.Table {
	if len(r.Content) == 0 {
		return tabular.Table{}
	}
	return r.Content[0]
}

func success(content []tabular.Table, code int, msg string) Result {
	return Result{Content: content, StatusCode: code, Message: msg}
}

func failed(f Failure) Result {
	return Result{Content: nil, StatusCode: f.StatusCode, Message: f.ClientMessage}
}

// Touch runs the tasks sequentially inside one transaction. All tasks
// commit together or none persist: the first failure rolls back the whole
// batch and is classified into the taxonomy. Read-only batches skip the
// commit but share the same error handling. A single read-only task whose
// sole table is empty terminates with 204 rather than 200.
func (m *Manager) Touch(ctx context.Context, tasks []Task, successMsg string, readOnly bool) Result {
	if successMsg == "" {
		successMsg = MsgSuccess
	}
	if len(tasks) == 0 {
		return m.fail(fmt.Errorf("%w: no tasks to execute", ErrBadRequest), "Touch")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return m.fail(err, "BeginTx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	content := make([]tabular.Table, 0, len(tasks))
	for _, task := range tasks {
		table, err := task.Run(ctx, tx)
		if err != nil {
			return m.fail(err, task.Name)
		}
		content = append(content, table)
	}

	if readOnly {
		// Nothing to persist; release the transaction.
		_ = tx.Rollback()
		committed = true
	} else {
		if err := tx.Commit(); err != nil {
			return m.fail(err, "Commit")
		}
		committed = true
	}

	if readOnly && len(tasks) == 1 && content[0].Empty() {
		m.log.Warn("resource was found but had no rows stored")
		return success(content, 204, MsgNoData)
	}

	m.log.Debug("transaction completed", zap.String("message", successMsg))
	return success(content, 200, successMsg)
}

// TouchOne is the single-task form of Touch.
func (m *Manager) TouchOne(ctx context.Context, task Task, successMsg string, readOnly bool) Result {
	return m.Touch(ctx, []Task{task}, successMsg, readOnly)
}

// Catching wraps an arbitrary unit of work in a scoped transaction: the
// returned tables, the commit and the classification of any failure are all
// automatic, with rollback guaranteed on every error path.
func (m *Manager) Catching(ctx context.Context, successMsg string, fn func(ctx context.Context, tx *sql.Tx) ([]tabular.Table, error)) Result {
	if successMsg == "" {
		successMsg = MsgSuccess
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return m.fail(err, "BeginTx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	content, err := fn(ctx, tx)
	if err != nil {
		return m.fail(err, "Catching")
	}
	if err := tx.Commit(); err != nil {
		return m.fail(err, "Commit")
	}
	committed = true

	m.log.Debug("transaction completed", zap.String("message", successMsg))
	return success(content, 200, successMsg)
}

// fail classifies err, logs the internal description with the raw error
// text, and produces the client-safe envelope.
func (m *Manager) fail(err error, op string) Result {
	f := Classify(err)
	m.log.Error(f.LogMessage, zap.String("op", op), zap.Error(err))
	return failed(f)
}
