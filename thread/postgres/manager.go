//
// Tencent is pleased to support the open source community by making fast-graph available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// fast-graph is licensed under the Apache License Version 2.0.
//
//

// Package postgres provides the PostgreSQL thread manager implementation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register the pgx stdlib driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/google/uuid"

	"github.com/yyquiet/fast-graph/errs"
	"github.com/yyquiet/fast-graph/thread"
)

const (
	defaultHost     = "localhost"
	defaultPort     = 5432
	defaultDatabase = "fastgraph"
	defaultSSLMode  = "disable"

	tableNameThreads = "thread"
)

// SQL templates for table creation. {{TABLE_NAME}} is substituted at setup.
const (
	sqlCreateThreadsTable = `
		CREATE TABLE IF NOT EXISTS {{TABLE_NAME}} (
			thread_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'idle'
		)`

	sqlCreateCreatedAtIndex = `
		CREATE INDEX IF NOT EXISTS {{TABLE_NAME}}_created_at_idx
		ON {{TABLE_NAME}} USING btree (created_at DESC)`

	sqlCreateMetadataIndex = `
		CREATE INDEX IF NOT EXISTS {{TABLE_NAME}}_metadata_idx
		ON {{TABLE_NAME}} USING gin (metadata jsonb_path_ops)`

	sqlCreateStatusIndex = `
		CREATE INDEX IF NOT EXISTS {{TABLE_NAME}}_status_idx
		ON {{TABLE_NAME}} USING btree (status, created_at DESC)`
)

var _ thread.Manager = (*Manager)(nil)

// Manager stores threads in PostgreSQL. Conflict handling for create and
// lock acquisition are single conditional statements, so they stay atomic
// across processes.
type Manager struct {
	opts managerOpts
	db   *sql.DB
}

type managerOpts struct {
	dsn      string
	host     string
	port     int
	user     string
	password string
	database string
	sslMode  string
	db       *sql.DB
}

// ManagerOpt configures the Manager.
type ManagerOpt func(*managerOpts)

// WithDSN sets the full connection string, overriding the host options.
func WithDSN(dsn string) ManagerOpt {
	return func(o *managerOpts) { o.dsn = dsn }
}

// WithHost sets the database host.
func WithHost(host string) ManagerOpt {
	return func(o *managerOpts) { o.host = host }
}

// WithPort sets the database port.
func WithPort(port int) ManagerOpt {
	return func(o *managerOpts) { o.port = port }
}

// WithUser sets the database user.
func WithUser(user string) ManagerOpt {
	return func(o *managerOpts) { o.user = user }
}

// WithPassword sets the database password.
func WithPassword(password string) ManagerOpt {
	return func(o *managerOpts) { o.password = password }
}

// WithDatabase sets the database name.
func WithDatabase(database string) ManagerOpt {
	return func(o *managerOpts) { o.database = database }
}

// WithSSLMode sets the sslmode connection parameter.
func WithSSLMode(sslMode string) ManagerOpt {
	return func(o *managerOpts) { o.sslMode = sslMode }
}

// WithDB provides a pre-built database handle, bypassing connection setup.
func WithDB(db *sql.DB) ManagerOpt {
	return func(o *managerOpts) { o.db = db }
}

// NewManager creates a PostgreSQL thread manager.
func NewManager(options ...ManagerOpt) (*Manager, error) {
	opts := managerOpts{
		host:     defaultHost,
		port:     defaultPort,
		database: defaultDatabase,
		sslMode:  defaultSSLMode,
	}
	for _, option := range options {
		option(&opts)
	}

	db := opts.db
	if db == nil {
		var err error
		db, err = sql.Open("pgx", buildConnString(opts))
		if err != nil {
			return nil, fmt.Errorf("open postgres connection: %w", err)
		}
	}
	return &Manager{opts: opts, db: db}, nil
}

func buildConnString(opts managerOpts) string {
	if opts.dsn != "" {
		return opts.dsn
	}
	parts := []string{
		fmt.Sprintf("host=%s", opts.host),
		fmt.Sprintf("port=%d", opts.port),
		fmt.Sprintf("dbname=%s", opts.database),
		fmt.Sprintf("sslmode=%s", opts.sslMode),
	}
	if opts.user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", opts.user))
	}
	if opts.password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", opts.password))
	}
	return strings.Join(parts, " ")
}

func withTable(query string) string {
	return strings.ReplaceAll(query, "{{TABLE_NAME}}", tableNameThreads)
}

// Setup creates the thread table and its indexes. Idempotent.
func (m *Manager) Setup(ctx context.Context) error {
	statements := []string{
		sqlCreateThreadsTable,
		sqlCreateCreatedAtIndex,
		sqlCreateMetadataIndex,
		sqlCreateStatusIndex,
	}
	for _, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, withTable(stmt)); err != nil {
			return fmt.Errorf("setup thread table: %w", err)
		}
	}
	return nil
}

// Create inserts a thread with INSERT ... ON CONFLICT DO NOTHING, then
// fetches the existing row when the insert was skipped. The insert-ignore
// plus fetch keeps the do_nothing path race-free under concurrent callers.
func (m *Manager) Create(ctx context.Context, threadID string, metadata map[string]any, ifExists thread.IfExists) (*thread.Thread, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal thread metadata: %w", err)
	}

	now := time.Now()
	query := withTable(`
		INSERT INTO {{TABLE_NAME}} (thread_id, created_at, updated_at, metadata, status)
		VALUES ($1, $2, $2, $3, $4)
		ON CONFLICT (thread_id) DO NOTHING`)
	result, err := m.db.ExecContext(ctx, query, threadID, now, metadataJSON, string(thread.StatusIdle))
	if err != nil {
		return nil, fmt.Errorf("insert thread %s: %w", threadID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert thread %s: %w", threadID, err)
	}
	if rows == 1 {
		return &thread.Thread{
			ThreadID:  threadID,
			CreatedAt: now,
			UpdatedAt: now,
			Metadata:  metadata,
			Status:    thread.StatusIdle,
		}, nil
	}

	// Insert skipped: the thread already exists.
	if ifExists != thread.IfExistsDoNothing {
		return nil, errs.Existsf("thread %s already exists", threadID)
	}
	return m.Get(ctx, threadID)
}

// Get returns a thread by id.
func (m *Manager) Get(ctx context.Context, threadID string) (*thread.Thread, error) {
	query := withTable(`
		SELECT thread_id, created_at, updated_at, metadata, status
		FROM {{TABLE_NAME}} WHERE thread_id = $1`)
	row := m.db.QueryRowContext(ctx, query, threadID)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFoundf("thread %s not found", threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return t, nil
}

// Search filters threads by ids, metadata containment and status, newest
// first, with offset+limit pagination.
func (m *Manager) Search(ctx context.Context, filter *thread.SearchFilter) ([]*thread.Thread, error) {
	if filter == nil {
		filter = &thread.SearchFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	var (
		conditions []string
		args       []any
	)
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("thread_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(filter.Metadata) > 0 {
		metadataJSON, err := json.Marshal(filter.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata filter: %w", err)
		}
		args = append(args, string(metadataJSON))
		conditions = append(conditions, fmt.Sprintf("metadata @> $%d::jsonb", len(args)))
	}

	query := withTable(`
		SELECT thread_id, created_at, updated_at, metadata, status
		FROM {{TABLE_NAME}}`)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}
	defer rows.Close()

	var threads []*thread.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("search threads: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}
	return threads, nil
}

// Update merges metadata with the || operator, replaces status and bumps
// updated_at, all in one statement.
func (m *Manager) Update(ctx context.Context, threadID string, update *thread.Update) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now()}

	if update != nil && update.Status != "" {
		args = append(args, string(update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update != nil && len(update.Metadata) > 0 {
		metadataJSON, err := json.Marshal(update.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata update: %w", err)
		}
		args = append(args, string(metadataJSON))
		sets = append(sets, fmt.Sprintf("metadata = metadata || $%d::jsonb", len(args)))
	}

	args = append(args, threadID)
	query := withTable(fmt.Sprintf(
		"UPDATE {{TABLE_NAME}} SET %s WHERE thread_id = $%d",
		strings.Join(sets, ", "), len(args)))

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update thread %s: %w", threadID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update thread %s: %w", threadID, err)
	}
	if rows == 0 {
		return errs.NotFoundf("thread %s not found", threadID)
	}
	return nil
}

// Delete removes a thread.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	query := withTable(`DELETE FROM {{TABLE_NAME}} WHERE thread_id = $1`)
	result, err := m.db.ExecContext(ctx, query, threadID)
	if err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	if rows == 0 {
		return errs.NotFoundf("thread %s not found", threadID)
	}
	return nil
}

// AcquireLock runs a single conditional update so that under concurrent
// callers racing on the same thread id exactly one succeeds.
func (m *Manager) AcquireLock(ctx context.Context, threadID string) (bool, error) {
	query := withTable(`
		UPDATE {{TABLE_NAME}} SET status = $1, updated_at = $2
		WHERE thread_id = $3 AND status <> $1`)
	result, err := m.db.ExecContext(ctx, query, string(thread.StatusBusy), time.Now(), threadID)
	if err != nil {
		return false, fmt.Errorf("acquire lock on thread %s: %w", threadID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock on thread %s: %w", threadID, err)
	}
	if rows == 1 {
		return true, nil
	}

	// No row updated: either the thread is busy or it does not exist.
	var exists bool
	existsQuery := withTable(`SELECT EXISTS (SELECT 1 FROM {{TABLE_NAME}} WHERE thread_id = $1)`)
	if err := m.db.QueryRowContext(ctx, existsQuery, threadID).Scan(&exists); err != nil {
		return false, fmt.Errorf("acquire lock on thread %s: %w", threadID, err)
	}
	if !exists {
		return false, errs.NotFoundf("thread %s not found", threadID)
	}
	return false, nil
}

// Close releases the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*thread.Thread, error) {
	var (
		t            thread.Thread
		metadataJSON []byte
		status       string
	)
	if err := row.Scan(&t.ThreadID, &t.CreatedAt, &t.UpdatedAt, &metadataJSON, &status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal thread metadata: %w", err)
	}
	t.Status = thread.Status(status)
	return &t, nil
}
