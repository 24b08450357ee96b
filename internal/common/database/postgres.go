// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"conversation-orchestrator/internal/common/config"

	_ "github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an existing handle, e.g. a sqlmock connection.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *PostgresClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}

func (c *PostgresClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

func (c *PostgresClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}

// WithTx runs fn inside a transaction, rolling back on error.
func (c *PostgresClient) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Migrate creates the escalation and document tables. The chunk table needs
// the pgvector extension; embeddingDims fixes the vector column width.
func (c *PostgresClient) Migrate(ctx context.Context, embeddingDims int) error {
	for i, stmt := range SchemaStatements(embeddingDims) {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}

// SchemaStatements returns the DDL applied by Migrate, in order.
func SchemaStatements(embeddingDims int) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS escalations (
			id                     TEXT PRIMARY KEY,
			user_id                TEXT NOT NULL,
			session_id             TEXT NOT NULL,
			query                  TEXT NOT NULL,
			proposed_response      TEXT NOT NULL DEFAULT '',
			reason                 TEXT NOT NULL DEFAULT '',
			interim_response       TEXT NOT NULL DEFAULT '',
			status                 TEXT NOT NULL DEFAULT 'pending',
			estimated_wait_minutes INTEGER NOT NULL DEFAULT 0,
			resolution             TEXT NOT NULL DEFAULT '',
			created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at            TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_status_created ON escalations (status, created_at DESC)`,
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			document_type TEXT NOT NULL,
			category      TEXT NOT NULL DEFAULT '',
			source_path   TEXT NOT NULL DEFAULT '',
			chunks        INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			title       TEXT NOT NULL,
			content     TEXT NOT NULL,
			embedding   vector(%d)
		)`, embeddingDims),
	}
}
