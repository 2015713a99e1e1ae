package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"screenlist/pkg/domain"

	_ "modernc.org/sqlite"
)

// SQLiteClient keeps a local queryable copy of the record cache
type SQLiteClient struct {
	db   *sql.DB
	path string
}

// NewSQLiteClient constructs a client for the database file at path.
// ":memory:" opens a private in-memory database.
func NewSQLiteClient(path string) *SQLiteClient {
	return &SQLiteClient{path: path}
}

// Name identifies the mirror in logs
func (c *SQLiteClient) Name() string { return "sqlite" }

// Dialect reports SQLite placeholders and types
func (c *SQLiteClient) Dialect() Dialect { return SQLite }

// Connect opens the database file, creating its directory and the record table
func (c *SQLiteClient) Connect(ctx context.Context) error {
	if c.path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if c.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; also keeps ":memory:" on a single shared connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite: %w", err)
	}

	c.db = db
	if err := EnsureSchema(ctx, c); err != nil {
		_ = db.Close()
		c.db = nil
		return err
	}
	return nil
}

// Close closes the database
func (c *SQLiteClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying handle
func (c *SQLiteClient) DB() *sql.DB {
	return c.db
}

// SaveRecords upserts records
func (c *SQLiteClient) SaveRecords(ctx context.Context, records []domain.EnrichmentRecord) error {
	return UpsertRecords(ctx, c, records)
}

// GetAllRecords reads back every stored record
func (c *SQLiteClient) GetAllRecords(ctx context.Context) ([]domain.EnrichmentRecord, error) {
	return LoadRecords(ctx, c)
}
