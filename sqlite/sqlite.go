// Package sqlite provides the SQLite-backed merge store. Each subreddit
// gets its own database file, so archives move and delete as single
// directories.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/fwojciec/subgrab"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DBFileName is the database file name inside a subreddit's directory.
const DBFileName = "subgrab.db"

// DBPath returns the database path for a subreddit under dataDir.
func DBPath(dataDir, subreddit string) string {
	return filepath.Join(dataDir, subreddit, DBFileName)
}

// ImagesDir returns the image directory for a subreddit under dataDir.
func ImagesDir(dataDir, subreddit string) string {
	return filepath.Join(dataDir, subreddit, "images")
}

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return subgrab.Errorf(subgrab.ESTORAGE, "failed to open database: %v", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return subgrab.Errorf(subgrab.ESTORAGE, "failed to connect to database: %v", err)
	}

	// Wait 5 seconds before failing on lock contention instead of
	// returning "database is locked" immediately.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return subgrab.Errorf(subgrab.ESTORAGE, "failed to set busy timeout: %v", err)
	}

	// WAL mode allows the viewer to read while a scrape is writing.
	// Not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return subgrab.Errorf(subgrab.ESTORAGE, "failed to enable WAL mode: %v", err)
		}
	}

	db.db = conn

	if err := db.createSchema(); err != nil {
		conn.Close()
		return subgrab.Errorf(subgrab.ESTORAGE, "failed to create schema: %v", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			created_utc INTEGER NOT NULL DEFAULT 0,
			created_time TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			image_path TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			created_utc INTEGER NOT NULL DEFAULT 0,
			created_time TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			image_path TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_posts_created_utc ON posts(created_utc DESC);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_comments_created_utc ON comments(created_utc DESC);
	`

	_, err := db.db.Exec(schema)
	return err
}
