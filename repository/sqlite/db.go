package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-kb/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    video_id TEXT NOT NULL,
    video_title TEXT,
    playlist_id TEXT,
    channel_id TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    progress REAL NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    started_at INTEGER,
    completed_at INTEGER,
    updated_at INTEGER NOT NULL,
    next_attempt_at INTEGER,
    error_message TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0,
    output_paths TEXT,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_video_id ON jobs(video_id);
`

type DBConfig struct {
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	BusyTimeout        time.Duration
}

func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxConnections:     10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
		BusyTimeout:        5 * time.Second,
	}
}

// dsn opens write transactions with BEGIN IMMEDIATE so concurrent writers,
// including writers in other processes, serialize on the database lock
// instead of failing on upgrade.
func dsn(dbPath string, cfg DBConfig) string {
	return fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_txlock=immediate&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on",
		dbPath,
		cfg.BusyTimeout.Milliseconds(),
	)
}

func InitDB(dbPath string, cfg DBConfig) (*sql.DB, error) {
	const op = "sqlite.InitDB"

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Internal(op, err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite3", dsn(dbPath, cfg))
	if err != nil {
		return nil, errors.Internal(op, err, "failed to open database")
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Internal(op, err, "failed to connect to database")
	}

	if err := execSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func execSchema(ctx context.Context, db *sql.DB) error {
	const op = "sqlite.execSchema"

	return WithTransaction(ctx, db, func(tx Executor) error {
		for _, stmt := range strings.Split(schema, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Internal(op, err, fmt.Sprintf("failed to execute schema statement: %s", stmt))
			}
		}
		return nil
	})
}

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// TxFn is a function that will be called with a transaction
type TxFn func(tx Executor) error

// WithTransaction wraps a transaction with proper rollback/commit logic
func WithTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "commit transaction")
	}

	return nil
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := pkgerrors.Cause(err).Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy")
}
