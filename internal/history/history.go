// Package history records program runs in a SQL database.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Run is one recorded execution.
type Run struct {
	ID          string
	File        string
	SourceHash  string
	ExitCode    int
	Diagnostics []string
	Duration    time.Duration
	StartedAt   time.Time
}

// dialect captures the differences between the supported databases.
type dialect struct {
	driver string
	create string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// limit wraps a select of all columns to return at most n rows.
	limit func(cols, from string, n int) string
}

const columns = "id, file, source_hash, exit_code, diagnostics, duration_ns, started_at"

func question(int) string { return "?" }

func limitClause(cols, from string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", cols, from, n)
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		create: `CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			source_hash TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			diagnostics TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			started_at INTEGER NOT NULL)`,
		placeholder: question,
		limit:       limitClause,
	},
	"postgres": {
		driver: "postgres",
		create: `CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			file TEXT NOT NULL,
			source_hash TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			diagnostics TEXT NOT NULL,
			duration_ns BIGINT NOT NULL,
			started_at BIGINT NOT NULL)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		limit:       limitClause,
	},
	"mysql": {
		driver: "mysql",
		create: `CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(36) PRIMARY KEY,
			file TEXT NOT NULL,
			source_hash VARCHAR(64) NOT NULL,
			exit_code INT NOT NULL,
			diagnostics TEXT NOT NULL,
			duration_ns BIGINT NOT NULL,
			started_at BIGINT NOT NULL)`,
		placeholder: question,
		limit:       limitClause,
	},
	"sqlserver": {
		driver: "sqlserver",
		create: `IF OBJECT_ID('runs', 'U') IS NULL CREATE TABLE runs (
			id VARCHAR(36) PRIMARY KEY,
			file NVARCHAR(MAX) NOT NULL,
			source_hash VARCHAR(64) NOT NULL,
			exit_code INT NOT NULL,
			diagnostics NVARCHAR(MAX) NOT NULL,
			duration_ns BIGINT NOT NULL,
			started_at BIGINT NOT NULL)`,
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		limit: func(cols, from string, n int) string {
			return fmt.Sprintf("SELECT TOP (%d) %s FROM %s", n, cols, from)
		},
	},
}

// Store is a run history backed by database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database and creates the runs table if needed.
// driver is one of sqlite, postgres, mysql or sqlserver.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Errorf("history: unsupported database type: %s", driver)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "history: failed to connect")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "history: failed to ping database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, d.create); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "history: create table")
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the hex SHA-256 of a program source.
func Hash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Record stores run, assigning an ID when it has none, and returns the ID.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	marks := make([]string, 7)
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO runs (%s) VALUES (%s)", columns, strings.Join(marks, ", "))
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.File,
		run.SourceHash,
		run.ExitCode,
		strings.Join(run.Diagnostics, "\n"),
		int64(run.Duration),
		run.StartedAt.UnixNano(),
	)
	if err != nil {
		return "", errors.Wrap(err, "history: insert run")
	}
	return run.ID, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		return nil, nil
	}
	query := s.dialect.limit(columns, "runs ORDER BY started_at DESC", n)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "history: query failed")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			diags    string
			duration int64
			started  int64
		)
		if err := rows.Scan(&run.ID, &run.File, &run.SourceHash, &run.ExitCode, &diags, &duration, &started); err != nil {
			return nil, errors.Wrap(err, "history: scan run")
		}
		if diags != "" {
			run.Diagnostics = strings.Split(diags, "\n")
		}
		run.Duration = time.Duration(duration)
		run.StartedAt = time.Unix(0, started)
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "history: iterate runs")
}
