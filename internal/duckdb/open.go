package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	duckdbDriver "github.com/marcboeker/go-duckdb"
)

// Scheme is the URL scheme accepted by ParseURL.
const Scheme = "duckdb://"

// ParseURL converts a connection URL into a DuckDB DSN. Bare paths are
// accepted as is; an empty URL selects an in-memory database.
func ParseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "://"); idx >= 0 {
		if !strings.HasPrefix(raw, Scheme) {
			return "", fmt.Errorf("unsupported connection scheme %q, expected %s", raw[:idx+3], Scheme)
		}
		raw = strings.TrimPrefix(raw, Scheme)
	}
	if raw == ":memory:" {
		return "", nil
	}
	return raw, nil
}

// Open opens a DuckDB database from a connection URL. Every pooled
// connection is configured to checkpoint on shutdown so that profiles written
// by short-lived processes are flushed from the WAL.
func Open(url string) (*sql.DB, error) {
	dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	connector, err := duckdbDriver.NewConnector(dsn, func(execer driver.ExecerContext) error {
		bootQueries := []string{
			"PRAGMA enable_checkpoint_on_shutdown",
		}
		for _, query := range bootQueries {
			if _, err := execer.ExecContext(context.Background(), query, nil); err != nil {
				// Non-fatal: older engines may not know the pragma.
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", dsn, err)
	}

	return sql.OpenDB(connector), nil
}
