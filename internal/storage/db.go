package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/liveprof/internal/codec"
	"github.com/coral-mesh/liveprof/internal/duckdb"
	"github.com/coral-mesh/liveprof/internal/errors"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

const createDetailsTable = `
	CREATE TABLE IF NOT EXISTS details (
		id        TEXT      PRIMARY KEY,
		app       TEXT      NOT NULL,
		label     TEXT      NOT NULL,
		perfdata  BLOB      NOT NULL,
		codec     TEXT      NOT NULL,
		checksum  TEXT      NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_details_app_label
		ON details (app, label);
`

const insertDetail = `
	INSERT INTO details (id, app, label, perfdata, codec, checksum, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// DB stores profiles as rows of the DuckDB table "details". The connection is
// opened on first use and reused afterwards.
type DB struct {
	url    string
	packer codec.Packer
	logger zerolog.Logger

	mu     sync.Mutex
	db     *sql.DB
	schema bool
}

// NewDB creates a DuckDB storage for the connection URL. The URL is validated
// immediately; the database is opened lazily.
func NewDB(url string, packer codec.Packer, logger zerolog.Logger) (*DB, error) {
	if _, err := duckdb.ParseURL(url); err != nil {
		return nil, fmt.Errorf("invalid connection url: %w", err)
	}
	return &DB{
		url:    url,
		packer: packer,
		logger: logger.With().Str("component", "profile_db_storage").Logger(),
	}, nil
}

// NewDBWithConn creates a DuckDB storage on an already open database.
func NewDBWithConn(db *sql.DB, packer codec.Packer, logger zerolog.Logger) *DB {
	return &DB{
		db:     db,
		packer: packer,
		logger: logger.With().Str("component", "profile_db_storage").Logger(),
	}
}

// CreateTable creates the details table if it does not exist.
func (s *DB) CreateTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn(ctx)
	return err
}

// Save implements liveprof.Storage.
func (s *DB) Save(ctx context.Context, app, label string, ts time.Time, data profiledata.Data) error {
	payload, err := s.packer.Pack(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer errors.DeferRollback(s.logger, tx)

	args := []any{
		uuid.New().String(),
		app,
		label,
		payload,
		s.packer.Extension(),
		Checksum(payload),
		ts.UTC(),
	}
	if _, err := tx.ExecContext(ctx, insertDetail, args...); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}

	s.logger.Debug().
		Str("query", duckdb.InterpolateQuery(insertDetail, args)).
		Int("metrics", len(data)).
		Msg("Profile stored")

	return nil
}

// Checksum returns the xxh3 hash of a packed payload as stored in the
// checksum column.
func Checksum(payload []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(payload))
}

// Close closes the database if it was opened.
func (s *DB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.schema = false
	return err
}

// conn returns the open database, opening it and creating the schema on
// first use. Callers hold s.mu.
func (s *DB) conn(ctx context.Context) (*sql.DB, error) {
	if s.db == nil {
		db, err := duckdb.Open(s.url)
		if err != nil {
			return nil, err
		}
		s.db = db
	}

	if !s.schema {
		if _, err := s.db.ExecContext(ctx, createDetailsTable); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		s.schema = true
	}
	return s.db, nil
}
