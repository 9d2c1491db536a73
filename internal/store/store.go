// Package store keeps the mail index in SQLite: documents keyed by their key
// term, term postings with within-document frequencies, term positions for
// phrase matching, and per-mailbox indexing checkpoints.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Mode selects how the index is opened. A process uses one mode only.
type Mode int

const (
	// ModeReadWrite creates the index if needed and allows writes.
	ModeReadWrite Mode = iota
	// ModeReadOnly opens an existing index for queries.
	ModeReadOnly
)

var (
	// ErrNotFound is returned when no document has the requested key term.
	ErrNotFound = errors.New("document not found")

	// ErrNoIndex is returned when opening a missing index read-only.
	ErrNoIndex = errors.New("index does not exist")

	// ErrReadOnly is returned for writes through a read-only Store.
	ErrReadOnly = errors.New("index opened read-only")
)

// Store is a handle on the index database.
type Store struct {
	db     *sql.DB
	dbPath string
	mode   Mode
}

const sqliteParams = "_busy_timeout=5000&_foreign_keys=ON"

// Open opens the index at dbPath.
func Open(dbPath string, mode Mode) (*Store, error) {
	var dsn string
	switch mode {
	case ModeReadOnly:
		if _, err := os.Stat(dbPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNoIndex, dbPath)
			}
			return nil, fmt.Errorf("stat index: %w", err)
		}
		dsn = "file:" + dbPath + "?mode=ro&" + sqliteParams
	case ModeReadWrite:
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&" + sqliteParams
	default:
		return nil, fmt.Errorf("unknown store mode %d", mode)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	// A single connection keeps the write transaction and WAL checkpoints
	// on the same handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, mode: mode}
	if mode == ModeReadWrite {
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
		return s, nil
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'documents'").Scan(&n); err != nil {
		db.Close()
		if isSQLiteCode(err, sqlite3.ErrNotADB) {
			return nil, fmt.Errorf("%s is not an index database: %w", dbPath, err)
		}
		return nil, fmt.Errorf("read index schema: %w", err)
	}
	if n == 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s has no documents table", ErrNoIndex, dbPath)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection to the query engine.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Mode reports how the store was opened.
func (s *Store) Mode() Mode {
	return s.mode
}

func (s *Store) writable() error {
	if s.mode != ModeReadWrite {
		return ErrReadOnly
	}
	return nil
}

// withTx runs fn in a transaction, rolling back if fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertInChunks runs a multi-row INSERT in batches that stay under
// SQLite's bound parameter limit. build returns the VALUES tuples and
// arguments for rows [start, end).
func insertInChunks(ctx context.Context, tx *sql.Tx, totalRows, valuesPerRow int, prefix string, build func(start, end int) ([]string, []any)) error {
	const maxParams = 900
	chunk := maxParams / valuesPerRow
	if chunk < 1 {
		chunk = 1
	}
	for i := 0; i < totalRows; i += chunk {
		end := min(i+chunk, totalRows)
		values, args := build(i, end)
		if _, err := tx.ExecContext(ctx, prefix+strings.Join(values, ","), args...); err != nil {
			return err
		}
	}
	return nil
}

// isSQLiteCode reports whether err carries the given SQLite result code.
func isSQLiteCode(err error, code sqlite3.ErrNo) bool {
	var v sqlite3.Error
	if errors.As(err, &v) {
		return v.Code == code
	}
	var p *sqlite3.Error
	if errors.As(err, &p) && p != nil {
		return p.Code == code
	}
	return false
}

// Flush forces committed writes into the main database file.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Stats summarises the index.
type Stats struct {
	Documents     int64
	Terms         int64
	Postings      int64
	AverageLength float64
	Checkpoints   int64
	DatabaseSize  int64
}

// Stats returns index statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(length), 0) FROM documents").Scan(&st.Documents, &st.AverageLength); err != nil {
		return nil, fmt.Errorf("stats documents: %w", err)
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM postings", &st.Postings},
		{"SELECT COUNT(DISTINCT term) FROM postings", &st.Terms},
		{"SELECT COUNT(*) FROM checkpoints", &st.Checkpoints},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats %q: %w", c.query, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DatabaseSize = info.Size()
	}
	return st, nil
}
