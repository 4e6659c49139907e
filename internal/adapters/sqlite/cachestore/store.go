// Package cachestore provides a SQLite-backed cache store for single-node deployments.
package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_partitions (
    seq  INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS cache_entries (
    partition TEXT NOT NULL,
    method    TEXT NOT NULL,
    url       TEXT NOT NULL,
    status    INTEGER NOT NULL,
    header    TEXT NOT NULL,
    body      BLOB NOT NULL,
    stored_at INTEGER NOT NULL,
    PRIMARY KEY (partition, method, url)
);
`

// Store persists cache partitions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite cache store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Open(ctx context.Context, partition string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(ctx, `INSERT OR IGNORE INTO cache_partitions (name) VALUES (?)`, partition)
	return err
}

func (s *Store) Match(ctx context.Context, partition string, key cachestore.Key) (cachestore.Entry, error) {
	if s == nil || s.sqlDB == nil {
		return cachestore.Entry{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT status, header, body, stored_at
		FROM cache_entries
		WHERE partition = ? AND method = ? AND url = ?`,
		partition, key.Method, key.URL,
	)
	var (
		e         = cachestore.Entry{Key: key}
		rawHeader string
		storedAt  int64
	)
	if err := row.Scan(&e.Status, &rawHeader, &e.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cachestore.Entry{}, cachestore.ErrNotFound
		}
		return cachestore.Entry{}, err
	}
	return finishEntry(e, rawHeader, storedAt)
}

func (s *Store) MatchAny(ctx context.Context, key cachestore.Key) (cachestore.Entry, string, error) {
	if s == nil || s.sqlDB == nil {
		return cachestore.Entry{}, "", fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT e.partition, e.status, e.header, e.body, e.stored_at
		FROM cache_entries e
		JOIN cache_partitions p ON p.name = e.partition
		WHERE e.method = ? AND e.url = ?
		ORDER BY p.seq ASC
		LIMIT 1`,
		key.Method, key.URL,
	)
	var (
		partition string
		e         = cachestore.Entry{Key: key}
		rawHeader string
		storedAt  int64
	)
	if err := row.Scan(&partition, &e.Status, &rawHeader, &e.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cachestore.Entry{}, "", cachestore.ErrNotFound
		}
		return cachestore.Entry{}, "", err
	}
	out, err := finishEntry(e, rawHeader, storedAt)
	if err != nil {
		return cachestore.Entry{}, "", err
	}
	return out, partition, nil
}

func (s *Store) Put(ctx context.Context, partition string, e cachestore.Entry) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	header := e.Header
	if header == nil {
		header = http.Header{}
	}
	rawHeader, err := json.Marshal(map[string][]string(header))
	if err != nil {
		return err
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO cache_partitions (name) VALUES (?)`, partition); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cache_entries (partition, method, url, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (partition, method, url) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		partition,
		e.Key.Method,
		e.Key.URL,
		e.Status,
		string(rawHeader),
		body,
		toMillis(e.StoredAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM cache_partitions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) DeletePartition(ctx context.Context, partition string) (bool, error) {
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE partition = ?`, partition); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_partitions WHERE name = ?`, partition)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func finishEntry(e cachestore.Entry, rawHeader string, storedAt int64) (cachestore.Entry, error) {
	hdr := http.Header{}
	if rawHeader != "" {
		if err := json.Unmarshal([]byte(rawHeader), (*map[string][]string)(&hdr)); err != nil {
			return cachestore.Entry{}, fmt.Errorf("decode header: %w", err)
		}
	}
	e.Header = hdr
	e.StoredAt = fromMillis(storedAt)
	if e.Body == nil {
		e.Body = []byte{}
	}
	return e, nil
}
