package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
)

// Store is a Postgres implementation of cachestore.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Open(ctx context.Context, partition string) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_partitions (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, partition)
	return err
}

func (s *Store) Match(ctx context.Context, partition string, key cachestore.Key) (cachestore.Entry, error) {
	if s.pool == nil {
		return cachestore.Entry{}, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status, header, body, stored_at
		FROM cache_entries
		WHERE partition = $1 AND method = $2 AND url = $3
	`, partition, key.Method, key.URL)
	e, err := scanEntry(row, key)
	if err != nil {
		return cachestore.Entry{}, err
	}
	return e, nil
}

func (s *Store) MatchAny(ctx context.Context, key cachestore.Key) (cachestore.Entry, string, error) {
	if s.pool == nil {
		return cachestore.Entry{}, "", errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT e.partition, e.status, e.header, e.body, e.stored_at
		FROM cache_entries e
		JOIN cache_partitions p ON p.name = e.partition
		WHERE e.method = $1 AND e.url = $2
		ORDER BY p.seq ASC
		LIMIT 1
	`, key.Method, key.URL)

	var (
		partition string
		status    int
		rawHeader []byte
		e         = cachestore.Entry{Key: key}
	)
	if err := row.Scan(&partition, &status, &rawHeader, &e.Body, &e.StoredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cachestore.Entry{}, "", cachestore.ErrNotFound
		}
		return cachestore.Entry{}, "", err
	}
	e.Status = status
	e.StoredAt = e.StoredAt.UTC()
	hdr, err := decodeHeader(rawHeader)
	if err != nil {
		return cachestore.Entry{}, "", err
	}
	e.Header = hdr
	return e, partition, nil
}

func (s *Store) Put(ctx context.Context, partition string, e cachestore.Entry) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	rawHeader, err := json.Marshal(map[string][]string(e.Header))
	if err != nil {
		return err
	}
	if e.Header == nil {
		rawHeader = []byte("{}")
	}
	body := e.Body
	if body == nil {
		body = []byte{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cache_partitions (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, partition); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO cache_entries (partition, method, url, status, header, body, stored_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (partition, method, url)
			DO UPDATE SET
				status = EXCLUDED.status,
				header = EXCLUDED.header,
				body = EXCLUDED.body,
				stored_at = EXCLUDED.stored_at
		`,
			partition,
			e.Key.Method,
			e.Key.URL,
			e.Status,
			rawHeader,
			body,
			e.StoredAt.UTC(),
		)
		return err
	})
}

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `SELECT name FROM cache_partitions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Store) DeletePartition(ctx context.Context, partition string) (bool, error) {
	if s.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_partitions WHERE name = $1`, partition)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntry(row pgx.Row, key cachestore.Key) (cachestore.Entry, error) {
	e := cachestore.Entry{Key: key}
	var rawHeader []byte
	if err := row.Scan(&e.Status, &rawHeader, &e.Body, &e.StoredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cachestore.Entry{}, cachestore.ErrNotFound
		}
		return cachestore.Entry{}, err
	}
	e.StoredAt = e.StoredAt.UTC()
	hdr, err := decodeHeader(rawHeader)
	if err != nil {
		return cachestore.Entry{}, err
	}
	e.Header = hdr
	return e, nil
}

func decodeHeader(raw []byte) (http.Header, error) {
	hdr := http.Header{}
	if len(raw) == 0 {
		return hdr, nil
	}
	if err := json.Unmarshal(raw, (*map[string][]string)(&hdr)); err != nil {
		return nil, err
	}
	return hdr, nil
}
