package cachestore

import (
	"context"
	"net/http"
	"time"
)

// Key is the request identity an entry is addressed by.
type Key struct {
	Method string
	URL    string
}

// Entry is a stored response.
type Entry struct {
	Key      Key
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Store is a set of named cache partitions.
//
// Semantics follow the browser Cache Storage model:
// - Put creates the partition when it does not exist and overwrites an existing entry (last write wins).
// - Partitions are listed in creation order; MatchAny searches them in that order.
// - Deleting a partition drops every entry in it.
type Store interface {
	Open(ctx context.Context, partition string) error
	Match(ctx context.Context, partition string, key Key) (Entry, error)
	MatchAny(ctx context.Context, key Key) (Entry, string, error)
	Put(ctx context.Context, partition string, e Entry) error

	Partitions(ctx context.Context) ([]string, error)
	// DeletePartition reports whether the partition existed.
	DeletePartition(ctx context.Context, partition string) (bool, error)
}
