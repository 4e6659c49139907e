package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound indicates the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is the persistent key-value store used by page contexts.
// There are no transactional guarantees across keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type prefixed struct {
	s      Store
	prefix string
}

// WithPrefix scopes every key of s under prefix.
func WithPrefix(s Store, prefix string) Store {
	return prefixed{s: s, prefix: prefix}
}

func (p prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.s.Get(ctx, p.prefix+key)
}

func (p prefixed) Set(ctx context.Context, key, value string) error {
	return p.s.Set(ctx, p.prefix+key, value)
}

func (p prefixed) Delete(ctx context.Context, key string) error {
	return p.s.Delete(ctx, p.prefix+key)
}
