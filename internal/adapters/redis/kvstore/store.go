package kvstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
)

// Store is a Redis implementation of kvstore.Store. Keys are stored under a fixed prefix
// so the page-context store can share a Redis database with other tenants.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.client == nil {
		return "", errors.New("nil redis client")
	}
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", kvstore.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}
