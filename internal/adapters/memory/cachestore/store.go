package cachestore

import (
	"context"
	"net/http"
	"sync"

	"github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
)

// Store is an in-memory implementation of cachestore.Store.
// It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	order      []string
	partitions map[string]map[cachestore.Key]cachestore.Entry
}

func NewStore() *Store {
	return &Store{
		partitions: make(map[string]map[cachestore.Key]cachestore.Entry),
	}
}

func (s *Store) Open(ctx context.Context, partition string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openLocked(partition)
	return nil
}

func (s *Store) openLocked(partition string) map[cachestore.Key]cachestore.Entry {
	p, ok := s.partitions[partition]
	if !ok {
		p = make(map[cachestore.Key]cachestore.Entry)
		s.partitions[partition] = p
		s.order = append(s.order, partition)
	}
	return p
}

func (s *Store) Match(ctx context.Context, partition string, key cachestore.Key) (cachestore.Entry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[partition]
	if !ok {
		return cachestore.Entry{}, cachestore.ErrNotFound
	}
	e, ok := p[key]
	if !ok {
		return cachestore.Entry{}, cachestore.ErrNotFound
	}
	return cloneEntry(e), nil
}

func (s *Store) MatchAny(ctx context.Context, key cachestore.Key) (cachestore.Entry, string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range s.order {
		if e, ok := s.partitions[name][key]; ok {
			return cloneEntry(e), name, nil
		}
	}
	return cachestore.Entry{}, "", cachestore.ErrNotFound
}

func (s *Store) Put(ctx context.Context, partition string, e cachestore.Entry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.openLocked(partition)
	p[e.Key] = cloneEntry(e)
	return nil
}

func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) DeletePartition(ctx context.Context, partition string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[partition]; !ok {
		return false, nil
	}
	delete(s.partitions, partition)
	for i, name := range s.order {
		if name == partition {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func cloneEntry(e cachestore.Entry) cachestore.Entry {
	out := e
	out.Body = append([]byte(nil), e.Body...)
	if e.Header != nil {
		out.Header = e.Header.Clone()
	} else {
		out.Header = http.Header{}
	}
	return out
}
