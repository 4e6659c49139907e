package controller

import (
	"context"
	"strings"
	"sync"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/catalog"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/mapview"
)

// Registry holds one controller per page session. Each session gets its own key namespace.
type Registry struct {
	catalog catalog.Source
	kv      kvstore.Store
	maps    mapview.Provider
	clk     clock.Clock
	demo    Credentials

	mu    sync.Mutex
	byID  map[domain.ClientID]*Controller
	inits map[domain.ClientID]*sync.Mutex
}

func NewRegistry(src catalog.Source, kv kvstore.Store, maps mapview.Provider, clk clock.Clock, demo Credentials) *Registry {
	return &Registry{
		catalog: src,
		kv:      kv,
		maps:    maps,
		clk:     clk,
		demo:    demo,
		byID:    map[domain.ClientID]*Controller{},
		inits:   map[domain.ClientID]*sync.Mutex{},
	}
}

// KeyPrefix is the namespace of a client's persisted keys.
func KeyPrefix(id domain.ClientID) string {
	return "client:" + string(id) + ":"
}

// Get returns the controller for id, creating and initializing it on first use.
func (r *Registry) Get(ctx context.Context, id domain.ClientID) (*Controller, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, &Error{Status: 400, Code: "MISSING_CLIENT_ID", Message: "client id is required"}
	}

	r.mu.Lock()
	if c, ok := r.byID[id]; ok {
		r.mu.Unlock()
		return c, nil
	}
	gate, ok := r.inits[id]
	if !ok {
		gate = &sync.Mutex{}
		r.inits[id] = gate
	}
	r.mu.Unlock()

	// One initialization per client; concurrent callers wait for it.
	gate.Lock()
	defer gate.Unlock()

	r.mu.Lock()
	if c, ok := r.byID[id]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	c := New(id, r.catalog, kvstore.WithPrefix(r.kv, KeyPrefix(id)), r.maps, r.clk, r.demo)
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = c
	delete(r.inits, id)
	r.mu.Unlock()
	return c, nil
}

// Drop forgets the in-memory controller. Persisted keys are kept.
func (r *Registry) Drop(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// Len is the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
