package purchaserepo

import (
	"context"
	"sort"
	"sync"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

// Repo is an in-memory implementation of purchaserepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.PurchaseID]purchaserepo.Purchase
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.PurchaseID]purchaserepo.Purchase)}
}

func (r *Repo) Create(ctx context.Context, p purchaserepo.Purchase) error {
	_ = ctx
	if p.ID == "" {
		return purchaserepo.ErrAlreadyExists // empty id is never accepted; the app layer validates first
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return purchaserepo.ErrAlreadyExists
	}
	r.byID[p.ID] = clonePurchase(p)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.PurchaseID) (purchaserepo.Purchase, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return purchaserepo.Purchase{}, purchaserepo.ErrNotFound
	}
	return clonePurchase(p), nil
}

func (r *Repo) List(ctx context.Context) ([]purchaserepo.Purchase, error) {
	_ = ctx
	r.mu.RLock()
	out := make([]purchaserepo.Purchase, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, clonePurchase(p))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

func clonePurchase(p purchaserepo.Purchase) purchaserepo.Purchase {
	out := p
	out.Payload = append([]byte(nil), p.Payload...)
	return out
}
