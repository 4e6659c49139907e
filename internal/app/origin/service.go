package origin

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/clock"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/idempotency"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

const purchasesRoute = "/api/purchases"

// Snapshot kinds kept per client.
const (
	SnapshotCart   = "cart"
	SnapshotPasses = "passes"
)

// Snapshot is the latest blob a client synced for one kind.
type Snapshot struct {
	Client     domain.ClientID `json:"clientId"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// Receipt acknowledges a recorded purchase.
type Receipt struct {
	ID         domain.PurchaseID `json:"id"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// Updates is the answer to a pass update check.
type Updates struct {
	HasUpdates bool   `json:"hasUpdates"`
	Version    string `json:"version"`
}

// Service is the server side of the worker's sync tasks.
type Service struct {
	kv        kvstore.Store
	purchases purchaserepo.Repository
	idem      idempotency.Store
	clk       clock.Clock
	version   string

	newPurchaseID func() domain.PurchaseID
}

// NewService builds the origin service. idem may be nil, in which case retries are only
// deduplicated by purchase id.
func NewService(kv kvstore.Store, purchases purchaserepo.Repository, idem idempotency.Store, clk clock.Clock, catalogVersion string) *Service {
	return &Service{
		kv:        kv,
		purchases: purchases,
		idem:      idem,
		clk:       clk,
		version:   catalogVersion,
		newPurchaseID: func() domain.PurchaseID {
			return domain.PurchaseID(uuid.NewString())
		},
	}
}

// SetNewPurchaseIDForTest overrides purchase ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewPurchaseIDForTest(fn func() domain.PurchaseID) {
	if fn != nil {
		s.newPurchaseID = fn
	}
}

func (s *Service) CatalogVersion() string { return s.version }

func snapshotKey(kind string, client domain.ClientID) string {
	return "origin:" + kind + ":" + string(client)
}

func seenVersionKey(client domain.ClientID) string {
	return "origin:seen-version:" + string(client)
}

// SyncCart records the cart a client synced. Only the latest snapshot is kept.
func (s *Service) SyncCart(ctx context.Context, client domain.ClientID, body []byte) (Snapshot, error) {
	return s.saveSnapshot(ctx, SnapshotCart, client, body)
}

// SyncPasses records the passes a client synced. Only the latest snapshot is kept.
func (s *Service) SyncPasses(ctx context.Context, client domain.ClientID, body []byte) (Snapshot, error) {
	return s.saveSnapshot(ctx, SnapshotPasses, client, body)
}

func (s *Service) saveSnapshot(ctx context.Context, kind string, client domain.ClientID, body []byte) (Snapshot, error) {
	if err := validateClient(client); err != nil {
		return Snapshot{}, err
	}
	payload, err := compactJSON(body)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Client: client, Kind: kind, Payload: payload, ReceivedAt: s.clk.Now().UTC()}
	raw, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.kv.Set(ctx, snapshotKey(kind, client), string(raw)); err != nil {
		return Snapshot{}, fmt.Errorf("save %s snapshot: %w", kind, err)
	}
	return snap, nil
}

// LatestSnapshot returns the last snapshot of kind synced by client.
func (s *Service) LatestSnapshot(ctx context.Context, kind string, client domain.ClientID) (Snapshot, error) {
	raw, err := s.kv.Get(ctx, snapshotKey(kind, client))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return Snapshot{}, &Error{Status: 404, Code: "SNAPSHOT_NOT_FOUND", Message: "no snapshot synced", Details: map[string]any{"kind": kind}}
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	return snap, nil
}

// RecordPurchase stores a purchase. A retry with the same Idempotency-Key and body replays the
// first receipt; the same key with a different body is rejected. created reports whether this
// call stored the purchase.
func (s *Service) RecordPurchase(ctx context.Context, client domain.ClientID, key string, body []byte) (rec Receipt, created bool, err error) {
	if err := validateClient(client); err != nil {
		return Receipt{}, false, err
	}
	payload, err := compactJSON(body)
	if err != nil {
		return Receipt{}, false, err
	}
	if !bytes.HasPrefix(payload, []byte("{")) {
		return Receipt{}, false, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid purchase", Details: map[string]any{"body": "must be a JSON object"}}
	}
	key = strings.TrimSpace(key)
	sum := sha256.Sum256(payload)
	bodyHash := hex.EncodeToString(sum[:])

	metaFP := idempotency.Fingerprint{
		Key:    idempotency.Key(key),
		Client: client,
		Method: http.MethodPost,
		Route:  purchasesRoute,
	}
	respFP := metaFP
	respFP.BodyHash = bodyHash

	if s.idem != nil && key != "" {
		if meta, ok, err := s.idem.Get(ctx, metaFP); err != nil {
			return Receipt{}, false, err
		} else if ok {
			if string(meta.Body) != bodyHash {
				return Receipt{}, false, &Error{Status: 409, Code: "IDEMPOTENCY_KEY_REUSE", Message: "idempotency key reuse with different payload"}
			}
		} else {
			_ = s.idem.Put(ctx, metaFP, idempotency.Record{
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   s.clk.Now().UTC(),
			})
		}

		if prev, ok, err := s.idem.Get(ctx, respFP); err != nil {
			return Receipt{}, false, err
		} else if ok && prev.StatusCode == http.StatusCreated {
			var r Receipt
			if err := json.Unmarshal(prev.Body, &r); err == nil {
				return r, false, nil
			}
		}
	}

	id := purchaseIDOf(payload, key)
	if id == "" {
		id = s.newPurchaseID()
	}
	p := purchaserepo.Purchase{ID: id, Client: client, Payload: payload, ReceivedAt: s.clk.Now().UTC()}
	if err := s.purchases.Create(ctx, p); err != nil {
		if !errors.Is(err, purchaserepo.ErrAlreadyExists) {
			return Receipt{}, false, err
		}
		existing, err := s.purchases.GetByID(ctx, id)
		if err != nil {
			return Receipt{}, false, err
		}
		if !sameJSON(existing.Payload, payload) {
			return Receipt{}, false, &Error{Status: 409, Code: "PURCHASE_CONFLICT", Message: "purchase already recorded with a different payload", Details: map[string]any{"id": string(id)}}
		}
		return Receipt{ID: existing.ID, ReceivedAt: existing.ReceivedAt}, false, nil
	}

	rec = Receipt{ID: p.ID, ReceivedAt: p.ReceivedAt}
	if s.idem != nil && key != "" {
		if b, err := json.Marshal(rec); err == nil {
			_ = s.idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  http.StatusCreated,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.clk.Now().UTC(),
			})
		}
	}
	return rec, true, nil
}

// Purchases lists recorded purchases, oldest first.
func (s *Service) Purchases(ctx context.Context) ([]purchaserepo.Purchase, error) {
	return s.purchases.List(ctx)
}

// CheckUpdates reports whether the catalog changed since since. An empty since compares against the
// version this client last saw; a client's first check never reports updates.
func (s *Service) CheckUpdates(ctx context.Context, client domain.ClientID, since string) (Updates, error) {
	since = strings.TrimSpace(since)
	if since == "" && client != "" {
		v, err := s.kv.Get(ctx, seenVersionKey(client))
		switch {
		case err == nil:
			since = v
		case !errors.Is(err, kvstore.ErrNotFound):
			return Updates{}, err
		}
	}
	if client != "" {
		if err := s.kv.Set(ctx, seenVersionKey(client), s.version); err != nil {
			return Updates{}, fmt.Errorf("record seen version: %w", err)
		}
	}
	return Updates{HasUpdates: since != "" && since != s.version, Version: s.version}, nil
}

func validateClient(client domain.ClientID) error {
	if strings.TrimSpace(string(client)) == "" {
		return &Error{Status: 400, Code: "MISSING_CLIENT_ID", Message: "X-Client-ID header is required"}
	}
	return nil
}

func compactJSON(body []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil || buf.Len() == 0 {
		return nil, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid body", Details: map[string]any{"body": "must be JSON"}}
	}
	return json.RawMessage(buf.Bytes()), nil
}

// sameJSON compares two documents by value; stores such as jsonb do not keep the original bytes.
func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// purchaseIDOf prefers the id field of the purchase and falls back to the idempotency key.
func purchaseIDOf(payload json.RawMessage, key string) domain.PurchaseID {
	var v struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(payload, &v); err == nil && len(v.ID) > 0 && string(v.ID) != "null" {
		if s, err := strconv.Unquote(string(v.ID)); err == nil {
			if s != "" {
				return domain.PurchaseID(s)
			}
		} else {
			return domain.PurchaseID(v.ID)
		}
	}
	return domain.PurchaseID(key)
}
