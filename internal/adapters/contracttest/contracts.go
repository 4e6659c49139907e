package contracttest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/palm-beach-pass/pass-api/internal/domain"
	cachestoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
	idempotencyport "github.com/palm-beach-pass/pass-api/internal/ports/out/idempotency"
	kvstoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	purchaserepoport "github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

type CleanupFunc = func()

type CacheStoreFactory func(t *testing.T) (cachestoreport.Store, CleanupFunc)
type KVStoreFactory func(t *testing.T) (kvstoreport.Store, CleanupFunc)
type PurchaseRepoFactory func(t *testing.T) (purchaserepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Client:   domain.ClientID("worker-1"),
		Method:   "POST",
		Route:    "/api/purchases",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v, want ok=false", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunCacheStore(t *testing.T, newStore CacheStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	suffix := uuid.NewString()
	core := "core-" + suffix
	dynamic := "dynamic-" + suffix
	key := cachestoreport.Key{Method: http.MethodGet, URL: "https://pbp.test/styles.css?" + suffix}

	if _, err := store.Match(ctx, core, key); !errors.Is(err, cachestoreport.ErrNotFound) {
		t.Fatalf("Match(missing partition) err=%v, want ErrNotFound", err)
	}

	if err := store.Open(ctx, core); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Opening twice is a no-op.
	if err := store.Open(ctx, core); err != nil {
		t.Fatalf("Open again: %v", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "text/css")
	first := cachestoreport.Entry{
		Key:      key,
		Status:   200,
		Header:   hdr,
		Body:     []byte("body{}"),
		StoredAt: time.Unix(100, 0).UTC(),
	}
	if err := store.Put(ctx, dynamic, first); err != nil {
		t.Fatalf("Put dynamic: %v", err)
	}
	got, err := store.Match(ctx, dynamic, key)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if string(got.Body) != "body{}" || got.Status != 200 || got.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("unexpected entry: %+v", got)
	}

	// MatchAny searches partitions in creation order: core was opened first.
	second := first
	second.Body = []byte("core{}")
	if err := store.Put(ctx, core, second); err != nil {
		t.Fatalf("Put core: %v", err)
	}
	got, partition, err := store.MatchAny(ctx, key)
	if err != nil {
		t.Fatalf("MatchAny: %v", err)
	}
	if partition != core || string(got.Body) != "core{}" {
		t.Fatalf("MatchAny partition=%q body=%q, want %q core{}", partition, got.Body, core)
	}

	// Last write wins.
	third := first
	third.Body = []byte("body{color:red}")
	if err := store.Put(ctx, dynamic, third); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = store.Match(ctx, dynamic, key)
	if err != nil || string(got.Body) != "body{color:red}" {
		t.Fatalf("expected overwritten entry, err=%v body=%q", err, got.Body)
	}

	names, err := store.Partitions(ctx)
	if err != nil {
		t.Fatalf("Partitions: %v", err)
	}
	if indexOf(names, core) < 0 || indexOf(names, dynamic) < 0 || indexOf(names, core) > indexOf(names, dynamic) {
		t.Fatalf("Partitions()=%v, want %q before %q", names, core, dynamic)
	}

	existed, err := store.DeletePartition(ctx, core)
	if err != nil || !existed {
		t.Fatalf("DeletePartition existed=%v err=%v", existed, err)
	}
	existed, err = store.DeletePartition(ctx, core)
	if err != nil || existed {
		t.Fatalf("DeletePartition again existed=%v err=%v, want false", existed, err)
	}
	got, partition, err = store.MatchAny(ctx, key)
	if err != nil || partition != dynamic {
		t.Fatalf("MatchAny after delete partition=%q err=%v, want %q", partition, err, dynamic)
	}
	if _, err := store.Match(ctx, core, key); !errors.Is(err, cachestoreport.ErrNotFound) {
		t.Fatalf("Match(deleted) err=%v, want ErrNotFound", err)
	}
	if _, err := store.DeletePartition(ctx, dynamic); err != nil {
		t.Fatalf("DeletePartition dynamic: %v", err)
	}
}

func RunKVStore(t *testing.T, newStore KVStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	key := "pbp_cart:" + uuid.NewString()
	if _, err := store.Get(ctx, key); !errors.Is(err, kvstoreport.ErrNotFound) {
		t.Fatalf("Get(missing) err=%v, want ErrNotFound", err)
	}
	if err := store.Set(ctx, key, "[]"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := store.Get(ctx, key)
	if err != nil || v != "[]" {
		t.Fatalf("Get=%q err=%v", v, err)
	}
	if err := store.Set(ctx, key, `[{"passId":"3-day"}]`); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _ = store.Get(ctx, key)
	if v != `[{"passId":"3-day"}]` {
		t.Fatalf("Get after overwrite=%q", v)
	}

	scoped := kvstoreport.WithPrefix(store, "client-a:")
	if err := scoped.Set(ctx, key, "scoped"); err != nil {
		t.Fatalf("scoped Set: %v", err)
	}
	if v, _ := store.Get(ctx, key); v == "scoped" {
		t.Fatalf("prefixed write leaked into unprefixed key")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, kvstoreport.ErrNotFound) {
		t.Fatalf("Get(deleted) err=%v, want ErrNotFound", err)
	}
	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete(missing): %v", err)
	}
	_ = scoped.Delete(ctx, key)
}

func RunPurchaseRepo(t *testing.T, newRepo PurchaseRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	aID := domain.PurchaseID(uuid.NewString())
	bID := domain.PurchaseID(uuid.NewString())
	payload, _ := json.Marshal(map[string]any{"id": string(aID), "passId": "3-day"})

	if err := repo.Create(ctx, purchaserepoport.Purchase{
		ID:         aID,
		Client:     "worker-1",
		Payload:    payload,
		ReceivedAt: time.Unix(2000, 0).UTC(),
	}); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := repo.Create(ctx, purchaserepoport.Purchase{
		ID:         aID,
		Client:     "worker-1",
		Payload:    payload,
		ReceivedAt: time.Unix(2000, 0).UTC(),
	}); !errors.Is(err, purchaserepoport.ErrAlreadyExists) {
		t.Fatalf("Create duplicate err=%v, want ErrAlreadyExists", err)
	}
	if err := repo.Create(ctx, purchaserepoport.Purchase{
		ID:         bID,
		Client:     "worker-1",
		Payload:    json.RawMessage(`{}`),
		ReceivedAt: time.Unix(1000, 0).UTC(),
	}); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got.Payload, &decoded); err != nil || decoded["passId"] != "3-day" {
		t.Fatalf("payload=%s err=%v", got.Payload, err)
	}
	if _, err := repo.GetByID(ctx, domain.PurchaseID(uuid.NewString())); !errors.Is(err, purchaserepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ia, ib := -1, -1
	for i, p := range list {
		switch p.ID {
		case aID:
			ia = i
		case bID:
			ib = i
		}
	}
	if ia < 0 || ib < 0 || ib > ia {
		t.Fatalf("List order: a=%d b=%d, want b before a", ia, ib)
	}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
