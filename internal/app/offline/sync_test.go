package offline_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/palm-beach-pass/pass-api/internal/app/offline"
)

func TestWorker_SyncCart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	inbox := h.connect(t, "tab-1", origin+"/")
	h.worker.Clients().Claim(ctx, "1.0.0")
	received(inbox)
	h.net.serve("POST /api/cart/sync", 200, "application/json", `{"ok":true}`)

	// No blob: nothing to do.
	if err := h.worker.Sync(ctx, offline.TagSyncCart); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n := len(h.net.callsTo(http.MethodPost, "/api/cart/sync")); n != 0 {
		t.Fatalf("posts=%d, want 0", n)
	}

	cart := `[{"passId":"3-day","adultQty":1,"childQty":0}]`
	if err := h.worker.StoreData(ctx, offline.StorageCart, json.RawMessage(cart)); err != nil {
		t.Fatalf("StoreData: %v", err)
	}
	if err := h.worker.Sync(ctx, offline.TagSyncCart); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	calls := h.net.callsTo(http.MethodPost, "/api/cart/sync")
	if len(calls) != 1 || string(calls[0].Body) != cart || calls[0].Header.Get("X-Client-ID") != "worker-test" {
		t.Fatalf("calls=%+v", calls)
	}
	msgs := received(inbox)
	if len(msgs) != 1 || msgs[0].Type != offline.EventCartSynced {
		t.Fatalf("messages=%v", types(msgs))
	}
}

func TestWorker_SyncPasses_FailureIsSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	inbox := h.connect(t, "tab-1", origin+"/")
	h.worker.Clients().Claim(ctx, "1.0.0")
	received(inbox)
	_ = h.worker.StoreData(ctx, offline.StorageUserPasses, json.RawMessage(`[{"id":"pass-1"}]`))

	h.net.serve("POST /api/passes/sync", 500, "text/plain", "boom")
	if err := h.worker.Sync(ctx, offline.TagSyncPasses); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	h.net.setOffline(true)
	if err := h.worker.Sync(ctx, offline.TagSyncPasses); err != nil {
		t.Fatalf("Sync offline: %v", err)
	}
	if msgs := received(inbox); len(msgs) != 0 {
		t.Fatalf("messages=%v, want none", types(msgs))
	}
}

func TestWorker_SyncPurchases_PartialFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	inbox := h.connect(t, "tab-1", origin+"/")
	h.worker.Clients().Claim(ctx, "1.0.0")
	received(inbox)

	pending := `[{"id":"a","total":189},{"id":"b","total":269},{"id":"c","total":89}]`
	if err := h.worker.StoreData(ctx, offline.StoragePendingPurchases, json.RawMessage(pending)); err != nil {
		t.Fatalf("StoreData: %v", err)
	}
	h.net.handle("POST /api/purchases", func(r *http.Request, _ []byte) (int, http.Header, string) {
		if r.Header.Get("Idempotency-Key") == "b" {
			return 500, nil, "fail"
		}
		return 201, nil, "{}"
	})

	if err := h.worker.Sync(ctx, offline.TagSyncPurchases); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	calls := h.net.callsTo(http.MethodPost, "/api/purchases")
	if len(calls) != 3 {
		t.Fatalf("posts=%d, want 3", len(calls))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got := calls[i].Header.Get("Idempotency-Key"); got != want {
			t.Fatalf("call %d Idempotency-Key=%q, want %q", i, got, want)
		}
	}

	left, err := h.worker.LoadData(ctx, offline.StoragePendingPurchases)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	var remaining []map[string]any
	if err := json.Unmarshal(left, &remaining); err != nil {
		t.Fatalf("decode remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0]["id"] != "b" {
		t.Fatalf("remaining=%v", remaining)
	}

	msgs := received(inbox)
	if len(msgs) != 1 || msgs[0].Type != offline.EventPurchasesSynced {
		t.Fatalf("messages=%v", types(msgs))
	}
}

func remainingPurchases(t *testing.T, h *harness) []map[string]any {
	t.Helper()
	left, err := h.worker.LoadData(context.Background(), offline.StoragePendingPurchases)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	var remaining []map[string]any
	if err := json.Unmarshal(left, &remaining); err != nil {
		t.Fatalf("decode remaining: %v", err)
	}
	return remaining
}

func TestWorker_SyncPurchases_WithoutIDStayPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	pending := `[{"total":1},{"total":2}]`
	if err := h.worker.StoreData(ctx, offline.StoragePendingPurchases, json.RawMessage(pending)); err != nil {
		t.Fatalf("StoreData: %v", err)
	}
	h.net.handle("POST /api/purchases", func(r *http.Request, body []byte) (int, http.Header, string) {
		if r.Header.Get("Idempotency-Key") != "" {
			return 400, nil, "unexpected key"
		}
		if strings.Contains(string(body), `"total":2`) {
			return 500, nil, "fail"
		}
		return 201, nil, "{}"
	})

	_ = h.worker.Sync(ctx, offline.TagSyncPurchases)

	if n := len(h.net.callsTo(http.MethodPost, "/api/purchases")); n != 2 {
		t.Fatalf("posts=%d, want 2", n)
	}
	remaining := remainingPurchases(t, h)
	if len(remaining) != 2 || remaining[0]["total"] != float64(1) || remaining[1]["total"] != float64(2) {
		t.Fatalf("remaining=%v", remaining)
	}
}

func TestWorker_SyncPurchases_NumericAndStringIDsAreDistinct(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	pending := `[{"id":1,"n":"a"},{"id":"1","n":"b"}]`
	if err := h.worker.StoreData(ctx, offline.StoragePendingPurchases, json.RawMessage(pending)); err != nil {
		t.Fatalf("StoreData: %v", err)
	}
	h.net.handle("POST /api/purchases", func(_ *http.Request, body []byte) (int, http.Header, string) {
		if strings.Contains(string(body), `"n":"b"`) {
			return 500, nil, "fail"
		}
		return 201, nil, "{}"
	})

	_ = h.worker.Sync(ctx, offline.TagSyncPurchases)

	remaining := remainingPurchases(t, h)
	if len(remaining) != 1 || remaining[0]["id"] != "1" || remaining[0]["n"] != "b" {
		t.Fatalf("remaining=%v", remaining)
	}
}

func TestWorker_SyncPurchases_EmptyQueueStillBroadcasts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	inbox := h.connect(t, "tab-1", origin+"/")
	h.worker.Clients().Claim(ctx, "1.0.0")
	received(inbox)

	_ = h.worker.Sync(ctx, offline.TagSyncPurchases)
	if got := types(received(inbox)); len(got) != 1 || got[0] != offline.EventPurchasesSynced {
		t.Fatalf("messages=%v", got)
	}
}

func TestWorker_UpdatePasses(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	inbox := h.connect(t, "tab-1", origin+"/")
	h.worker.Clients().Claim(ctx, "1.0.0")
	received(inbox)

	h.net.serve("GET /api/passes/check-updates", 200, "application/json", `{"hasUpdates":false}`)
	_ = h.worker.Sync(ctx, offline.TagUpdatePasses)
	if msgs := received(inbox); len(msgs) != 0 {
		t.Fatalf("messages=%v, want none", types(msgs))
	}

	h.net.serve("GET /api/passes/check-updates", 200, "application/json", `{"hasUpdates":true,"version":"2025-07"}`)
	_ = h.worker.Sync(ctx, offline.TagUpdatePasses)
	msgs := received(inbox)
	if len(msgs) != 1 || msgs[0].Type != offline.EventPassUpdatesAvailable {
		t.Fatalf("messages=%v", types(msgs))
	}
	data, _ := msgs[0].Data.(map[string]any)
	if data["version"] != "2025-07" {
		t.Fatalf("data=%v", msgs[0].Data)
	}
}

func TestWorker_SyncUnknownTag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var appErr *offline.Error
	if err := h.worker.Sync(context.Background(), "sync-everything"); !errors.As(err, &appErr) || appErr.Code != "UNKNOWN_SYNC_TAG" {
		t.Fatalf("err=%v", err)
	}
}

func TestScheduler_RunsQueuedTagsWhenOnline(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	s := offline.NewScheduler(h.worker, 0, 0)
	_ = h.worker.StoreData(ctx, offline.StorageCart, json.RawMessage(`[{"passId":"1-day"}]`))
	h.net.serve("POST /api/cart/sync", 200, "application/json", "{}")
	h.net.serve("GET /healthz", 200, "text/plain", "ok")

	if err := s.Register("sync-nothing"); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
	if err := s.Register(offline.TagSyncCart); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_ = s.Register(offline.TagSyncCart)
	if got := s.Pending(); len(got) != 1 || got[0] != offline.TagSyncCart {
		t.Fatalf("pending=%v", got)
	}

	h.net.setOffline(true)
	if n := s.Flush(ctx); n != 0 {
		t.Fatalf("Flush offline ran %d", n)
	}
	if len(s.Pending()) != 1 {
		t.Fatalf("tag dropped while offline")
	}

	h.net.setOffline(false)
	if n := s.Flush(ctx); n != 1 {
		t.Fatalf("Flush ran %d, want 1", n)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("pending=%v", s.Pending())
	}
	if n := len(h.net.callsTo(http.MethodPost, "/api/cart/sync")); n != 1 {
		t.Fatalf("posts=%d", n)
	}
}

func TestWorker_StoreDataRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var appErr *offline.Error
	if err := h.worker.StoreData(context.Background(), offline.StorageCart, json.RawMessage("{")); !errors.As(err, &appErr) {
		t.Fatalf("err=%v", err)
	}
}
