package httpapi

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/app/offline"
)

func TestWorkerRouter_Healthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestWorkerRouter_VersionQueryEchoesCorrelationID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/messages", nil, map[string]any{
		"type": "GET_VERSION",
		"data": map[string]any{"correlationId": "abc"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := mustUnmarshal[offline.VersionReply](t, rec.Body.Bytes())
	if got.Version != "1.0.0" || got.CorrelationID != "abc" {
		t.Fatalf("reply=%+v", got)
	}
}

func TestWorkerRouter_UnknownMessageType_400WithRequestID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/messages", nil, `{"type":"REBOOT"}`)
	er := requireErrorCode(t, rec, http.StatusBadRequest, "UNKNOWN_MESSAGE_TYPE")
	if rid, err := er.Error.RequestId.Get(); err != nil || rid == "" {
		t.Fatalf("requestId missing: %v", err)
	}
}

func TestWorkerRouter_CommandsReturnNoContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/messages", nil, `{"type":"SKIP_WAITING"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	for _, body := range []string{`{"type":"CLEAR_CACHE","data":{"cacheType":""}}`, `{"type":"CLEAR_CACHE"}`} {
		rec = do(t, f.handler, http.MethodPost, "/_worker/messages", nil, body)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s status=%d body=%s", body, rec.Code, rec.Body.String())
		}
	}
}

func TestWorkerRouter_StorageRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodGet, "/_worker/storage/cart", nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = do(t, f.handler, http.MethodPut, "/_worker/storage/cart", nil, `{"passId":"3-day"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, f.handler, http.MethodGet, "/_worker/storage/cart", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"passId":"3-day"}` {
		t.Fatalf("get status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, f.handler, http.MethodPut, "/_worker/storage/cart", nil, `not json`)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestWorkerRouter_SyncRegistration(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/sync", nil, map[string]string{"tag": "sync-everything"})
	requireErrorCode(t, rec, http.StatusBadRequest, "UNKNOWN_SYNC_TAG")

	for i := 0; i < 2; i++ {
		rec = do(t, f.handler, http.MethodPost, "/_worker/sync", nil, map[string]string{"tag": "sync-cart"})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
	}
	if got := f.scheduler.Pending(); len(got) != 1 || got[0] != "sync-cart" {
		t.Fatalf("pending=%v", got)
	}
}

func TestWorkerRouter_QueuedCartSyncReachesOrigin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	do(t, f.handler, http.MethodPut, "/_worker/storage/cart", nil, `{"passId":"3-day"}`)
	do(t, f.handler, http.MethodPost, "/_worker/sync", nil, map[string]string{"tag": "sync-cart"})

	if n := f.scheduler.Flush(context.Background()); n != 1 {
		t.Fatalf("flushed=%d", n)
	}
	snap, err := f.originSvc.LatestSnapshot(context.Background(), "cart", "worker-test")
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if string(snap.Payload) != `{"passId":"3-day"}` {
		t.Fatalf("payload=%s", snap.Payload)
	}
}

func TestWorkerRouter_PushThenClickFocusesClient(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/clients", asClient("tab-1"), map[string]string{"url": testAppOrigin + "/passes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, f.handler, http.MethodPost, "/_worker/push", nil, `{"title":"Deal","url":"/passes"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("push status=%d body=%s", rec.Code, rec.Body.String())
	}
	n := mustUnmarshal[offline.Notification](t, rec.Body.Bytes())
	if n.Title != "Deal" || n.Tag != "palm-beach-pass" {
		t.Fatalf("notification=%+v", n)
	}

	rec = do(t, f.handler, http.MethodPost, "/_worker/notifications/"+n.ID+"/click", nil, map[string]string{"action": "view"})
	if rec.Code != http.StatusOK {
		t.Fatalf("click status=%d body=%s", rec.Code, rec.Body.String())
	}
	res := mustUnmarshal[offline.ClickResult](t, rec.Body.Bytes())
	if res.Outcome != offline.ClickFocus || res.ClientID != "tab-1" {
		t.Fatalf("result=%+v", res)
	}

	rec = do(t, f.handler, http.MethodPost, "/_worker/notifications/"+n.ID+"/click", nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "NOTIFICATION_NOT_FOUND")
}

func TestWorkerRouter_ClientRoutesRequireClientID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_worker/clients", nil, map[string]string{"url": "/"})
	requireErrorCode(t, rec, http.StatusBadRequest, "MISSING_CLIENT_ID")
}

func TestWorkerRouter_FallthroughServesThroughWorker(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	header := http.Header{"Accept": []string{"application/json"}}

	rec := do(t, f.handler, http.MethodGet, "/data/passes.json", header, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"3-day"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}

	// Catalog files are not cacheable, so they are unavailable offline.
	f.net.setOffline(true)
	rec = do(t, f.handler, http.MethodGet, "/data/passes.json", header, nil)
	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "Offline" {
		t.Fatalf("offline status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestWorkerRouter_APIResponsesServedFromCacheOffline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	header := http.Header{"Accept": []string{"application/json"}}

	rec := do(t, f.handler, http.MethodGet, "/api/passes/check-updates?since=0.9.0", header, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	online := rec.Body.String()

	f.net.setOffline(true)
	rec = do(t, f.handler, http.MethodGet, "/api/passes/check-updates?since=0.9.0", header, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != online {
		t.Fatalf("offline status=%d body=%q want %q", rec.Code, rec.Body.String(), online)
	}
}

func TestWorkerRouter_OfflineDocumentGetsCachedShell(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.worker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.net.setOffline(true)
	rec := do(t, f.handler, http.MethodGet, "/attractions", http.Header{"Accept": []string{"text/html"}}, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>shell</html>" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestWorkerRouter_PassThroughPost(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	header := asClient("tab-9")
	header.Set("Idempotency-Key", "p-1")
	rec := do(t, f.handler, http.MethodPost, "/api/purchases", header, `{"id":"p-1","passId":"1-day"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestWorkerRouter_ControllerSessionAndCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := do(t, f.handler, http.MethodPost, "/_app/session", nil, map[string]string{"email": "demo@palmbeachpass.com", "password": "demo123"})
	requireErrorCode(t, rec, http.StatusBadRequest, "MISSING_CLIENT_ID")

	rec = do(t, f.handler, http.MethodPost, "/_app/cart", asClient("tab-1"), map[string]string{"passId": "3-day"})
	requireErrorCode(t, rec, http.StatusUnauthorized, "AUTH_REQUIRED")

	rec = do(t, f.handler, http.MethodPost, "/_app/session", asClient("tab-1"), map[string]string{"email": "demo@palmbeachpass.com", "password": "wrong"})
	requireErrorCode(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rec = do(t, f.handler, http.MethodPost, "/_app/session", asClient("tab-1"), map[string]string{"email": " Demo@PalmBeachPass.com ", "password": "demo123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}
	s := mustUnmarshal[SessionDTO](t, rec.Body.Bytes())
	if !s.IsLoggedIn || s.User.ID != "demo-user" || s.User.JoinDate.String() != "2025-01-01" {
		t.Fatalf("session=%+v", s)
	}

	rec = do(t, f.handler, http.MethodPost, "/_app/cart", asClient("tab-1"), map[string]string{"passId": "3-day"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cart status=%d body=%s", rec.Code, rec.Body.String())
	}
	cart := mustUnmarshal[CartDTO](t, rec.Body.Bytes())
	if cart.Count != 1 || cart.Items[0].PassID != "3-day" || cart.Items[0].AdultQty != 1 || cart.Total != 189 {
		t.Fatalf("cart=%+v", cart)
	}

	rec = do(t, f.handler, http.MethodPost, "/_app/cart", asClient("tab-1"), map[string]string{"passId": "10-day"})
	requireErrorCode(t, rec, http.StatusNotFound, "PASS_NOT_FOUND")

	rec = do(t, f.handler, http.MethodGet, "/_app/state", asClient("tab-2"), nil)
	st := mustUnmarshal[StateDTO](t, rec.Body.Bytes())
	if st.Session.IsSpecified() && !st.Session.IsNull() {
		t.Fatalf("tab-2 should not share tab-1's session")
	}
	if st.Cart.Count != 0 || len(st.Passes) != 4 {
		t.Fatalf("state=%+v", st)
	}
}

type filterResult struct {
	Filter      string `json:"filter"`
	Attractions []struct {
		Category string `json:"category"`
	} `json:"attractions"`
	Markers []MarkerDTO `json:"markers"`
}

func TestWorkerRouter_ControllerFilterAndMap(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := do(t, f.handler, http.MethodPost, "/_app/map", asClient("tab-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("map status=%d body=%s", rec.Code, rec.Body.String())
	}
	st := mustUnmarshal[StateDTO](t, rec.Body.Bytes())
	if !st.MapReady || len(st.Markers) == 0 {
		t.Fatalf("state=%+v", st)
	}

	rec = do(t, f.handler, http.MethodPost, "/_app/attractions/filter", asClient("tab-1"), map[string]string{"category": "dining"})
	if rec.Code != http.StatusOK {
		t.Fatalf("filter status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := mustUnmarshal[filterResult](t, rec.Body.Bytes())
	for _, a := range got.Attractions {
		if a.Category != "dining" {
			t.Fatalf("unexpected category %q", a.Category)
		}
	}
	visible := 0
	for _, m := range got.Markers {
		if m.Visible {
			visible++
		}
	}
	if visible != len(got.Attractions) {
		t.Fatalf("visible markers=%d attractions=%d", visible, len(got.Attractions))
	}

	rec = do(t, f.handler, http.MethodGet, "/_app/attractions/nope", asClient("tab-1"), nil)
	requireErrorCode(t, rec, http.StatusNotFound, "ATTRACTION_NOT_FOUND")
}

func TestWorkerRouter_EventStreamDeliversMessages(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/_worker/events?clientId=tab-1&url=/passes", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	if err := f.worker.Clients().Send(context.Background(), "tab-1", offline.EventCartSynced, map[string]any{"success": true}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	sc := bufio.NewScanner(res.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if data != "" {
			break
		}
	}
	if event != offline.EventCartSynced || !strings.Contains(data, `"success":true`) {
		t.Fatalf("event=%q data=%q", event, data)
	}
}

func TestWorkerRouter_EventStreamEndsWhenClientUnregisters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/_worker/events?clientId=tab-1&url=/passes", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()

	del, err := http.NewRequestWithContext(ctx, http.MethodDelete, srv.URL+"/_worker/clients", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	del.Header.Set(ClientHeader, "tab-1")
	delRes, err := srv.Client().Do(del)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	_ = delRes.Body.Close()
	if delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", delRes.StatusCode)
	}

	if _, err := io.ReadAll(res.Body); err != nil {
		t.Fatalf("stream did not end cleanly: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("stream stayed open until timeout")
	}
}
