package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	memcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/cachestore"
	memclock "github.com/palm-beach-pass/pass-api/internal/adapters/memory/clock"
	memidempotency "github.com/palm-beach-pass/pass-api/internal/adapters/memory/idempotency"
	memkvstore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/kvstore"
	memmapview "github.com/palm-beach-pass/pass-api/internal/adapters/memory/mapview"
	memnotifier "github.com/palm-beach-pass/pass-api/internal/adapters/memory/notifier"
	mempurchaserepo "github.com/palm-beach-pass/pass-api/internal/adapters/memory/purchaserepo"
	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/app/origin"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	"github.com/palm-beach-pass/pass-api/internal/ports/out/network"
)

const testAppOrigin = "https://pbp.test"

type staticCatalog struct{}

func (staticCatalog) Passes(context.Context) ([]domain.Pass, error) {
	return controller.DefaultPasses(), nil
}

func (staticCatalog) Attractions(context.Context) ([]domain.Attraction, error) {
	return controller.DefaultAttractions(), nil
}

// switchableNet serves worker traffic from an in-process origin router until it is switched off.
type switchableNet struct {
	mu      sync.Mutex
	h       http.Handler
	offline bool
}

func (n *switchableNet) setOffline(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = v
}

func (n *switchableNet) Do(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	off := n.offline
	n.mu.Unlock()
	if off {
		return nil, io.ErrUnexpectedEOF
	}
	rec := httptest.NewRecorder()
	n.h.ServeHTTP(rec, req)
	return rec.Result(), nil
}

var _ network.Doer = (*switchableNet)(nil)

type fixture struct {
	handler   http.Handler
	origin    http.Handler
	worker    *offline.Worker
	scheduler *offline.Scheduler
	hub       *memnotifier.Hub
	registry  *controller.Registry
	originSvc *origin.Service
	net       *switchableNet
	clk       *memclock.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC))

	static := t.TempDir()
	for _, asset := range offline.DefaultCoreAssets {
		if asset == "/" {
			continue
		}
		body := "asset " + asset
		if asset == "/index.html" {
			body = "<html>shell</html>"
		}
		if err := os.WriteFile(filepath.Join(static, filepath.FromSlash(asset)), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", asset, err)
		}
	}
	originSvc := origin.NewService(memkvstore.NewStore(), mempurchaserepo.NewRepo(), memidempotency.NewStore(), clk, "1.0.0")
	originHandler := NewOriginRouter(OriginRouterOptions{
		Origin: OriginHandlers{
			Service:     originSvc,
			Passes:      controller.DefaultPasses(),
			Attractions: controller.DefaultAttractions(),
		},
		StaticDir: static,
	})
	net := &switchableNet{h: originHandler}

	policy, err := offline.NewPolicy("1.0.0", testAppOrigin, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	hub := memnotifier.NewHub()
	worker := offline.NewWorker(policy, memcachestore.NewStore(), net, offline.NewClients(hub, clk), clk).
		WithIdentity("worker-test")
	worker.SetNewIDForTest(func() string { return "id-1" })
	t.Cleanup(worker.Drain)
	scheduler := offline.NewScheduler(worker, time.Hour, time.Hour)

	registry := controller.NewRegistry(staticCatalog{}, memkvstore.NewStore(), memmapview.NewProvider(), clk, controller.Credentials{})

	h := NewWorkerRouter(WorkerRouterOptions{
		Worker:     WorkerHandlers{Worker: worker, Scheduler: scheduler, Mailboxes: hub, Heartbeat: time.Hour},
		Controller: ControllerHandlers{Registry: registry},
	})

	return &fixture{
		handler:   h,
		origin:    originHandler,
		worker:    worker,
		scheduler: scheduler,
		hub:       hub,
		registry:  registry,
		originSvc: originSvc,
		net:       net,
		clk:       clk,
	}
}

// do sends a request through h. body may be nil, a string sent verbatim, or a value encoded as JSON.
func do(t *testing.T, h http.Handler, method, path string, header http.Header, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, testAppOrigin+path, r)
	for k, vs := range header {
		req.Header[k] = vs
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func asClient(id string) http.Header {
	h := http.Header{}
	h.Set(ClientHeader, id)
	return h
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) ErrorResponse {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, wantStatus, rec.Body.String())
	}
	got := mustUnmarshal[ErrorResponse](t, rec.Body.Bytes())
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, rec.Body.String())
	}
	return got
}
