package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/palm-beach-pass/pass-api/internal/adapters/httpapi"
	"github.com/palm-beach-pass/pass-api/internal/adapters/httpcatalog"
	memcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/cachestore"
	memclock "github.com/palm-beach-pass/pass-api/internal/adapters/memory/clock"
	memidempotency "github.com/palm-beach-pass/pass-api/internal/adapters/memory/idempotency"
	memkvstore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/kvstore"
	memmapview "github.com/palm-beach-pass/pass-api/internal/adapters/memory/mapview"
	memnotifier "github.com/palm-beach-pass/pass-api/internal/adapters/memory/notifier"
	mempurchaserepo "github.com/palm-beach-pass/pass-api/internal/adapters/memory/purchaserepo"
	pgcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/cachestore"
	pgidempotency "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/idempotency"
	pgpurchaserepo "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/purchaserepo"
	postgres_testutil "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/testutil"
	sqlitecachestore "github.com/palm-beach-pass/pass-api/internal/adapters/sqlite/cachestore"
	"github.com/palm-beach-pass/pass-api/internal/adapters/upstream"
	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/app/origin"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	cachestoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
	idempotencyport "github.com/palm-beach-pass/pass-api/internal/ports/out/idempotency"
	purchaserepoport "github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendSQLite   backend = "sqlite"
)

const appOrigin = "http://pbp.itest"

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "sqlite":
		return []backend{backendSQLite}
	case "all":
		return []backend{backendMemory, backendSQLite, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|sqlite|postgres|all)")
		return nil
	}
}

// testStack is an origin server and a worker server talking to it over real HTTP.
type testStack struct {
	originURL string
	workerURL string
	client    *http.Client

	worker    *offline.Worker
	scheduler *offline.Scheduler
	hub       *memnotifier.Hub
	purchases purchaserepoport.Repository
}

func newTestStack(t *testing.T, b backend) *testStack {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC))

	var (
		cache     cachestoreport.Store
		purchases purchaserepoport.Repository
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		cache = pgcachestore.NewStore(pool)
		purchases = pgpurchaserepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case backendSQLite:
		s, err := sqlitecachestore.Open(filepath.Join(t.TempDir(), "cache.db"))
		if err != nil {
			t.Fatalf("sqlite Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		cache = s
		purchases = mempurchaserepo.NewRepo()
		idemStore = memidempotency.NewStore()
	case backendMemory:
		cache = memcachestore.NewStore()
		purchases = mempurchaserepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	static := t.TempDir()
	for _, asset := range offline.DefaultCoreAssets {
		if asset == "/" {
			continue
		}
		if err := os.WriteFile(filepath.Join(static, filepath.FromSlash(asset)), []byte("asset "+asset), 0o644); err != nil {
			t.Fatalf("write %s: %v", asset, err)
		}
	}

	originSvc := origin.NewService(memkvstore.NewStore(), purchases, idemStore, clk, "1.0.0")
	originSrv := httptest.NewServer(httpapi.NewOriginRouter(httpapi.OriginRouterOptions{
		Origin: httpapi.OriginHandlers{
			Service:     originSvc,
			Passes:      controller.DefaultPasses(),
			Attractions: controller.DefaultAttractions(),
		},
		StaticDir: static,
	}))
	t.Cleanup(originSrv.Close)

	doer, err := upstream.NewDoer(appOrigin, originSrv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewDoer: %v", err)
	}
	policy, err := offline.NewPolicy("1.0.0", appOrigin, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	hub := memnotifier.NewHub()
	worker := offline.NewWorker(policy, cache, doer, offline.NewClients(hub, clk), clk).WithIdentity("itest-worker")
	t.Cleanup(worker.Drain)
	scheduler := offline.NewScheduler(worker, time.Hour, time.Hour)

	catalogSrc, err := httpcatalog.NewSource(&http.Client{Transport: worker}, appOrigin)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	registry := controller.NewRegistry(catalogSrc, memkvstore.NewStore(), memmapview.NewProvider(), clk, controller.Credentials{})

	workerSrv := httptest.NewServer(httpapi.NewWorkerRouter(httpapi.WorkerRouterOptions{
		Worker:     httpapi.WorkerHandlers{Worker: worker, Scheduler: scheduler, Mailboxes: hub},
		Controller: httpapi.ControllerHandlers{Registry: registry},
	}))
	t.Cleanup(workerSrv.Close)

	return &testStack{
		originURL: originSrv.URL,
		workerURL: workerSrv.URL,
		client:    workerSrv.Client(),
		worker:    worker,
		scheduler: scheduler,
		hub:       hub,
		purchases: purchases,
	}
}

func (s *testStack) doJSON(t *testing.T, base, method, path, client string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, base+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if client != "" {
		req.Header.Set(httpapi.ClientHeader, client)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

// drain returns the message types currently queued for client.
func (s *testStack) drain(client string) []string {
	var out []string
	msgs := s.hub.Messages(domain.ClientID(client))
	for {
		select {
		case m := <-msgs:
			out = append(out, m.Type)
		default:
			return out
		}
	}
}
