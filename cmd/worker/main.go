package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/palm-beach-pass/pass-api/internal/adapters/httpapi"
	"github.com/palm-beach-pass/pass-api/internal/adapters/httpcatalog"
	kafkanotifier "github.com/palm-beach-pass/pass-api/internal/adapters/kafka/notifier"
	memcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/cachestore"
	memkvstore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/kvstore"
	memmapview "github.com/palm-beach-pass/pass-api/internal/adapters/memory/mapview"
	memnotifier "github.com/palm-beach-pass/pass-api/internal/adapters/memory/notifier"
	postgres "github.com/palm-beach-pass/pass-api/internal/adapters/postgres"
	pgcachestore "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/cachestore"
	redisclient "github.com/palm-beach-pass/pass-api/internal/adapters/redis"
	rediskvstore "github.com/palm-beach-pass/pass-api/internal/adapters/redis/kvstore"
	sqlitecachestore "github.com/palm-beach-pass/pass-api/internal/adapters/sqlite/cachestore"
	"github.com/palm-beach-pass/pass-api/internal/adapters/upstream"
	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/domain"
	platformclock "github.com/palm-beach-pass/pass-api/internal/platform/clock"
	"github.com/palm-beach-pass/pass-api/internal/platform/config"
	"github.com/palm-beach-pass/pass-api/internal/platform/metrics"
	cachestoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/cachestore"
	kvstoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	notifierport "github.com/palm-beach-pass/pass-api/internal/ports/out/notifier"
)

func main() {
	cfg, err := config.LoadWorkerConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	var cache cachestoreport.Store
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			log.Fatalf("invalid postgres config: %v", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		cache = pgcachestore.NewStore(pool)
	case "sqlite":
		s, err := sqlitecachestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite cache: %v", err)
		}
		cleanups = append(cleanups, func() { _ = s.Close() })
		cache = s
	default:
		cache = memcachestore.NewStore()
	}

	var kv kvstoreport.Store
	switch cfg.KVBackend {
	case "redis":
		rc, err := redisclient.NewClient(ctx, redisclient.Config{Addr: cfg.RedisAddr})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		cleanups = append(cleanups, func() { _ = rc.Close() })
		kv = rediskvstore.NewStore(rc, "pbp:"+cfg.ClientID+":")
	default:
		kv = memkvstore.NewStore()
	}

	// The hub always backs /_worker/events; kafka additionally publishes every message.
	hub := memnotifier.NewHub()
	var notify notifierport.Notifier = hub
	if cfg.NotifyBackend == "kafka" {
		kn := kafkanotifier.NewNotifier(kafkanotifier.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, clk)
		cleanups = append(cleanups, func() { _ = kn.Close() })
		notify = notifierport.Fanout(hub, kn)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	doer, err := upstream.NewDoer(cfg.AppOrigin, cfg.UpstreamURL, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("invalid upstream config: %v", err)
	}
	policy, err := offline.NewPolicy(cfg.Version, cfg.AppOrigin, cfg.AllowHosts)
	if err != nil {
		log.Fatalf("invalid worker config: %v", err)
	}
	worker := offline.NewWorker(policy, cache, doer, offline.NewClients(notify, clk), clk).
		WithMetrics(metrics.NewWorker(reg)).
		WithIdentity(domain.ClientID(cfg.ClientID))
	defer worker.Drain()

	scheduler := offline.NewScheduler(worker, cfg.SyncInterval, cfg.PeriodicSyncInterval)

	// Page controllers load the catalog through the worker so it is cached like any page fetch.
	src, err := httpcatalog.NewSource(&http.Client{Transport: worker, Timeout: cfg.HTTPTimeout}, cfg.AppOrigin)
	if err != nil {
		log.Fatalf("invalid catalog config: %v", err)
	}
	maps := memmapview.NewProvider()
	maps.Unavailable = !cfg.MapsEnabled
	registry := controller.NewRegistry(src, kv, maps, clk, controller.Credentials{
		Email:    cfg.DemoEmail,
		Password: cfg.DemoPassword,
	})

	if err := worker.Start(ctx); err != nil {
		log.Printf("worker: activate: %v", err)
	}
	go func() {
		_ = scheduler.Run(ctx)
	}()

	handler := httpapi.NewWorkerRouter(httpapi.WorkerRouterOptions{
		Worker: httpapi.WorkerHandlers{
			Worker:    worker,
			Scheduler: scheduler,
			Mailboxes: hub,
		},
		Controller: httpapi.ControllerHandlers{Registry: registry},
		Metrics:    metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("worker %s (v%s) listening on :%s, upstream %s", cfg.ClientID, cfg.Version, cfg.Port, cfg.UpstreamURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
