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
	memidempotency "github.com/palm-beach-pass/pass-api/internal/adapters/memory/idempotency"
	memkvstore "github.com/palm-beach-pass/pass-api/internal/adapters/memory/kvstore"
	mempurchaserepo "github.com/palm-beach-pass/pass-api/internal/adapters/memory/purchaserepo"
	postgres "github.com/palm-beach-pass/pass-api/internal/adapters/postgres"
	pgidempotency "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/idempotency"
	pgpurchaserepo "github.com/palm-beach-pass/pass-api/internal/adapters/postgres/purchaserepo"
	redisclient "github.com/palm-beach-pass/pass-api/internal/adapters/redis"
	rediskvstore "github.com/palm-beach-pass/pass-api/internal/adapters/redis/kvstore"
	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/app/origin"
	platformclock "github.com/palm-beach-pass/pass-api/internal/platform/clock"
	"github.com/palm-beach-pass/pass-api/internal/platform/config"
	"github.com/palm-beach-pass/pass-api/internal/platform/metrics"
	idempotencyport "github.com/palm-beach-pass/pass-api/internal/ports/out/idempotency"
	kvstoreport "github.com/palm-beach-pass/pass-api/internal/ports/out/kvstore"
	purchaserepoport "github.com/palm-beach-pass/pass-api/internal/ports/out/purchaserepo"
)

func main() {
	cfg, err := config.LoadOriginConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var (
		purchases purchaserepoport.Repository
		idemStore idempotencyport.Store
		kv        kvstoreport.Store
		cleanups  []func()
	)
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

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
		purchases = pgpurchaserepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	default:
		purchases = mempurchaserepo.NewRepo()
		idemStore = memidempotency.NewStore()
	}

	switch cfg.KVBackend {
	case "redis":
		rc, err := redisclient.NewClient(ctx, redisclient.Config{Addr: cfg.RedisAddr})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		cleanups = append(cleanups, func() { _ = rc.Close() })
		kv = rediskvstore.NewStore(rc, "pbp:origin:")
	default:
		kv = memkvstore.NewStore()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := origin.NewService(kv, purchases, idemStore, clk, cfg.CatalogVersion)

	handler := httpapi.NewOriginRouter(httpapi.OriginRouterOptions{
		Origin: httpapi.OriginHandlers{
			Service:     svc,
			Passes:      controller.DefaultPasses(),
			Attractions: controller.DefaultAttractions(),
		},
		Metrics:   metrics.Handler(reg),
		StaticDir: cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s (catalog v%s, storage=%s)", cfg.Port, cfg.CatalogVersion, cfg.StorageBackend)
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
