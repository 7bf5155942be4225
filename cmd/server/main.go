package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"route-recon/internal/cache"
	"route-recon/internal/catalog"
	"route-recon/internal/config"
	"route-recon/internal/database"
	"route-recon/internal/db"
	"route-recon/internal/handlers"
	"route-recon/internal/health"
	h "route-recon/internal/http"
	"route-recon/internal/middleware"
	"route-recon/internal/repositories"
	"route-recon/internal/services"
)

// recordStore is what the services need from either backend.
type recordStore interface {
	services.InventoryStore
	services.CashStore
	services.FeedStore
}

type pgStore struct {
	*repositories.InventoryRepository
	*repositories.CashRepository
	*repositories.FeedRepository
}

func main() {
	mode := flag.String("mode", "server", "Run mode: server or proxy")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional: presence, locks and the proxy cache fall back to process memory
	var redisPing func(context.Context) error
	if err := cache.Init(cfg); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (using in-process registries)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
		redisPing = func(ctx context.Context) error { return cache.GetClient().Ping(ctx).Err() }
		defer cache.Close()
	}

	corsMiddleware := middleware.NewCORS(cfg)

	var (
		router  http.Handler
		cleanup = func() {}
	)
	switch *mode {
	case "proxy":
		if cfg.Server.ProxyUpstream == "" {
			log.Fatal("proxy mode needs server.proxy_upstream or PROXY_UPSTREAM")
		}
		log.Printf("Starting in PROXY mode -> %s", cfg.Server.ProxyUpstream)
		healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(nil, redisPing))
		proxyHandler := handlers.NewProxyHandler(cfg.Server.ProxyUpstream, cfg.Server.ProxyCacheTTL)
		router = h.NewProxyRouter(proxyHandler, healthHandler)
	case "server":
		router, cleanup = buildServer(ctx, cfg, redisPing)
	default:
		log.Fatalf("unknown mode %q (want server or proxy)", *mode)
	}

	// Wrap with panic recovery and metrics middleware
	handler := middleware.PanicRecovery(middleware.MetricsMiddleware(corsMiddleware(router)))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		log.Printf("Server running on %s (mode: %s)", addr, *mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	cleanup()
	log.Println("Graceful shutdown complete")
}

// buildServer wires the record server. The returned cleanup runs after the
// HTTP server has drained.
func buildServer(ctx context.Context, cfg *config.Config, redisPing func(context.Context) error) (http.Handler, func()) {
	cat, err := catalog.Load(cfg.Server.CatalogFile)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("[Catalog] %d products on %d routes", len(cat.Products()), len(cat.Routes))

	var (
		store recordStore
		pool  *pgxpool.Pool
	)
	switch cfg.Server.Store {
	case "memory":
		log.Println("[Store] Using in-memory records (lost on restart)")
		store = repositories.NewMemoryStore()
	default:
		pool = db.Connect(cfg)

		log.Println("Running database migrations...")
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.NewMigrator(pool, cfg.Server.MigrationsDir).RunMigrations(migrateCtx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store = pgStore{
			InventoryRepository: repositories.NewInventoryRepository(pool),
			CashRepository:      repositories.NewCashRepository(pool),
			FeedRepository:      repositories.NewFeedRepository(pool),
		}
	}

	var (
		presenceReg services.PresenceRegistry = services.NewMemoryPresenceRegistry()
		lockReg     services.LockRegistry     = services.NewMemoryLockRegistry()
	)
	if rdb := cache.GetClient(); rdb != nil {
		presenceReg = cache.NewPresenceRegistry(rdb)
		lockReg = cache.NewLockRegistry(rdb)
	}

	liveHandler := handlers.NewLiveHandler()
	go liveHandler.Run(ctx)

	var (
		archiver services.Archiver
		lister   handlers.SnapshotLister
	)
	if cfg.Archive.Ready() {
		archive, err := services.NewArchiveService(ctx, cfg.Archive)
		if err != nil {
			log.Printf("[Archive] Disabled: %v", err)
		} else {
			archive.Start(2)
			archiver, lister = archive, archive
			log.Printf("[Archive] Uploading snapshots to bucket %s", cfg.Archive.Bucket)
		}
	}

	// Initialize services
	lockService := services.NewLockService(lockReg, cfg.Coordination.LockTTL, liveHandler)
	presenceService := services.NewPresenceService(presenceReg, lockReg, cfg.Coordination.PresenceTTL)
	inventoryService := services.NewInventoryService(store, cat, archiver, liveHandler)
	cashService := services.NewCashService(store, archiver, liveHandler)
	realtimeService := services.NewRealtimeService(store, lockService)
	reportService := services.NewReportService(store, store, store, cat)

	// Initialize handlers
	rpcHandler := handlers.NewRPCHandler(presenceService, lockService, inventoryService, cashService, realtimeService)
	reportHandler := handlers.NewReportHandler(reportService, lister)
	healthHandler := handlers.NewHealthHandler(health.NewHealthChecker(pool, redisPing))

	cleanup := func() {
		if archive, ok := archiver.(*services.ArchiveService); ok {
			archive.Stop()
		}
		if pool != nil {
			pool.Close()
		}
	}
	return h.NewRouter(rpcHandler, reportHandler, liveHandler, healthHandler), cleanup
}
