package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assetservice "aurum/internal/assetregistry/service"
	assetstore "aurum/internal/assetregistry/store"
	compliancemetrics "aurum/internal/compliance/metrics"
	complianceservice "aurum/internal/compliance/service"
	compliancestore "aurum/internal/compliance/store"
	custodymetrics "aurum/internal/custody/metrics"
	custodyservice "aurum/internal/custody/service"
	custodystore "aurum/internal/custody/store"
	"aurum/internal/events"
	"aurum/internal/platform/config"
	"aurum/internal/platform/httpserver"
	"aurum/internal/platform/logger"
	"aurum/internal/platform/postgres"
	"aurum/internal/platform/redis"
	httpapi "aurum/internal/transport/http"
	vaultmetrics "aurum/internal/vault/metrics"
	vaultservice "aurum/internal/vault/service"
	vaultstore "aurum/internal/vault/store"
	yieldservice "aurum/internal/yield/service"
	yieldstore "aurum/internal/yield/store"
	"aurum/internal/zkgate"
)

const backlogInterval = 30 * time.Second

// main wires stores, services, and the HTTP router. Business rules live in
// the internal services; nothing here makes a ledger decision.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	publisher, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	complianceOpts := []complianceservice.Option{
		complianceservice.WithMetrics(compliancemetrics.New()),
		complianceservice.WithEvents(publisher),
	}
	if stores.cache != nil {
		complianceOpts = append(complianceOpts, complianceservice.WithCache(stores.cache))
	}
	compliance := complianceservice.NewService(stores.compliance, log, complianceOpts...)

	// The gate verifies proofs against the registry's published root.
	gate := zkgate.New(compliance)

	assets := assetservice.NewService(stores.assets, log, publisher)
	vaults := vaultservice.NewService(stores.vault, compliance, gate, log,
		vaultservice.WithMetrics(vaultmetrics.New()),
		vaultservice.WithEvents(publisher),
	)
	yield := yieldservice.NewService(stores.yield, vaults, log,
		yieldservice.WithEvents(publisher),
	)
	bridge := custodyservice.NewService(stores.custody, vaults, assets, yield, log,
		custodyservice.WithMetrics(custodymetrics.New()),
		custodyservice.WithEvents(publisher),
	)
	go bridge.RunBacklogMonitor(ctx, backlogInterval)

	admin := httpapi.AdminAuth([]byte(cfg.AdminJWTKey), log)
	router := httpapi.NewRouter(log, httpapi.Handlers{
		Compliance: httpapi.NewComplianceHandler(compliance, log, admin),
		Assets:     httpapi.NewAssetHandler(assets, log),
		Vault:      httpapi.NewVaultHandler(vaults, log, admin),
		Custody:    httpapi.NewCustodyHandler(bridge, log, admin),
		Yield:      httpapi.NewYieldHandler(yield, log),
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type storeSet struct {
	compliance complianceservice.Store
	cache      complianceservice.EligibilityCache
	assets     assetservice.Store
	vault      vaultservice.Store
	custody    custodyservice.ReceiptStore
	yield      yieldservice.Store
}

// buildStores selects PostgreSQL when a DSN is configured and process memory
// otherwise. Memory mode is for local development only.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (storeSet, func(), error) {
	cleanup := func() {}
	var stores storeSet

	if cfg.PostgresDSN == "" {
		log.Warn("no postgres DSN configured, using in-memory stores")
		stores.compliance = compliancestore.NewInMemory()
		stores.assets = assetstore.NewInMemory()
		stores.vault = vaultstore.NewInMemory()
		stores.custody = custodystore.NewInMemory()
		stores.yield = yieldstore.NewInMemory()
	} else {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return storeSet{}, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return storeSet{}, nil, err
		}
		cleanup = func() { db.Close() }
		stores.compliance = compliancestore.NewPostgres(db)
		stores.assets = assetstore.NewPostgres(db)
		stores.vault = vaultstore.NewPostgres(db)
		stores.custody = custodystore.NewPostgres(db)
		stores.yield = yieldstore.NewPostgres(db)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Warn("eligibility cache disabled", "error", err)
	} else if redisClient != nil {
		stores.cache = compliancestore.NewRedisEligibilityCache(redisClient.Client)
		prev := cleanup
		cleanup = func() {
			redisClient.Close()
			prev()
		}
	}
	return stores, cleanup, nil
}

// buildPublisher emits ledger events to Kafka when brokers are configured,
// falling back to the in-process store so emission never becomes a nil check
// in services.
func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (*events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("no kafka brokers configured, events stay in process")
		return events.NewPublisher(events.NewInMemoryStore(), events.WithLogger(log)), nil
	}
	store, err := events.NewKafkaStore(ctx, cfg.KafkaBrokers, cfg.EventTopic)
	if err != nil {
		return nil, err
	}
	return events.NewPublisher(store,
		events.WithAsyncBuffer(1024),
		events.WithLogger(log),
	), nil
}
