package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/apexflow/api/internal/handlers"
	"github.com/apexflow/api/internal/platform/auth"
	"github.com/apexflow/api/internal/platform/config"
	pfirestore "github.com/apexflow/api/internal/platform/firestore"
	"github.com/apexflow/api/internal/platform/idempotency"
	"github.com/apexflow/api/internal/platform/jobs"
	"github.com/apexflow/api/internal/platform/observability"
	"github.com/apexflow/api/internal/platform/secrets"
	firestoreRepo "github.com/apexflow/api/internal/repositories/firestore"
	"github.com/apexflow/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	configOpts := []config.Option{}
	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Warn("secret fetcher unavailable; secret references will fail to resolve", zap.Error(err))
	} else {
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		}()
		configOpts = append(configOpts, config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)))
	}

	cfg, err := config.Load(ctx, configOpts...)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(startedAt)

	firestoreProvider := pfirestore.NewProvider(pfirestore.ProviderConfig{
		ProjectID:    cfg.Firestore.ProjectID,
		DatabaseID:   cfg.Firestore.DatabaseID,
		EmulatorHost: cfg.Firestore.EmulatorHost,
	})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repository registry", zap.Error(err))
	}

	tokenCodec, err := auth.NewTokenCodec(cfg.Auth.SigningSecret, cfg.Auth.TokenIssuer, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		logger.Fatal("failed to initialise token codec", zap.Error(err))
	}

	var events services.EventPublisher
	var pubsubClient *pubsub.Client
	var orderTopic, ledgerTopic, stockTopic *pubsub.Topic
	if cfg.PubSub.Disabled {
		logger.Info("pubsub disabled; domain events will not be published")
	} else {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		orderTopic = pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
		ledgerTopic = pubsubClient.Topic(cfg.PubSub.LedgerEventsTopic)
		stockTopic = pubsubClient.Topic(cfg.PubSub.StockEventsTopic)
		publisher, err := jobs.NewPubSubEventPublisher(orderTopic, ledgerTopic, stockTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
		events = publisher
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        registry.Orders(),
		OrderItems:    registry.OrderItems(),
		ReturnDetails: registry.ReturnDetails(),
		Customers:     registry.Customers(),
		Inventory:     registry.Inventory(),
		Counters:      registry.Counters(),
		UnitOfWork:    registry,
		Clock:         time.Now,
		Events:        events,
		Logger:        zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	fulfillmentService, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:           registry.Orders(),
		OrderItems:       registry.OrderItems(),
		UnitOfWork:       registry,
		Clock:            time.Now,
		StrictQuantities: cfg.Fulfillment.StrictQuantities,
		Logger:           zapEventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		logger.Fatal("failed to initialise fulfillment service", zap.Error(err))
	}

	ledgerService, err := services.NewLedgerService(services.LedgerServiceDeps{
		Orders:    registry.Orders(),
		Customers: registry.Customers(),
		Clock:     time.Now,
		Events:    events,
		Logger:    zapEventLogger(logger.Named("ledger")),
	})
	if err != nil {
		logger.Fatal("failed to initialise ledger service", zap.Error(err))
	}

	returnService, err := services.NewReturnService(services.ReturnServiceDeps{
		Orders:        registry.Orders(),
		ReturnDetails: registry.ReturnDetails(),
		Customers:     registry.Customers(),
		Inventory:     registry.Inventory(),
		Clock:         time.Now,
		Events:        events,
		Logger:        zapEventLogger(logger.Named("returns")),
	})
	if err != nil {
		logger.Fatal("failed to initialise return service", zap.Error(err))
	}

	inventoryService, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: registry.Inventory(),
		Logs:      registry.InventoryLogs(),
		Links:     registry.Links(),
		Clock:     time.Now,
		Events:    events,
		Logger:    zapEventLogger(logger.Named("inventory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory service", zap.Error(err))
	}

	customerService, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers: registry.Customers(),
		Clock:     time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise customer service", zap.Error(err))
	}

	systemService, err := newSystemService(firestoreProvider, orderTopic, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	var idempotencyStore idempotency.Store
	idempotencyStore, err = idempotency.NewFirestoreStore(firestoreProvider)
	if err != nil {
		logger.Warn("idempotency: firestore store init failed, falling back to memory", zap.Error(err))
		idempotencyStore = idempotency.NewMemoryStore()
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
	)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	var sweepTicker *time.Ticker
	if cfg.Idempotency.SweepInterval > 0 {
		sweepTicker = time.NewTicker(cfg.Idempotency.SweepInterval)
		sweepWG.Add(1)
		go func() {
			defer sweepWG.Done()
			sweepLogger := logger.Named("idempotency")
			for {
				select {
				case <-sweepTicker.C:
					removed, err := idempotencyStore.CleanupExpired(sweepCtx, time.Now().UTC(), 0)
					if err != nil {
						sweepLogger.Error("idempotency sweep error", zap.Error(err))
						continue
					}
					if removed > 0 {
						sweepLogger.Info("idempotency sweep removed records", zap.Int("count", removed))
					}
				case <-sweepCtx.Done():
					return
				}
			}
		}()
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)
	orderHandlers := handlers.NewOrderHandlers(orderService, fulfillmentService)
	customerHandlers := handlers.NewCustomerHandlers(customerService, ledgerService)
	inventoryHandlers := handlers.NewInventoryHandlers(inventoryService)
	returnHandlers := handlers.NewReturnHandlers(returnService)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithAPIMiddlewares(auth.RequireAuth(tokenCodec), idempotencyMiddleware),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCustomerRoutes(customerHandlers.Routes),
		handlers.WithFirmRoutes(customerHandlers.FirmRoutes),
		handlers.WithInventoryRoutes(inventoryHandlers.Routes),
		handlers.WithReturnRoutes(returnHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("apexflow api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if sweepTicker != nil {
		sweepTicker.Stop()
	}
	sweepCancel()
	sweepWG.Wait()

	if orderTopic != nil {
		orderTopic.Stop()
	}
	if ledgerTopic != nil {
		ledgerTopic.Stop()
	}
	if stockTopic != nil {
		stockTopic.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}

func newSystemService(provider *pfirestore.Provider, orderTopic *pubsub.Topic, build services.BuildInfo) (services.SystemService, error) {
	probes := map[string]services.HealthProbe{}
	if provider != nil {
		probes["firestore"] = func(ctx context.Context) error {
			probeCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			client, err := provider.Client(probeCtx)
			if err != nil {
				return err
			}
			iter := client.Collections(probeCtx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}
	}
	if orderTopic != nil {
		probes["pubsub"] = func(ctx context.Context) error {
			probeCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			_, err := orderTopic.Exists(probeCtx)
			return err
		}
	}
	return services.NewSystemService(services.SystemServiceDeps{
		Probes: probes,
		Build:  build,
		Clock:  time.Now,
	})
}
