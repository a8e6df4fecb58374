package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_laundry/internal/apiclient"
	"github.com/fjod/go_laundry/internal/catalog"
	"github.com/fjod/go_laundry/internal/config"
	"github.com/fjod/go_laundry/internal/connectivity"
	"github.com/fjod/go_laundry/internal/draft"
	h "github.com/fjod/go_laundry/internal/http"
	"github.com/fjod/go_laundry/internal/ledger"
	"github.com/fjod/go_laundry/internal/publisher"
	"github.com/fjod/go_laundry/internal/reconcile"
	"github.com/fjod/go_laundry/internal/service"
	"github.com/fjod/go_laundry/pkg/circuitbreaker"
	"github.com/fjod/go_laundry/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New("storefront", cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.APIRateLimit,
		Logger:    log,
		Breaker: circuitbreaker.Settings{
			Name:             "laundry-api",
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
	})

	// Drafts and the catalog cache live in Redis when configured
	var (
		drafts       draft.Store
		catalogCache catalog.Cache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		drafts = draft.NewRedisStore(rdb, cfg.DraftTTL)
		catalogCache = catalog.NewRedisCache(rdb, cfg.CatalogTTL)
		log.Info("using redis for drafts and catalog", zap.String("addr", cfg.RedisAddr))
	} else {
		mem := draft.NewMemoryStore(cfg.DraftTTL)
		drafts = mem
		go sweepDrafts(ctx, mem, cfg.DraftTTL/4)
	}

	var led ledger.Ledger = ledger.NopLedger{}
	if cfg.LedgerDSN != "" {
		repo, err := ledger.NewRepository(cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			log.Fatal("failed to open ledger", zap.Error(err))
		}
		defer repo.Close()
		if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
			log.Fatal("failed to migrate ledger", zap.Error(err))
		}
		led = repo
		log.Info("ledger ready", zap.String("driver", cfg.LedgerDriver))
	}

	var events publisher.Publisher = publisher.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.EventsTopic, log, cfg.KafkaBrokers...)
		log.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.EventsTopic))
	}
	defer events.Close()

	online := connectivity.NewStore(true)

	catalogSvc := catalog.NewService(client, catalogCache, log)
	unsubscribe := online.Subscribe(func(up bool) {
		if !up {
			log.Warn("laundry api unreachable")
			return
		}
		// Prices may have changed during the outage.
		log.Info("laundry api reachable again")
		catalogSvc.Invalidate(ctx)
	})
	defer unsubscribe()

	prober := connectivity.NewProber(client, online, cfg.HealthInterval, log)
	go prober.Run(ctx)

	orders := service.NewOrderService(service.Deps{
		Drafts:    drafts,
		Catalog:   catalogSvc,
		API:       client,
		Ledger:    led,
		Events:    events,
		Online:    online,
		BranchID:  cfg.DefaultBranchID,
		PublicURL: cfg.PublicURL,
		Logger:    log,
	})
	reconciler := reconcile.NewReconciler(client, client,
		reconcile.WithLedger(led),
		reconcile.WithPublisher(events),
		reconcile.WithLogger(log),
		reconcile.WithTimeout(cfg.VerifyTimeout),
	)

	handler := h.NewHandler(orders, catalogSvc, reconciler, online, cfg.RequestTimeout, log)
	router := h.NewRouter(handler, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout + 5*time.Second,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("server exited")
}

func sweepDrafts(ctx context.Context, store *draft.MemoryStore, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			store.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
