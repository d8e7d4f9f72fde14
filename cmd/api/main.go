package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fastmart-backend/api/routes"
	"github.com/angelmondragon/fastmart-backend/internal/auth"
	"github.com/angelmondragon/fastmart-backend/internal/cart"
	"github.com/angelmondragon/fastmart-backend/internal/catalog"
	"github.com/angelmondragon/fastmart-backend/internal/inventory"
	"github.com/angelmondragon/fastmart-backend/internal/users"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	"github.com/angelmondragon/fastmart-backend/pkg/db"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/metrics"
	"github.com/angelmondragon/fastmart-backend/pkg/migrate"
	"github.com/angelmondragon/fastmart-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		logg.Error(ctx, "failed to configure tracing", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient := connectRedis(ctx, cfg.Redis, logg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricSet := metrics.New(registry)

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{UserRepo: userRepo, JWTConfig: cfg.JWT})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{Users: userRepo, PasswordConfig: cfg.Password})
	if err != nil {
		logg.Error(ctx, "failed to create register service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, logg, metricSet.Inventory)
	if err != nil {
		logg.Error(ctx, "failed to create inventory service", err)
		os.Exit(1)
	}

	listingCache := catalog.NewListingCache(listingStore(cfg.Cache.Enabled, redisClient), logg, catalog.ListingCacheOptions{
		TTL:       cfg.Cache.ListingTTL,
		OpTimeout: cfg.Cache.OpTimeout,
		ScanCount: cfg.Cache.ScanBatches,
		Metrics:   metricSet.Cache,
	})
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), listingCache, userRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), inventoryService, dbClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			httpStore(redisClient),
			registry,
			metricSet.HTTP,
			authService,
			registerService,
			catalogService,
			cartService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	shutdownErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		shutdownTracing(shutdownCtx),
		closeRedis(redisClient),
		dbClient.Close(),
	)
	if shutdownErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", shutdownErr)
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
