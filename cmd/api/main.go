package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/buildmart-backend/api/controllers"
	"github.com/angelmondragon/buildmart-backend/api/routes"
	"github.com/angelmondragon/buildmart-backend/internal/auth"
	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/checkout"
	"github.com/angelmondragon/buildmart-backend/internal/notifications"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/internal/products"
	"github.com/angelmondragon/buildmart-backend/pkg/auth/session"
	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/db"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/instance"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/angelmondragon/buildmart-backend/pkg/metrics"
	"github.com/angelmondragon/buildmart-backend/pkg/migrate"
	"github.com/angelmondragon/buildmart-backend/pkg/redis"
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pingers := map[string]controllers.Pinger{"redis": redisClient}

	var sqlConn docstore.SQLConn
	if strings.EqualFold(cfg.DocStore.Backend, config.DocStoreBackendSQL) {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		sqlConn = dbClient
		pingers["database"] = dbClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(registry)

	store, closeStore, err := docstore.Open(ctx, docstore.OpenParams{
		Config:   cfg.DocStore,
		Redis:    redisClient.Raw(),
		SQL:      sqlConn,
		Observer: metrics.NewDocStoreMetrics(registry),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to open document store", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logg.Error(context.Background(), "error closing document store", err)
		}
	}()
	if p, ok := store.(docstore.Pinger); ok {
		pingers["docstore"] = p
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Store:          store,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}
	if created, err := authService.BootstrapAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		logg.Error(ctx, "failed to bootstrap admin account", err)
		os.Exit(1)
	} else if created {
		logg.Info(logg.WithField(ctx, "admin", cfg.Admin.Username), "bootstrapped admin account")
	}

	notificationService, err := notifications.NewService(store, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(products.NewRepository(store), authService)
	if err != nil {
		logg.Error(ctx, "failed to create products service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(store, productService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(store, checkout.Options{
		Concurrency: cfg.Orders.FanoutConcurrency,
		Notifier:    notificationService,
		Metrics:     orderMetrics,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(store, orders.Options{
		Mode:     orders.Mode(strings.ToLower(cfg.Orders.TransitionMode)),
		ArmTTL:   cfg.Orders.DeliveryConfirmTTL,
		Arms:     orders.NewRedisArmStore(redisClient),
		Notifier: notificationService,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"docstore": cfg.DocStore.Backend,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, registry, pingers, redisClient, sessionManager, routes.Services{
			Auth:          authService,
			Products:      productService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        orderService,
			Notifications: notificationService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}
