package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/buildmart-backend/internal/cron"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/db"
	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	"github.com/angelmondragon/buildmart-backend/pkg/instance"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
	"github.com/angelmondragon/buildmart-backend/pkg/metrics"
	"github.com/angelmondragon/buildmart-backend/pkg/redis"
)

const lockKeyFormat = "bm:maintenance:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if strings.EqualFold(cfg.DocStore.Backend, config.DocStoreBackendMemory) {
		logg.Error(context.Background(), "maintenance needs a shared document store", fmt.Errorf("backend %q is process local", cfg.DocStore.Backend))
		os.Exit(1)
	}

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
		sqlConn = dbClient
	}

	store, closeStore, err := docstore.Open(ctx, docstore.OpenParams{
		Config:   cfg.DocStore,
		Redis:    redisClient.Raw(),
		SQL:      sqlConn,
		Observer: metrics.NewDocStoreMetrics(prometheus.DefaultRegisterer),
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

	orderService, err := orders.NewService(store, orders.Options{
		Mode:   orders.Mode(strings.ToLower(cfg.Orders.TransitionMode)),
		Arms:   orders.NewRedisArmStore(redisClient),
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	expireJob, err := cron.NewExpireOrdersJob(cron.ExpireOrdersJobParams{
		Logger: logg,
		Store:  store,
		Orders: orderService,
		MaxAge: cfg.Maintenance.NewOrderMaxAge,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order expiry job", err)
		os.Exit(1)
	}
	pruneJob, err := cron.NewPruneNotificationsJob(cron.PruneNotificationsJobParams{
		Logger:    logg,
		Store:     store,
		Retention: cfg.Maintenance.NotificationRetention,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification prune job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient.Raw(), lockKey(cfg.App.Env), cfg.Maintenance.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create maintenance lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expireJob, pruneJob),
		Lock:     lock,
		Metrics:  metrics.NewMaintenanceMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create maintenance service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"docstore": cfg.DocStore.Backend,
		"interval": cfg.Maintenance.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
