package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keymint-labs/keymint-backend/api/routes"
	"github.com/keymint-labs/keymint-backend/internal/checkout"
	"github.com/keymint-labs/keymint-backend/internal/licenses"
	"github.com/keymint-labs/keymint-backend/internal/plugins"
	stripewebhook "github.com/keymint-labs/keymint-backend/internal/webhooks/stripe"
	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/db"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/metrics"
	"github.com/keymint-labs/keymint-backend/pkg/migrate"
	"github.com/keymint-labs/keymint-backend/pkg/outbox"
	"github.com/keymint-labs/keymint-backend/pkg/redis"
	"github.com/keymint-labs/keymint-backend/pkg/stripe"
)

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	pluginRepo := plugins.NewRepository(dbClient.DB())
	licenseRepo := licenses.NewRepository(dbClient.DB())

	licenseService, err := licenses.NewService(pluginRepo, licenseRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(pluginRepo, checkout.NewStripeClient(stripeClient), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	validationMetrics := metrics.NewValidationMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		LicenseRepo:       licenseRepo,
		PluginRepo:        pluginRepo,
		Ledger:            stripewebhook.NewLedger(dbClient.DB()),
		Outbox:            outboxService,
		StripeClient:      stripewebhook.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           webhookMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL, "stripe_webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			licenseService,
			checkoutService,
			stripeClient,
			webhookService,
			webhookGuard,
			webhookMetrics,
			validationMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
