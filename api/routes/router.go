package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keymint-labs/keymint-backend/api/controllers"
	webhookcontrollers "github.com/keymint-labs/keymint-backend/api/controllers/webhooks"
	"github.com/keymint-labs/keymint-backend/api/middleware"
	"github.com/keymint-labs/keymint-backend/internal/checkout"
	"github.com/keymint-labs/keymint-backend/internal/licenses"
	stripewebhook "github.com/keymint-labs/keymint-backend/internal/webhooks/stripe"
	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/db"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/metrics"
	"github.com/keymint-labs/keymint-backend/pkg/redis"
	"github.com/keymint-labs/keymint-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	licenseService licenses.Service,
	checkoutService checkout.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
	validationMetrics *metrics.ValidationMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	validatePolicy := middleware.NewRateLimitPolicy(
		"validate",
		cfg.RateLimit.ValidateWindow,
		cfg.RateLimit.ValidateIPLimit,
	)
	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(validatePolicy, redisClient, logg)).
			Get("/licenses/validate", controllers.ValidateLicense(licenseService, validationMetrics, logg))
		r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).
			Post("/checkout-session", controllers.CreateCheckoutSession(checkoutService, logg))
	})

	// The processor's webhook endpoint is registered with Stripe and
	// lives outside the versioned API prefix.
	r.Post("/webhooks/payment-events", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, webhookMetrics, logg))

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
