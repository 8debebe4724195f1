package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/keymint-labs/keymint-backend/api/responses"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	IsMarked(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type webhookAck struct {
	Status string `json:"status"`
}

// StripeWebhook ingests payment processor events. The processor treats
// any non-200 as "retry", so only transient failures may return one;
// bad signatures get a 400 and duplicates get the same success ack as
// a first delivery.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			m.IncRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			m.IncRejected()
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature"))
			return
		}

		// The guard is marked only after a committed mutation, so a hit
		// is safe to ack without reprocessing. Any miss or guard error
		// falls through to the handler; the ledger dedups durably.
		alreadyApplied, err := guard.IsMarked(ctx, event.ID)
		if err != nil && logg != nil {
			logg.Warn(ctx, fmt.Sprintf("idempotency check failed for %s: %v", event.ID, err))
		}
		if alreadyApplied {
			m.IncDuplicate(string(event.Type))
			responses.WriteJSON(w, http.StatusOK, webhookAck{Status: "success"})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := guard.Mark(ctx, event.ID); err != nil && logg != nil {
			logg.Warn(ctx, fmt.Sprintf("idempotency mark failed for %s: %v", event.ID, err))
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteJSON(w, http.StatusOK, webhookAck{Status: "success"})
	}
}
