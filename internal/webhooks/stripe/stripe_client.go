package stripewebhook

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"

	pkgstripe "github.com/keymint-labs/keymint-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the configured Stripe client so the webhook
// service can be tested against a stub.
func NewStripeClient(api *pkgstripe.Client) StripeSubscriptionClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Get(id, params)
}
