package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	pkgstripe "github.com/keymint-labs/keymint-backend/pkg/stripe"
)

type stripeClientWrapper struct{}

// NewStripeClient wraps the configured Stripe client so the checkout
// service can be tested against a stub.
func NewStripeClient(api *pkgstripe.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
