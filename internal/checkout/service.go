package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/keymint-labs/keymint-backend/internal/plugins"
	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
)

// StripeCheckoutClient exposes the subset of Stripe operations the
// checkout service needs.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type CreateSessionInput struct {
	PluginSlug    string
	PlanType      enums.PlanType
	CustomerEmail string
}

type CreateSessionResult struct {
	SessionID  string
	SessionURL string
}

type Service interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error)
}

type service struct {
	plugins plugins.Repository
	stripe  StripeCheckoutClient
	cfg     config.StripeConfig
	logg    *logger.Logger
}

func NewService(pluginRepo plugins.Repository, stripeClient StripeCheckoutClient, cfg config.StripeConfig, logg *logger.Logger) (Service, error) {
	if pluginRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plugin repo required")
	}
	if stripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &service{plugins: pluginRepo, stripe: stripeClient, cfg: cfg, logg: logg}, nil
}

// CreateSession starts a processor checkout for a plugin's configured
// price. The resulting session carries the plugin slug in its metadata
// so the completion webhook can route the purchase back to the plugin.
func (s *service) CreateSession(ctx context.Context, input CreateSessionInput) (*CreateSessionResult, error) {
	slug := strings.TrimSpace(input.PluginSlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plugin_slug is required")
	}
	if !input.PlanType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan_type must be one_time or subscription")
	}

	plugin, err := s.plugins.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plugin not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plugin")
	}
	if !plugin.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plugin not found")
	}
	priceID := plugin.StripeOneTimePriceID
	mode := stripe.CheckoutSessionModePayment
	if input.PlanType == enums.PlanTypeSubscription {
		priceID = plugin.StripeSubscriptionPriceID
		mode = stripe.CheckoutSessionModeSubscription
	}
	if priceID == nil || *priceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no price configured for requested plan")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    priceID,
			Quantity: stripe.Int64(1),
		}},
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("plugin_slug", plugin.Slug)
	params.AddMetadata("plan_type", string(input.PlanType))

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "processor rejected checkout")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithPluginSlug(ctx, plugin.Slug), "checkout session created")
	}
	return &CreateSessionResult{SessionID: session.ID, SessionURL: session.URL}, nil
}
