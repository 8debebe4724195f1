package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/keymint-labs/keymint-backend/internal/plugins"
	"github.com/keymint-labs/keymint-backend/pkg/config"
	"github.com/keymint-labs/keymint-backend/pkg/db/models"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
)

type stubPluginRepo struct {
	bySlug map[string]*models.Plugin
}

func (s *stubPluginRepo) WithTx(tx *gorm.DB) plugins.Repository { return s }

func (s *stubPluginRepo) FindBySlug(ctx context.Context, slug string) (*models.Plugin, error) {
	if plugin, ok := s.bySlug[slug]; ok {
		return plugin, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPluginRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Plugin, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubCheckoutClient struct {
	lastParams *stripe.CheckoutSessionParams
	session    *stripe.CheckoutSession
	err        error
}

func (s *stubCheckoutClient) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func strPtr(v string) *string { return &v }

func newCheckoutFixture(t *testing.T) (Service, *stubPluginRepo, *stubCheckoutClient) {
	t.Helper()
	repo := &stubPluginRepo{bySlug: map[string]*models.Plugin{
		"seo-boost": {
			ID:                        uuid.New(),
			Name:                      "SEO Boost",
			Slug:                      "seo-boost",
			StripeOneTimePriceID:      strPtr("price_123"),
			StripeSubscriptionPriceID: strPtr("price_sub_456"),
			Active:                    true,
		},
		"lifetime-only": {
			ID:                   uuid.New(),
			Name:                 "Lifetime Only",
			Slug:                 "lifetime-only",
			StripeOneTimePriceID: strPtr("price_789"),
			Active:               true,
		},
		"unpriced": {
			ID:     uuid.New(),
			Name:   "Unpriced",
			Slug:   "unpriced",
			Active: true,
		},
	}}
	client := &stubCheckoutClient{session: &stripe.CheckoutSession{
		ID:  "cs_123",
		URL: "https://checkout.stripe.com/c/cs_123",
	}}
	svc, err := NewService(repo, client, config.StripeConfig{
		SuccessURL: "https://example.com/ok",
		CancelURL:  "https://example.com/cancel",
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, client
}

func TestCreateSession(t *testing.T) {
	svc, _, client := newCheckoutFixture(t)

	result, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug:    "seo-boost",
		PlanType:      enums.PlanTypeOneTime,
		CustomerEmail: "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if result.SessionID != "cs_123" || result.SessionURL == "" {
		t.Fatalf("unexpected result %+v", result)
	}

	params := client.lastParams
	if params == nil {
		t.Fatal("no params sent to stripe")
	}
	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Errorf("mode = %q", got)
	}
	if len(params.LineItems) != 1 || stripe.StringValue(params.LineItems[0].Price) != "price_123" {
		t.Errorf("line items = %+v", params.LineItems)
	}
	if params.Metadata["plugin_slug"] != "seo-boost" {
		t.Errorf("metadata = %+v", params.Metadata)
	}
	if got := stripe.StringValue(params.CustomerEmail); got != "buyer@example.com" {
		t.Errorf("customer email = %q", got)
	}
}

func TestCreateSessionUnknownPlugin(t *testing.T) {
	svc, _, _ := newCheckoutFixture(t)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug: "nope",
		PlanType:   enums.PlanTypeOneTime,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateSessionPicksPriceByRequestedPlan(t *testing.T) {
	svc, _, client := newCheckoutFixture(t)

	// Both plans configured; the request decides which price is used.
	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug: "seo-boost",
		PlanType:   enums.PlanTypeSubscription,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	params := client.lastParams
	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("mode = %q", got)
	}
	if len(params.LineItems) != 1 || stripe.StringValue(params.LineItems[0].Price) != "price_sub_456" {
		t.Errorf("line items = %+v", params.LineItems)
	}
	if params.Metadata["plan_type"] != "subscription" {
		t.Errorf("metadata = %+v", params.Metadata)
	}
}

func TestCreateSessionPlanNotOffered(t *testing.T) {
	svc, _, _ := newCheckoutFixture(t)

	// Plugin only sells one-time; a subscription checkout has no price.
	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug: "lifetime-only",
		PlanType:   enums.PlanTypeSubscription,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSessionUnconfiguredPrice(t *testing.T) {
	svc, _, _ := newCheckoutFixture(t)

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug: "unpriced",
		PlanType:   enums.PlanTypeOneTime,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSessionProcessorRejection(t *testing.T) {
	svc, _, client := newCheckoutFixture(t)
	client.err = &stripe.Error{Code: stripe.ErrorCodeResourceMissing, Msg: "no such price"}

	_, err := svc.CreateSession(context.Background(), CreateSessionInput{
		PluginSlug: "seo-boost",
		PlanType:   enums.PlanTypeOneTime,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected processor rejection, got %v", err)
	}
}
