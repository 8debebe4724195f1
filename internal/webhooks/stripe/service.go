package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/keymint-labs/keymint-backend/internal/licenses"
	"github.com/keymint-labs/keymint-backend/internal/plugins"
	dbpkg "github.com/keymint-labs/keymint-backend/pkg/db"
	"github.com/keymint-labs/keymint-backend/pkg/db/models"
	"github.com/keymint-labs/keymint-backend/pkg/enums"
	pkgerrors "github.com/keymint-labs/keymint-backend/pkg/errors"
	"github.com/keymint-labs/keymint-backend/pkg/logger"
	"github.com/keymint-labs/keymint-backend/pkg/metrics"
	"github.com/keymint-labs/keymint-backend/pkg/outbox"
	"github.com/keymint-labs/keymint-backend/pkg/outbox/payloads"
)

// errDuplicatePurchase marks a create that lost a uniqueness race to a
// concurrent delivery. The transaction must roll back, but the caller
// acknowledges the event; redelivery lands on the no-op path.
var errDuplicatePurchase = errors.New("duplicate purchase")

// StripeSubscriptionClient exposes the subset of Stripe operations the
// webhook service needs.
type StripeSubscriptionClient interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	LicenseRepo       licenses.Repository
	PluginRepo        plugins.Repository
	Ledger            Ledger
	Outbox            outboxEmitter
	StripeClient      StripeSubscriptionClient
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

type Service struct {
	licenseRepo licenses.Repository
	pluginRepo  plugins.Repository
	ledger      Ledger
	outbox      outboxEmitter
	stripe      StripeSubscriptionClient
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.LicenseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "license repo required")
	}
	if params.PluginRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plugin repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event ledger required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		licenseRepo: params.LicenseRepo,
		pluginRepo:  params.PluginRepo,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		stripe:      params.StripeClient,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

// HandleEvent applies one verified processor event. Unknown event types
// and events referencing licenses this system never issued are
// acknowledged and ignored; only transient storage failures propagate.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		return s.handleCheckoutCompleted(ctx, event, &sess)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.applySubscriptionUpdate(ctx, tx, &sub)
		})
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.applySubscriptionDeleted(ctx, tx, &sub)
		})
	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := event.GetObjectValue("subscription")
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.applyInvoiceOutcome(ctx, tx, subscriptionID, true)
		})
	case stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.applyInvoiceOutcome(ctx, tx, subscriptionID, false)
		})
	default:
		if s.logg != nil {
			s.logg.Info(ctx, fmt.Sprintf("ignoring stripe event type %s", event.Type))
		}
		return nil
	}
}

// withLedger wraps a mutation in one transaction with the dedup insert.
// The mutation only runs for first-time deliveries; both commit or roll
// back together, so a replay can never double-apply.
func (s *Service) withLedger(ctx context.Context, event *stripe.Event, apply func(ctx context.Context, tx *gorm.DB) error) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		first, err := s.ledger.WithTx(tx).RecordIfNew(ctx, event.ID, string(event.Type))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record event")
		}
		if !first {
			s.metrics.IncDuplicate(string(event.Type))
			if s.logg != nil {
				s.logg.Info(s.logg.WithEventID(ctx, event.ID), "duplicate stripe event skipped")
			}
			return nil
		}
		s.metrics.IncReceived(string(event.Type))
		return apply(ctx, tx)
	})
	if errors.Is(err, errDuplicatePurchase) {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithEventID(ctx, event.ID), "concurrent duplicate purchase detected, acknowledging")
		}
		return nil
	}
	return err
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, sess *stripe.CheckoutSession) error {
	switch sess.Mode {
	case stripe.CheckoutSessionModePayment:
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.createOneTimeLicense(ctx, tx, sess)
		})
	case stripe.CheckoutSessionModeSubscription:
		if sess.Subscription == nil || sess.Subscription.ID == "" {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithEventID(ctx, event.ID), "subscription checkout without subscription id, ignoring")
			}
			return nil
		}
		// The session payload carries the subscription by reference
		// only; the trial window lives on the subscription itself.
		sub, err := s.stripe.Get(ctx, sess.Subscription.ID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.withLedger(ctx, event, func(ctx context.Context, tx *gorm.DB) error {
			return s.createSubscriptionLicense(ctx, tx, sess, sub)
		})
	default:
		if s.logg != nil {
			s.logg.Info(ctx, fmt.Sprintf("ignoring checkout session mode %s", sess.Mode))
		}
		return nil
	}
}

func (s *Service) createOneTimeLicense(ctx context.Context, tx *gorm.DB, sess *stripe.CheckoutSession) error {
	plugin, err := s.pluginFromMetadata(ctx, tx, sess.Metadata)
	if err != nil || plugin == nil {
		return err
	}

	existing, err := s.licenseRepo.WithTx(tx).FindByCheckoutSessionID(ctx, sess.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup checkout session")
	}
	if existing != nil {
		return nil
	}

	sessionID := sess.ID
	license := &models.License{
		PluginID:                plugin.ID,
		Email:                   purchaserEmail(sess),
		Status:                  enums.LicenseStatusActive,
		StripeCustomerID:        customerID(sess),
		StripeCheckoutSessionID: &sessionID,
	}
	created, err := s.licenseRepo.WithTx(tx).CreateWithGeneratedKey(ctx, license)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "checkout_session") {
			return errDuplicatePurchase
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
	}
	return s.emitLicenseCreated(ctx, tx, created, plugin)
}

func (s *Service) createSubscriptionLicense(ctx context.Context, tx *gorm.DB, sess *stripe.CheckoutSession, sub *stripe.Subscription) error {
	existing, err := s.licenseRepo.WithTx(tx).FindBySubscriptionID(ctx, sub.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if existing != nil {
		// Replay of a checkout already applied under another event id.
		return nil
	}

	plugin, err := s.pluginFromMetadata(ctx, tx, sess.Metadata)
	if err != nil || plugin == nil {
		return err
	}

	status, expiresAt := licenses.StatusForNewSubscription(sub.Status, toTimePtr(sub.TrialEnd))
	subscriptionID := sub.ID
	sessionID := sess.ID
	license := &models.License{
		PluginID:                plugin.ID,
		Email:                   purchaserEmail(sess),
		Status:                  status,
		StripeCustomerID:        customerID(sess),
		StripeSubscriptionID:    &subscriptionID,
		StripeCheckoutSessionID: &sessionID,
		ExpiresAt:               expiresAt,
	}
	created, err := s.licenseRepo.WithTx(tx).CreateWithGeneratedKey(ctx, license)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return errDuplicatePurchase
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
	}
	return s.emitLicenseCreated(ctx, tx, created, plugin)
}

func (s *Service) applySubscriptionUpdate(ctx context.Context, tx *gorm.DB, sub *stripe.Subscription) error {
	license, found, err := s.findBySubscription(ctx, tx, sub.ID)
	if err != nil || !found {
		return err
	}

	transition := licenses.OnSubscriptionUpdated(license.Status, sub.Status, periodEndOf(sub), toTimePtr(sub.TrialEnd))
	return s.applyTransition(ctx, tx, license, transition)
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, tx *gorm.DB, sub *stripe.Subscription) error {
	license, found, err := s.findBySubscription(ctx, tx, sub.ID)
	if err != nil || !found {
		return err
	}
	return s.applyTransition(ctx, tx, license, licenses.OnSubscriptionDeleted(license.Status))
}

func (s *Service) applyInvoiceOutcome(ctx context.Context, tx *gorm.DB, subscriptionID string, paid bool) error {
	if subscriptionID == "" {
		if s.logg != nil {
			s.logg.Info(ctx, "invoice event without subscription reference, ignoring")
		}
		return nil
	}
	license, found, err := s.findBySubscription(ctx, tx, subscriptionID)
	if err != nil || !found {
		return err
	}

	var transition licenses.Transition
	if paid {
		transition = licenses.OnInvoicePaymentSucceeded(license.Status)
	} else {
		transition = licenses.OnInvoicePaymentFailed(license.Status)
	}
	return s.applyTransition(ctx, tx, license, transition)
}

func (s *Service) findBySubscription(ctx context.Context, tx *gorm.DB, subscriptionID string) (*models.License, bool, error) {
	license, err := s.licenseRepo.WithTx(tx).FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logg != nil {
				s.logg.Info(ctx, fmt.Sprintf("no license for subscription %s, ignoring", subscriptionID))
			}
			return nil, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	return license, true, nil
}

func (s *Service) applyTransition(ctx context.Context, tx *gorm.DB, license *models.License, transition licenses.Transition) error {
	if !transition.Apply || transition.Status == license.Status && !transition.SetExpiry {
		return nil
	}

	fromStatus := license.Status
	license.Status = transition.Status
	if transition.SetExpiry {
		license.ExpiresAt = transition.ExpiresAt
	}
	if err := s.licenseRepo.WithTx(tx).Update(ctx, license); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license")
	}

	if fromStatus == license.Status {
		return nil
	}
	slug := ""
	if plugin, err := s.pluginRepo.WithTx(tx).FindByID(ctx, license.PluginID); err == nil {
		slug = plugin.Slug
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventLicenseStatusChanged,
		AggregateType: enums.AggregateLicense,
		AggregateID:   license.ID,
		Version:       1,
		Data: payloads.LicenseStatusChangedEvent{
			LicenseID:  license.ID,
			PluginSlug: slug,
			FromStatus: fromStatus,
			ToStatus:   license.Status,
			OccurredAt: time.Now().UTC(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
	}
	return nil
}

func (s *Service) emitLicenseCreated(ctx context.Context, tx *gorm.DB, license *models.License, plugin *models.Plugin) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventLicenseCreated,
		AggregateType: enums.AggregateLicense,
		AggregateID:   license.ID,
		Version:       1,
		Data: payloads.LicenseCreatedEvent{
			LicenseID:  license.ID,
			LicenseKey: license.LicenseKey,
			PluginName: plugin.Name,
			PluginSlug: plugin.Slug,
			Email:      license.Email,
			IssuedAt:   time.Now().UTC(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit license created")
	}
	return nil
}

// pluginFromMetadata resolves the plugin a checkout was initiated for.
// Sessions minted outside this system carry no slug and are ignored.
func (s *Service) pluginFromMetadata(ctx context.Context, tx *gorm.DB, metadata map[string]string) (*models.Plugin, error) {
	slug := metadata["plugin_slug"]
	if slug == "" {
		if s.logg != nil {
			s.logg.Warn(ctx, "checkout session missing plugin_slug metadata, ignoring")
		}
		return nil, nil
	}
	plugin, err := s.pluginRepo.WithTx(tx).FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithPluginSlug(ctx, slug), "checkout references unknown plugin, ignoring")
			}
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plugin")
	}
	return plugin, nil
}

func purchaserEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

func customerID(sess *stripe.CheckoutSession) *string {
	if sess.Customer == nil || sess.Customer.ID == "" {
		return nil
	}
	id := sess.Customer.ID
	return &id
}

func periodEndOf(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return toTimePtr(sub.Items.Data[0].CurrentPeriodEnd)
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
